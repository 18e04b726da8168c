// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

// Package db wraps gorp.DbMap with the table-registration and timed-select
// helpers the rest of this module's storage code relies on, plus generic
// bulk-write helpers (ReplaceAll, BulkInsert).
package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-gorp/gorp"
)

// Index describes a non-primary-key index a Table wants created.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Table is implemented by every model persisted through DB.
type Table interface {
	TableName() string
}

// Indexed is implemented by models that also want secondary indexes.
type Indexed interface {
	Indexes() []Index
}

// DB is a thin wrapper around *gorp.DbMap. It exists so storage code can
// depend on a small, mockable surface instead of gorp directly.
type DB struct {
	*gorp.DbMap
}

// Close releases the underlying *sql.DB.
func (d DB) Close() error {
	if d.DbMap == nil || d.DbMap.Db == nil {
		return nil
	}
	return d.DbMap.Db.Close()
}

// AddTable registers a model's Go type against its SQL table name and
// primary-key columns (as declared via `db:"...,primarykey"` struct tags),
// returning the gorp.TableMap so callers can chain further configuration.
func (d DB) AddTable(model Table) *gorp.TableMap {
	tm := d.DbMap.AddTableWithName(model, model.TableName())
	if indexed, ok := model.(Indexed); ok {
		for _, idx := range indexed.Indexes() {
			ix := tm.AddIndex(idx.Name, "Btree", idx.Columns)
			ix.SetUnique(idx.Unique)
		}
	}
	return tm
}

// CreateTable issues CREATE TABLE IF NOT EXISTS for the tables already
// registered via AddTable. gorp creates all registered tables in one call,
// so the variadic argument only needs to be non-empty to trigger it; it is
// kept for symmetry with AddTable's call sites.
func (d DB) CreateTable(tables ...*gorp.TableMap) error {
	if len(tables) == 0 {
		return nil
	}
	if err := d.DbMap.CreateTablesIfNotExists(); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return nil
}

// TableExists reports whether the backing store already has the given table.
func (d DB) TableExists(table Table) bool {
	var n int
	// Works for postgres; sqlite test environments override this check
	// (see internal/db/testing) because sqlite_master needs a different query.
	query := "SELECT COUNT(*) FROM information_schema.tables WHERE table_name = $1"
	err := d.SelectOne(&n, query, table.TableName())
	return err == nil && n > 0
}

// SelectTimed runs a SELECT and records its duration against the group
// label on the supplied Monitor. query is the literal SQL to execute, not
// a metric label: callers pass a stable group name (such as the calling
// Store method's name) for that. mon may be nil, in which case no metric
// is recorded.
func (d DB) SelectTimed(mon *Monitor, group, query string, holder any, args ...any) error {
	start := time.Now()
	_, err := d.DbMap.Select(holder, query, args...)
	if mon != nil {
		mon.ObserveSelect(group, time.Since(start))
	}
	return err
}

// ReplaceAll deletes every existing row of T's table and inserts the
// supplied records in its place, within one transaction.
func ReplaceAll[T Table](d DB, records ...T) error {
	if len(records) == 0 {
		return nil
	}
	tableName := records[0].TableName()
	tx, err := d.DbMap.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM " + tableName); err != nil { //nolint:gosec // tableName is a compile-time constant per model
		_ = tx.Rollback()
		return err
	}
	for i := range records {
		if err := tx.Insert(recordPtr(&records[i])); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// BulkInsert inserts records one at a time inside a single transaction.
// gorp has no native multi-row INSERT, so this is the idiomatic way to
// batch writes without one round-trip per row's autocommit.
func BulkInsert[T Table](d DB, execer gorp.SqlExecutor, records ...T) error {
	tx, ok := execer.(*gorp.Transaction)
	if !ok {
		started, err := d.DbMap.Begin()
		if err != nil {
			return err
		}
		tx = started
	}
	for i := range records {
		if err := tx.Insert(recordPtr(&records[i])); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func recordPtr[T any](v *T) any { return v }

// ErrNoRows is returned by single-row lookups that found nothing. It wraps
// sql.ErrNoRows so callers can test with errors.Is against either.
var ErrNoRows = sql.ErrNoRows
