// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

// Package testing spins up a throwaway SQL backend for tests that need to
// exercise real gorp-generated SQL instead of a hand-rolled fake.
package testing

import (
	"database/sql"
	"log"
	"log/slog"
	"os"
	"testing"

	"github.com/go-gorp/gorp"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sapcc/go-bits/easypg"

	"github.com/cobaltcore-dev/placement-resolver/internal/db"
)

// Env is a database usable as a db.DB for the lifetime of a test.
type Env struct {
	db.DB
}

// Setup opens a fresh test database and wraps it as a db.DB. By default it
// uses sqlite under the test's temp directory, for speed. Setting
// POSTGRES_CONTAINER=1 (with a postgres listening on localhost:5432, user
// postgres, password secret, matching a locally started postgres container)
// points it at a real postgres instance instead, exercising the exact
// dialect production runs against.
func Setup(t *testing.T) Env {
	t.Helper()
	var dbmap *gorp.DbMap
	if os.Getenv("POSTGRES_CONTAINER") == "1" {
		slog.Info("using real postgres container")
		dbURL, err := easypg.URLFrom(easypg.URLParts{
			HostName:          "localhost",
			Port:              "5432",
			UserName:          "postgres",
			Password:          "secret",
			ConnectionOptions: "sslmode=disable",
			DatabaseName:      "postgres",
		})
		if err != nil {
			t.Fatalf("building postgres test DSN: %v", err)
		}
		sqlDB, err := sql.Open("postgres", dbURL.String())
		if err != nil {
			t.Fatalf("opening postgres test db: %v", err)
		}
		dbmap = &gorp.DbMap{Db: sqlDB, Dialect: gorp.PostgresDialect{}}
		t.Cleanup(func() { _ = sqlDB.Close() })
	} else {
		tmpDir := t.TempDir()
		sqlDB, err := sql.Open("sqlite3", tmpDir+"/test.db")
		if err != nil {
			t.Fatalf("opening sqlite test db: %v", err)
		}
		dbmap = &gorp.DbMap{Db: sqlDB, Dialect: gorp.SqliteDialect{}}
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	if os.Getenv("PLACEMENT_RESOLVER_TRACE_SQL") == "1" {
		dbmap.TraceOn("[gorp]", log.New(os.Stdout, "placement-resolver:", log.Lmicroseconds))
	}
	return Env{DB: db.DB{DbMap: dbmap}}
}

// TableExists overrides db.DB.TableExists because sqlite needs a different
// introspection query than the postgres information_schema lookup; under
// POSTGRES_CONTAINER=1 it defers to db.DB.TableExists.
func (e Env) TableExists(table db.Table) bool {
	if _, ok := e.Dialect.(gorp.PostgresDialect); ok {
		return e.DB.TableExists(table)
	}
	var name string
	query := "SELECT name FROM sqlite_master WHERE type='table' AND name = ?"
	err := e.SelectOne(&name, query, table.TableName())
	return err == nil
}
