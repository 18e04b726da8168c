// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package dataaccess

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-gorp/gorp"
	"github.com/google/uuid"

	"github.com/cobaltcore-dev/placement-resolver/internal/db"
	"github.com/cobaltcore-dev/placement-resolver/internal/placement"
)

// GorpStore implements placement.Store against a gorp-backed SQL schema.
type GorpStore struct {
	DB      db.DB
	Monitor *db.Monitor
}

// NewGorpStore wraps d as a placement.Store. Call CreateTables once
// beforehand (at startup, or once per test database).
func NewGorpStore(d db.DB, mon *db.Monitor) *GorpStore {
	return &GorpStore{DB: d, Monitor: mon}
}

// CreateTables registers every model this package owns and issues CREATE
// TABLE IF NOT EXISTS for all of them.
func CreateTables(d db.DB) error {
	tms := []*gorp.TableMap{
		d.AddTable(ResourceProviderRow{}),
		d.AddTable(ResourceClassRow{}),
		d.AddTable(InventoryRow{}),
		d.AddTable(AllocationRow{}),
		d.AddTable(TraitRow{}),
		d.AddTable(ResourceProviderTraitRow{}),
		d.AddTable(AggregateRow{}),
		d.AddTable(ResourceProviderAggregateRow{}),
	}
	return d.CreateTable(tms...)
}

func (s *GorpStore) selectTimed(ctx context.Context, group, query string, holder any, args ...any) error {
	// A cancelled context stops the resolver at the next query boundary.
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.DB.SelectTimed(s.Monitor, group, query, holder, args...)
}

// bind returns this store's positional bind marker for argument position n
// (1-based): postgres wants "$1", "$2", ...; sqlite (used in tests) accepts
// the driver-agnostic "?" for every position.
func (s *GorpStore) bind(n int) string {
	if _, ok := s.DB.Dialect.(gorp.PostgresDialect); ok {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *GorpStore) inClause(start int, count int) (string, int) {
	marks := make([]string, count)
	for i := 0; i < count; i++ {
		marks[i] = s.bind(start + i)
	}
	return strings.Join(marks, ","), start + count
}

// UsagesByProviderTree implements placement.Store.
func (s *GorpStore) UsagesByProviderTree(ctx context.Context, rootIDs []int64) ([]placement.UsageRow, error) {
	if len(rootIDs) == 0 {
		return nil, nil
	}
	inList, _ := s.inClause(1, len(rootIDs))
	args := int64sToArgs(rootIDs)

	query := fmt.Sprintf(`
		SELECT rp.id AS provider_id, rp.uuid AS provider_uuid,
		       inv.resource_class_id AS resource_class_id,
		       inv.total AS total, inv.reserved AS reserved,
		       inv.allocation_ratio AS allocation_ratio, inv.max_unit AS max_unit,
		       usage.used AS used
		FROM resource_providers rp
		LEFT JOIN inventories inv ON inv.resource_provider_id = rp.id
		LEFT JOIN (
			SELECT resource_provider_id, resource_class_id, SUM(used) AS used
			FROM allocations
			GROUP BY resource_provider_id, resource_class_id
		) usage ON usage.resource_provider_id = inv.resource_provider_id
		       AND usage.resource_class_id = inv.resource_class_id
		WHERE rp.root_provider_id IN (%s)`, inList)

	var rows []usageRow
	if err := s.selectTimed(ctx, "usages_by_provider_tree", query, &rows, args...); err != nil {
		return nil, err
	}
	out := make([]placement.UsageRow, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// ProviderIDsMatching implements placement.Store: providers that, alone,
// carry enough spare inventory of every resource class the group needs,
// every required trait, and none of the forbidden ones.
func (s *GorpStore) ProviderIDsMatching(ctx context.Context, g *placement.RequestGroupSearchContext) ([]placement.ProviderRootPair, error) {
	if len(g.Resources) == 0 {
		return nil, nil
	}

	var b strings.Builder
	var args []any
	next := 1
	arg := func(v any) string {
		mark := s.bind(next)
		next++
		args = append(args, v)
		return mark
	}

	b.WriteString(`SELECT rp.id AS provider_id, rp.root_provider_id AS root_id
		FROM resource_providers rp
		WHERE 1=1`)

	for rcID, amount := range g.Resources {
		fmt.Fprintf(&b, ` AND EXISTS (
			SELECT 1 FROM inventories inv
			LEFT JOIN (
				SELECT resource_provider_id, resource_class_id, SUM(used) AS used
				FROM allocations GROUP BY resource_provider_id, resource_class_id
			) u ON u.resource_provider_id = inv.resource_provider_id AND u.resource_class_id = inv.resource_class_id
			WHERE inv.resource_provider_id = rp.id AND inv.resource_class_id = %s
			  AND inv.max_unit >= %s
			  AND CAST((inv.total - inv.reserved) * inv.allocation_ratio AS BIGINT) - COALESCE(u.used, 0) >= %s
		)`, arg(rcID), arg(amount), arg(amount))
	}
	for trait := range g.RequiredTraitMap {
		fmt.Fprintf(&b, ` AND EXISTS (
			SELECT 1 FROM resource_provider_traits rpt
			JOIN traits t ON t.id = rpt.trait_id
			WHERE rpt.resource_provider_id = rp.id AND t.name = %s
		)`, arg(trait))
	}
	for trait := range g.ForbiddenTraitMap {
		fmt.Fprintf(&b, ` AND NOT EXISTS (
			SELECT 1 FROM resource_provider_traits rpt
			JOIN traits t ON t.id = rpt.trait_id
			WHERE rpt.resource_provider_id = rp.id AND t.name = %s
		)`, arg(trait))
	}

	var rows []placement.ProviderRootPair
	if err := s.selectTimed(ctx, "provider_ids_matching", b.String(), &rows, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// TreesMatchingAll implements placement.Store: every (provider, root,
// resource class) triple within a tree that collectively has capacity for
// all of g's resource classes somewhere in the tree.
func (s *GorpStore) TreesMatchingAll(ctx context.Context, g *placement.RequestGroupSearchContext, rw *placement.RequestWideSearchContext) (placement.RPCandidates, error) {
	if len(g.Resources) == 0 {
		return placement.RPCandidates{}, nil
	}
	rcIDs := make([]int64, 0, len(g.Resources))
	for rcID := range g.Resources {
		rcIDs = append(rcIDs, rcID)
	}
	inList, _ := s.inClause(1, len(rcIDs))
	args := int64sToArgs(rcIDs)

	query := fmt.Sprintf(`
		SELECT rp.id AS provider_id, rp.root_provider_id AS root_id, inv.resource_class_id AS resource_class_id
		FROM resource_providers rp
		JOIN inventories inv ON inv.resource_provider_id = rp.id
		LEFT JOIN (
			SELECT resource_provider_id, resource_class_id, SUM(used) AS used
			FROM allocations GROUP BY resource_provider_id, resource_class_id
		) u ON u.resource_provider_id = inv.resource_provider_id AND u.resource_class_id = inv.resource_class_id
		WHERE inv.resource_class_id IN (%s)
		  AND CAST((inv.total - inv.reserved) * inv.allocation_ratio AS BIGINT) - COALESCE(u.used, 0) > 0`, inList)

	var rows []placement.RPCandidate
	if err := s.selectTimed(ctx, "trees_matching_all", query, &rows, args...); err != nil {
		return placement.RPCandidates{}, err
	}

	// Keep only trees that, across their rows, cover every requested
	// resource class (spec.md §4.3's precondition for a tree to be viable).
	covered := make(map[int64]map[int64]struct{})
	for _, r := range rows {
		rcs, ok := covered[r.RootID]
		if !ok {
			rcs = make(map[int64]struct{})
			covered[r.RootID] = rcs
		}
		rcs[r.ResourceClassID] = struct{}{}
	}
	viableRoots := make(map[int64]struct{})
	for rootID, rcs := range covered {
		if len(rcs) == len(g.Resources) {
			viableRoots[rootID] = struct{}{}
		}
	}

	out := placement.RPCandidates{AllRPs: make(map[int64]struct{})}
	for _, r := range rows {
		if _, ok := viableRoots[r.RootID]; !ok {
			continue
		}
		out.RPSInfo = append(out.RPSInfo, r)
		out.AllRPs[r.RootID] = struct{}{}
	}
	return out, nil
}

// ProviderIDsHavingAnyTrait implements placement.Store.
func (s *GorpStore) ProviderIDsHavingAnyTrait(ctx context.Context, requiredTraitNames map[string]struct{}) (map[int64]struct{}, error) {
	if len(requiredTraitNames) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(requiredTraitNames))
	for n := range requiredTraitNames {
		names = append(names, n)
	}
	inList, _ := s.inClause(1, len(names))
	args := stringsToArgs(names)
	query := fmt.Sprintf(`
		SELECT DISTINCT rpt.resource_provider_id AS id
		FROM resource_provider_traits rpt
		JOIN traits t ON t.id = rpt.trait_id
		WHERE t.name IN (%s)`, inList)
	var ids []int64
	if err := s.selectTimed(ctx, "provider_ids_having_any_trait", query, &ids, args...); err != nil {
		return nil, err
	}
	out := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// TraitsByProviderTree implements placement.Store.
func (s *GorpStore) TraitsByProviderTree(ctx context.Context, rootIDs []int64) (map[int64]map[string]struct{}, error) {
	if len(rootIDs) == 0 {
		return nil, nil
	}
	inList, _ := s.inClause(1, len(rootIDs))
	args := int64sToArgs(rootIDs)
	query := fmt.Sprintf(`
		SELECT rp.id AS provider_id, t.name AS trait_name
		FROM resource_providers rp
		JOIN resource_provider_traits rpt ON rpt.resource_provider_id = rp.id
		JOIN traits t ON t.id = rpt.trait_id
		WHERE rp.root_provider_id IN (%s)`, inList)
	var rows []struct {
		ProviderID int64  `db:"provider_id"`
		TraitName  string `db:"trait_name"`
	}
	if err := s.selectTimed(ctx, "traits_by_provider_tree", query, &rows, args...); err != nil {
		return nil, err
	}
	out := make(map[int64]map[string]struct{})
	for _, r := range rows {
		set, ok := out[r.ProviderID]
		if !ok {
			set = make(map[string]struct{})
			out[r.ProviderID] = set
		}
		set[r.TraitName] = struct{}{}
	}
	return out, nil
}

// SharingProviders implements placement.Store.
func (s *GorpStore) SharingProviders(ctx context.Context) (map[int64]struct{}, error) {
	query := fmt.Sprintf(`SELECT rpt.resource_provider_id AS id
		FROM resource_provider_traits rpt
		JOIN traits t ON t.id = rpt.trait_id
		WHERE t.name = %s`, s.bind(1))
	var ids []int64
	if err := s.selectTimed(ctx, "sharing_providers", query, &ids, placement.MISCSharesViaAggregate); err != nil {
		return nil, err
	}
	out := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// AnchorsForSharingProviders implements placement.Store: every provider
// that shares an aggregate with one of providerIDs, identified by its own
// root provider.
func (s *GorpStore) AnchorsForSharingProviders(ctx context.Context, providerIDs []int64) ([]placement.Anchor, error) {
	if len(providerIDs) == 0 {
		return nil, nil
	}
	inList, _ := s.inClause(1, len(providerIDs))
	args := int64sToArgs(providerIDs)
	query := fmt.Sprintf(`
		SELECT DISTINCT root.id AS anchor_id, root.uuid AS anchor_uuid
		FROM resource_provider_aggregates sharing_rpa
		JOIN resource_provider_aggregates other_rpa ON other_rpa.aggregate_id = sharing_rpa.aggregate_id
		JOIN resource_providers rp ON rp.id = other_rpa.resource_provider_id
		JOIN resource_providers root ON root.id = rp.root_provider_id
		WHERE sharing_rpa.resource_provider_id IN (%s)`, inList)
	var rows []anchorRow
	if err := s.selectTimed(ctx, "anchors_for_sharing_providers", query, &rows, args...); err != nil {
		return nil, err
	}
	out := make([]placement.Anchor, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// ProviderIdentitiesFromIDs implements placement.Store.
func (s *GorpStore) ProviderIdentitiesFromIDs(ctx context.Context, ids []int64) (map[int64]placement.ProviderIdentity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	inList, _ := s.inClause(1, len(ids))
	args := int64sToArgs(ids)
	query := fmt.Sprintf(`
		SELECT rp.id AS id, rp.uuid AS uuid, root.uuid AS root_uuid, parent.uuid AS parent_uuid
		FROM resource_providers rp
		JOIN resource_providers root ON root.id = rp.root_provider_id
		LEFT JOIN resource_providers parent ON parent.id = rp.parent_provider_id
		WHERE rp.id IN (%s)`, inList)
	var rows []identityRow
	if err := s.selectTimed(ctx, "provider_identities_from_ids", query, &rows, args...); err != nil {
		return nil, err
	}
	out := make(map[int64]placement.ProviderIdentity, len(rows))
	for _, r := range rows {
		identity, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out[identity.ID] = identity
	}
	return out, nil
}

// ExistsNestedProviders implements placement.Store.
func (s *GorpStore) ExistsNestedProviders(ctx context.Context) (bool, error) {
	var n int
	query := `SELECT COUNT(*) FROM resource_providers WHERE parent_provider_id IS NOT NULL`
	if err := s.selectTimed(ctx, "exists_nested_providers", query, &n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// --- row/domain translation -------------------------------------------------

type usageRow struct {
	ProviderID      int64    `db:"provider_id"`
	ProviderUUID    string   `db:"provider_uuid"`
	ResourceClassID *int64   `db:"resource_class_id"`
	Total           *int64   `db:"total"`
	Reserved        *int64   `db:"reserved"`
	AllocationRatio *float64 `db:"allocation_ratio"`
	MaxUnit         *int64   `db:"max_unit"`
	Used            *float64 `db:"used"`
}

func (r usageRow) toDomain() placement.UsageRow {
	deref := func(p *int64) int64 {
		if p == nil {
			return 0
		}
		return *p
	}
	derefF := func(p *float64) float64 {
		if p == nil {
			return 0
		}
		return *p
	}
	return placement.UsageRow{
		ProviderID:      r.ProviderID,
		ProviderUUID:    uuid.MustParse(r.ProviderUUID),
		ResourceClassID: r.ResourceClassID,
		Total:           deref(r.Total),
		Reserved:        deref(r.Reserved),
		AllocationRatio: derefF(r.AllocationRatio),
		MaxUnit:         deref(r.MaxUnit),
		Used:            r.Used,
	}
}

type anchorRow struct {
	AnchorID   int64  `db:"anchor_id"`
	AnchorUUID string `db:"anchor_uuid"`
}

func (r anchorRow) toDomain() placement.Anchor {
	return placement.Anchor{AnchorID: r.AnchorID, AnchorUUID: uuid.MustParse(r.AnchorUUID)}
}

type identityRow struct {
	ID         int64   `db:"id"`
	UUID       string  `db:"uuid"`
	RootUUID   string  `db:"root_uuid"`
	ParentUUID *string `db:"parent_uuid"`
}

func (r identityRow) toDomain() (placement.ProviderIdentity, error) {
	id, err := uuid.Parse(r.UUID)
	if err != nil {
		return placement.ProviderIdentity{}, fmt.Errorf("parsing provider uuid %q: %w", r.UUID, err)
	}
	root, err := uuid.Parse(r.RootUUID)
	if err != nil {
		return placement.ProviderIdentity{}, fmt.Errorf("parsing root uuid %q: %w", r.RootUUID, err)
	}
	var parent *uuid.UUID
	if r.ParentUUID != nil {
		p, err := uuid.Parse(*r.ParentUUID)
		if err != nil {
			return placement.ProviderIdentity{}, fmt.Errorf("parsing parent uuid %q: %w", *r.ParentUUID, err)
		}
		parent = &p
	}
	return placement.ProviderIdentity{ID: r.ID, UUID: id, RootUUID: root, ParentUUID: parent}, nil
}

func int64sToArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func stringsToArgs(vals []string) []any {
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = v
	}
	return args
}
