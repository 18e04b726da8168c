// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

// Package dataaccess is the concrete, gorp-backed implementation of
// placement.Store, mapping the abstract operations of spec.md §6 onto SQL
// against a resource-provider/inventory/trait schema. It supports both
// Postgres (production) and SQLite (tests), mirroring the rest of this
// module's storage packages.
package dataaccess

import "github.com/cobaltcore-dev/placement-resolver/internal/db"

// ResourceProviderRow is one resource provider. RootProviderID equals ID for
// a standalone provider; ParentProviderID is nil for a root provider.
type ResourceProviderRow struct {
	ID               int64  `db:"id,primarykey,autoincrement"`
	UUID             string `db:"uuid"`
	RootProviderID   int64  `db:"root_provider_id"`
	ParentProviderID *int64 `db:"parent_provider_id"`
}

func (ResourceProviderRow) TableName() string { return "resource_providers" }

func (ResourceProviderRow) Indexes() []db.Index {
	return []db.Index{
		{Name: "idx_resource_providers_uuid", Columns: []string{"uuid"}, Unique: true},
		{Name: "idx_resource_providers_root", Columns: []string{"root_provider_id"}},
	}
}

// ResourceClassRow names a resource class (e.g. VCPU, MEMORY_MB, DISK_GB).
type ResourceClassRow struct {
	ID   int64  `db:"id,primarykey,autoincrement"`
	Name string `db:"name"`
}

func (ResourceClassRow) TableName() string { return "resource_classes" }

func (ResourceClassRow) Indexes() []db.Index {
	return []db.Index{{Name: "idx_resource_classes_name", Columns: []string{"name"}, Unique: true}}
}

// InventoryRow is one (provider, resource class)'s capacity parameters.
type InventoryRow struct {
	ID                 int64   `db:"id,primarykey,autoincrement"`
	ResourceProviderID int64   `db:"resource_provider_id"`
	ResourceClassID    int64   `db:"resource_class_id"`
	Total              int64   `db:"total"`
	Reserved           int64   `db:"reserved"`
	AllocationRatio    float64 `db:"allocation_ratio"`
	MaxUnit            int64   `db:"max_unit"`
}

func (InventoryRow) TableName() string { return "inventories" }

func (InventoryRow) Indexes() []db.Index {
	return []db.Index{{
		Name:    "idx_inventories_provider_rc",
		Columns: []string{"resource_provider_id", "resource_class_id"},
		Unique:  true,
	}}
}

// AllocationRow is one consumer's claim against a (provider, resource
// class). UsagesByProviderTree sums Used across consumers per provider and
// resource class.
type AllocationRow struct {
	ID                 int64  `db:"id,primarykey,autoincrement"`
	ResourceProviderID int64  `db:"resource_provider_id"`
	ResourceClassID    int64  `db:"resource_class_id"`
	ConsumerUUID       string `db:"consumer_uuid"`
	Used               int64  `db:"used"`
}

func (AllocationRow) TableName() string { return "allocations" }

func (AllocationRow) Indexes() []db.Index {
	return []db.Index{{Name: "idx_allocations_provider_rc", Columns: []string{"resource_provider_id", "resource_class_id"}}}
}

// TraitRow names a trait (e.g. HW_CPU_X86_AVX2, MISC_SHARES_VIA_AGGREGATE).
type TraitRow struct {
	ID   int64  `db:"id,primarykey,autoincrement"`
	Name string `db:"name"`
}

func (TraitRow) TableName() string { return "traits" }

func (TraitRow) Indexes() []db.Index {
	return []db.Index{{Name: "idx_traits_name", Columns: []string{"name"}, Unique: true}}
}

// ResourceProviderTraitRow associates a provider with a trait.
type ResourceProviderTraitRow struct {
	ResourceProviderID int64 `db:"resource_provider_id,primarykey"`
	TraitID            int64 `db:"trait_id,primarykey"`
}

func (ResourceProviderTraitRow) TableName() string { return "resource_provider_traits" }

// AggregateRow is one aggregate a provider may belong to. Two providers
// sharing an aggregate, at least one of which carries
// MISC_SHARES_VIA_AGGREGATE, is what makes a provider's inventory reachable
// from the other's anchor (spec.md §4.4).
type AggregateRow struct {
	ID   int64  `db:"id,primarykey,autoincrement"`
	UUID string `db:"uuid"`
}

func (AggregateRow) TableName() string { return "aggregates" }

func (AggregateRow) Indexes() []db.Index {
	return []db.Index{{Name: "idx_aggregates_uuid", Columns: []string{"uuid"}, Unique: true}}
}

// ResourceProviderAggregateRow associates a provider with an aggregate.
type ResourceProviderAggregateRow struct {
	ResourceProviderID int64 `db:"resource_provider_id,primarykey"`
	AggregateID        int64 `db:"aggregate_id,primarykey"`
}

func (ResourceProviderAggregateRow) TableName() string { return "resource_provider_aggregates" }

