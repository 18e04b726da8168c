// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

import (
	"context"

	"github.com/google/uuid"
)

// ProviderRootPair is a (provider id, root provider id) tuple returned for
// providers that, alone, satisfy all of a group's constraints.
type ProviderRootPair struct {
	ProviderID int64
	RootID     int64
}

// RPCandidate is a (provider id, root provider id, resource class id)
// triple: this provider, within this tree, has inventory of this resource
// class that could help satisfy a multi-provider group.
type RPCandidate struct {
	ProviderID      int64
	RootID          int64
	ResourceClassID int64
}

// RPCandidates is the result of a tree-wide search for a request group:
// every (provider, root, resource class) triple that might contribute, plus
// the full set of root ids spanned.
type RPCandidates struct {
	RPSInfo []RPCandidate
	AllRPs  map[int64]struct{}
}

// Anchor is a (anchor provider id, anchor provider UUID) pair: a provider
// that shares an aggregate with some sharing provider.
type Anchor struct {
	AnchorID   int64
	AnchorUUID uuid.UUID
}

// ProviderIdentity carries a provider's full identity (own/root/parent
// UUIDs) as resolved from its internal id.
type ProviderIdentity struct {
	ID         int64
	UUID       uuid.UUID
	RootUUID   uuid.UUID
	ParentUUID *uuid.UUID
}

// UsageRow is one row of the usages-by-provider-tree query: a provider,
// optionally joined to one of its inventory records and that record's
// summed usage. ResourceClassID is nil when the provider carries no
// inventory of its own (it is still emitted so it can appear as a transit
// node in a tree). Used is nil when there is no allocation yet for that
// (provider, resource class); a nil Used is equivalent to zero.
type UsageRow struct {
	ProviderID      int64
	ProviderUUID    uuid.UUID
	ResourceClassID *int64
	Total           int64
	Reserved        int64
	AllocationRatio float64
	MaxUnit         int64
	Used            *float64
}

// Store is the abstract data-access façade the resolver consumes. It is
// implemented concretely by dataaccess.GorpStore (backed by SQL via gorp)
// and by a fake in tests. All methods are read-only: this package proposes
// candidates, it never mutates providers, inventories, or traits.
//
// Implementations take a context.Context so that cancellation aborts at the
// next query boundary. Each method runs its query on its own: neither
// Resolve nor dataaccess.GorpStore opens a transaction, so the reads of one
// Resolve call are not taken from a single snapshot.
type Store interface {
	// UsagesByProviderTree returns one row per provider in the trees rooted
	// at rootIDs, left-joined against inventory and aggregated usage so
	// providers without their own inventory still appear.
	UsagesByProviderTree(ctx context.Context, rootIDs []int64) ([]UsageRow, error)

	// ProviderIDsMatching returns providers that, alone, satisfy every
	// (resource class, amount, required/forbidden trait) constraint of g.
	ProviderIDsMatching(ctx context.Context, g *RequestGroupSearchContext) ([]ProviderRootPair, error)

	// TreesMatchingAll returns every (provider, root, resource class) combination
	// across trees that collectively have capacity for all of g's resource classes.
	TreesMatchingAll(ctx context.Context, g *RequestGroupSearchContext, rw *RequestWideSearchContext) (RPCandidates, error)

	// ProviderIDsHavingAnyTrait returns the ids of providers carrying at
	// least one of the named required traits (used for the early-exit
	// optimization of spec.md §4.1).
	ProviderIDsHavingAnyTrait(ctx context.Context, requiredTraitNames map[string]struct{}) (map[int64]struct{}, error)

	// TraitsByProviderTree returns, for every provider in the trees rooted
	// at rootIDs, the set of trait names attached to it.
	TraitsByProviderTree(ctx context.Context, rootIDs []int64) (map[int64]map[string]struct{}, error)

	// SharingProviders returns the ids of every provider in the deployment
	// carrying the MISC_SHARES_VIA_AGGREGATE trait.
	SharingProviders(ctx context.Context) (map[int64]struct{}, error)

	// AnchorsForSharingProviders returns every provider that shares an
	// aggregate with one of the given (sharing) provider ids.
	AnchorsForSharingProviders(ctx context.Context, providerIDs []int64) ([]Anchor, error)

	// ProviderIdentitiesFromIDs resolves full identity (uuid, root, parent)
	// for each given internal provider id.
	ProviderIdentitiesFromIDs(ctx context.Context, ids []int64) (map[int64]ProviderIdentity, error)

	// ExistsNestedProviders reports whether any provider in the deployment
	// has a parent. It backs the has_trees bookkeeping of
	// RequestGroupSearchContext (spec.md §4.1); see DESIGN.md for why this
	// is a separate call rather than derived from the other operations.
	ExistsNestedProviders(ctx context.Context) (bool, error)
}

// MISCSharesViaAggregate is the well-known trait name identifying a sharing provider.
const MISCSharesViaAggregate = "MISC_SHARES_VIA_AGGREGATE"
