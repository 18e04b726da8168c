// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

import (
	"context"

	"github.com/google/uuid"
)

// fakeStore is an in-memory Store used by this package's own tests, mirroring
// the teacher's practice of hand-writing small mocks for collaborator
// interfaces rather than spinning up a database for pure-logic tests.
type fakeStore struct {
	providers        map[int64]ResourceProvider
	usages           []UsageRow
	traits           map[int64]map[string]struct{}
	sharing          map[int64]struct{}
	aggregateAnchors map[int64][]Anchor
	nested           bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		providers:        make(map[int64]ResourceProvider),
		traits:           make(map[int64]map[string]struct{}),
		sharing:          make(map[int64]struct{}),
		aggregateAnchors: make(map[int64][]Anchor),
	}
}

func (f *fakeStore) addProvider(p ResourceProvider) { f.providers[p.ID] = p }

func (f *fakeStore) UsagesByProviderTree(ctx context.Context, rootIDs []int64) ([]UsageRow, error) {
	roots := make(map[int64]struct{}, len(rootIDs))
	for _, r := range rootIDs {
		roots[r] = struct{}{}
	}
	var out []UsageRow
	seen := make(map[int64]struct{})
	for _, row := range f.usages {
		p, ok := f.providers[row.ProviderID]
		if !ok {
			continue
		}
		if _, match := roots[f.rootIDOf(p)]; !match {
			continue
		}
		out = append(out, row)
		seen[row.ProviderID] = struct{}{}
	}
	// A provider with no inventory of its own (a transit node in a tree)
	// still needs to appear, left-joined against no inventory row, mirroring
	// the real store's LEFT JOIN (see UsagesByProviderTree's doc comment).
	for _, p := range f.providers {
		if _, already := seen[p.ID]; already {
			continue
		}
		if _, match := roots[f.rootIDOf(p)]; !match {
			continue
		}
		out = append(out, UsageRow{ProviderID: p.ID, ProviderUUID: p.UUID})
	}
	return out, nil
}

func (f *fakeStore) rootIDOf(p ResourceProvider) int64 {
	for _, cand := range f.providers {
		if cand.UUID == p.RootProviderUUID {
			return cand.ID
		}
	}
	return p.ID
}

func (f *fakeStore) ProviderIDsMatching(ctx context.Context, g *RequestGroupSearchContext) ([]ProviderRootPair, error) {
	var out []ProviderRootPair
	for _, p := range f.providers {
		if f.providerSatisfiesAlone(p, g) {
			out = append(out, ProviderRootPair{ProviderID: p.ID, RootID: f.rootIDOf(p)})
		}
	}
	return out, nil
}

func (f *fakeStore) providerSatisfiesAlone(p ResourceProvider, g *RequestGroupSearchContext) bool {
	for rcID, amount := range g.Resources {
		capVal, used, ok := f.capacityAndUsed(p.ID, rcID)
		if !ok || capVal-used < amount {
			return false
		}
	}
	providerTraits := f.traits[p.ID]
	for t := range g.RequiredTraitMap {
		if _, has := providerTraits[t]; !has {
			return false
		}
	}
	for t := range g.ForbiddenTraitMap {
		if _, has := providerTraits[t]; has {
			return false
		}
	}
	return true
}

func (f *fakeStore) capacityAndUsed(providerID, rcID int64) (capacity, used int64, ok bool) {
	for _, row := range f.usages {
		if row.ProviderID != providerID || row.ResourceClassID == nil || *row.ResourceClassID != rcID {
			continue
		}
		inv := Inventory{Total: row.Total, Reserved: row.Reserved, AllocationRatio: row.AllocationRatio}
		u := int64(0)
		if row.Used != nil {
			u = int64(*row.Used)
		}
		return inv.EffectiveCapacity(), u, true
	}
	return 0, 0, false
}

func (f *fakeStore) TreesMatchingAll(ctx context.Context, g *RequestGroupSearchContext, rw *RequestWideSearchContext) (RPCandidates, error) {
	out := RPCandidates{AllRPs: make(map[int64]struct{})}
	for _, p := range f.providers {
		for rcID := range g.Resources {
			capVal, used, ok := f.capacityAndUsed(p.ID, rcID)
			if !ok || capVal-used <= 0 {
				continue
			}
			rootID := f.rootIDOf(p)
			out.RPSInfo = append(out.RPSInfo, RPCandidate{ProviderID: p.ID, RootID: rootID, ResourceClassID: rcID})
			out.AllRPs[rootID] = struct{}{}
		}
	}
	return out, nil
}

func (f *fakeStore) ProviderIDsHavingAnyTrait(ctx context.Context, requiredTraitNames map[string]struct{}) (map[int64]struct{}, error) {
	out := make(map[int64]struct{})
	for id, traits := range f.traits {
		for t := range requiredTraitNames {
			if _, has := traits[t]; has {
				out[id] = struct{}{}
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) TraitsByProviderTree(ctx context.Context, rootIDs []int64) (map[int64]map[string]struct{}, error) {
	return f.traits, nil
}

func (f *fakeStore) SharingProviders(ctx context.Context) (map[int64]struct{}, error) {
	return f.sharing, nil
}

func (f *fakeStore) AnchorsForSharingProviders(ctx context.Context, providerIDs []int64) ([]Anchor, error) {
	var out []Anchor
	for _, id := range providerIDs {
		out = append(out, f.aggregateAnchors[id]...)
	}
	return out, nil
}

func (f *fakeStore) ProviderIdentitiesFromIDs(ctx context.Context, ids []int64) (map[int64]ProviderIdentity, error) {
	out := make(map[int64]ProviderIdentity, len(ids))
	for _, id := range ids {
		p, ok := f.providers[id]
		if !ok {
			continue
		}
		out[id] = ProviderIdentity{ID: p.ID, UUID: p.UUID, RootUUID: p.RootProviderUUID, ParentUUID: p.ParentProviderUUID}
	}
	return out, nil
}

func (f *fakeStore) ExistsNestedProviders(ctx context.Context) (bool, error) {
	return f.nested, nil
}

// fakeRCC is a trivial ResourceClassCache for tests.
type fakeRCC map[int64]string

func (f fakeRCC) NameFromID(id int64) string { return f[id] }
func (f fakeRCC) IDFromName(name string) (int64, bool) {
	for id, n := range f {
		if n == name {
			return id, true
		}
	}
	return 0, false
}

func newUUID() uuid.UUID { return uuid.New() }
