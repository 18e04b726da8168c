// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

import (
	"log/slog"
	"testing"

	"github.com/google/uuid"
)

// mappingsFor builds the single-suffix Mappings value singleProviderCandidates
// would produce for one contributing provider.
func mappingsFor(suffix string, provider uuid.UUID) map[string]map[uuid.UUID]struct{} {
	return map[string]map[uuid.UUID]struct{}{suffix: {provider: {}}}
}

// TestMergeCandidatesIsolatePolicyExcludesSharedProviders exercises spec.md
// §8 scenario S4: under group_policy=isolate, granular groups sharing one
// anchor must land on distinct providers; combinations that reuse the same
// provider across groups are excluded.
func TestMergeCandidatesIsolatePolicyExcludesSharedProviders(t *testing.T) {
	rootUUID := newUUID()
	p1UUID, p2UUID := newUUID(), newUUID()
	p1 := ResourceProvider{ID: 1, UUID: p1UUID, RootProviderUUID: rootUUID, ParentProviderUUID: &rootUUID}
	p2 := ResourceProvider{ID: 2, UUID: p2UUID, RootProviderUUID: rootUUID, ParentProviderUUID: &rootUUID}

	group1 := groupResult{
		requests: []AllocationRequest{
			{AnchorRootProviderUUID: rootUUID, UseSameProvider: true,
				ResourceRequests: []AllocationRequestResource{{Provider: p1, ResourceClassName: "VCPU", Amount: 2}},
				Mappings:         mappingsFor("1", p1UUID)},
			{AnchorRootProviderUUID: rootUUID, UseSameProvider: true,
				ResourceRequests: []AllocationRequestResource{{Provider: p2, ResourceClassName: "VCPU", Amount: 2}},
				Mappings:         mappingsFor("1", p2UUID)},
		},
		summary: []*ProviderSummary{
			{Provider: p1, Resources: []ProviderSummaryResource{{ResourceClassName: "VCPU", Capacity: 4, Used: 0, MaxUnit: 4}}},
			{Provider: p2, Resources: []ProviderSummaryResource{{ResourceClassName: "VCPU", Capacity: 4, Used: 0, MaxUnit: 4}}},
		},
	}
	group2 := groupResult{
		requests: []AllocationRequest{
			{AnchorRootProviderUUID: rootUUID, UseSameProvider: true,
				ResourceRequests: []AllocationRequestResource{{Provider: p1, ResourceClassName: "MEMORY_MB", Amount: 1024}},
				Mappings:         mappingsFor("2", p1UUID)},
			{AnchorRootProviderUUID: rootUUID, UseSameProvider: true,
				ResourceRequests: []AllocationRequestResource{{Provider: p2, ResourceClassName: "MEMORY_MB", Amount: 1024}},
				Mappings:         mappingsFor("2", p2UUID)},
		},
		summary: []*ProviderSummary{
			{Provider: p1, Resources: []ProviderSummaryResource{{ResourceClassName: "MEMORY_MB", Capacity: 2048, Used: 0, MaxUnit: 2048}}},
			{Provider: p2, Resources: []ProviderSummaryResource{{ResourceClassName: "MEMORY_MB", Capacity: 2048, Used: 0, MaxUnit: 2048}}},
		},
	}
	byGroup := map[string]groupResult{"1": group1, "2": group2}

	rw := &RequestWideSearchContext{GroupPolicy: GroupPolicyIsolate}
	areqs, _, err := mergeCandidates(byGroup, rw, slog.Default())
	if err != nil {
		t.Fatalf("mergeCandidates returned error: %v", err)
	}

	if len(areqs) != 2 {
		t.Fatalf("expected exactly 2 surviving allocation requests per spec.md §8 S4, got %d: %+v", len(areqs), areqs)
	}
	for _, areq := range areqs {
		providers := make(map[int64]struct{}, len(areq.ResourceRequests))
		for _, arr := range areq.ResourceRequests {
			providers[arr.Provider.ID] = struct{}{}
		}
		if len(providers) != 2 {
			t.Fatalf("expected each surviving AR to split across both providers, got %+v", areq.ResourceRequests)
		}
	}
}

// TestMergeCandidatesCapacityRecheckEliminatesSoleProvider exercises the
// degenerate half of spec.md §8 scenario S5: when the only candidate
// provider would have two groups' amounts consolidated onto it and that sum
// exceeds its capacity, no allocation request survives merge.
func TestMergeCandidatesCapacityRecheckEliminatesSoleProvider(t *testing.T) {
	providerUUID := newUUID()
	provider := ResourceProvider{ID: 1, UUID: providerUUID, RootProviderUUID: providerUUID}

	makeGroup := func(suffix string) groupResult {
		return groupResult{
			requests: []AllocationRequest{
				{AnchorRootProviderUUID: providerUUID, UseSameProvider: true,
					ResourceRequests: []AllocationRequestResource{{Provider: provider, ResourceClassName: "VCPU", Amount: 3}},
					Mappings:         mappingsFor(suffix, providerUUID)},
			},
			summary: []*ProviderSummary{
				{Provider: provider, Resources: []ProviderSummaryResource{{ResourceClassName: "VCPU", Capacity: 4, Used: 0, MaxUnit: 4}}},
			},
		}
	}
	byGroup := map[string]groupResult{"1": makeGroup("1"), "2": makeGroup("2")}

	rw := &RequestWideSearchContext{GroupPolicy: GroupPolicyNone}
	areqs, summaries, err := mergeCandidates(byGroup, rw, slog.Default())
	if err != nil {
		t.Fatalf("mergeCandidates returned error: %v", err)
	}
	if areqs != nil || summaries != nil {
		t.Fatalf("expected the capacity recheck to eliminate the only candidate (3+3>4), got %v / %v", areqs, summaries)
	}
}

// TestMergeCandidatesCapacityRecheckKeepsSplitAcrossProviders is the other
// half of S5: when the two groups can land on distinct providers instead of
// consolidating onto one, that split survives the capacity recheck.
func TestMergeCandidatesCapacityRecheckKeepsSplitAcrossProviders(t *testing.T) {
	rootUUID := newUUID()
	p1UUID, p2UUID := newUUID(), newUUID()
	p1 := ResourceProvider{ID: 1, UUID: p1UUID, RootProviderUUID: rootUUID, ParentProviderUUID: &rootUUID}
	p2 := ResourceProvider{ID: 2, UUID: p2UUID, RootProviderUUID: rootUUID, ParentProviderUUID: &rootUUID}

	makeGroup := func(suffix string) groupResult {
		return groupResult{
			requests: []AllocationRequest{
				{AnchorRootProviderUUID: rootUUID, UseSameProvider: true,
					ResourceRequests: []AllocationRequestResource{{Provider: p1, ResourceClassName: "VCPU", Amount: 3}},
					Mappings:         mappingsFor(suffix, p1UUID)},
				{AnchorRootProviderUUID: rootUUID, UseSameProvider: true,
					ResourceRequests: []AllocationRequestResource{{Provider: p2, ResourceClassName: "VCPU", Amount: 3}},
					Mappings:         mappingsFor(suffix, p2UUID)},
			},
			summary: []*ProviderSummary{
				{Provider: p1, Resources: []ProviderSummaryResource{{ResourceClassName: "VCPU", Capacity: 4, Used: 0, MaxUnit: 4}}},
				{Provider: p2, Resources: []ProviderSummaryResource{{ResourceClassName: "VCPU", Capacity: 4, Used: 0, MaxUnit: 4}}},
			},
		}
	}
	byGroup := map[string]groupResult{"1": makeGroup("1"), "2": makeGroup("2")}

	rw := &RequestWideSearchContext{GroupPolicy: GroupPolicyNone}
	areqs, _, err := mergeCandidates(byGroup, rw, slog.Default())
	if err != nil {
		t.Fatalf("mergeCandidates returned error: %v", err)
	}
	if len(areqs) != 1 {
		t.Fatalf("expected exactly 1 surviving allocation request (the split across P1/P2), got %d: %+v", len(areqs), areqs)
	}
	providers := make(map[int64]int64, 2)
	for _, arr := range areqs[0].ResourceRequests {
		providers[arr.Provider.ID] = arr.Amount
	}
	if providers[p1.ID] != 3 || providers[p2.ID] != 3 {
		t.Fatalf("expected 3 VCPU on each of P1 and P2, got %+v", providers)
	}
}
