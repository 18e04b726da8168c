// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
)

const diskRC = int64(2)

// TestSingleProviderCandidatesExpandsSharingAnchors exercises spec.md §8
// scenario S2: a sharing provider must expand into one AllocationRequest
// per anchor that shares its aggregate, and never emit its own root as an
// extra anchor (GLOSSARY: "Anchor: the non-sharing provider that roots an
// AR").
func TestSingleProviderCandidatesExpandsSharingAnchors(t *testing.T) {
	store := newFakeStore()
	sharingRoot := newUUID()
	sharingProvider := ResourceProvider{ID: 1, UUID: sharingRoot, RootProviderUUID: sharingRoot}
	store.addProvider(sharingProvider)

	used := 0.0
	store.usages = []UsageRow{
		{ProviderID: 1, ProviderUUID: sharingRoot, ResourceClassID: &diskRC, Total: 1000, Reserved: 0, AllocationRatio: 1.0, MaxUnit: 1000, Used: &used},
	}
	store.traits[1] = map[string]struct{}{MISCSharesViaAggregate: {}}
	store.sharing[1] = struct{}{}

	a1UUID, a2UUID := newUUID(), newUUID()
	store.aggregateAnchors[1] = []Anchor{
		{AnchorID: 10, AnchorUUID: a1UUID},
		{AnchorID: 20, AnchorUUID: a2UUID},
	}

	rcc := fakeRCC{diskRC: "DISK_GB"}
	group := RequestGroup{Resources: map[int64]int64{diskRC: 100}, UseSameProvider: true}

	ctx := context.Background()
	rw, err := NewRequestWideSearchContext(ctx, store, RequestWideParams{}, false)
	if err != nil {
		t.Fatalf("building request-wide context: %v", err)
	}
	rg := NewRequestGroupSearchContext("", group, store, rw)

	pairs := []ProviderRootPair{{ProviderID: 1, RootID: 1}}
	requests, _, err := singleProviderCandidates(ctx, rg, rw, rcc, pairs, slog.Default())
	if err != nil {
		t.Fatalf("singleProviderCandidates returned error: %v", err)
	}

	if len(requests) != 2 {
		t.Fatalf("expected exactly 2 allocation requests per spec.md §8 S2, got %d: %+v", len(requests), requests)
	}

	anchors := make(map[uuid.UUID]bool, len(requests))
	for _, req := range requests {
		anchors[req.AnchorRootProviderUUID] = true
		if len(req.ResourceRequests) != 1 {
			t.Fatalf("expected one ARR per request, got %+v", req.ResourceRequests)
		}
		arr := req.ResourceRequests[0]
		if arr.ResourceClassName != "DISK_GB" || arr.Amount != 100 || arr.Provider.ID != 1 {
			t.Fatalf("unexpected ARR: %+v", arr)
		}
	}
	if !anchors[a1UUID] || !anchors[a2UUID] {
		t.Fatalf("expected anchors %s and %s, got %v", a1UUID, a2UUID, anchors)
	}
	if anchors[sharingRoot] {
		t.Fatal("a sharing provider's own root must never be emitted as an anchor")
	}
}

// TestSingleProviderCandidatesNonSharingProviderUsesOwnRoot is the S1-shaped
// baseline: a provider that is not a sharing provider is anchored at its
// own root and produces exactly one allocation request.
func TestSingleProviderCandidatesNonSharingProviderUsesOwnRoot(t *testing.T) {
	store := newFakeStore()
	root := newUUID()
	provider := ResourceProvider{ID: 1, UUID: root, RootProviderUUID: root}
	store.addProvider(provider)
	used := 0.0
	store.usages = []UsageRow{
		{ProviderID: 1, ProviderUUID: root, ResourceClassID: &vcpuRC, Total: 8, Reserved: 0, AllocationRatio: 1.0, MaxUnit: 8, Used: &used},
	}

	rcc := fakeRCC{vcpuRC: "VCPU"}
	group := RequestGroup{Resources: map[int64]int64{vcpuRC: 4}, UseSameProvider: true}

	ctx := context.Background()
	rw, err := NewRequestWideSearchContext(ctx, store, RequestWideParams{}, false)
	if err != nil {
		t.Fatalf("building request-wide context: %v", err)
	}
	rg := NewRequestGroupSearchContext("", group, store, rw)

	requests, _, err := singleProviderCandidates(ctx, rg, rw, rcc, []ProviderRootPair{{ProviderID: 1, RootID: 1}}, slog.Default())
	if err != nil {
		t.Fatalf("singleProviderCandidates returned error: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("expected exactly 1 allocation request, got %d", len(requests))
	}
	if requests[0].AnchorRootProviderUUID != root {
		t.Fatalf("expected anchor %s, got %s", root, requests[0].AnchorRootProviderUUID)
	}
}
