// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

import (
	"testing"

	"github.com/google/uuid"
)

func TestConsolidateAllocationRequestsSumsDuplicateResourceClasses(t *testing.T) {
	anchor := newUUID()
	provider := ResourceProvider{ID: 1, UUID: newUUID(), RootProviderUUID: anchor}

	a := AllocationRequest{
		AnchorRootProviderUUID: anchor,
		ResourceRequests: []AllocationRequestResource{
			{Provider: provider, ResourceClassName: "VCPU", Amount: 2},
		},
		Mappings: map[string]map[uuid.UUID]struct{}{"": {provider.UUID: {}}},
	}
	b := AllocationRequest{
		AnchorRootProviderUUID: anchor,
		ResourceRequests: []AllocationRequestResource{
			{Provider: provider, ResourceClassName: "VCPU", Amount: 3},
			{Provider: provider, ResourceClassName: "MEMORY_MB", Amount: 512},
		},
		Mappings: map[string]map[uuid.UUID]struct{}{"compute": {provider.UUID: {}}},
	}

	got, err := consolidateAllocationRequests([]AllocationRequest{a, b})
	if err != nil {
		t.Fatalf("consolidateAllocationRequests returned error: %v", err)
	}
	if got.AnchorRootProviderUUID != anchor {
		t.Fatalf("expected anchor %s, got %s", anchor, got.AnchorRootProviderUUID)
	}
	if len(got.ResourceRequests) != 2 {
		t.Fatalf("expected 2 merged resource requests, got %d", len(got.ResourceRequests))
	}
	for _, arr := range got.ResourceRequests {
		if arr.ResourceClassName == "VCPU" && arr.Amount != 5 {
			t.Errorf("expected VCPU amount 5, got %d", arr.Amount)
		}
	}
	if len(got.Mappings) != 2 {
		t.Fatalf("expected mappings for both suffixes, got %d", len(got.Mappings))
	}
}

func TestConsolidateAllocationRequestsRejectsMismatchedAnchors(t *testing.T) {
	a := AllocationRequest{AnchorRootProviderUUID: newUUID()}
	b := AllocationRequest{AnchorRootProviderUUID: newUUID()}

	_, err := consolidateAllocationRequests([]AllocationRequest{a, b})
	if !IsInvariantViolation(err) {
		t.Fatalf("expected KindInvariantViolation, got %v", err)
	}
}

func TestConsolidateAllocationRequestsRejectsEmptyInput(t *testing.T) {
	_, err := consolidateAllocationRequests(nil)
	if !IsInvariantViolation(err) {
		t.Fatalf("expected KindInvariantViolation, got %v", err)
	}
}
