// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

import "github.com/google/uuid"

// consolidateAllocationRequests implements spec.md §4.6: merge a tuple of
// ARs (one per request group, all sharing one anchor) into a single AR,
// summing amounts for duplicated (provider, resource class) pairs and
// unioning mappings per suffix.
//
// areqs must be non-empty and must all share the same anchor; a mismatch
// is a programming error in the caller's indexing (spec.md §4.5 step 1)
// and is reported as KindInvariantViolation rather than silently handled.
func consolidateAllocationRequests(areqs []AllocationRequest) (AllocationRequest, error) {
	if len(areqs) == 0 {
		return AllocationRequest{}, newError(KindInvariantViolation, "consolidate called with no allocation requests")
	}

	anchor := areqs[0].AnchorRootProviderUUID

	type arrKey struct {
		providerID int64
		rcName     string
	}
	merged := make(map[arrKey]*AllocationRequestResource)
	order := make([]arrKey, 0)
	mappings := make(map[string]map[uuid.UUID]struct{})

	for _, areq := range areqs {
		if areq.AnchorRootProviderUUID != anchor {
			return AllocationRequest{}, newError(KindInvariantViolation,
				"expected every allocation request being consolidated to share anchor %s, got %s",
				anchor, areq.AnchorRootProviderUUID)
		}
		for _, arr := range areq.ResourceRequests {
			key := arrKey{providerID: arr.Provider.ID, rcName: arr.ResourceClassName}
			if existing, ok := merged[key]; ok {
				existing.Amount += arr.Amount
			} else {
				cp := arr
				merged[key] = &cp
				order = append(order, key)
			}
		}
		for suffix, uuids := range areq.Mappings {
			set, ok := mappings[suffix]
			if !ok {
				set = make(map[uuid.UUID]struct{}, len(uuids))
				mappings[suffix] = set
			}
			for u := range uuids {
				set[u] = struct{}{}
			}
		}
	}

	result := AllocationRequest{
		AnchorRootProviderUUID: anchor,
		ResourceRequests:       make([]AllocationRequestResource, 0, len(order)),
		Mappings:               mappings,
	}
	for _, key := range order {
		result.ResourceRequests = append(result.ResourceRequests, *merged[key])
	}
	return result, nil
}
