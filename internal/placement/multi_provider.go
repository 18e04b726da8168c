// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

import (
	"context"
	"log/slog"
	"sort"

	"github.com/google/uuid"
)

// multiProviderCandidates implements spec.md §4.3: build allocation
// requests for a group that may span multiple providers within one tree,
// by bucketing candidates per tree and resource class and enumerating the
// Cartesian product within each tree. Every AR is anchored at its own
// tree's root; a sharing provider's inventory is not combined with
// providers of another tree here.
func multiProviderCandidates(
	ctx context.Context,
	rg *RequestGroupSearchContext,
	rcc ResourceClassCache,
	candidates RPCandidates,
	logger *slog.Logger,
) ([]AllocationRequest, []*ProviderSummary, error) {
	if len(candidates.RPSInfo) == 0 {
		return nil, nil, nil
	}

	summaries, err := fetchSummaries(ctx, rg.Store, rcc, rootIDsSlice(candidates.AllRPs))
	if err != nil {
		return nil, nil, err
	}

	// tree_dict[root_id][rc_id] = []ARR, per spec.md §4.3 step 3.
	treeDict := make(map[int64]map[int64][]AllocationRequestResource)
	for _, rp := range candidates.RPSInfo {
		summary, ok := summaries[rp.ProviderID]
		if !ok {
			return nil, nil, newError(KindInvariantViolation, "no summary built for provider id %d", rp.ProviderID)
		}
		byRC, ok := treeDict[rp.RootID]
		if !ok {
			byRC = make(map[int64][]AllocationRequestResource)
			treeDict[rp.RootID] = byRC
		}
		amount, ok := rg.Resources[rp.ResourceClassID]
		if !ok {
			return nil, nil, newError(KindInvariantViolation, "candidate resource class %d not requested by group %q", rp.ResourceClassID, rg.Suffix)
		}
		byRC[rp.ResourceClassID] = append(byRC[rp.ResourceClassID], AllocationRequestResource{
			Provider:          summary.Provider,
			ResourceClassName: rcc.NameFromID(rp.ResourceClassID),
			Amount:            amount,
		})
	}

	dedup := make(map[string]AllocationRequest)
	for rootID, byRC := range treeDict {
		rootSummary, ok := summaries[rootID]
		if !ok {
			return nil, nil, newError(KindInvariantViolation, "no summary built for root provider id %d", rootID)
		}
		rootUUID := rootSummary.Provider.UUID

		// request_groups: ARR lists ordered by resource class id ascending,
		// per spec.md §4.3 step 4. This ordering is observable in the
		// resulting ARR order and must be preserved.
		rcIDs := make([]int64, 0, len(byRC))
		for rcID := range byRC {
			rcIDs = append(rcIDs, rcID)
		}
		sort.Slice(rcIDs, func(i, j int) bool { return rcIDs[i] < rcIDs[j] })

		lists := make([][]AllocationRequestResource, len(rcIDs))
		for i, rcID := range rcIDs {
			lists[i] = byRC[rcID]
		}

		cartesianProduct(lists, func(combo []AllocationRequestResource) {
			if !checkTraitsForCombination(combo, summaries, rg.RequiredTraitMap, rg.ForbiddenTraitMap, logger) {
				return
			}
			uuids := make(map[uuid.UUID]struct{}, len(combo))
			for _, arr := range combo {
				uuids[arr.Provider.UUID] = struct{}{}
			}
			areq := AllocationRequest{
				ResourceRequests:       append([]AllocationRequestResource(nil), combo...),
				AnchorRootProviderUUID: rootUUID,
				Mappings:               map[string]map[uuid.UUID]struct{}{rg.Suffix: uuids},
			}
			dedup[areq.dedupKey()] = areq
		})
	}

	requests := make([]AllocationRequest, 0, len(dedup))
	for _, areq := range dedup {
		requests = append(requests, areq)
	}
	out := make([]*ProviderSummary, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, s)
	}
	logger.Debug("multi-provider search complete", "suffix", rg.Suffix, "candidates", len(requests))
	return requests, out, nil
}

// cartesianProduct calls fn once per combination of the Cartesian product
// of lists, without materializing the full product up front (spec.md §9:
// "avoid materializing the full product").
func cartesianProduct(lists [][]AllocationRequestResource, fn func([]AllocationRequestResource)) {
	if len(lists) == 0 {
		return
	}
	combo := make([]AllocationRequestResource, len(lists))
	var recurse func(i int)
	recurse = func(i int) {
		if i == len(lists) {
			fn(combo)
			return
		}
		for _, item := range lists[i] {
			combo[i] = item
			recurse(i + 1)
		}
	}
	recurse(0)
}
