// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

import (
	"log/slog"

	"github.com/google/uuid"
)

// groupResult is one request group's independent search result.
type groupResult struct {
	requests []AllocationRequest
	summary  []*ProviderSummary
}

// mergeCandidates implements spec.md §4.5: fold each group's independent
// results into whole-request candidates satisfying every group at once,
// applying group-policy, same-subtree, consolidation, and the capacity
// recheck along the way.
func mergeCandidates(byGroup map[string]groupResult, rw *RequestWideSearchContext, logger *slog.Logger) ([]AllocationRequest, []*ProviderSummary, error) {
	// areqListsByAnchor[anchor][suffix] = []AllocationRequest
	areqListsByAnchor := make(map[uuid.UUID]map[string][]AllocationRequest)
	var allSummaries []*ProviderSummary
	psumResByRPRC := make(map[string]*ProviderSummaryResource)
	parentUUIDByRPUUID := make(map[uuid.UUID]*uuid.UUID)

	allSuffixes := make(map[string]struct{}, len(byGroup))
	numGranularGroups := 0
	for suffix := range byGroup {
		allSuffixes[suffix] = struct{}{}
		if suffix != "" {
			numGranularGroups++
		}
	}

	for suffix, result := range byGroup {
		for _, areq := range result.requests {
			bySuffix, ok := areqListsByAnchor[areq.AnchorRootProviderUUID]
			if !ok {
				bySuffix = make(map[string][]AllocationRequest)
				areqListsByAnchor[areq.AnchorRootProviderUUID] = bySuffix
			}
			bySuffix[suffix] = append(bySuffix[suffix], areq)
		}
		for _, summary := range result.summary {
			allSummaries = append(allSummaries, summary)
			parentUUIDByRPUUID[summary.Provider.UUID] = summary.Provider.ParentProviderUUID
			for i := range summary.Resources {
				key := rpRCKey(summary.Provider.UUID, summary.Resources[i].ResourceClassName)
				psumResByRPRC[key] = &summary.Resources[i]
			}
		}
	}

	survivors := make(map[string]AllocationRequest)
	var consolidateErr error
	for _, bySuffix := range areqListsByAnchor {
		if len(bySuffix) != len(allSuffixes) {
			continue // this anchor doesn't have a candidate for every group
		}
		lists := make([][]AllocationRequest, 0, len(bySuffix))
		for suffix := range allSuffixes {
			lists = append(lists, bySuffix[suffix])
		}

		cartesianProductAR(lists, func(combo []AllocationRequest) {
			if consolidateErr != nil {
				return
			}
			if !satisfiesGroupPolicy(combo, rw.GroupPolicy, numGranularGroups, logger) {
				return
			}
			if !satisfiesSameSubtree(combo, rw.SameSubtrees, parentUUIDByRPUUID, logger) {
				return
			}
			areq, err := consolidateAllocationRequests(combo)
			if err != nil {
				consolidateErr = err
				return
			}
			if exceedsCapacity(areq, psumResByRPRC, logger) {
				return
			}
			survivors[areq.dedupKey()] = areq
		})
	}
	if consolidateErr != nil {
		return nil, nil, consolidateErr
	}

	if len(survivors) == 0 {
		return nil, nil, nil
	}

	treeUUIDs := make(map[uuid.UUID]struct{})
	results := make([]AllocationRequest, 0, len(survivors))
	for _, areq := range survivors {
		results = append(results, areq)
		for _, arr := range areq.ResourceRequests {
			treeUUIDs[arr.Provider.RootProviderUUID] = struct{}{}
		}
	}

	summaries := make([]*ProviderSummary, 0, len(allSummaries))
	seen := make(map[uuid.UUID]struct{}, len(allSummaries))
	for _, s := range allSummaries {
		if _, ok := treeUUIDs[s.Provider.RootProviderUUID]; !ok {
			continue
		}
		if _, dup := seen[s.Provider.UUID]; dup {
			continue
		}
		seen[s.Provider.UUID] = struct{}{}
		summaries = append(summaries, s)
	}

	logger.Debug("merging candidates", "allocation_requests", len(results), "provider_summaries", len(summaries))
	return results, summaries, nil
}

// cartesianProductAR is cartesianProduct's counterpart over AllocationRequest,
// again avoiding materializing the full product (spec.md §9).
func cartesianProductAR(lists [][]AllocationRequest, fn func([]AllocationRequest)) {
	if len(lists) == 0 {
		return
	}
	combo := make([]AllocationRequest, len(lists))
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

// satisfiesGroupPolicy implements spec.md §4.8.
func satisfiesGroupPolicy(combo []AllocationRequest, policy GroupPolicy, numGranularGroups int, logger *slog.Logger) bool {
	if policy != GroupPolicyIsolate {
		return true
	}
	distinct := make(map[uuid.UUID]struct{})
	for _, areq := range combo {
		if !areq.UseSameProvider {
			continue
		}
		for _, uuids := range areq.Mappings {
			// use_same_provider guarantees exactly one provider uuid here.
			for u := range uuids {
				distinct[u] = struct{}{}
			}
		}
	}
	if len(distinct) == numGranularGroups {
		return true
	}
	logger.Debug("excluding combination: group_policy=isolate not satisfied",
		"distinct_providers", len(distinct), "granular_groups", numGranularGroups)
	return false
}

// satisfiesSameSubtree implements spec.md §4.9.
func satisfiesSameSubtree(combo []AllocationRequest, sameSubtrees []map[string]struct{}, parentUUIDByRPUUID map[uuid.UUID]*uuid.UUID, logger *slog.Logger) bool {
	for _, subtree := range sameSubtrees {
		uuids := make(map[uuid.UUID]struct{})
		for _, areq := range combo {
			for suffix := range subtree {
				for u := range areq.Mappings[suffix] {
					uuids[u] = struct{}{}
				}
			}
		}
		if !checkSameSubtree(uuids, parentUUIDByRPUUID) {
			logger.Debug("excluding combination: same_subtree not satisfied", "providers", len(uuids))
			return false
		}
	}
	return true
}

func checkSameSubtree(rpUUIDs map[uuid.UUID]struct{}, parentUUIDByRPUUID map[uuid.UUID]*uuid.UUID) bool {
	if len(rpUUIDs) <= 1 {
		return true
	}
	var commonAncestors map[uuid.UUID]struct{}
	for u := range rpUUIDs {
		ancestors := ancestorsOf(u, parentUUIDByRPUUID)
		if commonAncestors == nil {
			commonAncestors = ancestors
			continue
		}
		commonAncestors = intersect(commonAncestors, ancestors)
	}
	for u := range rpUUIDs {
		if _, ok := commonAncestors[u]; ok {
			return true
		}
	}
	return false
}

// ancestorsOf returns the reflexive set of ancestor uuids for rpUUID,
// memoized is unnecessary here since each invocation walks one chain, but
// callers that loop over many providers should share parentUUIDByRPUUID
// across calls (it is built once per resolver invocation).
func ancestorsOf(rpUUID uuid.UUID, parentUUIDByRPUUID map[uuid.UUID]*uuid.UUID) map[uuid.UUID]struct{} {
	ancestors := map[uuid.UUID]struct{}{rpUUID: {}}
	current := rpUUID
	for {
		parent, ok := parentUUIDByRPUUID[current]
		if !ok || parent == nil {
			return ancestors
		}
		ancestors[*parent] = struct{}{}
		current = *parent
	}
}

func intersect(a, b map[uuid.UUID]struct{}) map[uuid.UUID]struct{} {
	out := make(map[uuid.UUID]struct{})
	for u := range a {
		if _, ok := b[u]; ok {
			out[u] = struct{}{}
		}
	}
	return out
}

// exceedsCapacity implements spec.md §4.10.
func exceedsCapacity(areq AllocationRequest, psumResByRPRC map[string]*ProviderSummaryResource, logger *slog.Logger) bool {
	for _, arr := range areq.ResourceRequests {
		key := rpRCKey(arr.Provider.UUID, arr.ResourceClassName)
		psumRes, ok := psumResByRPRC[key]
		if !ok {
			logger.Debug("excluding allocation request: no summary resource found", "provider", arr.Provider.UUID, "resource_class", arr.ResourceClassName)
			return true
		}
		if psumRes.Used+arr.Amount > psumRes.Capacity {
			logger.Debug("excluding allocation request: exceeds capacity",
				"provider", arr.Provider.UUID, "resource_class", arr.ResourceClassName,
				"used", psumRes.Used, "amount", arr.Amount, "capacity", psumRes.Capacity)
			return true
		}
		if arr.Amount > psumRes.MaxUnit {
			logger.Debug("excluding allocation request: exceeds max_unit",
				"provider", arr.Provider.UUID, "resource_class", arr.ResourceClassName,
				"amount", arr.Amount, "max_unit", psumRes.MaxUnit)
			return true
		}
	}
	return false
}
