// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

import (
	"math/rand"

	"github.com/google/uuid"
)

// shapeResults implements spec.md §4.11: the final pass over the merged
// candidate set before it is returned to the caller. Order of operations
// matters: nested-provider exclusion narrows the summary set that
// randomization and the limit then operate over.
func shapeResults(areqs []AllocationRequest, summaries []*ProviderSummary, nestedAware bool, randomize bool, limit *int, rng *rand.Rand) ([]AllocationRequest, []*ProviderSummary) {
	if !nestedAware {
		areqs, summaries = excludeNestedProviders(areqs, summaries)
	}

	if randomize && len(areqs) > 1 {
		r := rng
		if r == nil {
			r = rand.New(rand.NewSource(1))
		}
		r.Shuffle(len(areqs), func(i, j int) { areqs[i], areqs[j] = areqs[j], areqs[i] })
	}

	if limit != nil && *limit >= 0 && *limit < len(areqs) {
		areqs = areqs[:*limit]
		summaries = pruneSummariesToReferenced(areqs, summaries)
	}

	return areqs, summaries
}

// excludeNestedProviders drops every allocation request that uses a
// non-root provider, and prunes the summary list to providers that remain
// referenced. A deployment with no nested providers at all is unaffected.
func excludeNestedProviders(areqs []AllocationRequest, summaries []*ProviderSummary) ([]AllocationRequest, []*ProviderSummary) {
	kept := make([]AllocationRequest, 0, len(areqs))
	for _, areq := range areqs {
		usesNested := false
		for _, arr := range areq.ResourceRequests {
			if !arr.Provider.IsRoot() {
				usesNested = true
				break
			}
		}
		if !usesNested {
			kept = append(kept, areq)
		}
	}
	return kept, pruneSummariesToReferenced(kept, summaries)
}

// pruneSummariesToReferenced keeps only summaries for providers whose root
// tree is referenced by some surviving allocation request.
func pruneSummariesToReferenced(areqs []AllocationRequest, summaries []*ProviderSummary) []*ProviderSummary {
	roots := make(map[uuid.UUID]struct{})
	for _, areq := range areqs {
		for _, arr := range areq.ResourceRequests {
			roots[arr.Provider.RootProviderUUID] = struct{}{}
		}
	}
	out := make([]*ProviderSummary, 0, len(summaries))
	for _, s := range summaries {
		if _, ok := roots[s.Provider.RootProviderUUID]; ok {
			out = append(out, s)
		}
	}
	return out
}
