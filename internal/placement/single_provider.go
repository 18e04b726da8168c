// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// singleProviderCandidates implements spec.md §4.4: build allocation
// requests for a group satisfiable by one provider, expanding sharing
// providers into one AllocationRequest per viable anchor.
func singleProviderCandidates(
	ctx context.Context,
	rg *RequestGroupSearchContext,
	rw *RequestWideSearchContext,
	rcc ResourceClassCache,
	pairs []ProviderRootPair,
	logger *slog.Logger,
) ([]AllocationRequest, []*ProviderSummary, error) {
	if len(pairs) == 0 {
		return nil, nil, nil
	}

	rootIDs := make(map[int64]struct{}, len(pairs))
	for _, p := range pairs {
		rootIDs[p.RootID] = struct{}{}
	}
	summaries, err := fetchSummaries(ctx, rg.Store, rcc, rootIDsSlice(rootIDs))
	if err != nil {
		return nil, nil, err
	}

	var requests []AllocationRequest
	for _, pair := range pairs {
		summary, ok := summaries[pair.ProviderID]
		if !ok {
			return nil, nil, newError(KindInvariantViolation, "no summary built for provider id %d", pair.ProviderID)
		}

		req := allocationRequestForProvider(rg.Resources, summary.Provider, rcc, rg.Suffix)

		if rw.InFilteredAnchors(pair.RootID) {
			requests = append(requests, req)
		}

		if _, sharing := summary.Traits[MISCSharesViaAggregate]; sharing {
			anchors, err := rg.Store.AnchorsForSharingProviders(ctx, []int64{summary.Provider.ID})
			if err != nil {
				return nil, nil, wrapError(KindObjectAction, err, "resolving anchors for sharing provider %d", summary.Provider.ID)
			}
			for _, anchor := range anchors {
				if anchor.AnchorID == pair.RootID {
					continue // the provider's own root is handled above
				}
				if !rw.InFilteredAnchors(anchor.AnchorID) {
					continue
				}
				requests = append(requests, req.cloneWithAnchor(anchor.AnchorUUID))
			}
		}
	}

	out := make([]*ProviderSummary, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, s)
	}
	logger.Debug("single-provider search complete", "suffix", rg.Suffix, "candidates", len(requests))
	return requests, out, nil
}

// allocationRequestForProvider builds an AllocationRequest with one ARR per
// requested resource class, all sourced from provider, per spec.md §4.4.
// The caller is responsible for identifying additional sharing anchors;
// this function only produces the AR anchored in the provider's own tree.
func allocationRequestForProvider(resources map[int64]int64, provider ResourceProvider, rcc ResourceClassCache, suffix string) AllocationRequest {
	arrs := make([]AllocationRequestResource, 0, len(resources))
	for rcID, amount := range resources {
		arrs = append(arrs, AllocationRequestResource{
			Provider:          provider,
			ResourceClassName: rcc.NameFromID(rcID),
			Amount:            amount,
		})
	}
	return AllocationRequest{
		ResourceRequests:       arrs,
		AnchorRootProviderUUID: provider.RootProviderUUID,
		Mappings:               map[string]map[uuid.UUID]struct{}{suffix: {provider.UUID: {}}},
	}
}

func rootIDsSlice(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// fetchSummaries is the shared usage-fetch-then-summarize step used by both
// search paths (spec.md §4.2), keyed by provider internal id.
func fetchSummaries(ctx context.Context, store Store, rcc ResourceClassCache, rootIDs []int64) (map[int64]*ProviderSummary, error) {
	rows, err := store.UsagesByProviderTree(ctx, rootIDs)
	if err != nil {
		return nil, wrapError(KindObjectAction, err, "fetching usages for provider trees")
	}
	traits, err := store.TraitsByProviderTree(ctx, rootIDs)
	if err != nil {
		return nil, wrapError(KindObjectAction, err, "fetching traits for provider trees")
	}
	return buildProviderSummaries(ctx, store, rcc, rows, traits)
}
