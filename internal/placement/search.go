// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

import (
	"context"
	"log/slog"
)

// searchOneGroup implements spec.md §4.1: decide between the single- and
// multi-provider paths for one request group, and run it.
func searchOneGroup(
	ctx context.Context,
	rg *RequestGroupSearchContext,
	rw *RequestWideSearchContext,
	rcc ResourceClassCache,
	logger *slog.Logger,
) ([]AllocationRequest, []*ProviderSummary, error) {
	if !rg.Group.UseSameProvider && (rg.ExistsSharing || rg.ExistsNested) {
		if len(rg.RequiredTraitMap) > 0 {
			traitProviders, err := rg.Store.ProviderIDsHavingAnyTrait(ctx, rg.RequiredTraitMap)
			if err != nil {
				return nil, nil, wrapError(KindObjectAction, err, "checking providers with required traits")
			}
			if len(traitProviders) == 0 {
				logger.Debug("no provider carries any required trait, short-circuiting", "suffix", rg.Suffix)
				return nil, nil, nil
			}
		}
		candidates, err := rg.Store.TreesMatchingAll(ctx, rg, rw)
		if err != nil {
			if IsNotFound(err) {
				return nil, nil, nil
			}
			return nil, nil, wrapError(KindObjectAction, err, "searching trees matching group %q", rg.Suffix)
		}
		return multiProviderCandidates(ctx, rg, rcc, candidates, logger)
	}

	pairs, err := rg.Store.ProviderIDsMatching(ctx, rg)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil, nil
		}
		return nil, nil, wrapError(KindObjectAction, err, "searching providers matching group %q", rg.Suffix)
	}
	return singleProviderCandidates(ctx, rg, rw, rcc, pairs, logger)
}
