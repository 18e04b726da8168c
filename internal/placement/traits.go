// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

import "log/slog"

// checkTraitsForCombination implements spec.md §4.7: given a combination of
// ARRs, reject it if any provider carries a forbidden trait, or if the
// union of the combination's providers' traits does not cover every
// required trait.
func checkTraitsForCombination(
	combo []AllocationRequestResource,
	summaries map[int64]*ProviderSummary,
	requiredTraits, forbiddenTraits map[string]struct{},
	logger *slog.Logger,
) bool {
	allTraits := make(map[string]struct{})
	for _, arr := range combo {
		summary, ok := summaries[arr.Provider.ID]
		if !ok {
			continue
		}
		for t := range forbiddenTraits {
			if _, has := summary.Traits[t]; has {
				logger.Debug("excluding combination: provider has forbidden trait",
					"provider_id", arr.Provider.ID, "trait", t)
				return false
			}
		}
		for t := range summary.Traits {
			allTraits[t] = struct{}{}
		}
	}
	for t := range requiredTraits {
		if _, has := allTraits[t]; !has {
			logger.Debug("excluding combination: missing required trait", "trait", t)
			return false
		}
	}
	return true
}
