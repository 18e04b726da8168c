// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

import (
	"context"
)

// buildProviderSummaries implements spec.md §4.2: given usage rows and a
// trait map, resolve full provider identity for every distinct provider id
// and build one ProviderSummary per id.
func buildProviderSummaries(ctx context.Context, store Store, rcc ResourceClassCache, rows []UsageRow, traitsByProviderID map[int64]map[string]struct{}) (map[int64]*ProviderSummary, error) {
	providerIDs := make(map[int64]struct{})
	for _, row := range rows {
		providerIDs[row.ProviderID] = struct{}{}
	}
	ids := make([]int64, 0, len(providerIDs))
	for id := range providerIDs {
		ids = append(ids, id)
	}
	identities, err := store.ProviderIdentitiesFromIDs(ctx, ids)
	if err != nil {
		return nil, wrapError(KindObjectAction, err, "resolving provider identities")
	}

	summaries := make(map[int64]*ProviderSummary, len(ids))
	for _, row := range rows {
		summary, ok := summaries[row.ProviderID]
		if !ok {
			identity, found := identities[row.ProviderID]
			if !found {
				return nil, newError(KindInvariantViolation, "no identity resolved for provider id %d", row.ProviderID)
			}
			summary = &ProviderSummary{
				Provider: ResourceProvider{
					ID:                 identity.ID,
					UUID:               identity.UUID,
					RootProviderUUID:   identity.RootUUID,
					ParentProviderUUID: identity.ParentUUID,
				},
				Resources: nil,
				Traits:    traitsByProviderID[row.ProviderID],
			}
			summaries[row.ProviderID] = summary
		}

		if row.ResourceClassID == nil {
			// This provider carries no inventory of its own; it may still
			// be needed as a transit node in a tree. Leave Resources empty.
			continue
		}

		used := int64(0)
		if row.Used != nil {
			used = int64(*row.Used)
		}
		capacity := Inventory{Total: row.Total, Reserved: row.Reserved, AllocationRatio: row.AllocationRatio}.EffectiveCapacity()
		rcName := rcc.NameFromID(*row.ResourceClassID)
		summary.Resources = append(summary.Resources, ProviderSummaryResource{
			ResourceClassName: rcName,
			Capacity:          capacity,
			Used:              used,
			MaxUnit:           row.MaxUnit,
		})
	}
	return summaries, nil
}
