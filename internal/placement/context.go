// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

import (
	"context"
)

// RequestGroupSearchContext carries one RequestGroup plus the bookkeeping
// derived from it that the search algorithms need repeatedly.
type RequestGroupSearchContext struct {
	Suffix string
	Group  RequestGroup
	Store  Store

	// ExistsSharing and ExistsNested tell the policy in search.go whether
	// the multi-provider path could possibly apply. Both are derived once
	// per invocation from global store state (see DESIGN.md for why this
	// package does not attempt a narrower, per-resource-class derivation).
	ExistsSharing bool
	ExistsNested  bool

	// RequiredTraitMap and ForbiddenTraitMap mirror Group.RequiredTraits
	// and Group.ForbiddenTraits; they are carried on the context (rather
	// than read off Group every time) to match spec.md §4.1's naming and
	// to give trait-checking code one place to look.
	RequiredTraitMap  map[string]struct{}
	ForbiddenTraitMap map[string]struct{}

	// Resources mirrors Group.Resources.
	Resources map[int64]int64
}

// NewRequestGroupSearchContext builds a RequestGroupSearchContext for one
// suffix's RequestGroup, given the global nested/sharing bookkeeping
// already computed on the RequestWideSearchContext.
func NewRequestGroupSearchContext(suffix string, group RequestGroup, store Store, rw *RequestWideSearchContext) *RequestGroupSearchContext {
	return &RequestGroupSearchContext{
		Suffix:            suffix,
		Group:             group,
		Store:             store,
		ExistsSharing:     rw.existsSharing,
		ExistsNested:      rw.HasTrees,
		RequiredTraitMap:  group.RequiredTraits,
		ForbiddenTraitMap: group.ForbiddenTraits,
		Resources:         group.Resources,
	}
}

// RequestWideSearchContext carries parameters and bookkeeping that apply
// across every request group in one resolver invocation.
type RequestWideSearchContext struct {
	Context context.Context
	Store   Store

	GroupPolicy  GroupPolicy
	SameSubtrees []map[string]struct{}
	Limit        *int
	Randomize    bool
	NestedAware  bool

	// HasTrees is true if any provider in the deployment has a parent.
	HasTrees bool
	// existsSharing is true if the deployment has any sharing provider at all.
	existsSharing bool

	// excludedAnchors holds the ids of providers that must never themselves
	// be used as the anchor of an AR (spec.md §4.4 step 2; GLOSSARY's
	// "Anchor: the non-sharing provider that roots an AR"). A sharing
	// provider's own root is not a valid anchor — only the providers
	// returned by AnchorsForSharingProviders are (step 3) — so this set is
	// exactly the deployment's sharing provider ids, fetched once per
	// resolver invocation alongside existsSharing.
	excludedAnchors map[int64]struct{}
}

// NewRequestWideSearchContext builds the request-wide context, fetching the
// global sharing/nested bookkeeping from the store.
func NewRequestWideSearchContext(ctx context.Context, store Store, params RequestWideParams, nestedAware bool) (*RequestWideSearchContext, error) {
	hasTrees, err := store.ExistsNestedProviders(ctx)
	if err != nil {
		return nil, wrapError(KindObjectAction, err, "checking for nested providers")
	}
	sharing, err := store.SharingProviders(ctx)
	if err != nil {
		return nil, wrapError(KindObjectAction, err, "listing sharing providers")
	}
	return &RequestWideSearchContext{
		Context:         ctx,
		Store:           store,
		GroupPolicy:     params.GroupPolicy,
		SameSubtrees:    params.SameSubtrees,
		Limit:           params.Limit,
		Randomize:       params.Randomize,
		NestedAware:     nestedAware,
		HasTrees:        hasTrees,
		existsSharing:   len(sharing) > 0,
		excludedAnchors: sharing,
	}, nil
}

// InFilteredAnchors reports whether rootID is a viable anchor: every
// provider is a viable anchor except a sharing provider's own root (spec.md
// §4.4 step 2).
func (rw *RequestWideSearchContext) InFilteredAnchors(rootID int64) bool {
	_, excluded := rw.excludedAnchors[rootID]
	return !excluded
}
