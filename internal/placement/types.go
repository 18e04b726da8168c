// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

// Package placement computes allocation candidates: every viable way a set
// of request groups can be satisfied by a topology of resource providers,
// without violating inventory limits, trait constraints, or cross-group
// policies. See the package-level resolver.go for the entry point.
package placement

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ResourceClassCache translates between a resource class's string name and
// its internal numeric id. It is a read-mostly, process-wide collaborator
// owned outside this package; the resolver never mutates it.
type ResourceClassCache interface {
	NameFromID(id int64) string
	IDFromName(name string) (id int64, ok bool)
}

// ResourceProvider identifies a source of inventory. Providers form a
// forest; RootProviderUUID equals UUID for a standalone (root) provider.
type ResourceProvider struct {
	ID                 int64
	UUID               uuid.UUID
	RootProviderUUID   uuid.UUID
	ParentProviderUUID *uuid.UUID
}

// IsRoot reports whether this provider has no parent, i.e. UUID == RootProviderUUID.
func (p ResourceProvider) IsRoot() bool { return p.ParentProviderUUID == nil }

// Inventory is per (provider, resource class). EffectiveCapacity implements
// floor((total-reserved)*allocation_ratio), truncated to an integer exactly
// as the SQL-backed original does via an integer cast of a float product.
type Inventory struct {
	Total           int64
	Reserved        int64
	AllocationRatio float64
	MaxUnit         int64
}

// EffectiveCapacity returns floor((Total-Reserved)*AllocationRatio) as an
// integer amount available to allocate against.
func (inv Inventory) EffectiveCapacity() int64 {
	return int64(float64(inv.Total-inv.Reserved) * inv.AllocationRatio)
}

// RequestGroup is one group of resource requirements, keyed externally by
// its suffix (empty string = the default group).
type RequestGroup struct {
	// Resources maps resource class internal id to the requested amount (> 0).
	Resources map[int64]int64
	// RequiredTraits and ForbiddenTraits are sets of trait string names.
	RequiredTraits  map[string]struct{}
	ForbiddenTraits map[string]struct{}
	// UseSameProvider requires the whole group be satisfied by one provider.
	UseSameProvider bool
}

// GroupPolicy governs how distinct request groups interact.
type GroupPolicy string

const (
	GroupPolicyNone    GroupPolicy = "none"
	GroupPolicyIsolate GroupPolicy = "isolate"
)

// RequestWideParams carries parameters that apply across all request groups.
type RequestWideParams struct {
	GroupPolicy GroupPolicy
	// SameSubtrees is a list of sets of suffixes; each set's combined
	// provider selections must live in one subtree.
	SameSubtrees []map[string]struct{}
	// Limit, if non-nil, truncates the result to at most this many candidates.
	Limit *int
	Randomize bool
	// NestedAware mirrors spec.md's data model. The canonical value used by
	// a resolver invocation is the explicit argument to Resolve, not this
	// field; see resolver.go.
	NestedAware bool
}

// AllocationRequestResource (ARR) is one (provider, resource class, amount)
// triple. Equality and the dedup key are by (provider internal id,
// resource class name, amount) per spec.md §3.
type AllocationRequestResource struct {
	Provider          ResourceProvider
	ResourceClassName string
	Amount            int64
}

func (a AllocationRequestResource) key() string {
	return fmt.Sprintf("%d|%s|%d", a.Provider.ID, a.ResourceClassName, a.Amount)
}

// AllocationRequest (AR) is one candidate way to satisfy (part of) a
// request: a set of ARRs anchored at a non-sharing root provider, plus a
// record of which provider UUIDs contributed to which suffix.
type AllocationRequest struct {
	AnchorRootProviderUUID uuid.UUID
	ResourceRequests       []AllocationRequestResource
	// UseSameProvider is internal bookkeeping (not part of the wire format):
	// whether every ARR in this AR is required to share one provider,
	// propagated from the originating RequestGroup.
	UseSameProvider bool
	// Mappings is suffix -> set of provider UUIDs contributing to that suffix.
	Mappings map[string]map[uuid.UUID]struct{}
}

// dedupKey returns a stable string built from this AR's anchor plus its
// ARRs, sorted, used to detect duplicate candidates. The anchor is part of
// the key: spec.md §8 scenario S2 requires two distinct ARs for a sharing
// provider's two anchors even though both carry the identical
// {ARR(S, DISK_GB, 100)} resource request. Per spec.md §9's documented open
// question (the original's __hash__ considers only resource_requests while
// __eq__ also considers mappings too), this module resolves that narrower
// ambiguity by leaving mappings out of the key: see DESIGN.md.
func (a AllocationRequest) dedupKey() string {
	keys := make([]string, len(a.ResourceRequests))
	for i, arr := range a.ResourceRequests {
		keys[i] = arr.key()
	}
	sort.Strings(keys)
	return a.AnchorRootProviderUUID.String() + "|" + strings.Join(keys, ";")
}

// cloneWithAnchor returns a shallow copy of a with a different anchor. ARRs
// are shared (read-only) across the clones; only the anchor and a fresh
// mappings copy differ.
func (a AllocationRequest) cloneWithAnchor(anchor uuid.UUID) AllocationRequest {
	clone := a
	clone.AnchorRootProviderUUID = anchor
	clone.Mappings = cloneMappings(a.Mappings)
	return clone
}

func cloneMappings(m map[string]map[uuid.UUID]struct{}) map[string]map[uuid.UUID]struct{} {
	out := make(map[string]map[uuid.UUID]struct{}, len(m))
	for suffix, uuids := range m {
		cp := make(map[uuid.UUID]struct{}, len(uuids))
		for u := range uuids {
			cp[u] = struct{}{}
		}
		out[suffix] = cp
	}
	return out
}

// ProviderSummaryResource describes one resource class's capacity and usage
// on a provider.
type ProviderSummaryResource struct {
	ResourceClassName string
	Capacity          int64
	Used              int64
	// MaxUnit is internal use only; not part of the wire format.
	MaxUnit int64
}

// ProviderSummary describes a provider's resources and traits. Providers
// that are transit nodes in a tree but carry no inventory of their own
// appear with an empty Resources slice.
type ProviderSummary struct {
	Provider  ResourceProvider
	Resources []ProviderSummaryResource
	Traits    map[string]struct{}
}

func rpRCKey(providerUUID uuid.UUID, rcName string) string {
	return providerUUID.String() + "|" + rcName
}
