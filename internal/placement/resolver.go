// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// ResolverOptions carries the ambient collaborators a Resolve call uses:
// a source of randomness for shuffling candidates (spec.md §4.11), a
// Prometheus monitor, and a structured logger. Every field is optional; a
// zero-value ResolverOptions is valid and uses package defaults.
type ResolverOptions struct {
	Rand    *rand.Rand
	Monitor *Monitor
	Logger  *slog.Logger
}

func (o ResolverOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Resolve implements spec.md §6's entry point: given a store, one
// RequestGroup per suffix, request-wide parameters, and whether the caller
// is nested-provider aware, compute every allocation candidate.
//
// A request group that yields zero candidates on its own short-circuits the
// whole resolution to an empty result, since no combination spanning every
// group could exist either (spec.md §4.1/§4.5).
func Resolve(
	ctx context.Context,
	store Store,
	groupsBySuffix map[string]RequestGroup,
	rcc ResourceClassCache,
	params RequestWideParams,
	nestedAware bool,
	opts ResolverOptions,
) ([]AllocationRequest, []*ProviderSummary, error) {
	start := time.Now()
	logger := opts.logger()

	rw, err := NewRequestWideSearchContext(ctx, store, params, nestedAware)
	if err != nil {
		return nil, nil, err
	}

	byGroup := make(map[string]groupResult, len(groupsBySuffix))
	for suffix, group := range groupsBySuffix {
		rg := NewRequestGroupSearchContext(suffix, group, store, rw)
		requests, summaries, err := searchOneGroup(ctx, rg, rw, rcc, logger)
		if err != nil {
			return nil, nil, err
		}
		if len(requests) == 0 {
			logger.Debug("request group produced no candidates, short-circuiting", "suffix", suffix)
			opts.Monitor.ObserveRejection("group_empty")
			opts.Monitor.ObserveResolve(time.Since(start).Seconds(), 0)
			return nil, nil, nil
		}
		for i := range requests {
			requests[i].UseSameProvider = group.UseSameProvider
		}
		byGroup[suffix] = groupResult{requests: requests, summary: summaries}
	}

	areqs, summaries, err := mergeCandidates(byGroup, rw, logger)
	if err != nil {
		return nil, nil, err
	}
	if len(areqs) == 0 {
		opts.Monitor.ObserveRejection("merge_empty")
		opts.Monitor.ObserveResolve(time.Since(start).Seconds(), 0)
		return nil, nil, nil
	}

	areqs, summaries = shapeResults(areqs, summaries, nestedAware, params.Randomize, params.Limit, opts.Rand)

	opts.Monitor.ObserveResolve(time.Since(start).Seconds(), len(areqs))
	logger.Debug("resolve complete", "allocation_requests", len(areqs), "provider_summaries", len(summaries))
	return areqs, summaries, nil
}
