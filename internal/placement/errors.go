// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

import (
	"errors"
	"fmt"
)

// Kind categorizes an Error so callers can branch on it without caring
// about the hierarchy of a specific exception type, collapsing what would
// be a class hierarchy (ResourceProviderNotFound < NotFound < ...) in the
// original implementation into one enum plus category predicates.
type Kind int

const (
	// KindNotFound signals the store could not satisfy a lookup at all.
	// The resolver treats this as an empty result, never as an error
	// surfaced to the caller; see search.go.
	KindNotFound Kind = iota
	KindConflict
	KindInvalidInventory
	KindPolicyDenied
	// KindInvariantViolation marks a programming error: something this
	// package's own bookkeeping guarantees should never happen (for
	// example, consolidating AllocationRequests with different anchors).
	KindInvariantViolation
	KindObjectAction
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidInventory:
		return "invalid_inventory"
	case KindPolicyDenied:
		return "policy_denied"
	case KindInvariantViolation:
		return "invariant_violation"
	case KindObjectAction:
		return "object_action"
	default:
		return "unknown"
	}
}

// Error is this package's error type: a Kind plus a message and an
// optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// newError builds an *Error of the given kind.
func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// wrapError builds an *Error of the given kind around a causing error.
func wrapError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// IsNotFound reports whether err (or something it wraps) is a KindNotFound Error.
func IsNotFound(err error) bool { return hasKind(err, KindNotFound) }

// IsInvariantViolation reports whether err (or something it wraps) is a
// KindInvariantViolation Error — a definite bug, never a user error.
func IsInvariantViolation(err error) bool { return hasKind(err, KindInvariantViolation) }

func hasKind(err error, kind Kind) bool {
	var placementErr *Error
	if errors.As(err, &placementErr) {
		return placementErr.Kind == kind
	}
	return false
}
