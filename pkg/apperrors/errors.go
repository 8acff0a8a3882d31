// Package apperrors defines the sentinel errors shared across the storage
// and service layers. Callers match them with errors.Is; backend-native
// errors never escape a public method unwrapped.
package apperrors

import "errors"

var (
	// ErrNotConnected is returned when a store operation is attempted
	// before Open (or after Close). Caller error, never retried.
	ErrNotConnected = errors.New("store not connected")

	// ErrNotFound marks a lookup that matched no row.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable marks a soft-disabled external capability: no API
	// credential configured, the completion/embedding endpoint failing,
	// or a backend without vector search.
	ErrUnavailable = errors.New("service unavailable")

	// ErrEmptyCollection is returned when collection processing resolves
	// zero items. Distinct from an empty success.
	ErrEmptyCollection = errors.New("collection resolved to zero items")

	// ErrValidation marks a stored row that does not match the expected
	// shape (out-of-band tooling can write rows).
	ErrValidation = errors.New("validation failed")

	// ErrUnknownSortField is returned by the filter compiler for a sort
	// field outside the whitelist, before any SQL is built.
	ErrUnknownSortField = errors.New("unknown sort field")
)
