/*
errors.go - Error types for the margin engine

PURPOSE:
  The engine's formulas and rollups cannot fail: divisions are guarded and
  missing rows count as zero. What can fail is the store underneath, and the
  ad hoc query capability, which must reject anything that is not a pure read.

ERROR CATEGORIES:
  1. Query errors - InvalidQueryError, surfaced to the caller with a reason
  2. Store errors - read failures, wrapped and propagated whole

SEE ALSO:
  - query.go: read-only guard
  - api/handlers.go: maps these errors to HTTP status codes
*/
package margin

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidQuery is returned when an ad hoc query is not a pure read.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrQueryUnsupported is returned by stores that cannot run raw queries.
	ErrQueryUnsupported = errors.New("ad hoc queries not supported by this store")

	// ErrStoreClosed is returned after a store has been closed.
	ErrStoreClosed = errors.New("store closed")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InvalidQueryError carries the rejected query and a human-readable reason.
type InvalidQueryError struct {
	Query  string
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query: %s", e.Reason)
}

func (e *InvalidQueryError) Unwrap() error {
	return ErrInvalidQuery
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether err was caused by the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidQuery) || errors.Is(err, ErrQueryUnsupported)
}
