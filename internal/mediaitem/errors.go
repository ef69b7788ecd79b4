package mediaitem

import "errors"

// Sentinel errors for the mediaitem package. Distinct kinds per SPEC_FULL.md
// §7: not-found is never conflated with an integrity conflict.
var (
	// ErrNotFound indicates the requested item does not exist.
	ErrNotFound = errors.New("media item not found")

	// ErrConflict indicates a unique or foreign-key constraint violation
	// (e.g. a duplicate item_id within a Kind, or a season/episode number
	// collision under a parent).
	ErrConflict = errors.New("media item integrity conflict")

	// ErrInvalidLookup indicates a by-external-id lookup was given an
	// episode number without a season number (a season number alone is a
	// valid season lookup).
	ErrInvalidLookup = errors.New("season and episode must be given together")
)
