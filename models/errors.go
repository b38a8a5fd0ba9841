package models

import "errors"

// Sentinel errors shared across packages. Callers match with errors.Is;
// producers wrap with fmt.Errorf("...: %w", Err...).
var (
	// ErrValidation rejects bad input before any state change.
	ErrValidation = errors.New("validation error")

	// ErrConflict rejects a duplicate channel or episode.
	ErrConflict = errors.New("already exists")

	// ErrNotFound is a client-facing miss for unknown channels, tokens
	// and files.
	ErrNotFound = errors.New("not found")

	// ErrTransientSource marks a remote listing or network hiccup. It is
	// swallowed at the run level and retried by a later scheduled run.
	ErrTransientSource = errors.New("transient source error")

	// ErrMaterialization marks a per-item audio extraction failure. The
	// item stays absent from the catalog and is retried next run.
	ErrMaterialization = errors.New("materialization error")

	// ErrAuthDenied is surfaced uniformly for any credential or token
	// mismatch, without detail that would allow enumeration.
	ErrAuthDenied = errors.New("access denied")
)
