package domain

import "errors"

// Engine error taxonomy. All orchestrator operations surface one of these;
// nothing is swallowed.
var (
	// ErrValidation: missing or malformed input. Caller's fault, not retried.
	ErrValidation = errors.New("validation_error")
	// ErrInvalidTransition: the filing's current state disallows the
	// requested transition. Caller must re-fetch and decide.
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrAlreadyExists     = errors.New("already_exists")
	ErrNotFound          = errors.New("not_found")
	// ErrStorageConflict: a concurrent writer won the version race. Safe to
	// retry once after re-reading state.
	ErrStorageConflict = errors.New("storage_conflict")
	// ErrUpstreamTimeout: the source ledger or event store did not answer
	// within the operation deadline.
	ErrUpstreamTimeout = errors.New("upstream_timeout")
)
