package domain

import "errors"

var (
	ErrInvalidFiling    = errors.New("invalid_filing")
	ErrInvalidStepType  = errors.New("invalid_step_type")
	ErrInvalidActor     = errors.New("invalid_actor")
	ErrNotFound         = errors.New("not_found")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	// ErrEntryImmutable is returned when a caller tries to change an entry
	// that already reached a terminal status.
	ErrEntryImmutable = errors.New("entry_immutable")
)
