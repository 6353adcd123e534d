package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedDueString  = errors.New("malformed due string")
	ErrSourceFetchFailure  = errors.New("source fetch failure")
	ErrNoSourcesDiscovered = errors.New("no sources found")
	ErrCorruptCacheEntry   = errors.New("corrupt cache entry")
	ErrNotFound            = errors.New("not found")
)

// SourceError is the per-source reason a fetch was skipped.
type SourceError struct {
	SourceID string
	Err      error
}

func (e *SourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("source %s: %v", e.SourceID, ErrSourceFetchFailure)
	}
	return fmt.Sprintf("source %s: %v", e.SourceID, e.Err)
}

func (e *SourceError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSourceFetchFailure}
	}
	return []error{ErrSourceFetchFailure, e.Err}
}
