package music

import (
	"errors"
	"fmt"
)

// Lookup errors
var (
	ErrNotFound     = errors.New("no matching track")
	ErrInvalidIndex = errors.New("invalid track index")
	ErrInvalidTrack = errors.New("track needs both a title and a locator")
)

// Collection errors
var (
	ErrEmptyCatalog = errors.New("playlist is empty")
	ErrEmptyQueue   = errors.New("upcoming queue is empty")
)

// Session errors
var (
	ErrNotPlaying     = errors.New("nothing is playing")
	ErrMirrorDisabled = errors.New("playlist mirror is not configured")
)

// ProviderError wraps a failed call to a media provider or search backend.
// It matches ErrNotFound so callers never need to tell the two apart.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool {
	return target == ErrNotFound
}

// NewProviderError builds a ProviderError, returning nil when err is nil
func NewProviderError(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Op: op, Err: err}
}
