package download

import (
	"errors"
	"fmt"
)

var (
	// ErrMirrorUnavailable matches every soft, per-mirror failure.
	ErrMirrorUnavailable = errors.New("mirror unavailable")
	// ErrAllMirrorsExhausted is returned once every candidate mirror failed.
	ErrAllMirrorsExhausted = errors.New("all mirrors exhausted")
)

// MirrorUnavailableError describes why one mirror could not serve a path.
type MirrorUnavailableError struct {
	Mirror     string
	URL        string
	StatusCode int
	Err        error
}

func (e *MirrorUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("mirror %s returned status %d for %s", e.Mirror, e.StatusCode, e.URL)
	}
	return fmt.Sprintf("mirror %s failed for %s: %v", e.Mirror, e.URL, e.Err)
}

func (e *MirrorUnavailableError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMirrorUnavailable}
	}
	return []error{ErrMirrorUnavailable, e.Err}
}

// AllMirrorsExhaustedError names the path no mirror could deliver.
type AllMirrorsExhaustedError struct {
	Path     string
	Attempts []error
}

func (e *AllMirrorsExhaustedError) Error() string {
	return fmt.Sprintf("all available mirrors are unreachable while getting content: %s (%d tried)", e.Path, len(e.Attempts))
}

func (e *AllMirrorsExhaustedError) Unwrap() []error {
	return append([]error{ErrAllMirrorsExhausted}, e.Attempts...)
}
