package telemetry

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a required path that is absent or null.
	ErrNotFound = errors.New("path not found")
	// ErrTypeMismatch reports a path whose value cannot be coerced to the
	// requested type.
	ErrTypeMismatch = errors.New("type mismatch")
)

// PathError records a failed MustRead and the path that caused it.
type PathError struct {
	Path string
	Want string
	Got  string
	Err  error
}

func (e *PathError) Error() string {
	if errors.Is(e.Err, ErrTypeMismatch) {
		return fmt.Sprintf("%s: %v: want %s, got %s", e.Path, e.Err, e.Want, e.Got)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }
