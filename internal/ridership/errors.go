package ridership

import (
	"errors"
	"fmt"
)

// ErrMissingRequired is matched by every BuildError.
var ErrMissingRequired = errors.New("missing required field")

// BuildError reports a required field that was absent or of the wrong type.
type BuildError struct {
	// Field is the dotted path of the offending field, e.g. "stations[2].rank".
	Field string

	// Reason is a short description ("missing", "not an integer", ...).
	Reason string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", ErrMissingRequired, e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrMissingRequired.
func (e *BuildError) Unwrap() error {
	return ErrMissingRequired
}

func missing(field string) error {
	return &BuildError{Field: field, Reason: "missing"}
}

func invalid(field, reason string) error {
	return &BuildError{Field: field, Reason: reason}
}
