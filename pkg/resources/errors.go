package resources

import (
	"errors"
	"fmt"
)

// ErrMissingResource matches any MissingResourceError via errors.Is
var ErrMissingResource = errors.New("missing bundled resource")

// MissingResourceError reports a bundled resource that does not exist
type MissingResourceError struct {
	Name string
}

func (e *MissingResourceError) Error() string {
	return fmt.Sprintf("missing bundled resource: %s", e.Name)
}

// Is lets errors.Is(err, ErrMissingResource) succeed
func (e *MissingResourceError) Is(target error) bool {
	return target == ErrMissingResource
}

// IOError reports a failure to create or fill a materialized file
type IOError struct {
	Op   string // e.g. "create temp file for"
	Name string // resource name
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Name, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
