package registry

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the index has no package by that name.
// Typed errors wrap it, so errors.Is(err, ErrNotFound) works.
var ErrNotFound = errors.New("package not found")

// NotFoundError reports a package (or a specific version of one) the
// index does not know about.
type NotFoundError struct {
	Name    string
	Version string
}

func (e *NotFoundError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("package %s version %s not found", e.Name, e.Version)
	}
	return fmt.Sprintf("package %s not found", e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NetworkError reports a transport-level failure fetching package
// metadata, distinct from the package simply not existing.
type NetworkError struct {
	Name string
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetching metadata for %s: %v", e.Name, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
