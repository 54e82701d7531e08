// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidReferenceForm is returned for references that do not start with
	// "./", "../", "/" or "@".
	ErrInvalidReferenceForm = errors.New("invalid module reference")
	// ErrModuleNotFound is returned when no candidate file exists for a reference.
	ErrModuleNotFound = errors.New("module not found")
)

type (
	// InvalidReferenceError carries the rejected reference.
	InvalidReferenceError struct {
		Ref string
	}

	// ModuleNotFoundError lists every candidate that was tried.
	ModuleNotFoundError struct {
		Ref   string
		Path  string
		Tried []string
		// IsDir is set when the reference named a directory without an index file.
		IsDir bool
	}
)

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("invalid module reference %q: must start with ./, ../, / or @", e.Ref)
}

// Unwrap returns ErrInvalidReferenceForm for errors.Is checks.
func (e *InvalidReferenceError) Unwrap() error { return ErrInvalidReferenceForm }

func (e *ModuleNotFoundError) Error() string {
	if e.IsDir {
		return fmt.Sprintf("cannot require %s: %s is a directory without an index file (tried %s)",
			e.Ref, e.Path, strings.Join(e.Tried, ", "))
	}
	return fmt.Sprintf("module %s not found (tried %s)", e.Ref, strings.Join(e.Tried, ", "))
}

// Unwrap returns ErrModuleNotFound for errors.Is checks.
func (e *ModuleNotFoundError) Unwrap() error { return ErrModuleNotFound }
