// SPDX-License-Identifier: MPL-2.0

package bundle

import (
	"errors"
	"fmt"
)

var (
	// ErrBundleIO is matched by every IOError.
	ErrBundleIO = errors.New("bundle I/O error")
	// ErrAliasConflict is matched by every AliasConflictError.
	ErrAliasConflict = errors.New("alias conflict")
)

// AliasConflictError reports an alias literal that names different files from
// different directories, which a single static alias map cannot express.
type AliasConflictError struct {
	Alias   string
	Kept    string
	Ignored string
}

func (e *AliasConflictError) Error() string {
	return fmt.Sprintf("%s: %s leads to both %s and %s", ErrAliasConflict, e.Alias, e.Kept, e.Ignored)
}

// Is reports whether target is ErrAliasConflict.
func (e *AliasConflictError) Is(target error) bool { return target == ErrAliasConflict }

// IOError reports a file of the dependency graph that could not be read. No
// partial bundle accompanies it.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed to bundle %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying I/O failure.
func (e *IOError) Unwrap() error { return e.Err }

// Is reports whether target is ErrBundleIO.
func (e *IOError) Is(target error) bool { return target == ErrBundleIO }
