// SPDX-License-Identifier: MPL-2.0

package alias

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownAlias is returned when no configuration file up to the filesystem
	// root declares the requested alias.
	ErrUnknownAlias = errors.New("unknown alias")
	// ErrUnknownBuiltinModule is returned when a reference in the built-in
	// namespace names a module the registry does not hold.
	ErrUnknownBuiltinModule = errors.New("unknown built-in module")
)

type (
	// UnknownAliasError names the alias and the directory the search started from.
	UnknownAliasError struct {
		Name      string
		CallerDir string
		FileName  string
	}

	// UnknownBuiltinError names the fully-qualified built-in key that was missing.
	UnknownBuiltinError struct {
		Key string
	}
)

func (e *UnknownAliasError) Error() string {
	return fmt.Sprintf("unknown alias @%s: no %s above %s declares it", e.Name, e.FileName, e.CallerDir)
}

// Unwrap returns ErrUnknownAlias for errors.Is checks.
func (e *UnknownAliasError) Unwrap() error { return ErrUnknownAlias }

func (e *UnknownBuiltinError) Error() string {
	return fmt.Sprintf("unknown built-in module %s", e.Key)
}

// Unwrap returns ErrUnknownBuiltinModule for errors.Is checks.
func (e *UnknownBuiltinError) Unwrap() error { return ErrUnknownBuiltinModule }
