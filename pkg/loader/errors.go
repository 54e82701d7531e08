// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCyclicRequire is returned when completing a require would need a module to
// wait, directly or through other in-flight loads, for itself.
var ErrCyclicRequire = errors.New("cyclic require")

type (
	// CyclicRequireError carries the closed chain of modules forming the cycle,
	// starting and ending with the requiring module.
	CyclicRequireError struct {
		Chain []string
	}

	// ModuleError is a module's own failure: its bytes could not be read or its
	// top-level code failed. It is delivered to every caller awaiting the load.
	ModuleError struct {
		Path string
		// Op is "read" or "execute".
		Op  string
		Err error
	}
)

func (e *CyclicRequireError) Error() string {
	return fmt.Sprintf("cyclic require: %s", strings.Join(e.Chain, " -> "))
}

// Unwrap returns ErrCyclicRequire for errors.Is checks.
func (e *CyclicRequireError) Unwrap() error { return ErrCyclicRequire }

func (e *ModuleError) Error() string {
	return fmt.Sprintf("failed to %s module %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying failure.
func (e *ModuleError) Unwrap() error { return e.Err }
