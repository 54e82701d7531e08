// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"fmt"
	"strings"
)

type (
	// Kind distinguishes the two reference variants a script can pass to require.
	Kind int

	// Form classifies a string reference by its leading characters.
	Form int

	// Ref is a module reference as written by a script: either a string literal
	// or a location handle. It is immutable once built.
	Ref struct {
		kind Kind
		form Form
		raw  string
	}
)

const (
	// KindString is a literal reference such as "./lib" or "@pkgs/util".
	KindString Kind = iota
	// KindLocation is a location handle carrying an already-known path.
	KindLocation
)

const (
	// FormRelative references start with "./" or "../".
	FormRelative Form = iota + 1
	// FormAbsolute references start with "/".
	FormAbsolute
	// FormAlias references start with "@".
	FormAlias
)

// ParseRef classifies a string reference. Any spelling that does not start with
// "./", "../", "/" or "@" is rejected with an InvalidReferenceError.
func ParseRef(s string) (Ref, error) {
	var form Form
	switch {
	case strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../"):
		form = FormRelative
	case strings.HasPrefix(s, "/"):
		form = FormAbsolute
	case strings.HasPrefix(s, "@") && len(s) > 1 && s[1] != '/':
		form = FormAlias
	default:
		return Ref{}, &InvalidReferenceError{Ref: s}
	}
	return Ref{kind: KindString, form: form, raw: s}, nil
}

// MustParseRef is ParseRef for literals known to be valid. It panics otherwise.
func MustParseRef(s string) Ref {
	ref, err := ParseRef(s)
	if err != nil {
		panic(err)
	}
	return ref
}

// LocationRef wraps the path carried by a location handle.
func LocationRef(path string) Ref {
	return Ref{kind: KindLocation, raw: path}
}

// Kind returns the reference variant.
func (r Ref) Kind() Kind { return r.kind }

// Form returns the string form; it is zero for location references.
func (r Ref) Form() Form { return r.form }

// String returns the reference as written.
func (r Ref) String() string { return r.raw }

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindLocation:
		return "location"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}
