// SPDX-License-Identifier: MPL-2.0

package bundle

import (
	"regexp"
	"strings"
)

// requireCall matches "require <ref>" and "require -l <ref>" call sites. The
// reference may be single- or double-quoted.
var requireCall = regexp.MustCompile(`\brequire[ \t]+(?:-l[ \t]+)?("[^"\n]*"|'[^'\n]*'|[^\s;|&)]+)`)

// Scan returns the literal module references required by a script, in source
// order and without duplicates. It is a lexical scan: references built from
// variables or command substitutions are skipped, and call sites inside
// comments or strings are still reported.
func Scan(src []byte) []string {
	var refs []string
	seen := make(map[string]bool)
	for _, m := range requireCall.FindAllSubmatch(src, -1) {
		ref := string(m[1])
		if len(ref) >= 2 && (ref[0] == '"' || ref[0] == '\'') && ref[len(ref)-1] == ref[0] {
			ref = ref[1 : len(ref)-1]
		}
		if ref == "" || strings.ContainsAny(ref, "$`\"'") || seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	return refs
}
