// SPDX-License-Identifier: MPL-2.0

// Package runtime runs crescent scripts.
//
// Scripts are POSIX shell executed by the embedded mvdan/sh interpreter. The
// module system is exposed to scripts as three builtins installed through exec
// handler middleware:
//
//	require ./lib/strings       # load a module once, print its value
//	require -l "$(script parent child util)"
//	provide "value"             # set this module's value (first call wins)
//	script parent child util    # navigate the location tree, print the path
//
// A failed require halts the requiring module with the error, the way an
// uncaught error would, so failures propagate up the require chain.
//
// Runtime wires the configuration, filesystem, alias directory, resolver,
// loader and engine for a single run. Each run starts with an empty module
// cache.
package runtime
