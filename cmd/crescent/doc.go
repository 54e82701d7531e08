// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the crescent command line.
//
// The root command hosts the script subcommands (run, build, deps, inspect)
// and configuration management. Before any of them is parsed, Execute checks
// whether the running executable carries a standalone bundle; if it does, the
// bundled entry script runs with every argument and the CLI is never built.
package cmd
