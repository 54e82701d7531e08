// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and a catalog of Markdown guidance.
//
// Errors carry remediation hints and may link to a catalog entry whose Markdown
// guidance is rendered with glamour when a crescent command fails.
package issue
