// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by the crescent test suites:
// in-memory script trees, filesystems that count or fail reads, and
// process-state helpers that restore themselves on cleanup.
package testutil
