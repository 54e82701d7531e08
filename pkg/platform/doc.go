// SPDX-License-Identifier: MPL-2.0

// Package platform names build targets and the platform rules that apply to
// standalone executables, such as the .exe suffix and Windows reserved file
// names.
package platform
