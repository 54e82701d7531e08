// SPDX-License-Identifier: MPL-2.0

//go:build windows

package watch

import "syscall"

// stopErrnos end a watch session: too many open handles (4), a watched
// directory whose handle went away (6), or no memory for the change
// buffer (8).
var stopErrnos = []syscall.Errno{4, 6, 8}
