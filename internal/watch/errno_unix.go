// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import "syscall"

// stopErrnos end a watch session: inotify ran out of watches or descriptors.
var stopErrnos = []syscall.Errno{syscall.ENOSPC, syscall.EMFILE, syscall.ENFILE}
