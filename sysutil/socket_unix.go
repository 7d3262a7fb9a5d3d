// Copyright (c) 2026 The passhelper Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Unix-socket permission bits and signal handling.

package sysutil

import (
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

func closeFd(fd int) error {
	return unix.Close(fd)
}

// ChmodWorldSticky sets a listening Unix-domain socket's path to
// rwxrwxrwx plus the sticky bit, matching Passenger-style helper sockets, so
// any uid can connect. Who may unlink or rename the path is governed by the
// containing directory's permissions, not by this call.
func ChmodWorldSticky(path string) error {
	return unix.Chmod(path, 0777|unix.S_ISVTX)
}

// IgnoreSIGPIPE makes broken-pipe writes surface as ordinary write errors
// instead of killing the process, once, for the remaining process lifetime.
func IgnoreSIGPIPE() {
	signal.Ignore(syscall.SIGPIPE)
}
