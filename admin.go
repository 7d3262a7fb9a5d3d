// Copyright (c) 2026 The passhelper Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// The admin pipe handshake: the parent process writes a fixed-length shared
// secret once at startup, then later either writes any single byte or
// closes its end to signal shutdown. The pipe is an inherited descriptor
// wrapped in a sysutil.OwnedFd so the handshake and the shutdown waiter can
// hold it independently without coordinating close ordering.

package passhelper

import (
	"io"

	"github.com/hexbroker/passhelper/sysutil"
)

// ReadAdminSecret performs the first use of the admin pipe: read exactly
// PasswordLen bytes. A short read is a startup failure.
func ReadAdminSecret(pipe *sysutil.OwnedFd) ([PasswordLen]byte, error) {
	var secret [PasswordLen]byte
	if _, err := io.ReadFull(pipe, secret[:]); err != nil {
		return secret, err
	}
	return secret, nil
}

// WaitForShutdown blocks on the admin pipe for the shutdown signal: any
// byte arriving, or EOF, means "shut down".
func WaitForShutdown(pipe *sysutil.OwnedFd) {
	var b [1]byte
	pipe.Read(b[:]) // EOF or any byte: both mean shutdown; the error itself is not reported further
}
