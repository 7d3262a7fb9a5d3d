// Copyright (c) 2026 The passhelper Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Package passhelper implements the helper broker: it accepts framed
// requests from a front-end HTTP server over a Unix domain socket,
// authenticates them, checks out a backend worker session from an external
// application pool, proxies the request and response, and rewrites the
// backend's raw response into an HTTP/1.1 response.
package passhelper

import (
	"fmt"
	"os"
)

// PasswordLen is the fixed length of the shared secret exchanged on the
// admin pipe and on every client connection.
const PasswordLen = 64

// MaxFrameSize bounds the SCGI-style header frame's declared length. A
// front end that needs a larger header block is not supported.
const MaxFrameSize = 128 << 10 // 128 KiB

// codeBug is the exit code for invariant violations.
const codeBug = 20

// fatalBug logs an invariant violation and aborts the process. It must only
// be reached for conditions that indicate a bug in the broker itself, never
// for anything a remote peer can trigger. Startup failures are not routed
// here; they are returned as ordinary errors from NewBroker and exited with
// code 1 by the caller.
func fatalBug(v ...any) {
	fmt.Fprint(os.Stderr, "[BUG] ")
	fmt.Fprintln(os.Stderr, v...)
	os.Exit(codeBug)
}
