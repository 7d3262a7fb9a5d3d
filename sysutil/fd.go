// Copyright (c) 2026 The passhelper Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Owned, reference-counted file descriptors.

package sysutil

import (
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// OwnedFd wraps a raw file descriptor with shared ownership: the underlying
// handle is closed exactly once, when the last copy is dropped. Copies are
// made with Dup; the zero value is not usable.
type OwnedFd struct {
	state *fdState
}

type fdState struct {
	fd     int
	refs   atomic.Int32
	mu     sync.Mutex
	closed bool
	err    error
}

// NewOwnedFd takes ownership of fd. The caller must not close fd directly
// afterwards; use the returned OwnedFd (or a Dup of it) instead.
func NewOwnedFd(fd int) *OwnedFd {
	s := &fdState{fd: fd}
	s.refs.Store(1)
	return &OwnedFd{state: s}
}

// Fd returns the raw handle. The returned value must not be used after the
// last copy of this OwnedFd (or any Dup of it) is dropped.
func (o *OwnedFd) Fd() int {
	return o.state.fd
}

// Dup returns a new copy sharing the same underlying handle. The handle is
// closed only when every copy, original and dups alike, has been dropped.
func (o *OwnedFd) Dup() *OwnedFd {
	o.state.refs.Add(1)
	return &OwnedFd{state: o.state}
}

// Read reads from the underlying handle, retrying on EINTR. A zero-length
// read with no error is reported as io.EOF so OwnedFd satisfies io.Reader
// for stream-like descriptors (pipes, sockets).
func (o *OwnedFd) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(o.state.fd, p)
		if err == unix.EINTR {
			continue
		}
		if n == 0 && err == nil {
			return 0, io.EOF
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

// Close drops this copy. If it was the last copy, the underlying handle is
// closed and any error from the close syscall is returned. Calling it twice
// on the same *OwnedFd is a bug in the caller: each call drops one shared
// reference, so a repeated Close can release a reference another copy still
// relies on. The fd itself is closed only once for the whole group, and
// later calls return the cached result of that close.
func (o *OwnedFd) Close() error {
	if o.state.refs.Add(-1) > 0 {
		return nil
	}
	o.state.mu.Lock()
	defer o.state.mu.Unlock()
	if o.state.closed {
		return o.state.err
	}
	o.state.closed = true
	o.state.err = closeFd(o.state.fd)
	return o.state.err
}
