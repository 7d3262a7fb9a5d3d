// Copyright (c) 2026 The passhelper Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Per-connection error taxonomy. protocolError/transientIOError are
// constructed inside Proxy.handle, SpawnFailure comes from the Pool, and all
// three are classified by Proxy.fail; none of them ever escape Proxy.Handle
// itself. Only ErrWorkerCancelled does, and Worker.serveOne absorbs it.

package passhelper

import (
	"errors"
	"fmt"
)

// ErrWorkerCancelled signals that the Broker asked this worker to stop; it is
// returned by Proxy.Handle, Worker.serveOne treats it as the expected end of
// the connection, and it must never be logged as a failure.
var ErrWorkerCancelled = errors.New("worker cancelled")

// protocolError is a request that violated the wire protocol: a bad frame,
// a missing required header, or a failed authentication attempt.
type protocolError struct {
	reason string
}

func (e *protocolError) Error() string { return "protocol violation: " + e.reason }

// newProtocolError reports a ProtocolViolation.
func newProtocolError(reason string) error { return &protocolError{reason: reason} }

// transientIOError wraps a read/write failure (EOF or kernel error) that
// occurred mid-request.
type transientIOError struct {
	op  string
	err error
}

func (e *transientIOError) Error() string { return fmt.Sprintf("%s: %v", e.op, e.err) }
func (e *transientIOError) Unwrap() error { return e.err }

// newTransientIOError reports TransientIO.
func newTransientIOError(op string, err error) error {
	return &transientIOError{op: op, err: err}
}

// IsProtocolViolation reports whether err (or something it wraps) is a
// ProtocolViolation.
func IsProtocolViolation(err error) bool {
	var pe *protocolError
	return errors.As(err, &pe)
}

// IsTransientIO reports whether err (or something it wraps) is TransientIO.
func IsTransientIO(err error) bool {
	var te *transientIOError
	return errors.As(err, &te)
}

// IsSpawnFailure reports whether err (or something it wraps) is the pool's
// structured SpawnFailure.
func IsSpawnFailure(err error) bool {
	var sf *SpawnFailure
	return errors.As(err, &sf)
}
