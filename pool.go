// Copyright (c) 2026 The passhelper Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// The external application pool is consumed only through this narrow
// interface rather than a concrete backend type. Spawning, caching,
// idle-eviction and per-app concurrency limits all live on the other side
// of this boundary.

package passhelper

import "context"

// PoolOptions are the parameters this broker derives from request headers
// and passes to Pool.Checkout. Fields left at their zero value take the
// pool's own defaults.
type PoolOptions struct {
	AppRoot        string // EvalSymlinks(filepath.Join(DOCUMENT_ROOT, "..")), see buildPoolOptions
	UseGlobalQueue bool   // PASSENGER_USE_GLOBAL_QUEUE == "true"
	Environment    string // PASSENGER_ENVIRONMENT
	SpawnMethod    string // PASSENGER_SPAWN_METHOD
}

// Session is one checked-out conversation with a backend worker, valid for
// exactly one request.
type Session interface {
	// SendHeaders writes the raw header blob to the worker's request side.
	SendHeaders(blob []byte) error
	// SendBodyBlock writes one chunk of the request body.
	SendBodyBlock(chunk []byte) error
	// ShutdownWriter half-closes the request side, signaling end of request.
	ShutdownWriter() error
	// Stream returns the readable side of the worker's response.
	Stream() ResponseStream
	// Close releases the session back to (or out of) the pool.
	Close() error
}

// ResponseStream is the minimal read side of a Session. Its method set is
// the same as io.Reader's, so any io.Reader satisfies it.
type ResponseStream interface {
	Read(p []byte) (n int, err error)
}

// Pool is the external application pool, checked out from once per request.
type Pool interface {
	Checkout(ctx context.Context, opts PoolOptions) (Session, error)
}

// SpawnFailure is the structured error a Pool may return from Checkout when
// it cannot produce a usable backend worker. The proxy translates it into a
// synthesized 500 response (see proxy.go).
type SpawnFailure struct {
	Message string // human-readable message, always present
	HTML    string // pre-rendered HTML diagnostic page, optional
}

func (e *SpawnFailure) Error() string { return e.Message }

// Page returns the body to send back to the client: the HTML page if the
// pool supplied one, else the plain message.
func (e *SpawnFailure) Page() string {
	if e.HTML != "" {
		return e.HTML
	}
	return e.Message
}
