// Copyright (c) 2026 The passhelper Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// The worker accept loop: accept, dispatch, check for shutdown between
// iterations. N fixed workers all call accept on the same listener and let
// the kernel arbitrate, rather than one loop dispatching to a goroutine
// pool.

package passhelper

import (
	"context"
	"errors"
	"net"

	"github.com/rs/xid"
)

// Worker owns no state of its own beyond an id; the listener, secret and
// pool are all borrowed from the Broker.
type Worker struct {
	ID       int
	Listener *net.UnixListener
	Proxy    *Proxy
}

// run is the worker's loop: accept -> proxy.Handle -> close, isolating
// per-connection failures. It returns only when ctx is cancelled (the
// Broker is shutting down); an accept failure that is not shutdown-related
// is treated as an invariant violation and aborts the process.
func (w *Worker) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := w.Listener.AcceptUnix()
		if err != nil {
			if ctx.Err() != nil {
				return // Broker.Shutdown closed the listener; this is expected.
			}
			fatalBug("worker", w.ID, "accept failed:", err)
		}

		w.Proxy.Metrics.Accepted.Inc()
		connID := xid.New()
		w.serveOne(ctx, conn, connID)
	}
}

func (w *Worker) serveOne(ctx context.Context, conn *net.UnixConn, connID xid.ID) {
	defer conn.Close()

	w.Proxy.Metrics.Busy.Inc()
	defer w.Proxy.Metrics.Busy.Dec()

	// A shallow copy scoped to this connection lets every log line Handle
	// emits carry "conn" without threading connID through every call.
	proxy := *w.Proxy
	if w.Proxy.Logger != nil {
		proxy.Logger = w.Proxy.Logger.With("conn", connID.String())
	}

	err := proxy.Handle(ctx, conn)
	if err == nil {
		return
	}
	if errors.Is(err, ErrWorkerCancelled) {
		// Expected on shutdown; do not log as a failure.
		return
	}
	fatalBug("worker", w.ID, "conn", connID, "unhandled error from Proxy.Handle:", err)
}
