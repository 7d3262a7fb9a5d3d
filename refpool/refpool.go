// Copyright (c) 2026 The passhelper Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Package refpool is a minimal, single-backend stand-in for the real
// application pool (spawning, caching, idle-eviction and per-app
// concurrency limits are out of scope here). It exists only so
// cmd/passhelper has something to dial against out of the box; production
// deployments supply their own passhelper.Pool wired to a real application
// pool.
package refpool

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/hexbroker/passhelper"
)

// Pool dials Addr fresh for every Checkout; it does no spawning, caching or
// per-app isolation of its own.
type Pool struct {
	Network string // "unix" or "tcp"
	Addr    string
	Timeout time.Duration
}

// Checkout implements passhelper.Pool.
func (p *Pool) Checkout(ctx context.Context, opts passhelper.PoolOptions) (passhelper.Session, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	conn, err := net.DialTimeout(p.Network, p.Addr, timeout)
	if err != nil {
		return nil, &passhelper.SpawnFailure{
			Message: fmt.Sprintf("refpool: dial %s %s: %v", p.Network, p.Addr, err),
		}
	}
	return &session{conn: conn}, nil
}

// session adapts a net.Conn to passhelper.Session: the request side is
// conn's writer, the response side is conn's reader, and half-close is a
// best-effort CloseWrite (falling back to nothing on connection kinds that
// don't support it).
type session struct {
	conn net.Conn
}

func (s *session) SendHeaders(blob []byte) error    { _, err := s.conn.Write(blob); return err }
func (s *session) SendBodyBlock(chunk []byte) error { _, err := s.conn.Write(chunk); return err }
func (s *session) Stream() passhelper.ResponseStream { return s.conn }
func (s *session) Close() error                     { return s.conn.Close() }

func (s *session) ShutdownWriter() error {
	type writeCloser interface{ CloseWrite() error }
	if wc, ok := s.conn.(writeCloser); ok {
		return wc.CloseWrite()
	}
	return nil
}
