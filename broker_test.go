// Copyright (c) 2026 The passhelper Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Broker lifecycle tests: shutdown must complete promptly even while every
// worker is parked in accept.

package passhelper

import (
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestBroker(t *testing.T) (*Broker, [PasswordLen]byte) {
	t.Helper()
	var secret [PasswordLen]byte
	for i := range secret {
		secret[i] = 'A'
	}
	socketPath := filepath.Join(t.TempDir(), "helper_server.sock")
	pool := &mockPool{session: &mockSession{response: strings.NewReader("Status: 200 OK\r\n\r\nok")}}
	b, err := NewBroker(Config{
		SocketPath:     socketPath,
		MaxPoolSize:    1,
		WorkersPerSlot: 2,
	}, secret, pool)
	if err != nil {
		t.Fatalf("NewBroker failed: %v", err)
	}
	return b, secret
}

func TestBrokerShutdownWhileWorkersIdle(t *testing.T) {
	b, _ := newTestBroker(t)
	b.Start(context.Background())

	done := make(chan struct{})
	go func() {
		b.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not return within 2s while workers were parked in accept")
	}
}

func TestBrokerShutdownIsIdempotent(t *testing.T) {
	b, _ := newTestBroker(t)
	b.Start(context.Background())
	b.Shutdown()
	b.Shutdown() // must not block or panic on a second call
}

func TestBrokerAcceptsAndHandlesConnection(t *testing.T) {
	b, secret := newTestBroker(t)
	b.Start(context.Background())
	defer b.Shutdown()

	socketPath := b.listener.Addr().String()
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("dial %s: %v", socketPath, err)
	}
	defer conn.Close()

	if _, err := conn.Write(secret[:]); err != nil {
		t.Fatalf("write secret: %v", err)
	}
	documentRoot := filepath.Join(t.TempDir(), "public")
	frame := buildFrame(map[string]string{"DOCUMENT_ROOT": documentRoot}, []string{"DOCUMENT_ROOT"}, "")
	if _, err := conn.Write([]byte(frame)); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if n == 0 {
		t.Fatal("expected a response from the broker's worker")
	}
}
