// Copyright (c) 2026 The passhelper Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package sysutil

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestOwnedFdClosesExactlyOnceOnLastDrop(t *testing.T) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	readFd := fds[0]
	writeFd := fds[1]
	defer unix.Close(writeFd)

	owned := NewOwnedFd(readFd)
	dup := owned.Dup()

	if err := owned.Close(); err != nil {
		t.Fatalf("first Close returned %v, want nil (dup still holds a reference)", err)
	}

	// The fd must still be open while dup is alive.
	if _, err := unix.Write(writeFd, []byte("x")); err != nil {
		t.Fatalf("write to still-open pipe failed: %v", err)
	}
	var buf [1]byte
	if n, err := unix.Read(readFd, buf[:]); err != nil || n != 1 {
		t.Fatalf("read from still-open fd failed: n=%d err=%v", n, err)
	}

	if err := dup.Close(); err != nil {
		t.Fatalf("final Close returned %v", err)
	}

	if _, err := unix.Read(readFd, buf[:]); err != unix.EBADF {
		t.Fatalf("Read after final Close = %v, want EBADF", err)
	}
}

func TestOwnedFdCloseIsIdempotentPerGroup(t *testing.T) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer unix.Close(fds[1])

	owned := NewOwnedFd(fds[0])
	if err := owned.Close(); err != nil {
		t.Fatalf("Close returned %v", err)
	}
	if err := owned.Close(); err != nil {
		t.Fatalf("second Close on an already-closed group returned %v, want cached nil", err)
	}
}

func TestOwnedFdDupSharesFd(t *testing.T) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer unix.Close(fds[1])
	defer unix.Close(fds[0])

	owned := NewOwnedFd(fds[0])
	dup := owned.Dup()
	if dup.Fd() != owned.Fd() {
		t.Fatalf("Dup().Fd() = %d, want %d", dup.Fd(), owned.Fd())
	}
}
