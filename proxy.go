// Copyright (c) 2026 The passhelper Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// The request proxy pipeline: authenticate, parse the frame, check out a
// backend session, forward the request, and rewrite the response.

package passhelper

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"pkt.systems/pslog"
)

const (
	readBufSize    = 16 << 10 // 16 KiB
	forwardBufSize = 32 << 10 // 32 KiB
)

// Proxy pumps one client<->backend exchange per Handle call.
type Proxy struct {
	Secret  []byte // PasswordLen bytes, compared in constant time
	Pool    Pool
	Metrics *Metrics
	Logger  pslog.Logger
}

// Handle runs one client<->backend exchange to completion. It returns nil
// once the connection is done (the caller should close conn and continue);
// it returns ErrWorkerCancelled if ctx was cancelled while Handle was in
// progress, which the caller must propagate upward instead of swallowing.
func (p *Proxy) Handle(ctx context.Context, conn net.Conn) error {
	cancelers := watchCancellation(ctx, conn)
	defer cancelers.stop()

	err := p.handle(ctx, conn, cancelers)
	if ctx.Err() != nil {
		return ErrWorkerCancelled
	}
	return err
}

// cancelGroup closes every registered io.Closer as soon as ctx is done, so
// blocking reads and writes anywhere in the exchange unblock promptly. conn
// is registered up front; the backend session is added once it exists,
// since it isn't checked out until partway through handle.
type cancelGroup struct {
	mu      sync.Mutex
	closers []io.Closer
	fired   bool
	stopCh  chan struct{}
}

// watchCancellation starts the goroutine that fires the group when ctx is
// done, with conn already registered.
func watchCancellation(ctx context.Context, conn net.Conn) *cancelGroup {
	cg := &cancelGroup{closers: []io.Closer{conn}, stopCh: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
			cg.fire()
		case <-cg.stopCh:
		}
	}()
	return cg
}

// add registers c to be closed on cancellation. If ctx has already fired, c
// is closed immediately instead of being added to the list.
func (cg *cancelGroup) add(c io.Closer) {
	cg.mu.Lock()
	defer cg.mu.Unlock()
	if cg.fired {
		c.Close()
		return
	}
	cg.closers = append(cg.closers, c)
}

func (cg *cancelGroup) fire() {
	cg.mu.Lock()
	defer cg.mu.Unlock()
	cg.fired = true
	for _, c := range cg.closers {
		c.Close()
	}
}

// stop retires the watcher goroutine once handle has returned on its own,
// without waiting on ctx.
func (cg *cancelGroup) stop() {
	close(cg.stopCh)
}

func (p *Proxy) handle(ctx context.Context, conn net.Conn, cancelers *cancelGroup) error {
	// Step 1: authenticate.
	secret := make([]byte, PasswordLen)
	if _, err := io.ReadFull(conn, secret); err != nil {
		p.logDebug("auth read failed", "error", err)
		return nil
	}
	if subtle.ConstantTimeCompare(secret, p.Secret) != 1 {
		return p.fail(newProtocolError("authentication failed"))
	}

	// Step 2: parse the frame header.
	parser := NewFrameParser()
	readBuf := make([]byte, readBufSize)
	var partialBody []byte
	for parser.AcceptingInput() {
		n, err := conn.Read(readBuf)
		if n > 0 {
			consumed := parser.Feed(readBuf[:n])
			if parser.Done() {
				partialBody = append(partialBody, readBuf[consumed:n]...)
				break
			}
			if parser.Errored() {
				break
			}
		}
		if err != nil {
			break
		}
	}
	if !parser.Done() {
		return p.fail(newProtocolError("frame parse failed"))
	}

	// Step 3: validate required headers.
	documentRoot, ok := parser.Header(HeaderDocumentRoot)
	if !ok || documentRoot == "" {
		return p.fail(newProtocolError("missing DOCUMENT_ROOT"))
	}

	// Step 4: build pool options.
	opts, err := buildPoolOptions(parser, documentRoot)
	if err != nil {
		return p.fail(newProtocolError(err.Error()))
	}

	// Step 5: check out a session.
	session, err := p.Pool.Checkout(ctx, opts)
	if err != nil {
		var spawnErr *SpawnFailure
		if errors.As(err, &spawnErr) {
			writeSpawnFailure(conn, spawnErr)
			return p.fail(spawnErr)
		}
		return p.fail(newTransientIOError("pool checkout", err))
	}
	defer session.Close()
	cancelers.add(session)

	// Step 6: send headers.
	if err := session.SendHeaders(parser.HeaderData()); err != nil {
		return p.fail(newTransientIOError("send headers", err))
	}

	// Step 7: send body.
	contentLength, present, valid := contentLengthOf(parser)
	if present && !valid {
		p.logWarn("non-numeric CONTENT_LENGTH, treating as 0")
	}
	if err := p.forwardBody(conn, session, partialBody, contentLength); err != nil {
		return p.fail(newTransientIOError("body forward", err))
	}

	// Step 8: half-close.
	if err := session.ShutdownWriter(); err != nil {
		return p.fail(newTransientIOError("shutdown writer", err))
	}

	// Step 9: forward the response.
	if err := p.forwardResponse(conn, session.Stream()); err != nil {
		return p.fail(newTransientIOError("response forward", err))
	}
	return nil
}

// fail classifies err via the ProtocolViolation/TransientIO/SpawnFailure
// taxonomy, records it against the matching Failed{reason} counter, logs it,
// and always returns nil: per-connection failures end the exchange, they do
// not propagate as worker bugs.
func (p *Proxy) fail(err error) error {
	switch {
	case IsProtocolViolation(err):
		p.recordFailure(reasonProtocol)
	case IsSpawnFailure(err):
		p.recordFailure(reasonSpawn)
	case IsTransientIO(err):
		p.recordFailure(reasonIO)
	default:
		p.recordFailure(reasonIO)
	}
	p.logWarn(err.Error())
	return nil
}

// forwardBody sends the partial body captured while parsing the frame,
// then reads from conn until contentLength bytes total have been sent or
// the client closes early.
func (p *Proxy) forwardBody(conn net.Conn, session Session, partialBody []byte, contentLength int) error {
	sent := 0
	if len(partialBody) > 0 {
		take := len(partialBody)
		if take > contentLength {
			take = contentLength
		}
		if take > 0 {
			if err := session.SendBodyBlock(partialBody[:take]); err != nil {
				return err
			}
			sent += take
			p.addBytes("request", take)
		}
	}
	buf := make([]byte, readBufSize)
	for sent < contentLength {
		want := contentLength - sent
		if want > len(buf) {
			want = len(buf)
		}
		n, err := conn.Read(buf[:want])
		if n > 0 {
			if werr := session.SendBodyBlock(buf[:n]); werr != nil {
				return werr
			}
			sent += n
			p.addBytes("request", n)
		}
		if err != nil {
			if err == io.EOF {
				return nil // client EOF before CL bytes: stop, not an error
			}
			return err
		}
	}
	return nil
}

// forwardResponse feeds the backend stream to the status extractor, writes
// the synthesized HTTP/1.1 status line plus the extractor's buffered bytes,
// then pumps the rest of the stream verbatim.
func (p *Proxy) forwardResponse(conn net.Conn, backend io.Reader) error {
	extractor := NewStatusExtractor()
	buf := make([]byte, forwardBufSize)
	for !extractor.Done() {
		n, err := backend.Read(buf)
		if n > 0 {
			extractor.Feed(buf[:n])
		}
		if err != nil {
			if extractor.Done() {
				break
			}
			if err == io.EOF {
				return nil // backend closed before completing headers: nothing to send back
			}
			return err
		}
	}

	if _, err := io.WriteString(conn, "HTTP/1.1 "+extractor.StatusLine()+"\r\n"); err != nil {
		return err
	}
	buffered := extractor.BufferedBytes()
	if len(buffered) > 0 {
		if _, err := conn.Write(buffered); err != nil {
			return err
		}
		p.addBytes("response", len(buffered))
	}

	n, err := io.CopyBuffer(conn, backend, buf)
	p.addBytes("response", int(n))
	if err != nil && err != io.EOF {
		return err
	}
	return nil
}

// writeSpawnFailure sends the 500 response for spawnErr. A write failure
// here just closes the connection; the caller still records the spawn
// failure itself regardless of whether the response made it out.
func writeSpawnFailure(conn net.Conn, spawnErr *SpawnFailure) {
	body := spawnErr.Page()
	head := fmt.Sprintf(
		"HTTP/1.1 500 Internal Server Error\r\n"+
			"Status: 500 Internal Server Error\r\n"+
			"Connection: close\r\n"+
			"Content-Type: text/html; charset=utf-8\r\n"+
			"Content-Length: %d\r\n"+
			"\r\n", len(body))
	if _, err := io.WriteString(conn, head); err != nil {
		return
	}
	io.WriteString(conn, body)
}

func (p *Proxy) recordFailure(reason string) {
	if p.Metrics != nil {
		p.Metrics.Failed.WithLabelValues(reason).Inc()
	}
}

func (p *Proxy) addBytes(direction string, n int) {
	if p.Metrics != nil && n > 0 {
		p.Metrics.BytesForwarded.WithLabelValues(direction).Add(float64(n))
	}
}

func (p *Proxy) logWarn(msg string, kv ...any) {
	if p.Logger != nil {
		p.Logger.Warn(msg, kv...)
	}
}
func (p *Proxy) logDebug(msg string, kv ...any) {
	if p.Logger != nil {
		p.Logger.Debug(msg, kv...)
	}
}
