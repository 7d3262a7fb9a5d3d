// Copyright (c) 2026 The passhelper Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Backend response status-line extraction: a backend may emit a
// "Status: <code> <reason>" header; absent that, the response is assumed to
// be 200 OK.

package passhelper

import "bytes"

const defaultStatusLine = "200 OK"

// StatusExtractor scans a backend response stream for the status line,
// buffering everything it has seen so far. Once Feed reports done, the
// caller reads StatusLine and BufferedBytes (which includes any body bytes
// that arrived in the same read as the end of the header block) and then
// streams the rest of the backend connection through verbatim.
type StatusExtractor struct {
	buf    []byte
	done   bool
	status string
}

// NewStatusExtractor returns a fresh, not-done extractor.
func NewStatusExtractor() *StatusExtractor {
	return &StatusExtractor{}
}

// Done reports whether the status line has already been determined. Feed
// must not be called again afterwards.
func (e *StatusExtractor) Done() bool { return e.done }

// Feed appends chunk to the internal buffer and checks whether the status
// line can now be determined. It reports done at most once per instance.
func (e *StatusExtractor) Feed(chunk []byte) {
	if e.done {
		fatalBug("statusline: Feed called after done")
	}
	e.buf = append(e.buf, chunk...)

	if status, ok := scanStatusHeader(e.buf); ok {
		e.status = status
		e.done = true
		return
	}
	if bytes.Contains(e.buf, []byte("\r\n\r\n")) {
		e.status = defaultStatusLine
		e.done = true
	}
}

// StatusLine returns the extracted (or defaulted) status line, valid once
// Done reports true.
func (e *StatusExtractor) StatusLine() string { return e.status }

// BufferedBytes returns every byte observed so far, including bytes of the
// response body that arrived in the same read as the end of the header
// block.
func (e *StatusExtractor) BufferedBytes() []byte { return e.buf }

// scanStatusHeader looks for a line of the form "Status: <line>\r\n" inside
// buf's header block. It reports ok only once the terminating CRLF of that
// specific line has actually been seen, so that a status value split across
// reads is not reported prematurely.
func scanStatusHeader(buf []byte) (string, bool) {
	lineStart := 0
	for lineStart < len(buf) {
		lineEnd := bytes.Index(buf[lineStart:], []byte("\r\n"))
		if lineEnd < 0 {
			return "", false // this line isn't complete yet
		}
		line := buf[lineStart : lineStart+lineEnd]
		if len(line) == 0 {
			return "", false // end of headers, no Status seen
		}
		if name, value, ok := splitHeaderLine(line); ok && equalFoldASCII(name, "Status") {
			return string(value), true
		}
		lineStart += lineEnd + 2
	}
	return "", false
}

func splitHeaderLine(line []byte) (name, value []byte, ok bool) {
	i := bytes.IndexByte(line, ':')
	if i < 0 {
		return nil, nil, false
	}
	name = line[:i]
	value = bytes.TrimLeft(line[i+1:], " \t")
	return name, value, true
}

func equalFoldASCII(a []byte, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ac, bc := a[i], b[i]
		if 'A' <= ac && ac <= 'Z' {
			ac += 'a' - 'A'
		}
		if 'A' <= bc && bc <= 'Z' {
			bc += 'a' - 'A'
		}
		if ac != bc {
			return false
		}
	}
	return true
}
