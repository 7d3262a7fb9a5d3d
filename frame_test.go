// Copyright (c) 2026 The passhelper Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Unit tests for the frame parser.

package passhelper

import "testing"

func buildFrame(headers map[string]string, order []string, body string) string {
	blob := ""
	for _, k := range order {
		blob += k + "\x00" + headers[k] + "\x00"
	}
	frame := itoa(len(blob)) + ":" + blob + ","
	return frame + body
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func feedInChunks(t *testing.T, data []byte, chunkSize int) (*FrameParser, int) {
	t.Helper()
	p := NewFrameParser()
	total := 0
	for total < len(data) && p.AcceptingInput() {
		end := total + chunkSize
		if end > len(data) {
			end = len(data)
		}
		total += p.Feed(data[total:end])
	}
	return p, total
}

func TestFrameParserHappyPath(t *testing.T) {
	frame := buildFrame(map[string]string{"DOCUMENT_ROOT": "/app/public"}, []string{"DOCUMENT_ROOT"}, "")
	for _, chunkSize := range []int{1, 2, 3, 7, 64, 4096} {
		p, consumed := feedInChunks(t, []byte(frame), chunkSize)
		if !p.Done() {
			t.Fatalf("chunkSize=%d: parser not done, state error=%v", chunkSize, p.Errored())
		}
		if consumed != len(frame) {
			t.Fatalf("chunkSize=%d: consumed=%d want=%d", chunkSize, consumed, len(frame))
		}
		if v, ok := p.Header("DOCUMENT_ROOT"); !ok || v != "/app/public" {
			t.Fatalf("chunkSize=%d: header lookup = %q, %v", chunkSize, v, ok)
		}
	}
}

func TestFrameParserPartialBodyTail(t *testing.T) {
	frame := buildFrame(map[string]string{"DOCUMENT_ROOT": "/r", "CONTENT_LENGTH": "11"},
		[]string{"DOCUMENT_ROOT", "CONTENT_LENGTH"}, "hello world")
	p := NewFrameParser()
	data := []byte(frame)
	consumed := p.Feed(data)
	if !p.Done() {
		t.Fatalf("parser did not complete in one feed")
	}
	tail := data[consumed:]
	if string(tail) != "hello world" {
		t.Fatalf("partial body = %q, want %q", tail, "hello world")
	}
}

func TestFrameParserDuplicateKeyFirstWins(t *testing.T) {
	blob := "A\x001\x00A\x002\x00"
	frame := itoa(len(blob)) + ":" + blob + ","
	p := NewFrameParser()
	p.Feed([]byte(frame))
	if !p.Done() {
		t.Fatalf("parser not done")
	}
	if v, ok := p.Header("A"); !ok || v != "1" {
		t.Fatalf("Header(A) = %q, %v, want 1, true", v, ok)
	}
}

func TestFrameParserAbsentKey(t *testing.T) {
	frame := buildFrame(map[string]string{"DOCUMENT_ROOT": "/r"}, []string{"DOCUMENT_ROOT"}, "")
	p := NewFrameParser()
	p.Feed([]byte(frame))
	if v, ok := p.Header("CONTENT_LENGTH"); ok || v != "" {
		t.Fatalf("Header(CONTENT_LENGTH) = %q, %v, want \"\", false", v, ok)
	}
}

func TestFrameParserMalformed(t *testing.T) {
	cases := map[string]string{
		"no colon":              "16DOCUMENT_ROOT\x00/r\x00,",
		"leading zero":          "016:DOCUMENT_ROOT\x00,",
		"missing comma":         "17:DOCUMENT_ROOT\x00/r\x00;",
		"non-digit length":      "1x:DOCUMENT_ROOT\x00/r\x00,",
		"empty length no digit": ":,",
	}
	for name, frame := range cases {
		t.Run(name, func(t *testing.T) {
			p := NewFrameParser()
			p.Feed([]byte(frame))
			if p.Done() {
				t.Fatalf("parser reached DONE on malformed input %q", frame)
			}
			if !p.Errored() {
				t.Fatalf("parser did not report ERROR on malformed input %q (state accepting=%v)", frame, p.AcceptingInput())
			}
		})
	}
}

func TestFrameParserOversizedLength(t *testing.T) {
	p := NewFrameParser()
	p.Feed([]byte("999999:"))
	if !p.Errored() {
		t.Fatalf("expected ERROR for length exceeding MaxFrameSize")
	}
}

func TestFrameParserZeroLengthHeader(t *testing.T) {
	p := NewFrameParser()
	consumed := p.Feed([]byte("0:,body"))
	if !p.Done() {
		t.Fatalf("parser not done on zero-length header frame")
	}
	if consumed != 3 {
		t.Fatalf("consumed = %d, want 3", consumed)
	}
}
