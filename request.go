// Copyright (c) 2026 The passhelper Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package passhelper

import (
	"fmt"
	"path/filepath"
	"strconv"
)

// buildPoolOptions derives PoolOptions from the parsed frame header.
// documentRoot must already be known non-empty; the caller validates its
// presence before calling this.
//
// AppRoot is filepath.Join(documentRoot, "..") passed through EvalSymlinks.
// Join applies the ".." lexically first, so DOCUMENT_ROOT itself need not
// exist and a symlink at its last path component is not followed; symlinks
// in the directories above it are resolved, so two DOCUMENT_ROOTs whose
// parents differ only by such a hop give the same AppRoot. A parent
// directory that doesn't exist on disk is a per-request error, not a broker
// bug.
func buildPoolOptions(parser *FrameParser, documentRoot string) (PoolOptions, error) {
	appRoot, err := filepath.EvalSymlinks(filepath.Join(documentRoot, ".."))
	if err != nil {
		return PoolOptions{}, fmt.Errorf("canonicalize app root: %w", err)
	}
	opts := PoolOptions{AppRoot: appRoot}
	if v, ok := parser.Header(HeaderUseGlobalQueue); ok {
		opts.UseGlobalQueue = v == "true"
	}
	if v, ok := parser.Header(HeaderEnvironment); ok {
		opts.Environment = v
	}
	if v, ok := parser.Header(HeaderSpawnMethod); ok {
		opts.SpawnMethod = v
	}
	return opts, nil
}

// contentLengthOf parses CONTENT_LENGTH, defaulting to 0 on an absent or
// non-numeric value (mirroring atol's lenient behavior on garbage input).
// The caller is expected to log a warning when valid is false and the
// header was present but unparsable.
func contentLengthOf(parser *FrameParser) (n int, headerPresent bool, valid bool) {
	v, ok := parser.Header(HeaderContentLength)
	if !ok {
		return 0, false, true
	}
	cl, err := strconv.Atoi(v)
	if err != nil || cl < 0 {
		return 0, true, false
	}
	return cl, true, true
}
