// Copyright (c) 2026 The passhelper Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Structured logging, built on pkt.systems/pslog and threaded through the
// broker's components as a plain pslog.Logger value.

package passhelper

import (
	"io"
	"os"

	"pkt.systems/pslog"
)

// NewLogger builds the broker's root logger, writing structured lines to
// out at the given minimum level. Pass a negative level and no line is
// suppressed; callers map the CLI's integer log level argument onto a
// pslog.Level with LevelFromInt.
func NewLogger(out io.Writer, level pslog.Level) pslog.Logger {
	if out == nil {
		out = os.Stderr
	}
	return pslog.NewStructured(out).LogLevel(level)
}

// LevelFromInt maps the broker's integer logLevel positional argument onto a
// pslog.Level, clamping out-of-range values to the nearest defined level.
func LevelFromInt(n int) pslog.Level {
	switch {
	case n <= 0:
		return pslog.DebugLevel
	case n == 1:
		return pslog.InfoLevel
	case n == 2:
		return pslog.WarnLevel
	default:
		return pslog.ErrorLevel
	}
}
