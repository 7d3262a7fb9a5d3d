// Copyright (c) 2026 The passhelper Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Command passhelper is the helper broker process, invoked by its parent
// with a fixed positional argument protocol: read the admin secret,
// bind the request socket, and run until the admin pipe signals shutdown.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hexbroker/passhelper"
	"github.com/hexbroker/passhelper/refpool"
	"github.com/hexbroker/passhelper/sysutil"
)

// usage documents the 7 required positional arguments, in order.
const usage = "usage: passhelper <productRoot> <interpreterPath> <adminFd> <logLevel> <maxPoolSize> <maxInstancesPerApp> <poolIdleTime>"

func main() {
	sysutil.IgnoreSIGPIPE()

	cfg, adminPipe, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, usage)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := passhelper.NewLogger(os.Stderr, passhelper.LevelFromInt(cfg.logLevel))

	// The handshake holds its own reference; the original is kept for the
	// shutdown wait and closed at exit.
	handshake := adminPipe.Dup()
	secret, err := passhelper.ReadAdminSecret(handshake)
	handshake.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "read admin secret:", err)
		os.Exit(1)
	}

	socketPath := filepath.Join(os.TempDir(), "helper_server.sock")
	if dir := os.Getenv("PASSENGER_TEMP_DIR"); dir != "" {
		socketPath = filepath.Join(dir, "helper_server.sock")
	}

	pool := &refpool.Pool{
		Network: envOr("PASSHELPER_BACKEND_NETWORK", "tcp"),
		Addr:    envOr("PASSHELPER_BACKEND_ADDR", "127.0.0.1:0"),
	}

	broker, err := passhelper.NewBroker(passhelper.Config{
		SocketPath:  socketPath,
		MaxPoolSize: cfg.maxPoolSize,
		Logger:      logger,
	}, secret, pool)
	if err != nil {
		fmt.Fprintln(os.Stderr, "startup failed:", err)
		os.Exit(1)
	}

	broker.Start(context.Background())
	passhelper.WaitForShutdown(adminPipe)
	broker.Shutdown()
	adminPipe.Close()
	os.Exit(0)
}

type cliConfig struct {
	productRoot        string
	interpreterPath    string
	logLevel           int
	maxPoolSize        int
	maxInstancesPerApp int
	poolIdleTime       int
}

// parseArgs reads the fixed positional argument list: this is not a
// human-facing CLI, it's a fixed wire contract with the parent process, so
// it is parsed by direct os.Args indexing rather than a flag-parsing
// library.
func parseArgs(args []string) (cliConfig, *sysutil.OwnedFd, error) {
	var cfg cliConfig
	if len(args) != 7 {
		return cfg, nil, fmt.Errorf("expected 7 arguments, got %d", len(args))
	}
	cfg.productRoot = args[0]
	cfg.interpreterPath = args[1]

	adminFd, err := strconv.Atoi(args[2])
	if err != nil {
		return cfg, nil, fmt.Errorf("adminFd: %w", err)
	}
	cfg.logLevel, err = strconv.Atoi(args[3])
	if err != nil {
		return cfg, nil, fmt.Errorf("logLevel: %w", err)
	}
	cfg.maxPoolSize, err = strconv.Atoi(args[4])
	if err != nil {
		return cfg, nil, fmt.Errorf("maxPoolSize: %w", err)
	}
	cfg.maxInstancesPerApp, err = strconv.Atoi(args[5])
	if err != nil {
		return cfg, nil, fmt.Errorf("maxInstancesPerApp: %w", err)
	}
	cfg.poolIdleTime, err = strconv.Atoi(args[6])
	if err != nil {
		return cfg, nil, fmt.Errorf("poolIdleTime: %w", err)
	}

	if adminFd < 0 {
		return cfg, nil, fmt.Errorf("adminFd %d is not a valid descriptor", adminFd)
	}
	return cfg, sysutil.NewOwnedFd(adminFd), nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
