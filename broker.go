// Copyright (c) 2026 The passhelper Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Broker startup and shutdown sequencing: bind the listener, fan out a
// fixed worker set, and tear both down in order on shutdown.

package passhelper

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"pkt.systems/pslog"

	"github.com/hexbroker/passhelper/sysutil"
)

// Config carries the broker-side parameters the positional command-line
// arguments resolve to. The admin pipe fd is not part of it: the caller
// wraps that fd in a sysutil.OwnedFd for ReadAdminSecret and
// WaitForShutdown. productRoot, interpreterPath, maxInstancesPerApp and
// poolIdleTime have no field here.
type Config struct {
	SocketPath      string // "<tempdir>/helper_server.sock"
	MaxPoolSize     int
	WorkersPerSlot  int // multiplier applied to MaxPoolSize; defaults to 4
	Logger          pslog.Logger
	MetricsRegistry prometheus.Registerer // if nil, a fresh *prometheus.Registry is used
}

// Broker is the process-wide connection broker. There is exactly one
// instance per process.
type Broker struct {
	secret   [PasswordLen]byte
	pool     Pool
	logger   pslog.Logger
	metrics  *Metrics
	listener *net.UnixListener
	workers  []*Worker
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

// NewBroker binds the listener and builds the fixed worker set. It does not
// start the status reporter or block on the admin pipe (the caller does
// that with WaitForShutdown after NewBroker succeeds). Startup failures are
// returned, not exited directly, so callers can decide how to report them.
func NewBroker(cfg Config, secret [PasswordLen]byte, pool Pool) (*Broker, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.SocketPath), 0755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	registry := cfg.MetricsRegistry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	os.Remove(cfg.SocketPath) // UDS doesn't support SO_REUSEADDR; stale socket must go first
	listener, err := net.Listen("unix", cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", cfg.SocketPath, err)
	}
	unixListener, ok := listener.(*net.UnixListener)
	if !ok {
		listener.Close()
		fatalBug("net.Listen(\"unix\", ...) did not return a *net.UnixListener")
	}
	unixListener.SetUnlinkOnClose(true)
	if err := sysutil.ChmodWorldSticky(cfg.SocketPath); err != nil {
		listener.Close()
		return nil, fmt.Errorf("chmod %s: %w", cfg.SocketPath, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	metrics := NewMetrics(registry)

	workerCount := workersPerSlot(cfg) * cfg.MaxPoolSize
	if workerCount <= 0 {
		listener.Close()
		return nil, fmt.Errorf("computed worker count %d is not positive (maxPoolSize=%d)", workerCount, cfg.MaxPoolSize)
	}

	b := &Broker{
		secret:   secret,
		pool:     pool,
		logger:   logger,
		metrics:  metrics,
		listener: unixListener,
	}
	b.workers = make([]*Worker, workerCount)
	for i := range b.workers {
		b.workers[i] = &Worker{
			ID:       i,
			Listener: unixListener,
			Proxy: &Proxy{
				Secret:  secret[:],
				Pool:    pool,
				Metrics: metrics,
				Logger:  logger.With("component", "proxy", "worker", i),
			},
		}
	}
	return b, nil
}

func workersPerSlot(cfg Config) int {
	if cfg.WorkersPerSlot > 0 {
		return cfg.WorkersPerSlot
	}
	return 4 // worker-count = 4 x pool.max_size
}

// Start spawns the fixed worker set. It returns immediately; Shutdown
// blocks until every worker has returned.
func (b *Broker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	for _, w := range b.workers {
		w := w
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			w.run(ctx)
		}()
	}
	b.logger.Info("broker started",
		"workers", len(b.workers),
		"socket", b.listener.Addr().String(),
		"max_frame_size", humanize.IBytes(uint64(MaxFrameSize)),
	)
}

// Shutdown cancels every worker, closes the listener, and waits for all
// workers to return. It is safe to call more than once; the second call is
// a no-op.
func (b *Broker) Shutdown() {
	if b.cancel == nil {
		return
	}
	cancel := b.cancel
	b.cancel = nil
	cancel()
	b.listener.Close()
	b.wg.Wait()
	b.logger.Info("broker shut down")
}

// Metrics exposes the broker's counter bundle, mainly for tests and for an
// external status reporter to scrape.
func (b *Broker) Metrics() *Metrics { return b.metrics }
