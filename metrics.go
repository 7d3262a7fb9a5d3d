// Copyright (c) 2026 The passhelper Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// In-process counters for the connections this broker handles, exposed
// through a Prometheus registry the caller owns rather than the global
// default registry, so tests and multiple in-process instances stay
// isolated. Typically scraped by an external status reporter sidecar.

package passhelper

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the broker's counter bundle. The zero value is not usable;
// build one with NewMetrics.
type Metrics struct {
	Accepted       prometheus.Counter
	Failed         *prometheus.CounterVec
	Busy           prometheus.Gauge
	BytesForwarded *prometheus.CounterVec
}

// NewMetrics registers the broker's collectors on reg and returns the
// bundle. reg is typically a fresh *prometheus.Registry owned by the
// Broker, not the global default registry, so that tests can inspect it in
// isolation.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "passhelper_connections_accepted_total",
			Help: "Connections accepted by any worker.",
		}),
		Failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passhelper_connections_failed_total",
			Help: "Connections that ended in an error, by reason.",
		}, []string{"reason"}),
		Busy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "passhelper_workers_busy",
			Help: "Workers currently inside Proxy.Handle.",
		}),
		BytesForwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passhelper_bytes_forwarded_total",
			Help: "Bytes forwarded between client and backend, by direction.",
		}, []string{"direction"}),
	}
	reg.MustRegister(m.Accepted, m.Failed, m.Busy, m.BytesForwarded)
	return m
}

// failReason values recorded on Metrics.Failed.
const (
	reasonProtocol = "protocol"
	reasonIO       = "io"
	reasonSpawn    = "spawn"
)
