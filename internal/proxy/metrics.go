// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package proxy

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Call status labels.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Flush trigger labels.
const (
	TriggerCount     = "count"
	TriggerDuration  = "duration"
	TriggerHeartbeat = "heartbeat"
	TriggerDrain     = "drain"
	TriggerError     = "error"
)

// Metrics instruments dispatch and streaming. A nil *Metrics records nothing.
type Metrics struct {
	calls         *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	streamBatches *prometheus.CounterVec
	streamMetrics prometheus.Counter
	activeStreams prometheus.Gauge
}

// NewMetrics creates the proxy metrics and registers them with reg.
// Panics if registration fails (following prometheus convention).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snap_plugin_calls_total",
				Help: "Total number of dispatched plugin calls",
			},
			[]string{"method", "status"},
		),
		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "snap_plugin_call_duration_seconds",
				Help:    "Plugin call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		streamBatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snap_plugin_stream_batches_total",
				Help: "Total number of stream batches sent, by flush trigger",
			},
			[]string{"trigger"},
		),
		streamMetrics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snap_plugin_stream_metrics_total",
			Help: "Total number of metrics sent on stream calls",
		}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snap_plugin_active_streams",
			Help: "Number of stream calls in progress",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.calls, m.callDuration, m.streamBatches, m.streamMetrics, m.activeStreams)
	}
	return m
}

func (m *Metrics) recordCall(method string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.calls.WithLabelValues(method, status).Inc()
	m.callDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) recordBatch(trigger string, size int) {
	if m == nil {
		return
	}
	m.streamBatches.WithLabelValues(trigger).Inc()
	m.streamMetrics.Add(float64(size))
}

func (m *Metrics) streamStarted() {
	if m != nil {
		m.activeStreams.Inc()
	}
}

func (m *Metrics) streamEnded() {
	if m != nil {
		m.activeStreams.Dec()
	}
}
