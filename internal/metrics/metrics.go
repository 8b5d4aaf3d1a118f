// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics defines the prometheus metrics exported at the
// supervisor's health/metrics endpoint, and convenience helpers for
// recording them from the rest of the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/meshtastic/meshwatch/internal/ingest"
)

var (
	// ErrorsTotal counts single-message errors by kind, per the error
	// taxonomy in internal/ingest.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshwatch_errors_total",
			Help: "Count of errors by kind.",
		},
		[]string{"kind"},
	)

	EventsReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meshwatch_events_received_total",
			Help: "Total broker deliveries classified into zero or more domain events.",
		},
	)

	EventsAdmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshwatch_events_admitted_total",
			Help: "Count of events admitted into the priority queue, by kind.",
		},
		[]string{"kind"},
	)

	EventsDeduplicatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meshwatch_events_deduplicated_total",
			Help: "Count of events dropped as duplicates.",
		},
	)

	EventsRateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meshwatch_events_rate_limited_total",
			Help: "Count of events dropped by the rate limiter.",
		},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "meshwatch_queue_depth",
			Help: "Current queue depth by priority level.",
		},
		[]string{"priority"},
	)

	QueueUtilization = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meshwatch_queue_utilization_ratio",
			Help: "Queue depth as a fraction of capacity.",
		},
	)

	WriterBatchLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "meshwatch_writer_batch_latency_seconds",
			Help:    "Batch commit latency distribution.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	WriterDegraded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meshwatch_writer_degraded",
			Help: "1 if the batch writer is currently degraded, else 0.",
		},
	)

	BrokerConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meshwatch_broker_connected",
			Help: "1 if the broker connection is up, else 0.",
		},
	)

	BroadcasterSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meshwatch_broadcaster_sessions",
			Help: "Number of currently connected dashboard sessions.",
		},
	)
)

// RecordError increments ErrorsTotal for k. Pass the *ingest.Error's Kind
// (or a bare ingest.Kind) so every call site shares the same label set.
func RecordError(k ingest.Kind) {
	ErrorsTotal.WithLabelValues(string(k)).Inc()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// SetBrokerConnected mirrors broker.Connected() into the gauge.
func SetBrokerConnected(connected bool) {
	BrokerConnected.Set(boolToFloat(connected))
}

// SetWriterDegraded mirrors storage.Stats.Degraded into the gauge.
func SetWriterDegraded(degraded bool) {
	WriterDegraded.Set(boolToFloat(degraded))
}
