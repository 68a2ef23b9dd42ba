// Copyright 2026 Esteban Alvarez. All Rights Reserved.
//
// Created: August 2026
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package telemetry exposes the processor's Prometheus metrics. The public
// Observe* functions are safe to call from hot paths and from multiple
// goroutines; collectors are registered eagerly at init.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	eventsProcessedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "events_processed_total",
		Help: "Sample events applied to zone state",
	})
	malformedEventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "malformed_events_total",
		Help: "Ingress messages dropped because they failed to decode or validate",
	})
	stateTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "state_transitions_total",
		Help: "Fired zone state transitions",
	}, []string{"from", "to"})
	alertsPublishedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "alerts_published_total",
		Help: "Alerts successfully published to the egress topic",
	})
	alertPublishFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "alert_publish_failures_total",
		Help: "Alert publishes that failed (not retried by the core)",
	})
	stateWriteFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "state_write_failures_total",
		Help: "Materialized-state or geo-index writes that failed",
	})
	alertPublishLatencyMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "alert_publish_latency_ms",
		Help:    "Latency of a single alert publish in milliseconds",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})
	zonesTracked = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zones_tracked",
		Help: "Zones with live in-memory state",
	})
	ingressReconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingress_reconnects_total",
		Help: "Times the ingress consumer re-established its session",
	})
)

func init() {
	prometheus.MustRegister(
		eventsProcessedTotal,
		malformedEventsTotal,
		stateTransitionsTotal,
		alertsPublishedTotal,
		alertPublishFailuresTotal,
		stateWriteFailuresTotal,
		alertPublishLatencyMs,
		zonesTracked,
		ingressReconnectsTotal,
	)
}

func ObserveEventProcessed() { eventsProcessedTotal.Inc() }

func ObserveMalformedEvent() { malformedEventsTotal.Inc() }

func ObserveTransition(from, to string) {
	stateTransitionsTotal.WithLabelValues(from, to).Inc()
}

// ObserveAlertPublished records one successful publish and its latency.
func ObserveAlertPublished(d time.Duration) {
	alertsPublishedTotal.Inc()
	alertPublishLatencyMs.Observe(float64(d) / float64(time.Millisecond))
}

func ObserveAlertPublishError() { alertPublishFailuresTotal.Inc() }

func ObserveStateWriteError() { stateWriteFailuresTotal.Inc() }

// ObserveZoneTracked marks one more zone with live in-memory state. Zones
// are never dropped before process exit, so there is no decrement.
func ObserveZoneTracked() { zonesTracked.Inc() }

func ObserveIngressReconnect() { ingressReconnectsTotal.Inc() }

// StartMetricsEndpoint exposes /metrics on addr in a background goroutine.
func StartMetricsEndpoint(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.ListenAndServe()
	}()
}
