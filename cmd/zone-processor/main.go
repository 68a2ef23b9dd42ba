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

// Package main runs the GeoPulse zone-stream processor: it consumes raw
// per-zone load samples from Kafka, maintains event-time sliding averages
// and a hysteretic state machine per zone, publishes state-transition
// alerts to the egress topic, and materializes the current zone state into
// Redis.
//
// The processor keeps no durable state of its own beyond consumer-group
// offsets; on restart it re-derives zone state by replaying the ingress
// log from the last committed offset.
//
// Configuration is flag-based; every flag defaults from an environment
// variable so container deployments need no argument plumbing.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"geopulse/internal/zonestream/core"
	"geopulse/internal/zonestream/ingest"
	"geopulse/internal/zonestream/persistence"
	"geopulse/internal/zonestream/telemetry"
)

// shutdownDeadline is the hard bound on graceful drain. Events still in
// flight past it are simply re-delivered on the next start.
const shutdownDeadline = 10 * time.Second

func main() {
	var (
		brokers     = flag.String("brokers", envOr("GEOPULSE_BROKERS", "localhost:9092"), "Comma-separated Kafka broker addresses")
		ingressTop  = flag.String("ingress_topic", envOr("GEOPULSE_INGRESS_TOPIC", "raw.zone.events"), "Topic carrying raw sample events (keyed by zoneId)")
		egressTop   = flag.String("egress_topic", envOr("GEOPULSE_EGRESS_TOPIC", "zone.alerts"), "Topic receiving state-transition alerts")
		group       = flag.String("consumer_group", envOr("GEOPULSE_CONSUMER_GROUP", "zone-stream-processor"), "Consumer-group id (offset namespace)")
		redisAddr   = flag.String("redis_addr", envOr("GEOPULSE_REDIS_ADDR", "localhost:6380"), "Materialized-state store address")
		workers     = flag.Int("workers", envIntOr("GEOPULSE_WORKERS", core.DefaultWorkerCount), "Dispatcher worker count (zone-id shards)")
		metricsAddr = flag.String("metrics_addr", envOr("GEOPULSE_METRICS_ADDR", ":9090"), "Prometheus /metrics listen address")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(log)

	telemetry.StartMetricsEndpoint(*metricsAddr)

	publisher := persistence.NewKafkaAlertPublisher(splitCSV(*brokers), *egressTop)
	states := persistence.NewRedisStateWriterAddr(*redisAddr)

	emitter := core.NewEmitter(publisher, states, log)
	processor := core.NewProcessor(emitter, log)
	dispatcher := core.NewDispatcher(*workers, processor)

	consumer := ingest.NewConsumer(ingest.Config{
		Brokers: splitCSV(*brokers),
		Topic:   *ingressTop,
		GroupID: *group,
	}, dispatcher, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher.Start(ctx)

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Run(ctx); err != nil {
			log.Error("ingress consumer exited", "err", err)
		}
	}()

	log.Info("zone processor running",
		"brokers", *brokers, "ingress", *ingressTop, "egress", *egressTop,
		"group", *group, "redis", *redisAddr, "workers", *workers, "metrics", *metricsAddr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down", "deadline", shutdownDeadline)
	cancel()

	// Drain: the consumer stops fetching and commits what finished; the
	// workers run their in-flight events to a quiescent point. The hard
	// deadline forces exit; un-acked events re-deliver on the next start.
	drained := make(chan struct{})
	go func() {
		<-consumerDone
		dispatcher.Stop()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(shutdownDeadline):
		log.Warn("shutdown deadline exceeded; exiting with events in flight")
	}

	if err := publisher.Close(); err != nil {
		log.Error("closing alert publisher", "err", err)
	}
	log.Info("zone processor stopped")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
