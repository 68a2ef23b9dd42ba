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

// Package persistence holds the concrete transport adapters consumed by the
// core: the Kafka alert publisher and the Redis materialized-state writer.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"geopulse/internal/zonestream/core"
)

// messageWriter is the minimal surface of *kafka.Writer the publisher
// needs; kept narrow for tests.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaAlertPublisher publishes alerts as JSON keyed by zone id. The hash
// balancer is deterministic per key, so per-zone alert order is preserved
// on the egress side. Transient publish failures are surfaced to the
// caller and not retried here; broker-level retries and the downstream
// consumer's idempotent handling cover the gap.
type KafkaAlertPublisher struct {
	writer messageWriter
}

// NewKafkaAlertPublisher builds a publisher for the given egress topic.
func NewKafkaAlertPublisher(brokers []string, topic string) *KafkaAlertPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &KafkaAlertPublisher{writer: w}
}

// Publish implements core.AlertPublisher.
func (p *KafkaAlertPublisher) Publish(ctx context.Context, zoneID string, alert core.Alert) error {
	b, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert zone=%s: %w", zoneID, err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(zoneID), Value: b}); err != nil {
		return fmt.Errorf("publish alert zone=%s: %w", zoneID, err)
	}
	return nil
}

// Close flushes and releases the underlying writer.
func (p *KafkaAlertPublisher) Close() error {
	return p.writer.Close()
}
