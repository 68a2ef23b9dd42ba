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

// Package ingest adapts the partitioned ingress log to the dispatcher. It
// owns the at-least-once contract: an offset is committed only after every
// downstream side effect for that message has completed.
package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"geopulse/internal/zonestream/core"
	"geopulse/internal/zonestream/telemetry"
)

// Config holds the ingress transport settings.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string

	// MaxInFlight bounds how many fetched-but-uncommitted messages the
	// consumer pipelines through the dispatcher. Defaults to 128.
	MaxInFlight int

	// MinBackoff/MaxBackoff bound the reconnect back-off. Default 1s/30s.
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// messageSource is the slice of *kafka.Reader the consume loop depends on,
// kept narrow so the loop is testable with a scripted fake.
type messageSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// eventSink is where decoded events go; satisfied by *core.Dispatcher.
type eventSink interface {
	Dispatch(ev core.SampleEvent) <-chan error
}

// Consumer pulls sample events from the ingress topic within a consumer
// group, decodes them, and pipelines them through the dispatcher while
// committing offsets strictly in fetch order.
type Consumer struct {
	cfg       Config
	sink      eventSink
	log       *slog.Logger
	newSource func() messageSource
}

// NewConsumer builds a consumer for the given dispatcher. New consumer
// groups start from the earliest offset so a fresh deployment re-derives
// zone state by replaying the log.
func NewConsumer(cfg Config, sink eventSink, log *slog.Logger) *Consumer {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 128
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	c := &Consumer{cfg: cfg, sink: sink, log: log}
	c.newSource = func() messageSource {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			GroupID:     cfg.GroupID,
			Topic:       cfg.Topic,
			StartOffset: kafka.FirstOffset,
			MinBytes:    1,
			MaxBytes:    10e6,
			MaxWait:     500 * time.Millisecond,
		})
	}
	return c
}

// Run consumes until ctx is cancelled. Any session error (transport
// disconnect, commit failure, processing failure) closes the reader and
// re-establishes it with bounded exponential back-off; the consumer group
// resumes from the last committed offset, so un-acked events are
// re-delivered.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := c.cfg.MinBackoff
	for {
		src := c.newSource()
		start := time.Now()
		err := c.consume(ctx, src)
		_ = src.Close()
		if ctx.Err() != nil {
			return nil
		}

		// A session that lived a while earns a fresh back-off.
		if time.Since(start) > c.cfg.MaxBackoff {
			backoff = c.cfg.MinBackoff
		}
		c.log.Error("ingress session ended; reconnecting",
			"topic", c.cfg.Topic, "group", c.cfg.GroupID, "backoff", backoff, "err", err)
		telemetry.ObserveIngressReconnect()

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil
		}
		backoff *= 2
		if backoff > c.cfg.MaxBackoff {
			backoff = c.cfg.MaxBackoff
		}
	}
}

// inFlight pairs a fetched message with the completion signal of its
// dispatched event. done is nil for malformed messages, which are committed
// without processing.
type inFlight struct {
	msg  kafka.Message
	done <-chan error
}

// consume runs one fetch/commit session. The fetch loop pipelines up to
// MaxInFlight messages; a committer goroutine waits for each message's
// processing to finish and commits offsets in the exact fetch order, which
// is what makes per-zone ordering and at-least-once compose: committing
// offset N acknowledges everything at or below N.
func (c *Consumer) consume(ctx context.Context, src messageSource) error {
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Commits during a graceful drain must still go through after sctx is
	// cancelled, so the committer uses an uncancelled context. A closed
	// reader fails these commits promptly.
	commitCtx := context.WithoutCancel(ctx)

	pending := make(chan inFlight, c.cfg.MaxInFlight)
	commitErr := make(chan error, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for f := range pending {
			var err error
			if f.done != nil {
				// Waits even during shutdown: the worker drains its
				// in-flight event and the channel resolves promptly.
				err = <-f.done
			}
			if err == nil {
				err = src.CommitMessages(commitCtx, f.msg)
			}
			if err != nil {
				commitErr <- err
				cancel()
				return
			}
		}
	}()

	var loopErr error
fetch:
	for {
		msg, err := src.FetchMessage(sctx)
		if err != nil {
			loopErr = err
			break fetch
		}

		ev, derr := decodeSampleEvent(msg.Value)
		var done <-chan error
		if derr != nil {
			telemetry.ObserveMalformedEvent()
			c.log.Warn("dropping malformed event",
				"partition", msg.Partition, "offset", msg.Offset, "err", derr)
		} else {
			done = c.sink.Dispatch(ev)
		}

		select {
		case pending <- inFlight{msg: msg, done: done}:
		case <-sctx.Done():
			loopErr = sctx.Err()
			break fetch
		}
	}

	close(pending)
	wg.Wait()

	select {
	case err := <-commitErr:
		return err
	default:
		return loopErr
	}
}
