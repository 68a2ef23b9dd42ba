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

package core

import (
	"context"
	"hash/fnv"
	"sync"

	"geopulse/internal/zonestream/telemetry"
)

// DefaultWorkerCount is the dispatcher parallelism used when the operator
// does not configure one.
const DefaultWorkerCount = 8

// workerQueueDepth bounds each worker's inbox; a full inbox backpressures
// the ingress fetch loop.
const workerQueueDepth = 256

type dispatched struct {
	ev   SampleEvent
	done chan<- error
}

type worker struct {
	id     int
	events chan dispatched
	zones  map[string]*ZoneState
	proc   EventProcessor
}

// Dispatcher routes events to a fixed set of workers by hashing the zone
// id. Each worker owns a disjoint subset of zones and processes its inbox
// serially, so two events of the same zone are never processed
// concurrently, and per-zone FIFO order follows dispatch order. A panic in
// a worker is not recovered: a corrupted zone slot must take the process
// down.
type Dispatcher struct {
	workers []*worker
	wg      sync.WaitGroup
}

// NewDispatcher builds a dispatcher with n workers (DefaultWorkerCount if
// n <= 0) all sharing the given processor.
func NewDispatcher(n int, proc EventProcessor) *Dispatcher {
	if n <= 0 {
		n = DefaultWorkerCount
	}
	d := &Dispatcher{workers: make([]*worker, n)}
	for i := range d.workers {
		d.workers[i] = &worker{
			id:     i,
			events: make(chan dispatched, workerQueueDepth),
			zones:  make(map[string]*ZoneState),
			proc:   proc,
		}
	}
	return d
}

// Start launches the worker goroutines.
func (d *Dispatcher) Start(ctx context.Context) {
	for _, w := range d.workers {
		d.wg.Add(1)
		go func(w *worker) {
			defer d.wg.Done()
			w.run(ctx)
		}(w)
	}
}

// Dispatch enqueues ev on its zone's worker and returns a channel that
// receives exactly one value: the processing result. Dispatch blocks when
// the target worker's inbox is full. It must not be called after Stop.
func (d *Dispatcher) Dispatch(ev SampleEvent) <-chan error {
	done := make(chan error, 1)
	w := d.workers[zoneShard(ev.ZoneID, len(d.workers))]
	w.events <- dispatched{ev: ev, done: done}
	return done
}

// Stop closes the worker inboxes and waits until every in-flight event has
// drained to a quiescent point.
func (d *Dispatcher) Stop() {
	for _, w := range d.workers {
		close(w.events)
	}
	d.wg.Wait()
}

func (w *worker) run(ctx context.Context) {
	for de := range w.events {
		zs := w.zones[de.ev.ZoneID]
		if zs == nil {
			zs = NewZoneState(de.ev.ZoneID)
			w.zones[de.ev.ZoneID] = zs
			telemetry.ObserveZoneTracked()
		}
		de.done <- w.proc.ProcessEvent(ctx, zs, de.ev)
	}
}

// zoneShard maps a zone id to a worker index via FNV-1a. The assignment is
// static for the life of the process.
func zoneShard(zoneID string, n int) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(zoneID))
	return int(h.Sum64() % uint64(n))
}
