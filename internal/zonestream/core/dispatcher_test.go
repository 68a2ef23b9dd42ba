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
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// probeProcessor records per-zone arrival order and trips a flag if two
// events of the same zone are ever processed concurrently.
type probeProcessor struct {
	mu       sync.Mutex
	byZone   map[string][]int64
	inflight sync.Map // zoneID -> *atomic.Int32
	overlap  atomic.Bool
}

func newProbeProcessor() *probeProcessor {
	return &probeProcessor{byZone: make(map[string][]int64)}
}

func (p *probeProcessor) ProcessEvent(_ context.Context, zs *ZoneState, ev SampleEvent) error {
	v, _ := p.inflight.LoadOrStore(zs.ZoneID, &atomic.Int32{})
	gate := v.(*atomic.Int32)
	if !gate.CompareAndSwap(0, 1) {
		p.overlap.Store(true)
	}
	time.Sleep(50 * time.Microsecond) // widen any race window
	p.mu.Lock()
	p.byZone[zs.ZoneID] = append(p.byZone[zs.ZoneID], ev.EventTimestamp)
	p.mu.Unlock()
	gate.Store(0)
	return nil
}

// Test_Dispatcher_PerZoneSerialFIFO: events of one zone are processed
// serially and in dispatch order, across many zones and workers.
func Test_Dispatcher_PerZoneSerialFIFO(t *testing.T) {
	probe := newProbeProcessor()
	d := NewDispatcher(4, probe)
	d.Start(context.Background())

	const zones = 12
	const perZone = 200
	var dones []<-chan error
	for i := 0; i < perZone; i++ {
		for z := 0; z < zones; z++ {
			dones = append(dones, d.Dispatch(SampleEvent{
				ZoneID:         fmt.Sprintf("Z-%d", z),
				EventTimestamp: int64(1_000_000 + i*1000),
			}))
		}
	}
	for _, done := range dones {
		if err := <-done; err != nil {
			t.Fatalf("dispatch error: %v", err)
		}
	}
	d.Stop()

	if probe.overlap.Load() {
		t.Fatalf("two events of one zone were processed concurrently")
	}
	for z := 0; z < zones; z++ {
		seq := probe.byZone[fmt.Sprintf("Z-%d", z)]
		if len(seq) != perZone {
			t.Fatalf("zone %d processed %d events, want %d", z, len(seq), perZone)
		}
		for i := 1; i < len(seq); i++ {
			if seq[i] < seq[i-1] {
				t.Fatalf("zone %d: order broken at %d (%d after %d)", z, i, seq[i], seq[i-1])
			}
		}
	}
}

// Test_Dispatcher_ShardAssignmentStable: the same zone always maps to the
// same worker, and zones spread roughly evenly across workers.
func Test_Dispatcher_ShardAssignmentStable(t *testing.T) {
	const workers = 32
	const zones = 100_000

	counts := make([]int, workers)
	for i := 0; i < zones; i++ {
		id := fmt.Sprintf("zone-%d", i)
		first := zoneShard(id, workers)
		if again := zoneShard(id, workers); again != first {
			t.Fatalf("shard for %q unstable: %d then %d", id, first, again)
		}
		counts[first]++
	}

	mean := float64(zones) / float64(workers)
	for w, c := range counts {
		dev := float64(c) - mean
		if dev < 0 {
			dev = -dev
		}
		if dev/mean > 0.10 {
			t.Fatalf("worker %d holds %d zones, >10%% off mean %.0f", w, c, mean)
		}
	}
}

// Test_Dispatcher_LazyZoneCreation: zone state appears on the first event
// for the zone and is reused afterwards.
func Test_Dispatcher_LazyZoneCreation(t *testing.T) {
	proc := NewProcessor(nil, nil)
	d := NewDispatcher(2, proc)
	d.Start(context.Background())

	<-d.Dispatch(SampleEvent{ZoneID: "Z-A", EventTimestamp: 1_000_000, Load: 0.5})
	<-d.Dispatch(SampleEvent{ZoneID: "Z-A", EventTimestamp: 1_001_000, Load: 0.5})
	d.Stop()

	w := d.workers[zoneShard("Z-A", len(d.workers))]
	zs := w.zones["Z-A"]
	if zs == nil {
		t.Fatalf("zone state not created")
	}
	if zs.win1m.totalCount != 2 {
		t.Fatalf("zone state not reused: count=%d, want 2", zs.win1m.totalCount)
	}
	for _, other := range d.workers {
		if other != w && other.zones["Z-A"] != nil {
			t.Fatalf("zone owned by more than one worker")
		}
	}
}

// Test_Dispatcher_PerZoneIsolation: a hot zone transitions on its own
// schedule while an interleaved cold zone never moves.
func Test_Dispatcher_PerZoneIsolation(t *testing.T) {
	pub := &recordingPublisher{}
	proc := NewProcessor(NewEmitter(pub, nil, nil), nil)
	d := NewDispatcher(4, proc)
	d.Start(context.Background())

	var dones []<-chan error
	for i := 0; i < 400; i++ {
		ts := int64(1_000_000 + i*1000)
		dones = append(dones,
			d.Dispatch(SampleEvent{ZoneID: "Z-A", EventTimestamp: ts, ProducedAt: ts, Load: 0.95}),
			d.Dispatch(SampleEvent{ZoneID: "Z-B", EventTimestamp: ts, ProducedAt: ts, Load: 0.10}))
	}
	for _, done := range dones {
		if err := <-done; err != nil {
			t.Fatalf("dispatch error: %v", err)
		}
	}
	d.Stop()

	alerts := pub.snapshot()
	var forA []Alert
	for _, a := range alerts {
		if a.ZoneID == "Z-B" {
			t.Fatalf("cold zone transitioned: %+v", a)
		}
		forA = append(forA, a)
	}
	verifyAlertChain(t, forA)
	if len(forA) != 2 || forA[0].Timestamp != 1_060_000 || forA[1].Timestamp != 1_080_000 {
		t.Fatalf("hot zone alerts = %+v, want transitions at 1060000 and 1080000", forA)
	}
}
