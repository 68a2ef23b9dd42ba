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
	"log/slog"

	"geopulse/internal/zonestream/telemetry"
)

// alertDedupMs suppresses a repeated emission when the same or adjacent
// event timestamps fire transitions under replay. The guard uses event
// time, not wall time, so it is a function of the data. It is not a rate
// limit.
const alertDedupMs = 1000

// ZoneState holds all mutable processing state for one zone. It is created
// lazily on the zone's first event, owned by exactly one dispatcher worker,
// and destroyed only on process exit.
type ZoneState struct {
	ZoneID string
	State  State

	win1m *SlidingWindow
	win5m *SlidingWindow

	// Confirmation-timer anchors in event-time ms. Zero means "not armed".
	stressedSince int64
	criticalSince int64

	// lastAlertTs is the event timestamp of the most recent emitted alert.
	// Zero means no alert has been emitted for this zone yet.
	lastAlertTs int64

	lastLat  float64
	lastLon  float64
	hasCoord bool
}

// NewZoneState returns a fresh zone in NORMAL with empty windows and no
// armed timers.
func NewZoneState(zoneID string) *ZoneState {
	return &ZoneState{
		ZoneID: zoneID,
		State:  StateNormal,
		win1m:  NewSlidingWindow(Window1mSeconds),
		win5m:  NewSlidingWindow(Window5mSeconds),
	}
}

// EventProcessor applies one event to its zone's state. The dispatcher
// invokes it serially per zone.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, zs *ZoneState, ev SampleEvent) error
}

// Processor is the production EventProcessor: it feeds both windows,
// advances the state machine, and hands fired transitions to the emitter.
type Processor struct {
	emitter *Emitter
	log     *slog.Logger
}

// NewProcessor wires a Processor to an emitter. emitter may be nil, in
// which case transitions are computed (and counted) but nothing is
// published.
func NewProcessor(emitter *Emitter, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{emitter: emitter, log: log}
}

// ProcessEvent folds one sample into the zone. The in-memory State field is
// updated before any external write so concurrent readers of zone state
// observe the new value first. The emitter's side effects are best-effort
// and never surface as an error here.
func (p *Processor) ProcessEvent(ctx context.Context, zs *ZoneState, ev SampleEvent) error {
	zs.win1m.Add(ev.EventTimestamp, ev.Load)
	zs.win5m.Add(ev.EventTimestamp, ev.Load)
	zs.lastLat = ev.Latitude
	zs.lastLon = ev.Longitude
	zs.hasCoord = true

	a1 := zs.win1m.Average()
	a5 := zs.win5m.Average()

	prev := zs.State
	next, fired := advance(zs, ev.EventTimestamp, a1, a5)
	zs.State = next

	telemetry.ObserveEventProcessed()
	if !fired {
		return nil
	}
	telemetry.ObserveTransition(prev.String(), next.String())

	if zs.lastAlertTs != 0 && ev.EventTimestamp-zs.lastAlertTs <= alertDedupMs {
		p.log.Debug("transition deduplicated",
			"zone", zs.ZoneID, "from", prev.String(), "to", next.String(),
			"t", ev.EventTimestamp, "lastAlertTs", zs.lastAlertTs)
		return nil
	}
	zs.lastAlertTs = ev.EventTimestamp

	if p.emitter == nil {
		return nil
	}
	alert := Alert{
		ZoneID:        zs.ZoneID,
		PreviousState: prev.String(),
		CurrentState:  next.String(),
		Avg1m:         a1,
		Avg5m:         a5,
		Timestamp:     ev.EventTimestamp,
	}
	rec := MaterializedState{
		ZoneID:      zs.ZoneID,
		State:       next.String(),
		Avg1m:       a1,
		Avg5m:       a5,
		Latitude:    ev.Latitude,
		Longitude:   ev.Longitude,
		LastUpdated: ev.EventTimestamp,
	}
	p.emitter.Emit(ctx, alert, rec)
	return nil
}
