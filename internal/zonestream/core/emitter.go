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
	"time"

	"geopulse/internal/zonestream/telemetry"
)

// AlertPublisher publishes state-transition alerts to the egress transport,
// keyed by zone id so per-zone ordering is preserved on the egress side.
type AlertPublisher interface {
	Publish(ctx context.Context, zoneID string, alert Alert) error
}

// StateWriter upserts the externally materialized view of a zone: the
// current-state record plus a geo-index entry at the zone's coordinates.
type StateWriter interface {
	UpsertState(ctx context.Context, rec MaterializedState) error
	UpsertGeo(ctx context.Context, zoneID string, longitude, latitude float64) error
}

// Emitter performs the two side effects of a fired transition, in order:
// publish the alert, then upsert the materialized state and geo entry. Both
// are best-effort: a failure is logged and counted but never blocks offset
// progress. The durable record of truth is the downstream alert consumer's
// persistence; the materialized record self-heals on the next transition.
type Emitter struct {
	alerts AlertPublisher
	states StateWriter
	log    *slog.Logger
}

// NewEmitter builds an emitter. Either sink may be nil, which disables that
// side effect (useful in tests and tools).
func NewEmitter(alerts AlertPublisher, states StateWriter, log *slog.Logger) *Emitter {
	if log == nil {
		log = slog.Default()
	}
	return &Emitter{alerts: alerts, states: states, log: log}
}

// Emit runs under the per-zone worker; the caller has already updated the
// in-memory zone state.
func (e *Emitter) Emit(ctx context.Context, alert Alert, rec MaterializedState) {
	if e.alerts != nil {
		start := time.Now()
		if err := e.alerts.Publish(ctx, alert.ZoneID, alert); err != nil {
			telemetry.ObserveAlertPublishError()
			e.log.Error("alert publish failed",
				"zone", alert.ZoneID, "to", alert.CurrentState, "err", err)
		} else {
			telemetry.ObserveAlertPublished(time.Since(start))
		}
	}

	if e.states != nil {
		if err := e.states.UpsertState(ctx, rec); err != nil {
			telemetry.ObserveStateWriteError()
			e.log.Error("materialized state write failed", "zone", rec.ZoneID, "err", err)
		}
		if err := e.states.UpsertGeo(ctx, rec.ZoneID, rec.Longitude, rec.Latitude); err != nil {
			telemetry.ObserveStateWriteError()
			e.log.Error("geo index write failed", "zone", rec.ZoneID, "err", err)
		}
	}
}
