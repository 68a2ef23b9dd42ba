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

// Package core implements the event-time stream processor that turns raw
// per-zone load samples into stable operational states and state-transition
// alerts. It owns the sliding-window aggregations, the hysteretic state
// machine, the per-zone dispatcher, and the emission contract. Transport
// adapters (Kafka, Redis) live outside this package behind the interfaces
// declared in emitter.go.
package core

import "fmt"

// State is the operational state of a zone.
type State uint8

const (
	StateNormal State = iota
	StateStressed
	StateCritical
)

// String returns the wire representation used in alerts and the
// materialized store.
func (s State) String() string {
	switch s {
	case StateNormal:
		return "NORMAL"
	case StateStressed:
		return "STRESSED"
	case StateCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}

// SampleEvent is one decoded load sample from the ingress topic.
// Timestamps are milliseconds since epoch; EventTimestamp is event time
// (when the sensor observed the load), ProducedAt is when the producer
// handed the event to the transport.
type SampleEvent struct {
	EventID        string  `json:"eventId"`
	ZoneID         string  `json:"zoneId"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Load           float64 `json:"load"`
	EventTimestamp int64   `json:"eventTimestamp"`
	ProducedAt     int64   `json:"producedAt"`
}

// Alert is the egress payload emitted on every fired state transition.
// Timestamp carries the EventTimestamp of the triggering sample, so the
// alert stream is a pure function of the input stream and replays
// identically. Downstream consumers deduplicate by
// (zoneId, timestamp, currentState).
type Alert struct {
	ZoneID        string  `json:"zoneId"`
	PreviousState string  `json:"previousState"`
	CurrentState  string  `json:"currentState"`
	Avg1m         float64 `json:"avg1m"`
	Avg5m         float64 `json:"avg5m"`
	Timestamp     int64   `json:"timestamp"`
}

// MaterializedState is the externally stored snapshot of a zone, upserted
// into the materialized-state store on every emitted transition.
type MaterializedState struct {
	ZoneID      string
	State       string
	Avg1m       float64
	Avg5m       float64
	Latitude    float64
	Longitude   float64
	LastUpdated int64
}
