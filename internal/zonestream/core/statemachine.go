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

import "fmt"

// Hysteretic thresholds and confirmation windows. Up-transitions compare
// with >= and must hold continuously for the confirmation duration in event
// time; down-transitions compare with <= and fire immediately. The gap
// between up- and down-thresholds prevents oscillation when an average
// hovers near a single cut-off.
const (
	stressedUpThreshold   = 0.75 // avg5m >= : NORMAL may escalate
	criticalUpThreshold   = 0.90 // avg1m >= : STRESSED may escalate
	criticalDownThreshold = 0.80 // avg5m <= : CRITICAL de-escalates
	stressedDownThreshold = 0.65 // avg5m <= : STRESSED recovers

	stressedConfirmMs = 60_000
	criticalConfirmMs = 20_000
)

// advance applies one event's averages to the zone's state machine and
// returns the resulting state plus whether a transition fired. Timer
// anchors on zs are updated in place; zero means "not armed". The function
// is pure apart from those fields: given the same ordered inputs it always
// produces the same transition sequence.
//
// At most one transition fires per event. When a transition fires, the
// timer relevant to the new state is armed on the same event: entering
// STRESSED from below arms criticalSince if avg1m already holds, and
// leaving CRITICAL arms stressedSince so a rebound confirms promptly.
func advance(zs *ZoneState, t int64, a1, a5 float64) (State, bool) {
	switch zs.State {
	case StateNormal:
		if a5 >= stressedUpThreshold {
			if zs.stressedSince == 0 {
				zs.stressedSince = t
			}
			if t-zs.stressedSince >= stressedConfirmMs {
				zs.stressedSince = 0
				if a1 >= criticalUpThreshold {
					zs.criticalSince = t
				}
				return StateStressed, true
			}
			return StateNormal, false
		}
		// Condition broke inside the confirmation window: disarm.
		zs.stressedSince = 0
		return StateNormal, false

	case StateStressed:
		if a1 >= criticalUpThreshold {
			if zs.criticalSince == 0 {
				zs.criticalSince = t
			}
			if t-zs.criticalSince >= criticalConfirmMs {
				zs.criticalSince = 0
				return StateCritical, true
			}
			return StateStressed, false
		}
		if a5 <= stressedDownThreshold {
			zs.stressedSince = 0
			zs.criticalSince = 0
			return StateNormal, true
		}
		zs.criticalSince = 0
		return StateStressed, false

	case StateCritical:
		if a5 <= criticalDownThreshold {
			zs.criticalSince = 0
			// Arm a prompt re-entry path should load rebound. This does
			// not fire a second transition on the same event.
			zs.stressedSince = t
			return StateStressed, true
		}
		return StateCritical, false
	}

	panic(fmt.Sprintf("zonestream: illegal state %v for zone %s", zs.State, zs.ZoneID))
}
