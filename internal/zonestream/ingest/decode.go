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

package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"geopulse/internal/zonestream/core"
)

// maxClockSkewMs bounds how far an event timestamp may lead its producedAt
// stamp before the event is considered malformed.
const maxClockSkewMs = 5000

// decodeSampleEvent parses and validates one ingress payload. A non-nil
// error marks the message as malformed: it is dropped and counted, and its
// offset still advances.
func decodeSampleEvent(payload []byte) (core.SampleEvent, error) {
	var ev core.SampleEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return core.SampleEvent{}, fmt.Errorf("decode sample event: %w", err)
	}
	if err := validateSampleEvent(ev); err != nil {
		return core.SampleEvent{}, err
	}
	return ev, nil
}

func validateSampleEvent(ev core.SampleEvent) error {
	switch {
	case ev.ZoneID == "":
		return errors.New("sample event missing zoneId")
	case ev.EventID == "":
		return errors.New("sample event missing eventId")
	case ev.EventTimestamp <= 0:
		return errors.New("sample event missing eventTimestamp")
	case math.IsNaN(ev.Load) || ev.Load < 0 || ev.Load > 1:
		return fmt.Errorf("sample event load %v outside [0,1]", ev.Load)
	case ev.ProducedAt > 0 && ev.EventTimestamp > ev.ProducedAt+maxClockSkewMs:
		return fmt.Errorf("sample event timestamp %d leads producedAt %d beyond skew bound",
			ev.EventTimestamp, ev.ProducedAt)
	}
	return nil
}
