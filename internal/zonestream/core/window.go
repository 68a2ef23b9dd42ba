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

// Window sizes used by every zone: a fast 1-minute average feeding the
// critical-escalation rules and a slow 5-minute average feeding the
// stressed/recovery rules.
const (
	Window1mSeconds = 60
	Window5mSeconds = 300
)

// rebuildEvery bounds incremental floating-point drift in totalSum:
// every 2^20 insertions the running sum is recomputed from the live
// buckets.
const rebuildEvery = 1 << 20

type bucket struct {
	sum   float64
	count int64
}

// SlidingWindow is an event-time aggregation over the most recent
// sizeSeconds of event time, bucketed per second. Eviction is anchored on
// the second of the incoming event, never on wall time, which keeps the
// computation replayable.
//
// Late-arrival policy: an event whose own second is already outside the
// window relative to the highest key seen is still inserted into a freshly
// created past bucket; that bucket is then evicted by the next in-window
// event. The transient effect on the average is nearly nil and this
// behavior is deliberate.
//
// Not safe for concurrent use; each window is owned by one dispatcher
// worker.
type SlidingWindow struct {
	size       int64 // seconds
	buckets    map[int64]*bucket
	totalSum   float64
	totalCount int64
	inserts    uint64
}

// NewSlidingWindow returns an empty window spanning sizeSeconds of event time.
func NewSlidingWindow(sizeSeconds int64) *SlidingWindow {
	if sizeSeconds <= 0 {
		panic(fmt.Sprintf("zonestream: window size must be positive, got %d", sizeSeconds))
	}
	return &SlidingWindow{
		size:    sizeSeconds,
		buckets: make(map[int64]*bucket),
	}
}

// Add folds one load sample into the window. It first evicts every bucket
// that falls out of the window anchored at the incoming event's second,
// then upserts the event's own bucket.
func (w *SlidingWindow) Add(eventTimestampMs int64, load float64) {
	k := secondKey(eventTimestampMs)

	for key, b := range w.buckets {
		if k-key >= w.size {
			w.totalSum -= b.sum
			w.totalCount -= b.count
			delete(w.buckets, key)
		}
	}

	b := w.buckets[k]
	if b == nil {
		b = &bucket{}
		w.buckets[k] = b
	}
	b.sum += load
	b.count++
	w.totalSum += load
	w.totalCount++

	if w.totalCount < 0 {
		panic(fmt.Sprintf("zonestream: negative window count %d", w.totalCount))
	}

	w.inserts++
	if w.inserts%rebuildEvery == 0 {
		w.rebuild()
	}
}

// Average returns totalSum/totalCount, or 0 for an empty window (never NaN).
func (w *SlidingWindow) Average() float64 {
	if w.totalCount == 0 {
		return 0
	}
	return w.totalSum / float64(w.totalCount)
}

// rebuild recomputes totalSum from the live buckets, discarding any
// accumulated rounding drift.
func (w *SlidingWindow) rebuild() {
	var sum float64
	for _, b := range w.buckets {
		sum += b.sum
	}
	w.totalSum = sum
}

// secondKey maps a millisecond timestamp to its floored second.
func secondKey(tsMs int64) int64 {
	k := tsMs / 1000
	if tsMs%1000 != 0 && tsMs < 0 {
		k--
	}
	return k
}
