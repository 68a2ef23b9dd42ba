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
	"math"
	"math/rand"
	"testing"
)

// Test_Window_EmptyAverageIsZero ensures an empty window reports 0, never NaN.
func Test_Window_EmptyAverageIsZero(t *testing.T) {
	w := NewSlidingWindow(Window1mSeconds)
	if got := w.Average(); got != 0 {
		t.Fatalf("empty window average = %v, want 0", got)
	}
	if math.IsNaN(w.Average()) {
		t.Fatalf("empty window average is NaN")
	}
}

// Test_Window_EvictionBound verifies that after any insertion at event time
// t, every retained bucket key lies in (floor(t/1000)-size, floor(t/1000)].
func Test_Window_EvictionBound(t *testing.T) {
	w := NewSlidingWindow(Window1mSeconds)
	for i := 0; i < 400; i++ {
		ts := int64(1_000_000 + 1000*i)
		w.Add(ts, 1.0)
		k := ts / 1000
		for key := range w.buckets {
			if k-key >= Window1mSeconds {
				t.Fatalf("after insert at second %d: stale bucket %d retained", k, key)
			}
			if key > k {
				t.Fatalf("after insert at second %d: future bucket %d", k, key)
			}
		}
		if len(w.buckets) > Window1mSeconds {
			t.Fatalf("window holds %d buckets, max %d", len(w.buckets), Window1mSeconds)
		}
	}
	// Steady state: exactly 60 buckets, average exact.
	if len(w.buckets) != Window1mSeconds {
		t.Fatalf("steady-state bucket count = %d, want %d", len(w.buckets), Window1mSeconds)
	}
	if got := w.Average(); got != 1.0 {
		t.Fatalf("steady-state average = %v, want 1.0", got)
	}
}

// Test_Window_OutOfOrderInsertUsesOwnBucket checks that a late event lands
// in the bucket of its own second and eviction stays anchored on the
// incoming event, not the newest key seen.
func Test_Window_OutOfOrderInsertUsesOwnBucket(t *testing.T) {
	w := NewSlidingWindow(Window1mSeconds)
	for i := 0; i < 60; i++ {
		w.Add(int64(1_000_000+1000*i), 0.95)
	}
	// 30 s late, still inside the window anchored at its own second.
	w.Add(1_029_000, 0.0)

	if w.totalCount != 61 {
		t.Fatalf("count = %d, want 61", w.totalCount)
	}
	if math.Abs(w.totalSum-57.0) > 1e-9 {
		t.Fatalf("sum = %v, want 57.0", w.totalSum)
	}
	b := w.buckets[1029]
	if b == nil || b.count != 2 {
		t.Fatalf("bucket 1029 = %+v, want count 2", b)
	}
	if want := 57.0 / 61.0; math.Abs(w.Average()-want) > 1e-9 {
		t.Fatalf("average = %v, want %v", w.Average(), want)
	}
}

// Test_Window_VeryLateEventCreatedThenEvicted documents the late-arrival
// policy: an event older than the window relative to the newest key is
// still inserted into a fresh past bucket, and the next in-window event
// evicts it.
func Test_Window_VeryLateEventCreatedThenEvicted(t *testing.T) {
	w := NewSlidingWindow(Window1mSeconds)
	w.Add(1_000_000, 1.0) // second 1000

	// 100 s older than the newest key; inserted anyway (window anchored at
	// its own second keeps it).
	w.Add(900_000, 1.0) // second 900
	if w.buckets[900] == nil {
		t.Fatalf("late bucket 900 not inserted")
	}
	if w.totalCount != 2 {
		t.Fatalf("count = %d, want 2", w.totalCount)
	}

	// Next in-window event evicts the stale past bucket.
	w.Add(1_001_000, 1.0) // second 1001; 1001-900 >= 60
	if w.buckets[900] != nil {
		t.Fatalf("stale bucket 900 survived an in-window insert")
	}
	if w.totalCount != 2 {
		t.Fatalf("count after eviction = %d, want 2", w.totalCount)
	}
}

// Test_Window_TotalsMatchBuckets cross-checks the incremental totals
// against a direct sum over live buckets after a jittered insert sequence.
func Test_Window_TotalsMatchBuckets(t *testing.T) {
	w := NewSlidingWindow(Window5mSeconds)
	rng := rand.New(rand.NewSource(42))
	ts := int64(1_000_000)
	for i := 0; i < 10_000; i++ {
		ts += int64(rng.Intn(2000)) // 0..2 s strides, some same-second repeats
		jitter := ts - int64(rng.Intn(30_000))
		w.Add(jitter, rng.Float64())
	}

	var sum float64
	var count int64
	for _, b := range w.buckets {
		sum += b.sum
		count += b.count
	}
	if count != w.totalCount {
		t.Fatalf("totalCount = %d, bucket sum = %d", w.totalCount, count)
	}
	if math.Abs(sum-w.totalSum) > 1e-6 {
		t.Fatalf("totalSum = %v, bucket sum = %v", w.totalSum, sum)
	}
}

// Test_Window_RebuildRestoresExactSum verifies the periodic drift rebuild
// recomputes totalSum from buckets.
func Test_Window_RebuildRestoresExactSum(t *testing.T) {
	w := NewSlidingWindow(Window1mSeconds)
	w.Add(1_000_000, 0.5)
	w.Add(1_001_000, 0.25)
	w.totalSum += 1e-9 // simulate accumulated drift
	w.rebuild()
	if w.totalSum != 0.75 {
		t.Fatalf("rebuilt sum = %v, want 0.75", w.totalSum)
	}
}
