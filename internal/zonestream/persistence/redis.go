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

package persistence

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"geopulse/internal/zonestream/core"
)

// Key layout helpers (public for interoperability with the read services
// that serve point and range queries over the materialized view).
func RedisStateKey(zoneID string) string { return "zone:state:" + zoneID }

// RedisGeoKey is the geo index holding one entry per zone at its last
// reported coordinates.
const RedisGeoKey = "zone:geo"

// RedisStateWriter materializes the current zone state into Redis: a hash
// record per zone plus membership in the shared geo index. Writes are
// plain upserts; the record is rewritten wholesale on every transition, so
// a lost write self-heals on the next one.
type RedisStateWriter struct {
	client redis.Cmdable
}

// NewRedisStateWriter wraps an existing client (or test double).
func NewRedisStateWriter(client redis.Cmdable) *RedisStateWriter {
	return &RedisStateWriter{client: client}
}

// NewRedisStateWriterAddr dials addr like "127.0.0.1:6380".
func NewRedisStateWriterAddr(addr string) *RedisStateWriter {
	return NewRedisStateWriter(redis.NewClient(&redis.Options{Addr: addr}))
}

// UpsertState implements core.StateWriter.
func (w *RedisStateWriter) UpsertState(ctx context.Context, rec core.MaterializedState) error {
	fields := map[string]interface{}{
		"zoneId":      rec.ZoneID,
		"state":       rec.State,
		"avg1m":       rec.Avg1m,
		"avg5m":       rec.Avg5m,
		"latitude":    rec.Latitude,
		"longitude":   rec.Longitude,
		"lastUpdated": rec.LastUpdated,
	}
	if err := w.client.HSet(ctx, RedisStateKey(rec.ZoneID), fields).Err(); err != nil {
		return fmt.Errorf("redis upsert state zone=%s: %w", rec.ZoneID, err)
	}
	return nil
}

// UpsertGeo implements core.StateWriter.
func (w *RedisStateWriter) UpsertGeo(ctx context.Context, zoneID string, longitude, latitude float64) error {
	loc := &redis.GeoLocation{Name: zoneID, Longitude: longitude, Latitude: latitude}
	if err := w.client.GeoAdd(ctx, RedisGeoKey, loc).Err(); err != nil {
		return fmt.Errorf("redis upsert geo zone=%s: %w", zoneID, err)
	}
	return nil
}
