// Copyright (c) 2026 John Earle
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

// Package store persists status records as JSON values in Redis, keyed by
// "event:<id>". Patch is read-merge-write with last-writer-wins semantics;
// each record has a single writer (its pipeline invocation), so no locking
// is layered on top.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voxlify/mailcal/internal/models"
)

const (
	// recordPrefix namespaces status record keys.
	recordPrefix = "event:"

	// seenPrefix namespaces webhook delivery dedup keys.
	seenPrefix = "mailcal:seen:"

	// seenTTL is how long a provider message ID is remembered. Providers
	// retry webhook deliveries on the scale of hours, not days.
	seenTTL = 24 * time.Hour
)

// ErrNotFound is returned by Patch when the record does not exist.
var ErrNotFound = errors.New("status record not found")

// RecordStore reads and writes status records in Redis.
type RecordStore struct {
	rdb *redis.Client
}

// New creates a record store backed by Redis.
func New(rdb *redis.Client) *RecordStore {
	return &RecordStore{rdb: rdb}
}

// Set writes the full record, replacing any existing value.
func (s *RecordStore) Set(ctx context.Context, rec *models.StatusRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.ID, err)
	}
	if err := s.rdb.Set(ctx, recordPrefix+rec.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", rec.ID, err)
	}
	return nil
}

// Get reads a record by ID. A missing key returns (nil, nil).
func (s *RecordStore) Get(ctx context.Context, id string) (*models.StatusRecord, error) {
	data, err := s.rdb.Get(ctx, recordPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET %s: %w", id, err)
	}

	var rec models.StatusRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record %s: %w", id, err)
	}
	return &rec, nil
}

// Patch re-reads the record, merges the patch, and writes it back.
// Returns ErrNotFound if the record is absent at merge time.
func (s *RecordStore) Patch(ctx context.Context, id string, patch models.RecordPatch) (*models.StatusRecord, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("patch record %s: %w", id, ErrNotFound)
	}

	rec.Apply(patch)
	if err := s.Set(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListByEmail scans all records and returns those owned by the given
// sender address, for the downstream listing surface.
func (s *RecordStore) ListByEmail(ctx context.Context, email string) ([]*models.StatusRecord, error) {
	records := []*models.StatusRecord{}

	iter := s.rdb.Scan(ctx, 0, recordPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.rdb.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis GET %s: %w", iter.Val(), err)
		}

		var rec models.StatusRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			// Skip unreadable entries rather than failing the listing.
			continue
		}
		if rec.UserEmail == email {
			records = append(records, &rec)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis SCAN: %w", err)
	}

	return records, nil
}

// FirstDelivery returns true if this provider message ID has not been seen
// before, marking it seen atomically (SETNX with TTL). Re-delivered webhook
// payloads are skipped by the coordinator based on this.
func (s *RecordStore) FirstDelivery(ctx context.Context, messageID string) (bool, error) {
	set, err := s.rdb.SetNX(ctx, seenPrefix+messageID, 1, seenTTL).Result()
	if err != nil {
		return false, fmt.Errorf("dedup SETNX: %w", err)
	}
	return set, nil
}

// Ping checks the Redis connection.
func (s *RecordStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.rdb.Ping(ctx).Err()
}
