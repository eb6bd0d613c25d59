// Package docstore persists billboard classification profiles in Redis.
// Profiles are schema-free JSON produced by the upstream ML service; the
// relational store keeps the canonical record, this store keeps the document.
package docstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/oohgrid/billboard-etl/services"
	"github.com/oohgrid/billboard-etl/utils"
)

const profileKeyPrefix = "billboard:profile:"

// ProfileStore writes successful profile results keyed by billboard_id.
// Re-running a billboard overwrites its profile; history is not kept.
type ProfileStore struct {
	rc *redis.Client
}

// NewProfileStore creates a profile store over an existing Redis client.
func NewProfileStore(rc *redis.Client) *ProfileStore {
	return &ProfileStore{rc: rc}
}

func profileKey(billboardID string) string {
	return profileKeyPrefix + billboardID
}

// PersistProfiles stores each successful result as a hash of the raw profile
// document plus bookkeeping fields. Implements runner.ResultSink.
func (s *ProfileStore) PersistProfiles(ctx context.Context, runID string, results []services.ProfileResult) error {
	if len(results) == 0 {
		return nil
	}

	pipe := s.rc.Pipeline()
	for _, res := range results {
		if !res.Success() {
			continue
		}
		pipe.HSet(ctx, profileKey(res.BillboardID), map[string]any{
			"billboard_id": res.BillboardID,
			"run_id":       runID,
			"profile":      string(res.Profile),
			"computed_at":  utils.UTCNowRFC3339(),
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to persist profiles to redis: %w", err)
	}
	return nil
}

// GetProfile fetches the stored profile document for one billboard. A missing
// profile returns nil, not an error.
func (s *ProfileStore) GetProfile(ctx context.Context, billboardID string) (map[string]string, error) {
	fields, err := s.rc.HGetAll(ctx, profileKey(billboardID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read profile for %s: %w", billboardID, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return fields, nil
}

// DeleteProfile removes a stored profile.
func (s *ProfileStore) DeleteProfile(ctx context.Context, billboardID string) error {
	if err := s.rc.Del(ctx, profileKey(billboardID)).Err(); err != nil {
		return fmt.Errorf("failed to delete profile for %s: %w", billboardID, err)
	}
	return nil
}
