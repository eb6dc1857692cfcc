package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// PreferenceStore persists per-user display preferences in a Redis hash.
type PreferenceStore struct {
	rdb *redis.Client
}

// NewPreferenceStore returns a store backed by rdb, which may be nil.
func NewPreferenceStore(rdb *redis.Client) *PreferenceStore {
	return &PreferenceStore{rdb: rdb}
}

// Get returns every stored preference for the user.
func (s *PreferenceStore) Get(ctx context.Context, userID string) (map[string]string, error) {
	if s.rdb == nil {
		return nil, ErrUnavailable
	}
	return s.rdb.HGetAll(ctx, PreferencesKey(userID)).Result()
}

// Set writes the given fields, leaving the others untouched.
func (s *PreferenceStore) Set(ctx context.Context, userID string, values map[string]string) error {
	if s.rdb == nil {
		return ErrUnavailable
	}
	if len(values) == 0 {
		return nil
	}
	return s.rdb.HSet(ctx, PreferencesKey(userID), values).Err()
}
