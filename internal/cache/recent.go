package cache

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable is returned by Redis-backed stores when no client is configured.
var ErrUnavailable = errors.New("redis unavailable")

// RecentSearches keeps each user's search history as a Redis list,
// most recent first, deduplicated case-insensitively and bounded by limit.
type RecentSearches struct {
	rdb   *redis.Client
	limit int
}

// NewRecentSearches returns a history store keeping at most limit entries per user.
func NewRecentSearches(rdb *redis.Client, limit int) *RecentSearches {
	if limit <= 0 {
		limit = 10
	}
	return &RecentSearches{rdb: rdb, limit: limit}
}

// Push records query at the head of the user's history.
func (r *RecentSearches) Push(ctx context.Context, userID, query string) error {
	q := strings.TrimSpace(query)
	if q == "" || userID == "" {
		return nil
	}
	if r.rdb == nil {
		return ErrUnavailable
	}

	key := RecentSearchKey(userID)
	existing, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return err
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range existing {
			if strings.EqualFold(e, q) {
				pipe.LRem(ctx, key, 0, e)
			}
		}
		pipe.LPush(ctx, key, q)
		pipe.LTrim(ctx, key, 0, int64(r.limit-1))
		return nil
	})
	return err
}

// List returns the user's history, most recent first. Without Redis the history is empty.
func (r *RecentSearches) List(ctx context.Context, userID string) ([]string, error) {
	if r.rdb == nil {
		return []string{}, nil
	}
	items, err := r.rdb.LRange(ctx, RecentSearchKey(userID), 0, int64(r.limit-1)).Result()
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Clear drops the user's history.
func (r *RecentSearches) Clear(ctx context.Context, userID string) error {
	if r.rdb == nil {
		return ErrUnavailable
	}
	return r.rdb.Del(ctx, RecentSearchKey(userID)).Err()
}
