package cache

import (
	"sync"
	"time"

	"matchday/internal/models"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultLikeStateSize bounds how many comments the like-state cache tracks.
	DefaultLikeStateSize = 4096
	// DefaultLikeStateTTL bounds how long a count read from the database is trusted.
	DefaultLikeStateTTL = 30 * time.Second
)

// LikeStateCache holds the latest known like count per comment and notifies
// subscribers when a toggle changes it.
type LikeStateCache struct {
	counts *expirable.LRU[string, int64]

	mu     sync.RWMutex
	nextID int
	subs   map[int]func(models.LikeState)
}

// NewLikeStateCache returns a cache tracking at most size comments, each for at most ttl.
func NewLikeStateCache(size int, ttl time.Duration) *LikeStateCache {
	if size <= 0 {
		size = DefaultLikeStateSize
	}
	if ttl <= 0 {
		ttl = DefaultLikeStateTTL
	}
	return &LikeStateCache{
		counts: expirable.NewLRU[string, int64](size, nil, ttl),
		subs:   make(map[int]func(models.LikeState)),
	}
}

// Count returns the cached like count for commentID.
func (c *LikeStateCache) Count(commentID string) (int64, bool) {
	return c.counts.Get(commentID)
}

// Store records a count read from the database without notifying anyone.
func (c *LikeStateCache) Store(commentID string, count int64) {
	c.counts.Add(commentID, count)
}

// Invalidate drops the entry for commentID.
func (c *LikeStateCache) Invalidate(commentID string) {
	c.counts.Remove(commentID)
}

// Publish replaces the entry with the confirmed state and fans it out to subscribers.
func (c *LikeStateCache) Publish(state models.LikeState) {
	c.counts.Remove(state.CommentID)
	c.counts.Add(state.CommentID, state.LikeCount)

	c.mu.RLock()
	subs := make([]func(models.LikeState), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.RUnlock()

	for _, fn := range subs {
		fn(state)
	}
}

// Subscribe registers fn for every published state. The returned func unsubscribes.
func (c *LikeStateCache) Subscribe(fn func(models.LikeState)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Len reports how many comments are cached.
func (c *LikeStateCache) Len() int {
	return c.counts.Len()
}
