package tenant

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCacheSize is the default maximum number of cached profiles.
const DefaultCacheSize = 1000

// CachedStore wraps a Store with a TTL cache. Misses are not cached, so a
// freshly created tenant is visible on the next lookup.
type CachedStore struct {
	next    Store
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	mu    sync.Mutex
	items map[uuid.UUID]cacheItem
}

type cacheItem struct {
	profile   Profile
	expiresAt time.Time
}

// NewCachedStore caches next for ttl, holding at most maxSize profiles.
func NewCachedStore(next Store, ttl time.Duration, maxSize int) *CachedStore {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	return &CachedStore{
		next:    next,
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		items:   make(map[uuid.UUID]cacheItem),
	}
}

func (c *CachedStore) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	now := c.now()

	c.mu.Lock()
	if item, ok := c.items[id]; ok && now.Before(item.expiresAt) {
		c.mu.Unlock()
		p := item.profile
		return &p, nil
	}
	c.mu.Unlock()

	p, err := c.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) >= c.maxSize {
		c.evictExpired(now)
	}
	if len(c.items) >= c.maxSize {
		// Still full: drop an arbitrary entry.
		for k := range c.items {
			delete(c.items, k)
			break
		}
	}
	c.items[id] = cacheItem{profile: *p, expiresAt: now.Add(c.ttl)}
	return p, nil
}

// Invalidate drops a cached profile.
func (c *CachedStore) Invalidate(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
}

func (c *CachedStore) evictExpired(now time.Time) {
	for k, item := range c.items {
		if !now.Before(item.expiresAt) {
			delete(c.items, k)
		}
	}
}
