package repository

import (
	"context"
	"sync"
	"time"

	"venuebook/internal/models"
)

type MemoryVenueCache struct {
	mu        sync.RWMutex
	venues    []*models.Venue
	expiresAt time.Time
	ttl       time.Duration
}

func NewMemoryVenueCache(ttl time.Duration) *MemoryVenueCache {
	return &MemoryVenueCache{ttl: ttl}
}

func (c *MemoryVenueCache) GetVenues(_ context.Context) ([]*models.Venue, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.venues == nil || (c.ttl > 0 && time.Now().After(c.expiresAt)) {
		return nil, false, nil
	}
	return cloneVenues(c.venues), true, nil
}

func (c *MemoryVenueCache) SetVenues(_ context.Context, venues []*models.Venue) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.venues = cloneVenues(venues)
	c.expiresAt = time.Now().Add(c.ttl)
	return nil
}

func (c *MemoryVenueCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.venues = nil
	return nil
}

// вызывающий код может менять полученные площадки
func cloneVenues(in []*models.Venue) []*models.Venue {
	out := make([]*models.Venue, len(in))
	for i, v := range in {
		cp := *v
		out[i] = &cp
	}
	return out
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

type MemoryRateLimiter struct {
	rateLimits sync.Map
	mu         sync.Mutex
}

func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{}
}

func (r *MemoryRateLimiter) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	val, ok := r.rateLimits.Load(key)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{count: 1, expiresAt: now.Add(window)}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(key, entry)
	return entry.count <= limit, nil
}
