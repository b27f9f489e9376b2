package hue

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// cachedGroup holds inspected group info with timestamp.
type cachedGroup struct {
	Info      GroupInfo
	FetchedAt time.Time
}

// GroupCache is a pure TTL cache for inspected groups.
// It does NOT fetch from network - callers must do that.
type GroupCache struct {
	mu     sync.RWMutex
	groups map[string]*cachedGroup
	ttl    time.Duration
}

// NewGroupCache creates a new group cache.
// A zero ttl uses the default of 1 minute.
func NewGroupCache(ttl time.Duration) *GroupCache {
	if ttl == 0 {
		ttl = time.Minute
	}

	log.Debug().Dur("ttl", ttl).Msg("Group cache initialized")

	return &GroupCache{
		groups: make(map[string]*cachedGroup),
		ttl:    ttl,
	}
}

// Get returns cached group info, or nil if not cached or stale.
func (c *GroupCache) Get(id string) *GroupInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, ok := c.groups[id]
	if !ok {
		return nil
	}
	if time.Since(cached.FetchedAt) > c.ttl {
		return nil
	}

	info := cached.Info
	return &info
}

// Set stores group info in the cache.
func (c *GroupCache) Set(id string, info GroupInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.groups[id] = &cachedGroup{
		Info:      info,
		FetchedAt: time.Now(),
	}
}

// Invalidate removes an entry from the cache.
func (c *GroupCache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.groups, id)
}
