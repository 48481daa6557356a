package catalog

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// permCache holds the role-name to permission-name map behind a short TTL.
// Catalog data changes rarely; AccessContext and consent data are never
// cached this way.
type permCache struct {
	mu       sync.RWMutex
	ttl      time.Duration
	loadedAt time.Time
	byRole   map[string][]string
	now      func() time.Time
	group    singleflight.Group
}

func newPermCache(ttl time.Duration) *permCache {
	return &permCache{ttl: ttl, now: time.Now}
}

func (c *permCache) get(ctx context.Context, load func(context.Context) (map[string][]string, error)) (map[string][]string, error) {
	c.mu.RLock()
	if c.byRole != nil && c.now().Sub(c.loadedAt) < c.ttl {
		cached := c.byRole
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	// Concurrent misses after an invalidation collapse into one reload.
	loaded, err, _ := c.group.Do("role_permissions", func() (any, error) {
		c.mu.RLock()
		if c.byRole != nil && c.now().Sub(c.loadedAt) < c.ttl {
			cached := c.byRole
			c.mu.RUnlock()
			return cached, nil
		}
		c.mu.RUnlock()

		byRole, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.byRole = byRole
		c.loadedAt = c.now()
		c.mu.Unlock()
		return byRole, nil
	})
	if err != nil {
		return nil, err
	}
	return loaded.(map[string][]string), nil
}

func (c *permCache) invalidate() {
	c.mu.Lock()
	c.byRole = nil
	c.mu.Unlock()
}
