package settings

import (
	"context"
	"sync"
)

// Loader fetches raw setting overrides from the storage collaborator.
type Loader interface {
	Load(ctx context.Context) (map[string]string, error)
}

// Cache is a single-flight cache over a Loader. The first caller to miss
// acquires the write lock, loads, and populates; callers arriving while the
// load is in flight block on that lock and re-check before loading again, so
// burst traffic never triggers duplicate loads.
type Cache struct {
	mu       sync.RWMutex
	loaded   bool
	current  Settings
	defaults Settings
	loader   Loader
}

func NewCache(loader Loader, defaults Settings) *Cache {
	return &Cache{
		loader:   loader,
		defaults: defaults,
	}
}

// Get returns the cached settings, loading them on first use. A load failure
// returns the defaults along with the error and leaves the cache unpopulated
// so the next call retries.
func (c *Cache) Get(ctx context.Context) (Settings, error) {
	c.mu.RLock()
	if c.loaded {
		current := c.current
		c.mu.RUnlock()
		return current, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-check: another caller may have completed the load while this one
	// was blocked on the lock.
	if c.loaded {
		return c.current, nil
	}

	if c.loader == nil {
		c.current = c.defaults
		c.loaded = true
		return c.current, nil
	}

	values, err := c.loader.Load(ctx)
	if err != nil {
		return c.defaults, err
	}

	c.current = applyOverrides(c.defaults, values)
	c.loaded = true
	return c.current, nil
}

// Invalidate drops the cached value; the next Get reloads.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
}
