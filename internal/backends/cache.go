package backends

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// SecretCache memoizes fetched secret values for the life of the process.
// Entries are never invalidated: a value changed remotely after the first
// fetch is not observed until the process restarts. Concurrent first
// fetches of the same key share one call.
type SecretCache struct {
	mu     sync.RWMutex
	values map[string]interface{}
	group  singleflight.Group
}

// NewSecretCache creates an empty cache.
func NewSecretCache() *SecretCache {
	return &SecretCache{values: make(map[string]interface{})}
}

// DefaultSecretCache is shared by every nas backend that is not given its
// own cache.
var DefaultSecretCache = NewSecretCache()

// Get returns the cached value for key, calling fetch once to populate it.
// Errors are not cached.
func (c *SecretCache) Get(key string, fetch func() (interface{}, error)) (interface{}, error) {
	c.mu.RLock()
	v, ok := c.values[key]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		cached, ok := c.values[key]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}

		fetched, err := fetch()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.values[key] = fetched
		c.mu.Unlock()
		return fetched, nil
	})
	return v, err
}

// Len returns the number of cached entries.
func (c *SecretCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}
