package pipeline

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes chunk results by key. Concurrent requests for the same
// key converge on a single computation whose result is shared; distinct
// keys compute fully concurrently. Failed computations leave no entry.
type Cache struct {
	mu      sync.RWMutex
	entries map[ChunkKey]*ChunkResult
	group   singleflight.Group
}

func NewCache() *Cache {
	return &Cache{entries: make(map[ChunkKey]*ChunkResult)}
}

type cacheOutcome struct {
	result *ChunkResult
	hit    bool
}

// GetOrCompute returns the cached result for key, computing it at most
// once. The returned bool reports whether the result came from the cache.
func (c *Cache) GetOrCompute(key ChunkKey, compute func() (*ChunkResult, error)) (*ChunkResult, bool, error) {
	c.mu.RLock()
	if res, ok := c.entries[key]; ok {
		c.mu.RUnlock()
		return res, true, nil
	}
	c.mu.RUnlock()

	v, err, shared := c.group.Do(key.String(), func() (any, error) {
		// Recheck under the flight: a previous flight may have stored
		// the entry between our miss and this call.
		c.mu.RLock()
		if res, ok := c.entries[key]; ok {
			c.mu.RUnlock()
			return cacheOutcome{result: res, hit: true}, nil
		}
		c.mu.RUnlock()

		res, err := compute()
		if err != nil {
			return cacheOutcome{}, err
		}
		c.mu.Lock()
		c.entries[key] = res
		c.mu.Unlock()
		return cacheOutcome{result: res}, nil
	})
	if err != nil {
		return nil, false, err
	}
	out := v.(cacheOutcome)
	return out.result, out.hit || shared, nil
}

// Get returns the cached result for key, if present.
func (c *Cache) Get(key ChunkKey) (*ChunkResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res, ok := c.entries[key]
	return res, ok
}

// Clear evicts all entries for a source, or every entry when sourceID is
// empty. Eviction is immediate and total.
func (c *Cache) Clear(sourceID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sourceID == "" {
		n := len(c.entries)
		c.entries = make(map[ChunkKey]*ChunkResult)
		return n
	}
	n := 0
	for k := range c.entries {
		if k.SourceID == sourceID {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len reports the number of cached chunks.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
