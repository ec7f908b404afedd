package pagestore

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Cache fronts a PageStore with a bounded, concurrent-map-backed page
// cache, mirroring the sharded-map caching idiom this codebase's in-memory
// engine already uses for its own hot data.
type Cache struct {
	backing  *PageStore
	pages    *xsync.MapOf[string, []byte]
	maxPages int
}

// CacheStaticConfig bounds the cache's lifetime shape.
type CacheStaticConfig struct {
	// MaxPages is the approximate number of pages kept resident before the
	// cache starts evicting. Zero means unbounded.
	MaxPages int
}

// CreateCache builds a cache in front of a freshly created page store.
func CreateCache(backing *PageStore, cfg CacheStaticConfig) *Cache {
	return &Cache{backing: backing, pages: xsync.NewMapOf[string, []byte](), maxPages: cfg.MaxPages}
}

// OpenCache builds a cache in front of an existing page store; the cache
// itself starts cold regardless of what was resident before a restart.
func OpenCache(backing *PageStore, cfg CacheStaticConfig) *Cache {
	return CreateCache(backing, cfg)
}

// Get returns a page, filling the cache from the backing store on a miss.
func (c *Cache) Get(key []byte) ([]byte, bool, error) {
	k := string(key)
	if v, ok := c.pages.Load(k); ok {
		return v, true, nil
	}
	v, ok, err := c.backing.Get(key)
	if err != nil {
		return nil, false, err
	}
	if ok {
		c.pages.Store(k, v)
	}
	return v, ok, nil
}

// Set writes a page through to the backing store and updates the cache.
func (c *Cache) Set(key, value []byte) error {
	if err := c.backing.Set(key, value); err != nil {
		return err
	}
	c.pages.Store(string(key), value)
	c.evictIfOverCapacity()
	return nil
}

// Delete removes a page from both the cache and the backing store.
func (c *Cache) Delete(key []byte) error {
	if err := c.backing.Delete(key); err != nil {
		return err
	}
	c.pages.Delete(string(key))
	return nil
}

// ScanPrefix delegates directly to the backing store: range scans bypass
// the cache since they are not expected to be repeated.
func (c *Cache) ScanPrefix(prefix []byte, fn func(key, value []byte) bool) error {
	return c.backing.ScanPrefix(prefix, fn)
}

// DeleteRangeBytes delegates to the backing store and drops any cached
// pages that fall in range.
func (c *Cache) DeleteRangeBytes(lower, upper []byte) error {
	if err := c.backing.DeleteRangeBytes(lower, upper); err != nil {
		return err
	}
	c.pages.Range(func(k string, _ []byte) bool {
		if k >= string(lower) && (upper == nil || k < string(upper)) {
			c.pages.Delete(k)
		}
		return true
	})
	return nil
}

// Close releases the backing store.
func (c *Cache) Close() error {
	return c.backing.Close()
}

// evictIfOverCapacity drops an arbitrary page when the cache has grown
// past maxPages. This is a simple, not-LRU policy: the cache exists to
// spare page-store round-trips for hot pages, not to provide a precise
// eviction guarantee.
func (c *Cache) evictIfOverCapacity() {
	if c.maxPages <= 0 {
		return
	}
	if c.pages.Size() <= c.maxPages {
		return
	}
	c.pages.Range(func(k string, _ []byte) bool {
		c.pages.Delete(k)
		return false
	})
}
