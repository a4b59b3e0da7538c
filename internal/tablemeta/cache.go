package tablemeta

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache is a concurrency-safe per-table metadata cache. Multiple concurrent
// callers for the same (schema, table) key see a single source query via
// singleflight; the cache is lazily populated on first reference and
// evicted only by explicit Invalidate. The engine's DDL path does not call
// Invalidate, so entries live for the Cache's lifetime.
type Cache struct {
	fetcher Fetcher
	group   singleflight.Group

	mu      sync.RWMutex
	entries map[string]TbMeta
}

// New creates a Cache backed by fetcher.
func New(fetcher Fetcher) *Cache {
	return &Cache{
		fetcher: fetcher,
		entries: make(map[string]TbMeta),
	}
}

func key(schema, table string) string { return schema + "." + table }

// Get returns the cached TbMeta for (schema, table), fetching it on miss.
// A connection error from the fetcher is returned to the caller to retry;
// a definitive "not found" is surfaced as engineerr.KindMetaNotFound.
func (c *Cache) Get(schema, table string) (TbMeta, error) {
	k := key(schema, table)

	c.mu.RLock()
	if m, ok := c.entries[k]; ok {
		c.mu.RUnlock()
		return m, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(k, func() (any, error) {
		m, ferr := c.fetcher.FetchTableMeta(schema, table)
		if ferr != nil {
			return TbMeta{}, ferr
		}
		c.mu.Lock()
		c.entries[k] = m
		c.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return TbMeta{}, err
	}
	return v.(TbMeta), nil
}

// Invalidate evicts the cached entry for (schema, table); the next Get
// re-fetches it.
func (c *Cache) Invalidate(schema, table string) {
	c.mu.Lock()
	delete(c.entries, key(schema, table))
	c.mu.Unlock()
}
