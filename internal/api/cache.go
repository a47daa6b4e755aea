package api

import (
	"container/list"
	"crypto/sha256"
	"sync"
	"sync/atomic"
	"time"
)

// HeatmapCache holds encoded heatmap responses for the current snapshot
// generation. Entries are keyed by request digest, evicted least recently
// used and expire after a TTL. Advancing the generation drops everything
// computed against an older snapshot and rejects late writes for it.
type HeatmapCache struct {
	mu         sync.Mutex
	generation uint64
	lru        *list.List
	entries    map[[sha256.Size]byte]*list.Element
	maxEntries int
	ttl        time.Duration
	hits       atomic.Int64
	misses     atomic.Int64
	now        func() time.Time
}

type heatmapEntry struct {
	digest  [sha256.Size]byte
	data    []byte
	expires time.Time
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Generation uint64  `json:"generation"`
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewHeatmapCache creates a cache with the given capacity and TTL. A
// non-positive capacity disables caching; a non-positive TTL never expires.
func NewHeatmapCache(maxEntries int, ttl time.Duration) *HeatmapCache {
	return &HeatmapCache{
		lru:        list.New(),
		entries:    make(map[[sha256.Size]byte]*list.Element),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get returns the response cached for request under snapshot version, or
// nil.
func (c *HeatmapCache) Get(version uint64, request []byte) []byte {
	digest := sha256.Sum256(request)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[digest]
	if !ok || version != c.generation {
		c.misses.Add(1)
		return nil
	}
	e := el.Value.(*heatmapEntry)
	if c.ttl > 0 && c.now().After(e.expires) {
		c.remove(el)
		c.misses.Add(1)
		return nil
	}
	c.lru.MoveToFront(el)
	c.hits.Add(1)
	return e.data
}

// Put stores a response computed against snapshot version. Writes for a
// generation other than the current one are dropped.
func (c *HeatmapCache) Put(version uint64, request, data []byte) {
	if c.maxEntries <= 0 {
		return
	}
	digest := sha256.Sum256(request)

	c.mu.Lock()
	defer c.mu.Unlock()

	if version != c.generation {
		return
	}
	e := &heatmapEntry{digest: digest, data: data, expires: c.now().Add(c.ttl)}
	if el, ok := c.entries[digest]; ok {
		el.Value = e
		c.lru.MoveToFront(el)
		return
	}
	for c.lru.Len() >= c.maxEntries {
		c.remove(c.lru.Back())
	}
	c.entries[digest] = c.lru.PushFront(e)
}

// Advance moves the cache to snapshot version, dropping all entries when the
// generation changes. Older versions are ignored.
func (c *HeatmapCache) Advance(version uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if version <= c.generation {
		return
	}
	c.generation = version
	c.lru.Init()
	clear(c.entries)
}

// Stats returns cache performance statistics.
func (c *HeatmapCache) Stats() CacheStats {
	c.mu.Lock()
	s := CacheStats{Generation: c.generation, Entries: c.lru.Len(), MaxEntries: c.maxEntries}
	c.mu.Unlock()

	s.Hits = c.hits.Load()
	s.Misses = c.misses.Load()
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

func (c *HeatmapCache) remove(el *list.Element) {
	c.lru.Remove(el)
	delete(c.entries, el.Value.(*heatmapEntry).digest)
}
