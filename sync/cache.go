package sync

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"
)

// cacheConfig controls the expansion cache.
type cacheConfig struct {
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
}

var defaultCacheConfig = cacheConfig{
	ttl:             15 * time.Minute,
	maxEntries:      1000,
	cleanupInterval: 5 * time.Minute,
}

type cacheEntry struct {
	starts     []time.Time
	expiresAt  time.Time
	accessedAt time.Time
}

// expansionCache is a TTL cache with LRU eviction once maxEntries is
// exceeded. A background goroutine sweeps expired entries; close stops it.
type expansionCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	cfg     cacheConfig
	stop    chan struct{}
}

func newExpansionCache(cfg cacheConfig) *expansionCache {
	c := &expansionCache{
		entries: make(map[string]*cacheEntry),
		cfg:     cfg,
		stop:    make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// cacheKey hashes everything that affects an expansion result.
func cacheKey(event RemoteEvent, rangeStart, rangeEnd time.Time) string {
	h := sha256.New()
	h.Write([]byte(event.UID))
	h.Write([]byte(event.RRule))
	h.Write([]byte(event.Start.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte(rangeStart.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte(rangeEnd.UTC().Format(time.RFC3339Nano)))
	for _, exdate := range event.ExDates {
		h.Write([]byte(exdate.UTC().Format(time.RFC3339Nano)))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func (c *expansionCache) get(key string) ([]time.Time, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	now := time.Now()
	if now.After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	entry.accessedAt = now
	c.mu.Unlock()
	return entry.starts, true
}

func (c *expansionCache) set(key string, starts []time.Time) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cacheEntry{
		starts:     starts,
		expiresAt:  now.Add(c.cfg.ttl),
		accessedAt: now,
	}
	if len(c.entries) > c.cfg.maxEntries {
		c.evict()
	}
}

// evict drops expired entries, then the least recently accessed until the
// cache fits. Caller holds the write lock.
func (c *expansionCache) evict() {
	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	if len(c.entries) <= c.cfg.maxEntries {
		return
	}

	type keyAccess struct {
		key        string
		accessedAt time.Time
	}
	byAge := make([]keyAccess, 0, len(c.entries))
	for key, entry := range c.entries {
		byAge = append(byAge, keyAccess{key, entry.accessedAt})
	}
	sort.Slice(byAge, func(i, j int) bool {
		return byAge[i].accessedAt.Before(byAge[j].accessedAt)
	})
	excess := len(c.entries) - c.cfg.maxEntries
	for i := 0; i < excess; i++ {
		delete(c.entries, byAge[i].key)
	}
}

func (c *expansionCache) cleanupLoop() {
	ticker := time.NewTicker(c.cfg.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.entries {
				if now.After(entry.expiresAt) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}

func (c *expansionCache) close() {
	close(c.stop)
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
}

func (c *expansionCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
