package registry

import (
	"sort"
	"sync"
	"time"
)

// RevocationEntry is a single revocation cache record: (token id,
// revoked-at, expiry, optional reason).
type RevocationEntry struct {
	TokenID   string
	RevokedAt time.Time
	ExpiresAt time.Time
	Reason    string
}

// CacheStats mirrors the metrics called out in §4.5: hits, misses,
// size, evictions, hit-rate.
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Size      int
	Evictions uint64
}

func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// RevocationCache is a bounded O(1)-lookup mapping from token id to
// revocation record, evicting the oldest 10% (by revokedAt, rounded up,
// minimum 1) when at capacity.
type RevocationCache struct {
	mu        sync.Mutex
	entries   map[string]RevocationEntry
	maxSize   int
	hits      uint64
	misses    uint64
	evictions uint64
	persist   *FilePersistence
}

func NewRevocationCache(maxSize int, persist *FilePersistence) *RevocationCache {
	if maxSize <= 0 {
		maxSize = 100000
	}
	return &RevocationCache{entries: make(map[string]RevocationEntry), maxSize: maxSize, persist: persist}
}

func (c *RevocationCache) Add(tokenID string, expiresAt time.Time, reason string) {
	c.mu.Lock()
	entry := RevocationEntry{TokenID: tokenID, RevokedAt: time.Now().UTC(), ExpiresAt: expiresAt, Reason: reason}
	if _, exists := c.entries[tokenID]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.entries[tokenID] = entry
	c.mu.Unlock()

	if c.persist != nil {
		go c.persist.Append(entry)
	}
}

// evictOldestLocked evicts ceil(10%) (minimum 1) of entries, oldest by
// RevokedAt ascending. Caller holds c.mu.
func (c *RevocationCache) evictOldestLocked() {
	n := (len(c.entries) + 9) / 10
	if n < 1 {
		n = 1
	}
	all := make([]RevocationEntry, 0, len(c.entries))
	for _, e := range c.entries {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].RevokedAt.Before(all[j].RevokedAt) })
	for i := 0; i < n && i < len(all); i++ {
		delete(c.entries, all[i].TokenID)
		c.evictions++
	}
}

// IsRevoked reports whether a token is currently revoked, lazily
// dropping expired entries on lookup.
func (c *RevocationCache) IsRevoked(tokenID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[tokenID]
	if !ok {
		c.misses++
		return false
	}
	if !time.Now().Before(e.ExpiresAt) {
		delete(c.entries, tokenID)
		c.misses++
		return false
	}
	c.hits++
	return true
}

func (c *RevocationCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Size: len(c.entries), Evictions: c.evictions}
}

// CleanupExpired prunes expired entries proactively (periodic cleanup,
// independent of lookup-triggered lazy eviction).
func (c *RevocationCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, e := range c.entries {
		if !now.Before(e.ExpiresAt) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

func (c *RevocationCache) StartCleanup(interval time.Duration) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				c.CleanupExpired()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}

// LoadInto seeds the cache from persisted entries at startup, skipping
// anything already past expiry.
func (c *RevocationCache) LoadInto(entries []RevocationEntry) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		if now.Before(e.ExpiresAt) {
			c.entries[e.TokenID] = e
		}
	}
}
