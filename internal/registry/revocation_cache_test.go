package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevocationCache_AddAndIsRevoked(t *testing.T) {
	c := NewRevocationCache(10, nil)
	c.Add("tok-1", time.Now().Add(time.Hour), "compromised")

	assert.True(t, c.IsRevoked("tok-1"))
	assert.False(t, c.IsRevoked("tok-unknown"))

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestRevocationCache_ExpiredEntryLazilyDropped(t *testing.T) {
	c := NewRevocationCache(10, nil)
	c.Add("tok-1", time.Now().Add(-time.Second), "expired")

	assert.False(t, c.IsRevoked("tok-1"))
	assert.Equal(t, 0, c.Stats().Size)
}

func TestRevocationCache_EvictsOldestTenPercentAtCapacity(t *testing.T) {
	c := NewRevocationCache(10, nil)
	base := time.Now()
	for i := 0; i < 10; i++ {
		c.mu.Lock()
		c.entries[string(rune('a'+i))] = RevocationEntry{
			TokenID:   string(rune('a' + i)),
			RevokedAt: base.Add(time.Duration(i) * time.Second),
			ExpiresAt: base.Add(time.Hour),
		}
		c.mu.Unlock()
	}

	c.Add("new-token", base.Add(time.Hour), "newest")

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Evictions)
	assert.True(t, c.IsRevoked("new-token"))
	assert.False(t, c.IsRevoked("a"), "oldest entry should have been evicted")
}

func TestRevocationCache_CleanupExpiredRemovesPastEntries(t *testing.T) {
	c := NewRevocationCache(10, nil)
	c.Add("tok-expired", time.Now().Add(-time.Minute), "x")
	c.Add("tok-live", time.Now().Add(time.Hour), "y")

	removed := c.CleanupExpired()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Stats().Size)
}

func TestRevocationCache_LoadIntoSkipsExpired(t *testing.T) {
	c := NewRevocationCache(10, nil)
	entries := []RevocationEntry{
		{TokenID: "live", ExpiresAt: time.Now().Add(time.Hour)},
		{TokenID: "dead", ExpiresAt: time.Now().Add(-time.Hour)},
	}
	c.LoadInto(entries)

	assert.True(t, c.IsRevoked("live"))
	c.mu.Lock()
	_, deadPresent := c.entries["dead"]
	c.mu.Unlock()
	assert.False(t, deadPresent)
}

func TestCacheStats_HitRate(t *testing.T) {
	s := CacheStats{Hits: 3, Misses: 1}
	assert.InDelta(t, 0.75, s.HitRate(), 0.0001)

	require.Equal(t, 0.0, CacheStats{}.HitRate())
}
