package nearexpiry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coriolis-robotics/teleop/internal/registry"
)

func TestMonitor_WarnsOnceForTokenNearExpiry(t *testing.T) {
	reg := registry.NewRegistry(registry.NewRevocationCache(100, nil))
	reg.Register(registry.Entry{TokenID: "t1", SessionID: "s1", ExpiresAt: time.Now().Add(30 * time.Second)})

	var mu sync.Mutex
	var warnings []Warning
	m := NewMonitor(reg, time.Second, 60*time.Second, func(w Warning) {
		mu.Lock()
		warnings = append(warnings, w)
		mu.Unlock()
	})

	m.scan()
	m.scan() // second scan must not re-warn

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, warnings, 1)
	assert.Equal(t, "t1", warnings[0].TokenID)
}

func TestMonitor_IgnoresTokensOutsideWarnWindow(t *testing.T) {
	reg := registry.NewRegistry(registry.NewRevocationCache(100, nil))
	reg.Register(registry.Entry{TokenID: "t1", SessionID: "s1", ExpiresAt: time.Now().Add(time.Hour)})

	var called bool
	m := NewMonitor(reg, time.Second, 60*time.Second, func(w Warning) { called = true })
	m.scan()

	assert.False(t, called)
}

func TestMonitor_IgnoresAlreadyExpiredTokens(t *testing.T) {
	reg := registry.NewRegistry(registry.NewRevocationCache(100, nil))
	reg.Register(registry.Entry{TokenID: "t1", SessionID: "s1", ExpiresAt: time.Now().Add(-time.Second)})

	var called bool
	m := NewMonitor(reg, time.Second, 60*time.Second, func(w Warning) { called = true })
	m.scan()

	assert.False(t, called)
}

func TestMonitor_DropsSeenEntryOnceTokenLeavesRegistry(t *testing.T) {
	reg := registry.NewRegistry(registry.NewRevocationCache(100, nil))
	reg.Register(registry.Entry{TokenID: "t1", SessionID: "s1", ExpiresAt: time.Now().Add(30 * time.Second)})

	count := 0
	m := NewMonitor(reg, time.Second, 60*time.Second, func(w Warning) { count++ })
	m.scan()
	require.Equal(t, 1, count)

	reg.Revoke("t1", "expired")
	m.scan()

	m.mu.Lock()
	_, stillSeen := m.seen["t1"]
	m.mu.Unlock()
	assert.False(t, stillSeen)
}
