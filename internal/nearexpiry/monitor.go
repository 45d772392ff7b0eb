// Package nearexpiry periodically scans the token registry for tokens
// approaching expiry and emits a one-shot warning per token id.
package nearexpiry

import (
	"sync"
	"time"

	"github.com/coriolis-robotics/teleop/internal/registry"
)

const (
	DefaultScanInterval = 10 * time.Second
	DefaultWarnWindow   = 60 * time.Second
)

// Warning carries (tokenId, sessionId, expiresAt, remainingMs).
type Warning struct {
	TokenID     string
	SessionID   string
	ExpiresAt   time.Time
	RemainingMs int64
}

// Monitor scans a *registry.Registry on an interval and invokes onWarn
// at most once per token id.
type Monitor struct {
	reg          *registry.Registry
	scanInterval time.Duration
	warnWindow   time.Duration
	onWarn       func(Warning)

	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMonitor(reg *registry.Registry, scanInterval, warnWindow time.Duration, onWarn func(Warning)) *Monitor {
	if scanInterval <= 0 {
		scanInterval = DefaultScanInterval
	}
	if warnWindow <= 0 {
		warnWindow = DefaultWarnWindow
	}
	return &Monitor{
		reg:          reg,
		scanInterval: scanInterval,
		warnWindow:   warnWindow,
		onWarn:       onWarn,
		seen:         make(map[string]struct{}),
	}
}

// Run blocks, scanning until ctx's Done-equivalent stop channel closes.
func (m *Monitor) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(m.scanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.scan()
		case <-stop:
			return
		}
	}
}

func (m *Monitor) scan() {
	now := time.Now()
	live := m.reg.All()

	liveIDs := make(map[string]struct{}, len(live))
	for _, e := range live {
		liveIDs[e.TokenID] = struct{}{}
		remaining := e.ExpiresAt.Sub(now)
		if remaining < 0 || remaining > m.warnWindow {
			continue
		}

		m.mu.Lock()
		_, alreadyWarned := m.seen[e.TokenID]
		if !alreadyWarned {
			m.seen[e.TokenID] = struct{}{}
		}
		m.mu.Unlock()

		if alreadyWarned {
			continue
		}
		if m.onWarn != nil {
			m.onWarn(Warning{
				TokenID:     e.TokenID,
				SessionID:   e.SessionID,
				ExpiresAt:   e.ExpiresAt,
				RemainingMs: remaining.Milliseconds(),
			})
		}
	}

	// Bound dedup-set memory: drop ids no longer present in the registry.
	m.mu.Lock()
	for id := range m.seen {
		if _, ok := liveIDs[id]; !ok {
			delete(m.seen, id)
		}
	}
	m.mu.Unlock()
}
