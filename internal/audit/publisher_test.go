package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coriolis-robotics/teleop/internal/wire"
)

type fakeTransport struct {
	mu      sync.Mutex
	events  []wire.AuditEvent
	failNext bool
	delay   time.Duration
}

func (f *fakeTransport) Send(ctx context.Context, event wire.AuditEvent) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return assert.AnError
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestPublisher_PublishDeliversEvent(t *testing.T) {
	transport := &fakeTransport{}
	p := NewPublisher(transport, 8)
	defer p.Shutdown(time.Second)

	p.Publish(wire.AuditEvent{Type: wire.EventSessionGranted, SessionID: "s1"})

	require.Eventually(t, func() bool { return transport.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(1), p.Stats().Sent)
}

func TestPublisher_StampsTimestampWhenZero(t *testing.T) {
	transport := &fakeTransport{}
	p := NewPublisher(transport, 8)
	defer p.Shutdown(time.Second)

	p.Publish(wire.AuditEvent{Type: wire.EventSessionStarted})

	require.Eventually(t, func() bool { return transport.count() == 1 }, time.Second, 5*time.Millisecond)
	transport.mu.Lock()
	ts := transport.events[0].Timestamp
	transport.mu.Unlock()
	assert.False(t, ts.IsZero())
}

func TestPublisher_OverflowDropsNewestAndIncrementsCounter(t *testing.T) {
	transport := &fakeTransport{delay: 50 * time.Millisecond}
	p := NewPublisher(transport, 1)
	defer p.Shutdown(time.Second)

	for i := 0; i < 5; i++ {
		p.Publish(wire.AuditEvent{Type: wire.EventSessionStarted, SessionID: "s1"})
	}

	assert.Greater(t, p.Stats().Dropped, uint64(0))
}

func TestPublisher_FailedSendIncrementsFailedCounter(t *testing.T) {
	transport := &fakeTransport{failNext: true}
	p := NewPublisher(transport, 8)
	defer p.Shutdown(time.Second)

	p.Publish(wire.AuditEvent{Type: wire.EventSessionDenied})

	require.Eventually(t, func() bool { return p.Stats().Failed == 1 }, time.Second, 5*time.Millisecond)
}

func TestPublisher_ShutdownDrainsQueueWithinGrace(t *testing.T) {
	transport := &fakeTransport{}
	p := NewPublisher(transport, 8)

	p.Publish(wire.AuditEvent{Type: wire.EventSessionEnded})
	p.Shutdown(time.Second)

	assert.Equal(t, 1, transport.count())
}
