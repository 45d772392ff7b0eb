// Package audit implements the bounded, non-blocking audit pipeline
// shared by the Gateway and the Robot Agent (§4.14).
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coriolis-robotics/teleop/internal/wire"
)

const DefaultQueueSize = 1024

// Transport delivers one audit event; HTTPTransport and
// DirectLedgerTransport both implement it.
type Transport interface {
	Send(ctx context.Context, event wire.AuditEvent) error
}

// Publisher enqueues events onto a bounded channel and drains them from a
// single worker goroutine. Enqueue never blocks the caller: on overflow
// the newest event is dropped and a counter incremented.
type Publisher struct {
	queue     chan wire.AuditEvent
	transport Transport
	dropped   atomic.Uint64
	sent      atomic.Uint64
	failed    atomic.Uint64
	done      chan struct{}
}

func NewPublisher(transport Transport, queueSize int) *Publisher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	p := &Publisher{
		queue:     make(chan wire.AuditEvent, queueSize),
		transport: transport,
		done:      make(chan struct{}),
	}
	go p.drain()
	return p
}

// Publish is fire-and-forget: it never blocks the control path.
func (p *Publisher) Publish(event wire.AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case p.queue <- event:
	default:
		p.dropped.Add(1)
		slog.Warn("audit: queue overflow, dropping event", "type", event.Type, "session_id", event.SessionID)
	}
}

func (p *Publisher) drain() {
	for {
		select {
		case event := <-p.queue:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := p.transport.Send(ctx, event)
			cancel()
			if err != nil {
				p.failed.Add(1)
				slog.Warn("audit: publish failed, dropping", "type", event.Type, "error", err)
				continue
			}
			p.sent.Add(1)
		case <-p.done:
			return
		}
	}
}

// Stats exposes dropped/sent/failed counters for the measurement
// subsystem and operational dashboards.
type Stats struct {
	Sent    uint64
	Dropped uint64
	Failed  uint64
	Queued  int
}

func (p *Publisher) Stats() Stats {
	return Stats{
		Sent:    p.sent.Load(),
		Dropped: p.dropped.Load(),
		Failed:  p.failed.Load(),
		Queued:  len(p.queue),
	}
}

// Shutdown drains the queue for a bounded grace period, then stops the
// worker. Matches §5/§9: "audit queue drained (bounded)" on teardown.
func (p *Publisher) Shutdown(grace time.Duration) {
	deadline := time.Now().Add(grace)
	for len(p.queue) > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	close(p.done)
}

// HTTPTransport POSTs JSON to <gateway>/v1/audit. Used by the Robot Agent
// (always) and, optionally, by the Gateway's own publisher when no
// direct ledger transport is configured.
type HTTPTransport struct {
	URL    string
	Client *http.Client
}

func NewHTTPTransport(url string) *HTTPTransport {
	return &HTTPTransport{URL: url, Client: &http.Client{Timeout: 5 * time.Second}}
}

func (t *HTTPTransport) Send(ctx context.Context, event wire.AuditEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return errStatus(resp.StatusCode)
	}
	return nil
}

type errStatus int

func (e errStatus) Error() string {
	return "audit: http status " + http.StatusText(int(e))
}
