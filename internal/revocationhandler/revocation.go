// Package revocationhandler implements the Robot Agent's response to a
// Gateway-pushed revocation (§4.13), grounded directly on the reference
// teleoperation agent's OnRevoked handler.
package revocationhandler

import (
	"log/slog"
	"time"

	"github.com/coriolis-robotics/teleop/internal/safety"
	"github.com/coriolis-robotics/teleop/internal/wire"
)

// Timestamps captures the full sequence used by the revocation-latency
// measurement collector.
type Timestamps struct {
	MessageReceived  time.Time
	HandlerStarted   time.Time
	TransportClosed  time.Time
	SessionTerminated time.Time
	SafeStopTriggered time.Time
	SafeStopCompleted time.Time
}

// Transport is the narrow interface onto the realtime transport's
// close operation.
type Transport interface {
	Close() error
}

// SessionTerminator is the subset of robotsession.Manager this handler
// needs.
type SessionTerminator interface {
	Terminate()
}

type AuditEmitter interface {
	Publish(event wire.AuditEvent)
}

// Handler wires a revoked{} signaling message to transport teardown,
// session termination, and the safety monitor's OnRevoked trigger.
type Handler struct {
	RobotID   string
	Transport Transport
	Session   SessionTerminator
	Monitor   *safety.Monitor
	Audit     AuditEmitter
}

// OnRevoked runs the exact sequence of §4.13: capture MessageReceived,
// capture HandlerStarted, close transport, terminate session, record
// SafeStopTriggered, call safety.OnRevoked() (which synchronously
// invokes onSafeStop when the monitor is armed), record
// SafeStopCompleted once it returns, then emit SESSION_REVOKED.
func (h *Handler) OnRevoked(sessionID, reason string) Timestamps {
	ts := Timestamps{MessageReceived: time.Now()}
	ts.HandlerStarted = time.Now()

	if h.Transport != nil {
		if err := h.Transport.Close(); err != nil {
			slog.Warn("revocationhandler: transport close failed", "error", err)
		}
	}
	ts.TransportClosed = time.Now()

	h.Session.Terminate()
	ts.SessionTerminated = time.Now()

	ts.SafeStopTriggered = time.Now()
	h.Monitor.OnRevoked()
	ts.SafeStopCompleted = time.Now()

	if h.Audit != nil {
		h.Audit.Publish(wire.AuditEvent{
			Type:      wire.EventSessionRevoked,
			SessionID: sessionID,
			RobotID:   h.RobotID,
			Timestamp: time.Now().UTC(),
			Metadata:  map[string]any{"reason": reason},
		})
	}

	return ts
}
