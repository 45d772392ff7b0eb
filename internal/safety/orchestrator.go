package safety

import (
	"errors"
	"log/slog"
	"time"

	"github.com/coriolis-robotics/teleop/internal/wire"
)

// ErrHardwareUnavailable is returned when the hardware-stop handler was
// never initialized; the session is not re-entered after this error.
var ErrHardwareUnavailable = errors.New("hardware stop unavailable: handler not initialized")

// HardwareStopper is the narrow interface onto the (out-of-scope)
// hardware motor API.
type HardwareStopper interface {
	Stop() error
}

// StateSender delivers a `state` datachannel message to the operator;
// transport-send errors are logged, never propagated (§4.12 step 5).
type StateSender interface {
	SendState(msg wire.StateMsg) error
}

// AuditEmitter is the narrow slice of the audit publisher the
// orchestrator needs.
type AuditEmitter interface {
	Publish(event wire.AuditEvent)
}

// RevocationMeasurement is satisfied by measurement.RevocationCollector;
// kept as an interface here so safety doesn't import measurement.
type RevocationMeasurement interface {
	Complete(now time.Time)
}

// SessionStopper is satisfied by robotsession.Manager; kept as an
// interface here so safety doesn't import robotsession. Safe-stop is
// terminal for the session (§4.9) — EnterSafeStop is what takes the
// session manager out of active so control handlers start rejecting
// with SAFE_STOPPED.
type SessionStopper interface {
	EnterSafeStop()
}

// Orchestrator builds the OnSafeStop callback passed to Monitor at
// construction time, implementing §4.12's seven-step sequence. Every
// step runs synchronously on the trigger goroutine — hardware-stop is
// never skipped or deferred.
type Orchestrator struct {
	RobotID    string
	SessionID  func() string
	Hardware   HardwareStopper
	Sender     StateSender
	Audit      AuditEmitter
	Revocation RevocationMeasurement // may be nil if no revocation in flight
	Session    SessionStopper        // may be nil in tests that don't care about session state
}

func (o *Orchestrator) OnSafeStop(trigger Trigger) TransitionResult {
	entry := time.Now()

	if o.Hardware == nil {
		slog.Error("CRITICAL: hardware stop unavailable, handler not initialized", "trigger", trigger.String())
		return TransitionResult{Trigger: trigger, Timestamp: entry, Duration: time.Since(entry), Error: ErrHardwareUnavailable}
	}

	haltErr := o.Hardware.Stop()
	hwDone := time.Now()

	if o.Session != nil {
		o.Session.EnterSafeStop()
	}

	if trigger == TriggerInvalidCmds && o.Audit != nil {
		o.Audit.Publish(wire.AuditEvent{
			Type:      wire.EventInvalidCommandThresh,
			SessionID: safeSessionID(o.SessionID),
			RobotID:   o.RobotID,
			Timestamp: time.Now().UTC(),
		})
	}

	robotState := string(wire.RobotStateSafeStop)
	if haltErr != nil {
		robotState = string(wire.RobotStateSafeStopFailed)
	}
	if o.Sender != nil {
		if err := o.Sender.SendState(wire.StateMsg{
			Type:         wire.MsgState,
			RobotState:   robotState,
			SessionState: "safe_stop",
			T:            time.Now().UnixMilli(),
		}); err != nil {
			slog.Warn("safety: state notification send failed", "error", err)
		}
	}

	if o.Revocation != nil {
		o.Revocation.Complete(time.Now())
	}

	return TransitionResult{
		Trigger:           trigger,
		Timestamp:         entry,
		HardwareStoppedAt: hwDone,
		Duration:          time.Since(entry),
		Error:             haltErr,
	}
}

func safeSessionID(f func() string) string {
	if f == nil {
		return ""
	}
	return f()
}
