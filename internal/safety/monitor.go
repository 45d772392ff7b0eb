// Package safety implements the Robot Agent's safety monitor and
// safe-stop orchestrator (§4.12). The trigger-priority/idempotent-latch
// design mirrors the generation-counter technique used for stale-result
// rejection in circuit breakers: once latched, later triggers are
// no-ops, exactly as a tripped breaker ignores further failures.
package safety

import (
	"sync"
	"time"
)

// Trigger is ordered by descending priority: Revoked > EStop >
// ControlLoss > InvalidCmds. Once asserted, a trigger is irrevocable
// for the remainder of the cycle.
type Trigger int

const (
	TriggerNone Trigger = iota
	TriggerInvalidCmds
	TriggerControlLoss
	TriggerEStop
	TriggerRevoked
)

func (t Trigger) Priority() int { return int(t) }

func (t Trigger) String() string {
	switch t {
	case TriggerRevoked:
		return "Revoked"
	case TriggerEStop:
		return "EStop"
	case TriggerControlLoss:
		return "ControlLoss"
	case TriggerInvalidCmds:
		return "InvalidCmds"
	default:
		return "None"
	}
}

// TransitionResult is returned by onSafeStop exactly once per triggered
// cycle.
type TransitionResult struct {
	Trigger            Trigger
	Timestamp          time.Time
	HardwareStoppedAt  time.Time
	Duration           time.Duration
	Error              error
}

type monitorState int

const (
	stateArmed monitorState = iota
	stateTriggered
)

const (
	DefaultControlLossTimeout = 500 * time.Millisecond
	DefaultInvalidCmdThreshold = 10
	invalidCmdWindow           = 30 * time.Second
)

// OnSafeStop is invoked exactly once per triggered cycle; the caller
// supplies it at construction time so the safety monitor and the agent
// don't form a cyclic dependency (§9).
type OnSafeStop func(trigger Trigger) TransitionResult

// Monitor serializes all trigger evaluation behind a single lock — that
// lock is the exactly-once guarantee for safe-stop orchestration (§5).
type Monitor struct {
	mu    sync.Mutex
	state monitorState
	last  TransitionResult

	onSafeStop OnSafeStop

	controlLossTimeout time.Duration
	invalidCmdThreshold int

	lastControlMsg   time.Time
	invalidCmdCount  int
	invalidCmdWindowStart time.Time
}

func NewMonitor(onSafeStop OnSafeStop, controlLossTimeout time.Duration, invalidCmdThreshold int) *Monitor {
	if controlLossTimeout <= 0 {
		controlLossTimeout = DefaultControlLossTimeout
	}
	if invalidCmdThreshold <= 0 {
		invalidCmdThreshold = DefaultInvalidCmdThreshold
	}
	return &Monitor{
		onSafeStop:          onSafeStop,
		controlLossTimeout:  controlLossTimeout,
		invalidCmdThreshold: invalidCmdThreshold,
		state:               stateArmed,
		lastControlMsg:      time.Now(),
	}
}

// fire is the single serialization point: only the first trigger in any
// cycle invokes onSafeStop.
func (m *Monitor) fire(trigger Trigger) {
	m.mu.Lock()
	if m.state == stateTriggered {
		m.mu.Unlock()
		return
	}
	m.state = stateTriggered
	m.mu.Unlock()

	result := m.onSafeStop(trigger)

	m.mu.Lock()
	m.last = result
	m.mu.Unlock()
}

func (m *Monitor) OnRevoked()   { m.fire(TriggerRevoked) }
func (m *Monitor) OnEStop()     { m.fire(TriggerEStop) }

// OnInvalidCommand increments the invalid-command counter inside a
// fixed 30s window that opens at the first invalid command after a
// reset. The window does not slide: once 30s have passed since it
// opened, the next invalid command starts a new window with the count
// back at one. The window resets on a successful command and on
// Reset(). Crossing the threshold fires InvalidCmds.
func (m *Monitor) OnInvalidCommand() {
	m.mu.Lock()
	now := time.Now()
	if m.invalidCmdWindowStart.IsZero() || now.Sub(m.invalidCmdWindowStart) > invalidCmdWindow {
		m.invalidCmdWindowStart = now
		m.invalidCmdCount = 0
	}
	m.invalidCmdCount++
	crossed := m.invalidCmdCount >= m.invalidCmdThreshold
	m.mu.Unlock()

	if crossed {
		m.fire(TriggerInvalidCmds)
	}
}

// OnValidCommand resets the invalid-command counter and the control-loss
// timer on any successful command.
func (m *Monitor) OnValidCommand() {
	m.mu.Lock()
	m.invalidCmdCount = 0
	m.invalidCmdWindowStart = time.Time{}
	m.lastControlMsg = time.Now()
	m.mu.Unlock()
}

// CheckControlLoss fires ControlLoss if no datachannel message has
// arrived for controlLossTimeout on an active session. isActive is
// supplied by the caller (the session manager owns activity state).
func (m *Monitor) CheckControlLoss(isActive bool) {
	if !isActive {
		return
	}
	m.mu.Lock()
	elapsed := time.Since(m.lastControlMsg)
	m.mu.Unlock()
	if elapsed >= m.controlLossTimeout {
		m.fire(TriggerControlLoss)
	}
}

func (m *Monitor) TouchControlMessage() {
	m.mu.Lock()
	m.lastControlMsg = time.Now()
	m.mu.Unlock()
}

// Reset returns the monitor to armed; called only by Activate on a
// fresh session.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = stateArmed
	m.invalidCmdCount = 0
	m.invalidCmdWindowStart = time.Time{}
	m.lastControlMsg = time.Now()
}

func (m *Monitor) IsTriggered() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == stateTriggered
}

func (m *Monitor) LastTransition() TransitionResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
