// Package robotsession implements the Robot Agent's per-session state
// machine and token validator (§4.9).
package robotsession

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrSessionTerminated = errors.New("robotsession: session terminated")
	ErrInvalidTransition = errors.New("robotsession: invalid state transition")
)

type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateActive     State = "active"
	StateSafeStop   State = "safe_stop"
	StateTerminated State = "terminated"
)

// Info is the Robot-view session snapshot (§3).
type Info struct {
	SessionID        string
	OperatorID       string
	Scope            []string
	ExpiresAt        time.Time
	LastControlMsgAt time.Time
}

// Manager owns the robot's single active session and its linear state
// machine: idle → validating → active → terminated, and
// active → safe_stop → terminated (terminal).
type Manager struct {
	validator *TokenValidator
	onActive  func(Info)

	mu    sync.RWMutex
	state State
	info  *Info
}

func NewManager(validator *TokenValidator, onActive func(Info)) *Manager {
	return &Manager{validator: validator, onActive: onActive, state: StateIdle}
}

// ValidateToken parses and checks a capability token for a session and
// stores the resulting Info as the session's info. Results are not
// cached: every call validates the token again.
func (m *Manager) ValidateToken(sessionID, tok string) (Info, error) {
	m.mu.Lock()
	if m.state == StateTerminated || m.state == StateSafeStop {
		m.mu.Unlock()
		return Info{}, ErrSessionTerminated
	}
	m.state = StateValidating
	m.mu.Unlock()

	info, err := m.validator.Validate(sessionID, tok)
	if err != nil {
		return Info{}, err
	}

	m.mu.Lock()
	m.info = &info
	m.mu.Unlock()
	return info, nil
}

// Activate transitions to active and fires the state-change callback.
// Per the open question in §9, concurrent Activate for a different
// session fails closed: only the first Activate while idle/validating
// succeeds.
func (m *Manager) Activate(info Info) error {
	m.mu.Lock()
	if m.state != StateValidating && m.state != StateIdle {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	m.state = StateActive
	m.info = &info
	m.mu.Unlock()

	if m.onActive != nil {
		m.onActive(info)
	}
	return nil
}

func (m *Manager) EnterSafeStop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateActive {
		m.state = StateSafeStop
	}
}

// Terminate is idempotent: terminating an already-terminated session is
// a no-op, matching §9's preserved behavior for late revocations.
func (m *Manager) Terminate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateTerminated
	m.info = nil
}

func (m *Manager) IsActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateActive
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) Info() *Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.info == nil {
		return nil
	}
	cp := *m.info
	return &cp
}

func (m *Manager) TouchControlMessage() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.info != nil {
		m.info.LastControlMsgAt = time.Now()
	}
}
