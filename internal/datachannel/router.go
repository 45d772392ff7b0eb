// Package datachannel demultiplexes inbound JSON datachannel messages to
// registered handlers and enforces protocol-level error reporting (§4.10).
package datachannel

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/coriolis-robotics/teleop/internal/wire"
)

// Sender abstracts the underlying datachannel send primitive so the
// router can be tested without a real peer connection.
type Sender interface {
	Send(data []byte) error
}

// HandlerFunc processes one decoded message; raw is the original bytes
// so handlers can re-decode into their concrete type. A non-nil response
// is sent verbatim; a non-nil error becomes an INVALID_MESSAGE reply.
type HandlerFunc func(raw []byte) (response any, err error)

// Router is re-entrant per message: the handler registry is read-mostly
// and protected by an RWMutex so concurrent dispatch at high message
// rates does not race.
type Router struct {
	mu               sync.RWMutex
	handlers         map[string]HandlerFunc
	sender           Sender
	onInvalidMessage func()
}

func NewRouter(sender Sender) *Router {
	return &Router{handlers: make(map[string]HandlerFunc), sender: sender}
}

func (r *Router) Register(msgType string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[msgType] = h
}

// SetInvalidMessageHandler registers a callback fired once per
// protocol-rejected message — unparseable envelope, unknown type, no
// registered handler, or any error a handler returns — the single counting point for the
// safety monitor's invalid-command threshold (§4.12 trigger 4).
func (r *Router) SetInvalidMessageHandler(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onInvalidMessage = fn
}

// Dispatch decodes the envelope head, validates the type, and invokes
// the registered handler per §4.10's algorithm.
func (r *Router) Dispatch(raw []byte) error {
	var env wire.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return r.sendError(wire.ErrInvalidMessage, "unparseable message", "", 0)
	}

	if !wire.KnownMessageTypes[env.Type] {
		return r.sendError(wire.ErrUnknownType, "unrecognized message type", env.Type, 0)
	}

	r.mu.RLock()
	h, ok := r.handlers[env.Type]
	r.mu.RUnlock()
	if !ok {
		return r.sendError(wire.ErrUnknownType, "no handler", env.Type, 0)
	}

	resp, err := h(raw)
	if err != nil {
		return r.sendError(wire.ErrInvalidMessage, err.Error(), env.Type, 0)
	}
	if resp != nil {
		return r.send(resp)
	}
	return nil
}

func (r *Router) send(v any) error {
	if r.sender == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("datachannel: marshal response: %w", err)
	}
	return r.sender.Send(b)
}

// sendError is best-effort: send failures are surfaced to the caller but
// never panic or crash the router. Every call site is a protocol
// rejection, so this is also where the invalid-message hook fires.
func (r *Router) sendError(code, reason, refType string, refT int64) error {
	r.mu.RLock()
	hook := r.onInvalidMessage
	r.mu.RUnlock()
	if hook != nil {
		hook()
	}

	msg := wire.DCErrorMsg{Type: wire.MsgError, Code: code, Reason: reason, RefType: refType, RefT: refT}
	if err := r.send(msg); err != nil {
		return fmt.Errorf("datachannel: error notification send failed: %w", err)
	}
	return nil
}
