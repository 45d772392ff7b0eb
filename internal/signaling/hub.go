// Package signaling implements the Gateway-side signaling hub: per-session
// two-peer rooms relaying offer/answer/ice/leave and pushing
// Gateway-initiated session_state/revoked notifications.
package signaling

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/coriolis-robotics/teleop/internal/wire"
)

// peer is one connected signaling websocket, tagged with its role.
type peer struct {
	conn *websocket.Conn
	role wire.SignalRole
}

// Room is a single session's two-peer room. All message dispatch for the
// room is serialized through run(), the room's single writer goroutine —
// this is the ordering guarantee of §5 ("the two peers see each other's
// relay messages in the order the hub received them").
type Room struct {
	sessionID string
	inbox     chan roomMsg
	done      chan struct{}

	mu    sync.Mutex
	peers map[wire.SignalRole]*peer
}

type roomMsg struct {
	from wire.SignalRole
	raw  []byte
}

func newRoom(sessionID string) *Room {
	r := &Room{
		sessionID: sessionID,
		inbox:     make(chan roomMsg, 64),
		done:      make(chan struct{}),
		peers:     make(map[wire.SignalRole]*peer),
	}
	go r.run()
	return r
}

func (r *Room) run() {
	for {
		select {
		case m := <-r.inbox:
			r.dispatch(m)
		case <-r.done:
			return
		}
	}
}

func (r *Room) dispatch(m roomMsg) {
	var env wire.SignalEnvelope
	if err := json.Unmarshal(m.raw, &env); err != nil {
		return
	}
	other := counterpart(m.from)

	r.mu.Lock()
	target, ok := r.peers[other]
	r.mu.Unlock()
	if !ok {
		return
	}

	switch env.Type {
	case wire.SignalTypeOffer, wire.SignalTypeAnswer, wire.SignalTypeICE, wire.SignalTypeLeave:
		_ = target.conn.WriteMessage(websocket.TextMessage, m.raw)
	}
}

func counterpart(r wire.SignalRole) wire.SignalRole {
	if r == wire.RoleOperator {
		return wire.RoleRobot
	}
	return wire.RoleOperator
}

// join attaches a peer to the room. If both roles are now present, each
// is sent session_state:ready.
func (r *Room) join(role wire.SignalRole, conn *websocket.Conn) {
	r.mu.Lock()
	r.peers[role] = &peer{conn: conn, role: role}
	bothPresent := len(r.peers) == 2
	var peers []*peer
	if bothPresent {
		for _, p := range r.peers {
			peers = append(peers, p)
		}
	}
	r.mu.Unlock()

	if bothPresent {
		msg, _ := json.Marshal(wire.SessionStateMsg{
			Type: wire.SignalTypeSessionState, SessionID: r.sessionID, State: "ready",
		})
		for _, p := range peers {
			_ = p.conn.WriteMessage(websocket.TextMessage, msg)
		}
	}
}

// leave detaches a peer and notifies the counterpart.
func (r *Room) leave(role wire.SignalRole) {
	r.mu.Lock()
	delete(r.peers, role)
	other, ok := r.peers[counterpart(role)]
	r.mu.Unlock()

	if ok {
		msg, _ := json.Marshal(wire.LeaveMsg{Type: wire.SignalTypeLeave, SessionID: r.sessionID})
		_ = other.conn.WriteMessage(websocket.TextMessage, msg)
	}
}

// revoke pushes revoked to both peers and tears the room down.
func (r *Room) revoke(reason string) {
	msg, _ := json.Marshal(wire.RevokedMsg{Type: wire.SignalTypeRevoked, SessionID: r.sessionID, Reason: reason})

	r.mu.Lock()
	peers := make([]*peer, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	r.mu.Unlock()

	for _, p := range peers {
		_ = p.conn.WriteMessage(websocket.TextMessage, msg)
		_ = p.conn.Close()
	}
	close(r.done)
}

// Hub owns all session rooms; rooms are independent of each other.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*Room)}
}

func (h *Hub) roomFor(sessionID string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[sessionID]
	if !ok {
		r = newRoom(sessionID)
		h.rooms[sessionID] = r
	}
	return r
}

func (h *Hub) dropRoom(sessionID string) {
	h.mu.Lock()
	delete(h.rooms, sessionID)
	h.mu.Unlock()
}

// Join attaches conn to sessionID's room under the given role and
// services inbound messages until the connection closes.
func (h *Hub) Join(sessionID string, role wire.SignalRole, conn *websocket.Conn) {
	room := h.roomFor(sessionID)
	room.join(role, conn)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		select {
		case room.inbox <- roomMsg{from: role, raw: raw}:
		case <-room.done:
			return
		}
	}

	room.leave(role)
	slog.Info("signaling peer disconnected", "session_id", sessionID, "role", role)
}

// Revoke pushes a revoked message to a session's room and tears it down.
func (h *Hub) Revoke(sessionID, reason string) {
	h.mu.Lock()
	room, ok := h.rooms[sessionID]
	h.mu.Unlock()
	if !ok {
		return
	}
	room.revoke(reason)
	h.dropRoom(sessionID)
}
