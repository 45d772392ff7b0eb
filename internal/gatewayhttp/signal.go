package gatewayhttp

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coriolis-robotics/teleop/internal/wire"
)

// handleSignal upgrades to the signaling websocket and reads the first
// join message to authenticate the peer before attaching it to a room.
func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("signaling upgrade failed", "error", err)
		return
	}

	_, raw, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return
	}
	var join wire.JoinMsg
	if err := json.Unmarshal(raw, &join); err != nil || join.Type != wire.SignalTypeJoin {
		_ = conn.WriteJSON(wire.ErrorMsg{Type: wire.SignalTypeError, Code: "INVALID_MESSAGE", Message: "expected join"})
		conn.Close()
		return
	}

	if join.Role == wire.RoleOperator {
		claims, err := s.issuer.Parse(join.Token)
		if err != nil || claims.SessionID != join.SessionID || !s.reg.IsValid(claims.ID) {
			_ = conn.WriteJSON(wire.ErrorMsg{Type: wire.SignalTypeError, Code: wire.ErrUnauthorized, Message: "invalid capability token"})
			conn.Close()
			return
		}
	}

	s.hub.Join(join.SessionID, join.Role, conn)
}
