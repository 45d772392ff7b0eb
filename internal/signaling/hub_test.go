package signaling

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coriolis-robotics/teleop/internal/wire"
)

func newHubServer(t *testing.T, hub *Hub, sessionID string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := wire.SignalRole(r.URL.Query().Get("role"))
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.Join(sessionID, role, conn)
	}))
}

func dialAs(t *testing.T, srv *httptest.Server, role wire.SignalRole) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?role=" + string(role)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestHub_BothPeersJoinedReceiveSessionStateReady(t *testing.T) {
	hub := NewHub()
	srv := newHubServer(t, hub, "sess-1")
	defer srv.Close()

	operator := dialAs(t, srv, wire.RoleOperator)
	defer operator.Close()
	robot := dialAs(t, srv, wire.RoleRobot)
	defer robot.Close()

	operator.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := operator.ReadMessage()
	require.NoError(t, err)

	var state wire.SessionStateMsg
	require.NoError(t, json.Unmarshal(raw, &state))
	assert.Equal(t, "ready", state.State)
	assert.Equal(t, "sess-1", state.SessionID)
}

func TestHub_RelaysOfferFromOperatorToRobot(t *testing.T) {
	hub := NewHub()
	srv := newHubServer(t, hub, "sess-2")
	defer srv.Close()

	operator := dialAs(t, srv, wire.RoleOperator)
	defer operator.Close()
	robot := dialAs(t, srv, wire.RoleRobot)
	defer robot.Close()

	// drain the two session_state:ready notifications
	operator.SetReadDeadline(time.Now().Add(2 * time.Second))
	robot.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := operator.ReadMessage()
	require.NoError(t, err)
	_, _, err = robot.ReadMessage()
	require.NoError(t, err)

	offer := wire.SDPMsg{Type: wire.SignalTypeOffer, SessionID: "sess-2", SDP: "v=0..."}
	raw, _ := json.Marshal(offer)
	require.NoError(t, operator.WriteMessage(websocket.TextMessage, raw))

	_, received, err := robot.ReadMessage()
	require.NoError(t, err)

	var got wire.SDPMsg
	require.NoError(t, json.Unmarshal(received, &got))
	assert.Equal(t, "v=0...", got.SDP)
}

func TestHub_RevokePushesRevokedAndClosesRoom(t *testing.T) {
	hub := NewHub()
	srv := newHubServer(t, hub, "sess-3")
	defer srv.Close()

	operator := dialAs(t, srv, wire.RoleOperator)
	defer operator.Close()
	robot := dialAs(t, srv, wire.RoleRobot)
	defer robot.Close()

	operator.SetReadDeadline(time.Now().Add(2 * time.Second))
	robot.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := operator.ReadMessage()
	require.NoError(t, err)
	_, _, err = robot.ReadMessage()
	require.NoError(t, err)

	hub.Revoke("sess-3", "policy_changed")

	_, raw, err := operator.ReadMessage()
	require.NoError(t, err)

	var revoked wire.RevokedMsg
	require.NoError(t, json.Unmarshal(raw, &revoked))
	assert.Equal(t, "policy_changed", revoked.Reason)
}

func TestHub_RevokeOfUnknownSessionIsNoop(t *testing.T) {
	hub := NewHub()
	assert.NotPanics(t, func() { hub.Revoke("nonexistent", "x") })
}
