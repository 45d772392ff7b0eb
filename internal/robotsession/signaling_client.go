package robotsession

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coriolis-robotics/teleop/internal/wire"
)

// SignalingHandler receives demultiplexed signaling events from the
// Gateway's relay; the Robot Agent implements this to drive its WebRTC
// peer connection.
type SignalingHandler interface {
	OnOffer(sessionID string, sdp []byte)
	OnAnswer(sessionID string, sdp []byte)
	OnICE(sessionID string, candidate []byte)
	OnBye(sessionID string)
}

// SignalingClient dials the Gateway's /v1/signal websocket as the robot
// peer and demultiplexes inbound envelopes to a SignalingHandler.
type SignalingClient struct {
	url     string
	robotID string

	mu      sync.Mutex
	conn    *websocket.Conn
	handler SignalingHandler
	done    chan struct{}
}

func NewSignalingClient(url, robotID string) *SignalingClient {
	return &SignalingClient{url: url, robotID: robotID, done: make(chan struct{})}
}

func (c *SignalingClient) SetHandler(h SignalingHandler) { c.handler = h }

func (c *SignalingClient) Done() <-chan struct{} { return c.done }

// Connect dials the signaling websocket and blocks, reading envelopes
// until the connection closes.
func (c *SignalingClient) Connect(sessionID string) error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("robotsession: signaling dial: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	join := wire.JoinMsg{Type: wire.SignalTypeJoin, SessionID: sessionID, Role: wire.RoleRobot}
	if err := conn.WriteJSON(join); err != nil {
		return fmt.Errorf("robotsession: signaling join: %w", err)
	}

	defer close(c.done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil
		}
		c.dispatch(data)
	}
}

func (c *SignalingClient) dispatch(data []byte) {
	var head struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return
	}
	if c.handler == nil {
		return
	}

	switch head.Type {
	case wire.SignalTypeOffer:
		var m wire.SDPMsg
		if json.Unmarshal(data, &m) == nil {
			sdpBytes, _ := json.Marshal(struct {
				Type string `json:"type"`
				SDP  string `json:"sdp"`
			}{"offer", m.SDP})
			c.handler.OnOffer(head.SessionID, sdpBytes)
		}
	case wire.SignalTypeAnswer:
		var m wire.SDPMsg
		if json.Unmarshal(data, &m) == nil {
			c.handler.OnAnswer(head.SessionID, []byte(m.SDP))
		}
	case wire.SignalTypeICE:
		var m wire.ICEMsg
		if json.Unmarshal(data, &m) == nil {
			b, _ := json.Marshal(m.Candidate)
			c.handler.OnICE(head.SessionID, b)
		}
	case wire.SignalTypeLeave, wire.SignalTypeRevoked:
		c.handler.OnBye(head.SessionID)
	}
}

func (c *SignalingClient) SendAnswer(sessionID string, sdp []byte) error {
	return c.writeJSON(wire.SDPMsg{Type: wire.SignalTypeAnswer, SessionID: sessionID, SDP: string(sdp)})
}

func (c *SignalingClient) SendICE(sessionID string, candidate []byte) error {
	var ice wire.ICECandidate
	if err := json.Unmarshal(candidate, &ice); err != nil {
		return err
	}
	return c.writeJSON(wire.ICEMsg{Type: wire.SignalTypeICE, SessionID: sessionID, Candidate: ice})
}

func (c *SignalingClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("robotsession: signaling not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(v)
}

func (c *SignalingClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
