// Package wire defines the JSON message schemas, error codes, and state
// enums shared between the Gateway and the Robot Agent. Both sides import
// this package so the signaling and datachannel protocols stay in lockstep.
package wire

import "time"

// Scopes recognized by the policy evaluator and capability tokens.
const (
	ScopeView    = "teleop:view"
	ScopeControl = "teleop:control"
	ScopeEStop   = "teleop:estop"
)

// RobotState is the observable robot state surfaced over the datachannel.
type RobotState string

const (
	RobotStateIdle           RobotState = "idle"
	RobotStateActive         RobotState = "active"
	RobotStateSafeStop       RobotState = "safe_stop"
	RobotStateSafeStopFailed RobotState = "safe_stop_failed"
)

// Datachannel error codes (§4.10, §6).
const (
	ErrInvalidMessage  = "INVALID_MESSAGE"
	ErrUnknownType     = "UNKNOWN_TYPE"
	ErrStaleCommand    = "STALE_COMMAND"
	ErrRateLimited     = "RATE_LIMITED"
	ErrUnauthorized    = "UNAUTHORIZED"
	ErrSafeStopped     = "SAFE_STOPPED"
	ErrSessionRevoked  = "SESSION_REVOKED"
)

// SignalRole identifies which peer joined a signaling room.
type SignalRole string

const (
	RoleOperator SignalRole = "operator"
	RoleRobot    SignalRole = "robot"
)

// SignalEnvelope is the outer shape of every signaling websocket message;
// Type selects which of the pointer fields below is populated.
type SignalEnvelope struct {
	Type string `json:"type"`

	Join         *JoinMsg         `json:"-"`
	Offer        *SDPMsg          `json:"-"`
	Answer       *SDPMsg          `json:"-"`
	ICE          *ICEMsg          `json:"-"`
	Leave        *LeaveMsg        `json:"-"`
	SessionState *SessionStateMsg `json:"-"`
	Revoked      *RevokedMsg      `json:"-"`
	Error        *ErrorMsg        `json:"-"`
}

const (
	SignalTypeJoin         = "join"
	SignalTypeOffer        = "offer"
	SignalTypeAnswer       = "answer"
	SignalTypeICE          = "ice"
	SignalTypeLeave        = "leave"
	SignalTypeSessionState = "session_state"
	SignalTypeRevoked      = "revoked"
	SignalTypeError        = "error"
)

type JoinMsg struct {
	Type      string     `json:"type"`
	SessionID string     `json:"session_id"`
	Role      SignalRole `json:"role"`
	Token     string     `json:"token,omitempty"`
}

type SDPMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	SDP       string `json:"sdp"`
}

type ICECandidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           string  `json:"sdpMid"`
	SDPMLineIndex    uint16  `json:"sdpMLineIndex"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

type ICEMsg struct {
	Type      string       `json:"type"`
	SessionID string       `json:"session_id"`
	Candidate ICECandidate `json:"candidate"`
}

type LeaveMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type SessionStateMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	State     string `json:"state"`
}

type RevokedMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- Datachannel protocol (§4.10) ---

const (
	MsgAuth           = "auth"
	MsgDrive          = "drive"
	MsgKVMKey         = "kvm_key"
	MsgKVMMouse       = "kvm_mouse"
	MsgEStop          = "e_stop"
	MsgPing           = "ping"
	MsgPong           = "pong"
	MsgFrameTimestamp = "frame_timestamp"
	MsgAck            = "ack"
	MsgError          = "error"
	MsgState          = "state"
)

// KnownMessageTypes is the exhaustive set the router accepts before
// looking up a handler; anything outside it is UNKNOWN_TYPE.
var KnownMessageTypes = map[string]bool{
	MsgAuth: true, MsgDrive: true, MsgKVMKey: true, MsgKVMMouse: true,
	MsgEStop: true, MsgPing: true, MsgPong: true, MsgFrameTimestamp: true,
	MsgAck: true, MsgError: true, MsgState: true,
}

type Envelope struct {
	Type string `json:"type"`
}

type AuthMsg struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type DriveMsg struct {
	Type string  `json:"type"`
	V    float64 `json:"v"`
	W    float64 `json:"w"`
	T    int64   `json:"t"`
}

type KVMKeyMsg struct {
	Type      string         `json:"type"`
	Key       string         `json:"key"`
	Action    string         `json:"action"`
	Modifiers map[string]any `json:"modifiers,omitempty"`
	T         int64          `json:"t"`
}

type KVMMouseMsg struct {
	Type    string `json:"type"`
	DX      int    `json:"dx"`
	DY      int    `json:"dy"`
	Buttons int    `json:"buttons"`
	Scroll  *int   `json:"scroll,omitempty"`
	T       int64  `json:"t"`
}

type EStopMsg struct {
	Type string `json:"type"`
	T    int64  `json:"t"`
}

type PingMsg struct {
	Type   string `json:"type"`
	Seq    uint64 `json:"seq"`
	TMono  int64  `json:"t_mono"`
}

type PongMsg struct {
	Type   string `json:"type"`
	Seq    uint64 `json:"seq"`
	TMono  int64  `json:"t_mono"`
	TRecv  int64  `json:"t_recv"`
}

type FrameTimestampMsg struct {
	Type           string `json:"type"`
	Timestamp      int64  `json:"timestamp"`
	FrameID        string `json:"frame_id"`
	SequenceNumber uint64 `json:"sequence_number"`
}

type AckMsg struct {
	Type    string `json:"type"`
	RefType string `json:"ref_type"`
	RefT    int64  `json:"ref_t"`
}

type DCErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Reason  string `json:"reason"`
	RefType string `json:"ref_type,omitempty"`
	RefT    int64  `json:"ref_t,omitempty"`
}

type StateMsg struct {
	Type         string `json:"type"`
	RobotState   string `json:"robot_state"`
	SessionState string `json:"session_state"`
	T            int64  `json:"t"`
}

// --- Audit events (§3) ---

type AuditEventType string

const (
	EventSessionRequested       AuditEventType = "SESSION_REQUESTED"
	EventSessionGranted         AuditEventType = "SESSION_GRANTED"
	EventSessionStarted         AuditEventType = "SESSION_STARTED"
	EventSessionEnded           AuditEventType = "SESSION_ENDED"
	EventSessionRevoked         AuditEventType = "SESSION_REVOKED"
	EventPrivilegedAction       AuditEventType = "PRIVILEGED_ACTION"
	EventInvalidCommandThresh   AuditEventType = "INVALID_COMMAND_THRESHOLD"
	EventSessionDenied          AuditEventType = "SESSION_DENIED"
)

type AuditEvent struct {
	Type       AuditEventType `json:"type"`
	SessionID  string         `json:"session_id"`
	RobotID    string         `json:"robot_id"`
	OperatorID string         `json:"operator_id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	PolicyHash string         `json:"policy_hash,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}
