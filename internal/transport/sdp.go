package transport

import (
	"encoding/json"

	"github.com/pion/webrtc/v3"
)

// sdp is the wire shape the Gateway signaling relay uses for SDP
// payloads (§4.7's SDPMsg), kept local to avoid transport depending on
// internal/wire for a two-field struct.
type sdp struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

func sdpFromJSON(raw []byte, want webrtc.SDPType) (webrtc.SessionDescription, error) {
	var s sdp
	if err := json.Unmarshal(raw, &s); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return webrtc.SessionDescription{Type: want, SDP: s.SDP}, nil
}

func sdpToJSON(desc webrtc.SessionDescription) ([]byte, error) {
	return json.Marshal(sdp{Type: desc.Type.String(), SDP: desc.SDP})
}

func candidateToJSON(c webrtc.ICECandidateInit) ([]byte, error) {
	return json.Marshal(c)
}

func candidateFromJSON(raw []byte) (webrtc.ICECandidateInit, error) {
	var c webrtc.ICECandidateInit
	err := json.Unmarshal(raw, &c)
	return c, err
}
