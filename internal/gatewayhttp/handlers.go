package gatewayhttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/coriolis-robotics/teleop/internal/credential"
	"github.com/coriolis-robotics/teleop/internal/policy"
	"github.com/coriolis-robotics/teleop/internal/registry"
	"github.com/coriolis-robotics/teleop/internal/token"
	"github.com/coriolis-robotics/teleop/internal/wire"
)

type createSessionRequest struct {
	RobotID           string          `json:"robot_id"`
	OperatorID        string          `json:"operator_id"`
	CredentialEnvelope json.RawMessage `json:"credential_envelope"`
	RequestedScope    []string        `json:"requested_scope"`
}

type createSessionResponse struct {
	SessionID      string    `json:"session_id"`
	Token          string    `json:"token"`
	SignalingURL   string    `json:"signaling_url"`
	ICEServers     []string  `json:"ice_servers"`
	ExpiresAt      time.Time `json:"expires_at"`
	EffectiveScope []string  `json:"effective_scope"`
	PolicyID       string    `json:"policy_id"`
	PolicyVersion  int       `json:"policy_version"`
	PolicyHash     string    `json:"policy_hash"`
}

type denialResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, denialResponse{Error: "malformed request"})
		return
	}
	if req.RobotID == "" || req.OperatorID == "" || len(req.CredentialEnvelope) == 0 {
		writeJSON(w, http.StatusBadRequest, denialResponse{Error: "missing required fields"})
		return
	}

	sessionID := uuid.NewString()
	s.publishAudit(wire.EventSessionRequested, sessionID, req.RobotID, req.OperatorID, nil)

	result, err := s.verifier.Verify([]byte(req.CredentialEnvelope), req.OperatorID)
	if err != nil {
		s.denySession(w, sessionID, req, "credential verification failed: "+classifyCredentialError(err))
		return
	}

	p, err := s.policies.Get(s.PolicyID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, denialResponse{Error: "policy unavailable"})
		return
	}

	ctx := policy.EvaluationContext{
		"role":     result.Attributes.Role,
		"issuer":   result.Attributes.Issuer,
		"subject":  result.Attributes.Subject,
		"resource": req.RobotID,
		"time":     time.Now().UTC().Unix(),
		"extra":    result.Attributes.Extra,
	}

	decision := s.evaluator.Evaluate(p, ctx, req.RequestedScope)
	if decision.Decision != policy.DecisionAllow {
		s.denySession(w, sessionID, req, decision.Reason)
		return
	}

	gen, err := s.issuer.Generate(req.OperatorID, req.RobotID, sessionID, decision.AllowedActions, s.TokenTTL)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, denialResponse{Error: "token issuance failed"})
		return
	}

	s.reg.Register(registry.Entry{
		TokenID:    gen.TokenID,
		SessionID:  sessionID,
		OperatorID: req.OperatorID,
		RobotID:    req.RobotID,
		ExpiresAt:  gen.ExpiresAt,
	})

	sess := &Session{
		ID:             sessionID,
		State:          SessionPending,
		RobotID:        req.RobotID,
		OperatorID:     req.OperatorID,
		EffectiveScope: decision.AllowedActions,
		CreatedAt:      time.Now().UTC(),
		ExpiresAt:      gen.ExpiresAt,
		TokenID:        gen.TokenID,
	}
	s.sessions.Put(sess)

	s.publishAudit(wire.EventSessionGranted, sessionID, req.RobotID, req.OperatorID, map[string]any{
		"policy_hash": decision.PolicyHash,
	})

	writeJSON(w, http.StatusOK, createSessionResponse{
		SessionID:      sessionID,
		Token:          gen.SignedToken,
		SignalingURL:   s.SignalingURL,
		ICEServers:     s.ICEServers,
		ExpiresAt:      gen.ExpiresAt,
		EffectiveScope: decision.AllowedActions,
		PolicyID:       decision.PolicyID,
		PolicyVersion:  decision.PolicyVersion,
		PolicyHash:     decision.PolicyHash,
	})
}

func (s *Server) denySession(w http.ResponseWriter, sessionID string, req createSessionRequest, reason string) {
	s.publishAudit(wire.EventSessionDenied, sessionID, req.RobotID, req.OperatorID, map[string]any{"reason": reason})
	writeJSON(w, http.StatusForbidden, denialResponse{Error: "authorization denied", Reason: reason})
}

func classifyCredentialError(err error) string {
	switch {
	case errors.Is(err, credential.ErrExpired):
		return "expired"
	case errors.Is(err, credential.ErrNotYetValid):
		return "not yet valid"
	case errors.Is(err, credential.ErrUntrustedIssuer):
		return "untrusted issuer"
	case errors.Is(err, credential.ErrSignatureInvalid):
		return "signature invalid"
	default:
		return "invalid"
	}
}

type revocationRequest struct {
	SessionID  string `json:"session_id,omitempty"`
	OperatorID string `json:"operator_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type revocationResponse struct {
	RevocationID    string    `json:"revocation_id"`
	AffectedSessions []string `json:"affected_sessions"`
	Timestamp       time.Time `json:"timestamp"`
}

func (s *Server) handleRevocation(w http.ResponseWriter, r *http.Request) {
	var req revocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, denialResponse{Error: "malformed request"})
		return
	}
	if req.SessionID == "" && req.OperatorID == "" {
		writeJSON(w, http.StatusBadRequest, denialResponse{Error: "must identify a session or operator"})
		return
	}

	var affected []string
	if req.SessionID != "" {
		if count := s.reg.RevokeBySession(req.SessionID, req.Reason); count > 0 {
			affected = append(affected, req.SessionID)
		}
	} else {
		affected = s.reg.RevokeByOperator(req.OperatorID, req.Reason)
	}

	if len(affected) == 0 {
		writeJSON(w, http.StatusNotFound, denialResponse{Error: "no matching sessions"})
		return
	}

	for _, sid := range affected {
		s.sessions.MarkRevoked(sid)
		s.hub.Revoke(sid, req.Reason)
		if sess, ok := s.sessions.Get(sid); ok {
			s.publishAudit(wire.EventSessionRevoked, sid, sess.RobotID, sess.OperatorID, map[string]any{"reason": req.Reason})
		} else {
			s.publishAudit(wire.EventSessionRevoked, sid, "", req.OperatorID, map[string]any{"reason": req.Reason})
		}
	}

	writeJSON(w, http.StatusOK, revocationResponse{
		RevocationID:     uuid.NewString(),
		AffectedSessions: affected,
		Timestamp:        time.Now().UTC(),
	})
}

const maxAuditMetadataBytes = 16 * 1024

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxAuditMetadataBytes)
	var event wire.AuditEvent
	if err := json.NewDecoder(body).Decode(&event); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, denialResponse{Error: "event too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, denialResponse{Error: "schema violation"})
		return
	}
	if event.Type == "" || event.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, denialResponse{Error: "schema violation"})
		return
	}
	s.publisher.Publish(event)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) publishAudit(evtType wire.AuditEventType, sessionID, robotID, operatorID string, metadata map[string]any) {
	s.publisher.Publish(wire.AuditEvent{
		Type:       evtType,
		SessionID:  sessionID,
		RobotID:    robotID,
		OperatorID: operatorID,
		Timestamp:  time.Now().UTC(),
		Metadata:   metadata,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) handleJWKS(w http.ResponseWriter, r *http.Request) {
	set := token.JWKS(s.keys)
	w.Header().Set("Content-Type", "application/jwk-set+json")
	_ = json.NewEncoder(w).Encode(set)
}
