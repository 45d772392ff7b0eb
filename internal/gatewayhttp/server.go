// Package gatewayhttp implements the thin Gateway HTTP surface of §4.8:
// session issuance, revocation, audit ingest, and JWKS publication, plus
// the signaling websocket upgrade.
package gatewayhttp

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/coriolis-robotics/teleop/internal/audit"
	"github.com/coriolis-robotics/teleop/internal/credential"
	"github.com/coriolis-robotics/teleop/internal/didkey"
	"github.com/coriolis-robotics/teleop/internal/httplimit"
	"github.com/coriolis-robotics/teleop/internal/policy"
	"github.com/coriolis-robotics/teleop/internal/registry"
	"github.com/coriolis-robotics/teleop/internal/signaling"
	"github.com/coriolis-robotics/teleop/internal/token"
)

// Server is the Gateway's HTTP composition root, a thin request plane
// over the session/authorization cores.
type Server struct {
	verifier   *credential.Verifier
	resolver   *didkey.Resolver
	policies   *policy.Store
	evaluator  *policy.Evaluator
	issuer     *token.Issuer
	keys       *token.KeyManager
	reg        *registry.Registry
	hub        *signaling.Hub
	sessions   *SessionStore
	publisher  *audit.Publisher
	upgrader   websocket.Upgrader
	sessionLimiter *httplimit.Limiter

	PolicyID       string
	TokenTTL       time.Duration
	SignalingURL   string
	ICEServers     []string
}

func NewServer(
	verifier *credential.Verifier,
	resolver *didkey.Resolver,
	policies *policy.Store,
	evaluator *policy.Evaluator,
	issuer *token.Issuer,
	keys *token.KeyManager,
	reg *registry.Registry,
	hub *signaling.Hub,
	publisher *audit.Publisher,
) *Server {
	return &Server{
		verifier:  verifier,
		resolver:  resolver,
		policies:  policies,
		evaluator: evaluator,
		issuer:    issuer,
		keys:      keys,
		reg:       reg,
		hub:       hub,
		sessions:  NewSessionStore(),
		publisher: publisher,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessionLimiter: httplimit.NewLimiter(httplimit.Config{MaxCallsPerMinute: 30}),
		TokenTTL:       5 * time.Minute,
	}
}

// Router builds the mux router exposing §4.8's endpoints.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.Use(corsMiddleware)

	r.Handle("/v1/sessions", s.sessionLimiter.Middleware(http.HandlerFunc(s.handleCreateSession))).Methods("POST")
	r.HandleFunc("/v1/revocations", s.handleRevocation).Methods("POST")
	r.HandleFunc("/v1/audit", s.handleAudit).Methods("POST")
	r.HandleFunc("/v1/jwks", s.handleJWKS).Methods("GET")
	r.HandleFunc("/v1/signal", s.handleSignal)

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe starts the HTTP server, matching the teacher's
// composition-root style (log then ListenAndServe).
func (s *Server) ListenAndServe(port int) error {
	addr := fmt.Sprintf(":%d", port)
	slog.Info("gateway HTTP surface listening", "addr", addr)
	return http.ListenAndServe(addr, s.Router())
}
