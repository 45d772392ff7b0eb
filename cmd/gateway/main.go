// Command gateway is the entry point for the teleoperation Gateway: the
// broker that issues capability tokens, evaluates ABAC policy, relays
// WebRTC signaling, and fans out the audit trail.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/coriolis-robotics/teleop/internal/audit"
	"github.com/coriolis-robotics/teleop/internal/credential"
	"github.com/coriolis-robotics/teleop/internal/didkey"
	"github.com/coriolis-robotics/teleop/internal/gatewayhttp"
	"github.com/coriolis-robotics/teleop/internal/gwconfig"
	"github.com/coriolis-robotics/teleop/internal/nearexpiry"
	"github.com/coriolis-robotics/teleop/internal/policy"
	"github.com/coriolis-robotics/teleop/internal/registry"
	"github.com/coriolis-robotics/teleop/internal/signaling"
	"github.com/coriolis-robotics/teleop/internal/token"
	"github.com/coriolis-robotics/teleop/pkg/jsonlog"
)

func main() {
	cfg := gwconfig.Get()
	logger := jsonlog.InitGateway(cfg.Server.Env)

	gw, err := build(cfg)
	if err != nil {
		logger.Error("gateway: failed to initialize", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		port, _ := strconv.Atoi(cfg.Server.Port)
		if port == 0 {
			port = 8443
		}
		if err := gw.server.ListenAndServe(port); err != nil {
			logger.Error("gateway: http server stopped", "error", err)
			cancel()
		}
	}()

	select {
	case sig := <-sigCh:
		logger.Info("gateway: received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	gw.shutdown()
}

// gateway bundles every long-lived component the composition root
// constructs, in reverse-teardown order.
type gateway struct {
	cfg          *gwconfig.Config
	keys         *token.KeyManager
	reg          *registry.Registry
	revocation   *registry.RevocationCache
	nearExpiry   *nearexpiry.Monitor
	hub          *signaling.Hub
	publisher    *audit.Publisher
	postgres     *policy.PostgresMirror
	server       *gatewayhttp.Server
	stopCleanup  func()
	stopExpiry   chan struct{}
}

func build(cfg *gwconfig.Config) (*gateway, error) {
	keys, err := token.NewKeyManager(time.Duration(cfg.Token.KeyGracePeriodSec) * time.Second)
	if err != nil {
		return nil, err
	}
	issuer := token.NewIssuer(keys, time.Duration(cfg.Security.ClockSkewSec)*time.Second)

	issuerSet := credential.NewIssuerSet(cfg.Security.TrustedIssuers...)
	resolver := didkey.NewResolver(
		time.Duration(cfg.Security.DIDCacheTTLSec)*time.Second,
		cfg.Security.DIDCacheMaxSize,
	)
	verifier := credential.NewVerifier(issuerSet, resolver, time.Duration(cfg.Security.ClockSkewSec)*time.Second)

	policies := policy.NewStore(cfg.Policy.HistoryCapacity)
	var postgres *policy.PostgresMirror
	if cfg.Policy.PostgresDSN != "" {
		postgres, err = policy.NewPostgresMirror(cfg.Policy.PostgresDSN)
		if err != nil {
			slog.Warn("gateway: policy history mirror unavailable", "error", err)
		} else {
			policies.SetMirror(postgres)
		}
	}
	evaluator := policy.NewEvaluator()

	var persist *registry.FilePersistence
	if cfg.Audit.SinkURL == "" {
		persist = registry.NewFilePersistence("revocations.json")
	}
	revocation := registry.NewRevocationCache(4096, persist)
	if persist != nil {
		if entries, err := persist.Load(); err != nil {
			slog.Warn("gateway: revocation store load failed", "error", err)
		} else {
			revocation.LoadInto(entries)
		}
	}

	reg := registry.NewRegistry(revocation)
	stopCleanup := reg.StartCleanup(time.Minute)

	expiryStop := make(chan struct{})
	nearExpiry := nearexpiry.NewMonitor(
		reg,
		time.Duration(cfg.Token.NearExpiryScanSec)*time.Second,
		time.Duration(cfg.Token.NearExpiryWarnSec)*time.Second,
		func(w nearexpiry.Warning) {
			slog.Info("gateway: token nearing expiry", "token_id", w.TokenID, "session_id", w.SessionID)
		},
	)
	go nearExpiry.Run(expiryStop)

	hub := signaling.NewHub()

	var transport audit.Transport
	if cfg.Audit.LedgerURL != "" {
		transport = audit.NewDirectLedgerTransport(cfg.Audit.LedgerURL)
	} else {
		transport = audit.NewHTTPTransport(cfg.Audit.SinkURL)
	}
	publisher := audit.NewPublisher(transport, cfg.Audit.QueueSize)

	srv := gatewayhttp.NewServer(verifier, resolver, policies, evaluator, issuer, keys, reg, hub, publisher)
	srv.PolicyID = "default"
	srv.TokenTTL = time.Duration(cfg.Token.TTLSec) * time.Second
	srv.SignalingURL = cfg.Server.SignalingURL
	srv.ICEServers = cfg.Server.ICEServers

	return &gateway{
		cfg:         cfg,
		keys:        keys,
		reg:         reg,
		revocation:  revocation,
		nearExpiry:  nearExpiry,
		hub:         hub,
		publisher:   publisher,
		postgres:    postgres,
		server:      srv,
		stopCleanup: stopCleanup,
		stopExpiry:  expiryStop,
	}, nil
}

func (g *gateway) shutdown() {
	slog.Info("gateway: shutting down")
	close(g.stopExpiry)
	if g.stopCleanup != nil {
		g.stopCleanup()
	}
	g.publisher.Shutdown(5 * time.Second)
	if g.postgres != nil {
		_ = g.postgres.Close()
	}
	slog.Info("gateway: shutdown complete")
}
