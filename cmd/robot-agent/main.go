// Command robot-agent is the entry point for the process running on the
// robot endpoint: it terminates the WebRTC session, enforces rate
// limits and scope checks on inbound control messages, and drives the
// safety monitor that can halt the robot independent of network state.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"github.com/coriolis-robotics/teleop/internal/agentconfig"
	"github.com/coriolis-robotics/teleop/internal/audit"
	"github.com/coriolis-robotics/teleop/internal/datachannel"
	"github.com/coriolis-robotics/teleop/internal/measurement"
	"github.com/coriolis-robotics/teleop/internal/ratelimit"
	"github.com/coriolis-robotics/teleop/internal/revocationhandler"
	"github.com/coriolis-robotics/teleop/internal/robotsession"
	"github.com/coriolis-robotics/teleop/internal/safety"
	"github.com/coriolis-robotics/teleop/internal/transport"
	"github.com/coriolis-robotics/teleop/internal/wire"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := agentconfig.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	logger.Info("starting robot agent", zap.String("robot_id", cfg.RobotID))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := newAgent(cfg, logger)
	if err := a.run(ctx); err != nil {
		logger.Fatal("agent failed", zap.Error(err))
	}
}

type agent struct {
	cfg    *agentconfig.Config
	logger *zap.Logger

	sessionMgr  *robotsession.Manager
	signaling   *robotsession.SignalingClient
	transport   *transport.WebRTC
	safety      *safety.Monitor
	orchestrator *safety.Orchestrator
	router      *datachannel.Router
	limiter     *ratelimit.Limiter
	revocation  *revocationhandler.Handler
	publisher   *audit.Publisher
	collectors  *measurement.Collectors
	jwksFetcher *robotsession.JWKSFetcher

	jwksStop chan struct{}
}

func newAgent(cfg *agentconfig.Config, logger *zap.Logger) *agent {
	return &agent{cfg: cfg, logger: logger}
}

func (a *agent) run(ctx context.Context) error {
	a.initComponents()

	go a.jwksFetcher.Run(a.jwksStop)

	sessionID := "pending"
	go func() {
		if err := a.signaling.Connect(sessionID); err != nil {
			a.logger.Error("signaling connection failed", zap.Error(err))
		}
	}()

	go a.runSafetyMonitor(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
	case <-a.signaling.Done():
		a.logger.Info("signaling connection closed")
	}

	return a.shutdown()
}

func (a *agent) initComponents() {
	a.jwksFetcher = robotsession.NewJWKSFetcher(a.cfg.GatewayJWKSURL)
	a.jwksStop = make(chan struct{})

	validator := robotsession.NewTokenValidator(a.jwksFetcher, a.cfg.RobotID, 60*time.Second)
	a.sessionMgr = robotsession.NewManager(validator, func(info robotsession.Info) {
		a.logger.Info("session activated", zap.String("session_id", info.SessionID))
	})

	a.limiter = ratelimit.NewLimiter(int(a.cfg.RateLimitDriveHz), int(a.cfg.RateLimitKVMHz))
	a.collectors = measurement.NewCollectors(measurement.DefaultCapacity)

	a.transport = transport.NewWebRTC(transport.ICEConfig{
		STUNServers: a.cfg.STUNServers,
		TURNServers: a.cfg.TURNServers,
	})

	a.router = datachannel.NewRouter(sendAdapter{a.transport})
	a.registerHandlers()

	a.publisher = audit.NewPublisher(audit.NewHTTPTransport(a.cfg.GatewayHTTPURL+"/v1/audit"), audit.DefaultQueueSize)

	a.orchestrator = &safety.Orchestrator{
		RobotID:   a.cfg.RobotID,
		SessionID: func() string {
			if info := a.sessionMgr.Info(); info != nil {
				return info.SessionID
			}
			return ""
		},
		Hardware:   &stubHardware{logger: a.logger},
		Sender:     stateSender{a.transport},
		Audit:      a.publisher,
		Revocation: a.collectors.Revocation,
		Session:    a.sessionMgr,
	}
	a.safety = safety.NewMonitor(
		a.orchestrator.OnSafeStop,
		time.Duration(a.cfg.ControlLossTimeoutMS)*time.Millisecond,
		a.cfg.InvalidCmdThreshold,
	)
	a.router.SetInvalidMessageHandler(a.safety.OnInvalidCommand)

	a.revocation = &revocationhandler.Handler{
		RobotID:   a.cfg.RobotID,
		Transport: a.transport,
		Session:   a.sessionMgr,
		Monitor:   a.safety,
		Audit:     a.publisher,
	}

	a.signaling = robotsession.NewSignalingClient(a.cfg.GatewayWSURL, a.cfg.RobotID)
	a.signaling.SetHandler(a)

	a.transport.SetDataHandler(func(data []byte) {
		if err := a.router.Dispatch(data); err != nil {
			a.logger.Debug("dispatch error", zap.Error(err))
		}
	})

	a.logger.Info("components initialized")
}

// sendAdapter satisfies datachannel.Sender over the transport's
// SendData, named distinctly since the datachannel package intentionally
// doesn't know about WebRTC.
type sendAdapter struct{ t *transport.WebRTC }

func (s sendAdapter) Send(data []byte) error { return s.t.SendData(data) }

// stateSender satisfies safety.StateSender.
type stateSender struct{ t *transport.WebRTC }

func (s stateSender) SendState(msg wire.StateMsg) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.t.SendData(b)
}

// stubHardware is the out-of-scope motor-halt API; a real deployment
// wires this to the robot's actuator driver.
type stubHardware struct{ logger *zap.Logger }

func (h *stubHardware) Stop() error {
	h.logger.Warn("CRITICAL: hardware stop invoked (stub)")
	return nil
}

func (a *agent) registerHandlers() {
	a.router.Register(wire.MsgDrive, func(raw []byte) (any, error) {
		if a.safety.IsTriggered() {
			return wire.DCErrorMsg{Type: wire.MsgError, Code: wire.ErrSafeStopped, Reason: "safety monitor triggered", RefType: wire.MsgDrive}, nil
		}
		if !a.sessionMgr.IsActive() {
			return nil, fmt.Errorf("session not active")
		}
		var m wire.DriveMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		if !a.limiter.AllowDrive() {
			return wire.DCErrorMsg{Type: wire.MsgError, Code: wire.ErrRateLimited, Reason: "drive rate exceeded", RefType: wire.MsgDrive, RefT: m.T}, nil
		}
		a.safety.OnValidCommand()
		a.safety.TouchControlMessage()
		a.sessionMgr.TouchControlMessage()
		return wire.AckMsg{Type: wire.MsgAck, RefType: wire.MsgDrive, RefT: m.T}, nil
	})

	a.router.Register(wire.MsgKVMKey, func(raw []byte) (any, error) {
		return a.handleKVM(raw, wire.MsgKVMKey)
	})
	a.router.Register(wire.MsgKVMMouse, func(raw []byte) (any, error) {
		return a.handleKVM(raw, wire.MsgKVMMouse)
	})

	a.router.Register(wire.MsgEStop, func(raw []byte) (any, error) {
		var m wire.EStopMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		a.safety.OnEStop()
		return wire.AckMsg{Type: wire.MsgAck, RefType: wire.MsgEStop, RefT: m.T}, nil
	})

	a.router.Register(wire.MsgPing, func(raw []byte) (any, error) {
		var m wire.PingMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return wire.PongMsg{Type: wire.MsgPong, Seq: m.Seq, TMono: m.TMono, TRecv: time.Now().UnixNano()}, nil
	})

	a.router.Register(wire.MsgFrameTimestamp, func(raw []byte) (any, error) {
		var m wire.FrameTimestampMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		a.collectors.VideoLatency.Record(m.Timestamp, time.Now().UnixMilli())
		return nil, nil
	})
}

func (a *agent) handleKVM(raw []byte, msgType string) (any, error) {
	if a.safety.IsTriggered() {
		return wire.DCErrorMsg{Type: wire.MsgError, Code: wire.ErrSafeStopped, Reason: "safety monitor triggered", RefType: msgType}, nil
	}
	if !a.sessionMgr.IsActive() {
		return nil, fmt.Errorf("session not active")
	}
	info := a.sessionMgr.Info()
	if info == nil || !robotsession.HasScope(*info, wire.ScopeControl) {
		return wire.DCErrorMsg{Type: wire.MsgError, Code: wire.ErrUnauthorized, Reason: "missing control scope", RefType: msgType}, nil
	}
	if !a.limiter.AllowKVM() {
		return wire.DCErrorMsg{Type: wire.MsgError, Code: wire.ErrRateLimited, Reason: "kvm rate exceeded", RefType: msgType}, nil
	}
	a.safety.OnValidCommand()
	a.safety.TouchControlMessage()
	a.sessionMgr.TouchControlMessage()
	return wire.AckMsg{Type: wire.MsgAck, RefType: msgType}, nil
}

// --- SignalingHandler ---

func (a *agent) OnOffer(sessionID string, sdpData []byte) {
	a.logger.Info("received offer", zap.String("session_id", sessionID))

	if err := a.transport.CreatePeerConnection(); err != nil {
		a.logger.Error("failed to create peer connection", zap.Error(err))
		return
	}
	a.transport.SetICECallback(func(candidate []byte) {
		if err := a.signaling.SendICE(sessionID, candidate); err != nil {
			a.logger.Warn("failed to send ICE candidate", zap.Error(err))
		}
	})
	a.transport.SetStateCallback(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected:
			if info := a.sessionMgr.Info(); info != nil {
				_ = a.sessionMgr.Activate(*info)
			}
			a.safety.Reset()
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			a.sessionMgr.Terminate()
		}
	})

	answer, err := a.transport.HandleOffer(sdpData)
	if err != nil {
		a.logger.Error("failed to handle offer", zap.Error(err))
		return
	}
	if err := a.signaling.SendAnswer(sessionID, answer); err != nil {
		a.logger.Error("failed to send answer", zap.Error(err))
	}
}

func (a *agent) OnAnswer(sessionID string, _ []byte) {
	a.logger.Warn("unexpected answer received", zap.String("session_id", sessionID))
}

func (a *agent) OnICE(sessionID string, candidate []byte) {
	if err := a.transport.AddICECandidate(candidate); err != nil {
		a.logger.Warn("failed to add ICE candidate", zap.Error(err))
	}
}

func (a *agent) OnBye(sessionID string) {
	a.logger.Info("received revocation/leave", zap.String("session_id", sessionID))
	a.revocation.OnRevoked(sessionID, "gateway_revoked")
}

func (a *agent) runSafetyMonitor(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.safety.CheckControlLoss(a.sessionMgr.IsActive())
		}
	}
}

func (a *agent) shutdown() error {
	a.logger.Info("initiating graceful shutdown")
	close(a.jwksStop)
	if err := a.transport.Close(); err != nil {
		a.logger.Warn("error closing transport", zap.Error(err))
	}
	if err := a.signaling.Close(); err != nil {
		a.logger.Warn("error closing signaling", zap.Error(err))
	}
	a.publisher.Shutdown(5 * time.Second)
	a.logger.Info("shutdown complete")
	return nil
}
