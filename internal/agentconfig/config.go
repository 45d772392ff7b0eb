// Package agentconfig loads the Robot Agent's configuration purely
// from environment variables, optionally seeded from a local .env via
// godotenv for development, mirroring the reference robot agent's
// config.Load().
package agentconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	RobotID        string
	GatewayWSURL   string
	GatewayJWKSURL string
	GatewayHTTPURL string

	CameraDevice string
	VideoCodec   string
	VideoBitrate int
	VideoFPS     int

	ControlLossTimeoutMS int
	RateLimitDriveHz     float64
	RateLimitKVMHz       float64
	InvalidCmdThreshold  int

	STUNServers []string
	TURNServers []string

	SpireSocket string
	TrustDomain string
}

// Load loads a .env file if present (errors are ignored, matching
// local-dev convenience tooling) then reads the required and optional
// environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	robotID := os.Getenv("ROBOT_ID")
	if robotID == "" {
		return nil, fmt.Errorf("agentconfig: ROBOT_ID is required")
	}
	wsURL := os.Getenv("GATEWAY_WS_URL")
	if wsURL == "" {
		return nil, fmt.Errorf("agentconfig: GATEWAY_WS_URL is required")
	}
	jwksURL := os.Getenv("GATEWAY_JWKS_URL")
	if jwksURL == "" {
		return nil, fmt.Errorf("agentconfig: GATEWAY_JWKS_URL is required")
	}

	cfg := &Config{
		RobotID:        robotID,
		GatewayWSURL:   wsURL,
		GatewayJWKSURL: jwksURL,
		GatewayHTTPURL: os.Getenv("GATEWAY_HTTP_URL"),

		CameraDevice: getEnv("CAMERA_DEVICE", "/dev/video0"),
		VideoCodec:   getEnv("VIDEO_CODEC", "H264"),
		VideoBitrate: getEnvInt("VIDEO_BITRATE", 2_000_000),
		VideoFPS:     getEnvInt("VIDEO_FPS", 30),

		ControlLossTimeoutMS: getEnvInt("CONTROL_LOSS_TIMEOUT_MS", 500),
		RateLimitDriveHz:     getEnvFloat("RATE_LIMIT_DRIVE_HZ", 50),
		RateLimitKVMHz:       getEnvFloat("RATE_LIMIT_KVM_HZ", 100),
		InvalidCmdThreshold:  getEnvInt("INVALID_CMD_THRESHOLD", 10),

		STUNServers: splitCSV(os.Getenv("STUN_SERVERS")),
		TURNServers: splitCSV(os.Getenv("TURN_SERVERS")),

		SpireSocket: getEnv("SPIFFE_ENDPOINT_SOCKET", "unix:///run/spire/sockets/agent.sock"),
		TrustDomain: getEnv("TELEOP_TRUST_DOMAIN", "teleop.local"),
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
