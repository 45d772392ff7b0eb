package agentconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ROBOT_ID", "robot-1")
	t.Setenv("GATEWAY_WS_URL", "ws://gateway.local/v1/signal")
	t.Setenv("GATEWAY_JWKS_URL", "http://gateway.local/v1/jwks")
}

func TestLoad_MissingRobotIDErrors(t *testing.T) {
	t.Setenv("ROBOT_ID", "")
	t.Setenv("GATEWAY_WS_URL", "ws://x")
	t.Setenv("GATEWAY_JWKS_URL", "http://x")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_MissingGatewayWSURLErrors(t *testing.T) {
	t.Setenv("ROBOT_ID", "robot-1")
	t.Setenv("GATEWAY_WS_URL", "")
	t.Setenv("GATEWAY_JWKS_URL", "http://x")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_AppliesDefaultsForOptionalFields(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/dev/video0", cfg.CameraDevice)
	assert.Equal(t, "H264", cfg.VideoCodec)
	assert.Equal(t, 2_000_000, cfg.VideoBitrate)
	assert.Equal(t, 500, cfg.ControlLossTimeoutMS)
	assert.Equal(t, 50.0, cfg.RateLimitDriveHz)
	assert.Equal(t, "teleop.local", cfg.TrustDomain)
}

func TestLoad_HonorsExplicitOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RATE_LIMIT_DRIVE_HZ", "25.5")
	t.Setenv("STUN_SERVERS", "stun:a.example,stun:b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 25.5, cfg.RateLimitDriveHz)
	assert.Equal(t, []string{"stun:a.example", "stun:b.example"}, cfg.STUNServers)
}

func TestSplitCSV_EmptyStringReturnsNil(t *testing.T) {
	assert.Nil(t, splitCSV(""))
}
