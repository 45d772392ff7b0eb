package gwconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults_FillsZeroValues(t *testing.T) {
	c := &Config{}
	c.applyDefaults()

	assert.Equal(t, "8443", c.Server.Port)
	assert.Equal(t, []string{"*"}, c.Server.CORSAllowOrigins)
	assert.Equal(t, 60, c.Security.ClockSkewSec)
	assert.Equal(t, 3600, c.Token.TTLSec)
	assert.Equal(t, 10000, c.Policy.HistoryCapacity)
	assert.Equal(t, 1024, c.Audit.QueueSize)
	assert.Equal(t, "teleop.local", c.Federation.TrustDomain)
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	c := &Config{}
	c.Server.Port = "9999"
	c.applyDefaults()
	assert.Equal(t, "9999", c.Server.Port)
}

func TestApplyEnvOverrides_OverridesDefaults(t *testing.T) {
	t.Setenv("GATEWAY_PORT", "7777")
	t.Setenv("TRUSTED_ISSUERS", "did:key:a, did:key:b")
	t.Setenv("TOKEN_TTL_SEC", "60")

	c := &Config{}
	c.applyEnvOverrides()

	assert.Equal(t, "7777", c.Server.Port)
	assert.Equal(t, []string{"did:key:a", "did:key:b"}, c.Security.TrustedIssuers)
	assert.Equal(t, 60, c.Token.TTLSec)
}

func TestApplyEnvOverrides_NonPositiveIntOverrideIgnored(t *testing.T) {
	t.Setenv("TOKEN_TTL_SEC", "0")
	c := &Config{}
	c.Token.TTLSec = 1200
	c.applyEnvOverrides()
	assert.Equal(t, 1200, c.Token.TTLSec)
}

func TestSplitCSV_TrimsAndDropsEmpty(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitCSV(" a, b ,,c"))
}

func TestIsProduction(t *testing.T) {
	c := &Config{}
	assert.False(t, c.IsProduction())
	c.Server.Env = "production"
	assert.True(t, c.IsProduction())
}

func TestLoadConfig_MissingFileReturnsError(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.yaml")
	require.Error(t, err)
}
