// Package gwconfig loads the Gateway's YAML configuration with
// environment-variable overrides, in the same singleton-with-overrides
// shape the teacher uses for its service config.
package gwconfig

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Security   SecurityConfig   `yaml:"security"`
	Token      TokenConfig      `yaml:"token"`
	Policy     PolicyConfig     `yaml:"policy"`
	Audit      AuditConfig      `yaml:"audit"`
	Federation FederationConfig `yaml:"federation"`
	Database   DatabaseConfig   `yaml:"database"`
}

type ServerConfig struct {
	Port             string   `yaml:"port"`
	Env              string   `yaml:"env"`
	CORSAllowOrigins []string `yaml:"cors_allow_origins"`
	SignalingURL     string   `yaml:"signaling_url"`
	ICEServers       []string `yaml:"ice_servers"`
}

// SecurityConfig governs credential trust and did:key resolution.
type SecurityConfig struct {
	TrustedIssuers   []string `yaml:"trusted_issuers"`
	ClockSkewSec     int      `yaml:"clock_skew_sec"`
	DIDCacheTTLSec   int      `yaml:"did_cache_ttl_sec"`
	DIDCacheMaxSize  int      `yaml:"did_cache_max_size"`
}

// TokenConfig governs capability-token issuance and rotation.
type TokenConfig struct {
	TTLSec           int `yaml:"ttl_sec"`
	KeyGracePeriodSec int `yaml:"key_grace_period_sec"`
	NearExpiryScanSec int `yaml:"near_expiry_scan_sec"`
	NearExpiryWarnSec int `yaml:"near_expiry_warn_sec"`
	JWKSRefreshSec    int `yaml:"jwks_refresh_sec"`
}

// PolicyConfig governs the in-memory policy store and its optional
// Postgres-backed version history mirror.
type PolicyConfig struct {
	HistoryCapacity int    `yaml:"history_capacity"`
	PostgresDSN     string `yaml:"postgres_dsn"`
}

// AuditConfig governs the async audit pipeline and its ledger sink.
type AuditConfig struct {
	QueueSize int    `yaml:"queue_size"`
	LedgerURL string `yaml:"ledger_url"`
	SinkURL   string `yaml:"sink_url"`
}

// RevocationConfig governs the revocation cache's bounded eviction and
// append-only file persistence.
type RevocationConfig struct {
	CacheMaxSize int    `yaml:"cache_max_size"`
	StorePath    string `yaml:"store_path"`
}

type FederationConfig struct {
	TrustDomain string `yaml:"trust_domain"`
	SpireSocket string `yaml:"spire_socket"`
}

type DatabaseConfig struct {
	PolicyHistoryDSN string `yaml:"policy_history_dsn"`
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the process-wide singleton, loading config.yaml (or
// CONFIG_PATH) on first call and applying environment overrides.
func Get() *Config {
	once.Do(func() {
		cfg, err := LoadConfig(getEnv("CONFIG_PATH", "config.yaml"))
		if err != nil {
			slog.Warn("gwconfig: failed to load config file, using defaults", "error", err)
		}
		if cfg == nil {
			cfg = &Config{}
		}
		cfg.applyEnvOverrides()
		instance = cfg
	})
	return instance
}

func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Server.Port = getEnv("GATEWAY_PORT", c.Server.Port)
	c.Server.Env = getEnv("GATEWAY_ENV", c.Server.Env)
	c.Server.SignalingURL = getEnv("GATEWAY_SIGNALING_URL", c.Server.SignalingURL)
	if origins := getEnv("CORS_ALLOW_ORIGINS", ""); origins != "" {
		c.Server.CORSAllowOrigins = splitCSV(origins)
	}
	if servers := getEnv("ICE_SERVERS", ""); servers != "" {
		c.Server.ICEServers = splitCSV(servers)
	}

	if issuers := getEnv("TRUSTED_ISSUERS", ""); issuers != "" {
		c.Security.TrustedIssuers = splitCSV(issuers)
	}
	if v := getEnvInt("CLOCK_SKEW_SEC", 0); v > 0 {
		c.Security.ClockSkewSec = v
	}
	if v := getEnvInt("DID_CACHE_TTL_SEC", 0); v > 0 {
		c.Security.DIDCacheTTLSec = v
	}
	if v := getEnvInt("DID_CACHE_MAX_SIZE", 0); v > 0 {
		c.Security.DIDCacheMaxSize = v
	}

	if v := getEnvInt("TOKEN_TTL_SEC", 0); v > 0 {
		c.Token.TTLSec = v
	}
	if v := getEnvInt("KEY_GRACE_PERIOD_SEC", 0); v > 0 {
		c.Token.KeyGracePeriodSec = v
	}
	if v := getEnvInt("NEAR_EXPIRY_SCAN_SEC", 0); v > 0 {
		c.Token.NearExpiryScanSec = v
	}
	if v := getEnvInt("NEAR_EXPIRY_WARN_SEC", 0); v > 0 {
		c.Token.NearExpiryWarnSec = v
	}
	if v := getEnvInt("JWKS_REFRESH_SEC", 0); v > 0 {
		c.Token.JWKSRefreshSec = v
	}

	if v := getEnvInt("POLICY_HISTORY_CAPACITY", 0); v > 0 {
		c.Policy.HistoryCapacity = v
	}
	c.Policy.PostgresDSN = getEnv("POLICY_POSTGRES_DSN", c.Policy.PostgresDSN)

	if v := getEnvInt("AUDIT_QUEUE_SIZE", 0); v > 0 {
		c.Audit.QueueSize = v
	}
	c.Audit.LedgerURL = getEnv("AUDIT_LEDGER_URL", c.Audit.LedgerURL)
	c.Audit.SinkURL = getEnv("AUDIT_SINK_URL", c.Audit.SinkURL)

	c.Federation.TrustDomain = getEnv("TELEOP_TRUST_DOMAIN", c.Federation.TrustDomain)
	c.Federation.SpireSocket = getEnv("SPIFFE_ENDPOINT_SOCKET", c.Federation.SpireSocket)

	c.Database.PolicyHistoryDSN = getEnv("POLICY_HISTORY_DSN", c.Database.PolicyHistoryDSN)

	c.applyDefaults()
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8443"
	}
	if len(c.Server.CORSAllowOrigins) == 0 {
		c.Server.CORSAllowOrigins = []string{"*"}
	}
	if c.Security.ClockSkewSec == 0 {
		c.Security.ClockSkewSec = 60
	}
	if c.Security.DIDCacheTTLSec == 0 {
		c.Security.DIDCacheTTLSec = 60
	}
	if c.Security.DIDCacheMaxSize == 0 {
		c.Security.DIDCacheMaxSize = 1000
	}
	if c.Token.TTLSec == 0 {
		c.Token.TTLSec = 3600
	}
	if c.Token.KeyGracePeriodSec == 0 {
		c.Token.KeyGracePeriodSec = 300
	}
	if c.Token.NearExpiryScanSec == 0 {
		c.Token.NearExpiryScanSec = 10
	}
	if c.Token.NearExpiryWarnSec == 0 {
		c.Token.NearExpiryWarnSec = 60
	}
	if c.Token.JWKSRefreshSec == 0 {
		c.Token.JWKSRefreshSec = 300
	}
	if c.Policy.HistoryCapacity == 0 {
		c.Policy.HistoryCapacity = 10000
	}
	if c.Audit.QueueSize == 0 {
		c.Audit.QueueSize = 1024
	}
	if c.Federation.TrustDomain == "" {
		c.Federation.TrustDomain = "teleop.local"
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func splitCSV(s string) []string {
	parts := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

func (c *Config) IsProduction() bool { return c.Server.Env == "production" }
