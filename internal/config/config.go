// Package config loads server configuration from the environment, plus an
// optional YAML file declaring external HTTP statistics providers.
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config is the communityd server configuration. Every field has a default;
// an empty environment yields a working local setup.
type Config struct {
	Port     int    `env:"COMMUNITY_PORT,default=8080"`
	LogLevel string `env:"COMMUNITY_LOG_LEVEL,default=info"`

	// AuthTokens is a semicolon-separated list of accepted bearer tokens.
	// Empty disables static-token auth.
	AuthTokens []string `env:"COMMUNITY_AUTH_TOKENS"`

	// JWTSecret enables HS256 JWT bearer tokens alongside static tokens.
	JWTSecret string `env:"COMMUNITY_JWT_SECRET"`

	RateLimitRPS   float64 `env:"COMMUNITY_RATE_LIMIT_RPS,default=25"`
	RateLimitBurst int     `env:"COMMUNITY_RATE_LIMIT_BURST,default=50"`

	RefreshSchedule string        `env:"COMMUNITY_REFRESH_SCHEDULE,default=@every 1m"`
	ProviderTimeout time.Duration `env:"COMMUNITY_PROVIDER_TIMEOUT,default=3s"`

	// IntegrationsFile points at the YAML declaring HTTP stats providers.
	IntegrationsFile string `env:"COMMUNITY_INTEGRATIONS_FILE,default=config/integrations.yaml"`

	// SimulateIntegrations registers the built-in demo collaborators.
	SimulateIntegrations bool  `env:"COMMUNITY_SIMULATE_INTEGRATIONS,default=true"`
	SimulationSeed       int64 `env:"COMMUNITY_SIMULATION_SEED,default=42"`

	// AuditLogFile, when set, persists the request audit trail as JSONL.
	AuditLogFile string `env:"COMMUNITY_AUDIT_LOG_FILE"`
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	return cfg, nil
}

// Addr is the listen address derived from the configured port.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
