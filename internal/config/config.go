package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration. It is loaded once in
// main and passed by reference; no component reads the environment itself.
type Config struct {
	ListenAddr string `env:"KAVOSH_LISTEN_ADDR" envDefault:":8080"`

	// PostgreSQL DSN. Empty means in-memory stores (development only).
	PGDSN string `env:"KAVOSH_PG_DSN"`

	// Token signing.
	AuthSecret      string `env:"JWT_SECRET"`
	AuthAlgorithm   string `env:"JWT_ALGORITHM" envDefault:"HS256"`
	TokenTTLMinutes int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"60"`

	// Directory service. ADServer empty disables the directory path entirely.
	ADServer       string `env:"AD_SERVER"`
	ADBaseDN       string `env:"AD_BASE_DN"`
	ADBindUser     string `env:"AD_BIND_USER"`
	ADBindPassword string `env:"AD_BIND_PASSWORD"`
	ADTimeoutSecs  int    `env:"AD_TIMEOUT_SECONDS" envDefault:"10"`

	// Authorization allow-lists, comma-separated. Matching is case-insensitive.
	ADAllowedTitles   []string `env:"AD_ALLOWED_TITLES" envDefault:"Manager" envSeparator:","`
	ADAllowedGroupDNs []string `env:"AD_ALLOWED_GROUP_DNS" envSeparator:","`

	// Identifiers that always authenticate against the local store even
	// when a directory server is configured.
	LocalAuthOverride []string `env:"LOCAL_AUTH_OVERRIDE" envSeparator:","`
}

// Load reads configuration from environment variables. A .env file is
// loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.ADAllowedTitles = trimAll(cfg.ADAllowedTitles)
	cfg.ADAllowedGroupDNs = trimAll(cfg.ADAllowedGroupDNs)
	cfg.LocalAuthOverride = trimAll(cfg.LocalAuthOverride)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.AuthSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.AuthAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported JWT_ALGORITHM %q", c.AuthAlgorithm)
	}
	if c.TokenTTLMinutes <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.ADServer != "" {
		if c.ADBaseDN == "" {
			return fmt.Errorf("AD_BASE_DN is required when AD_SERVER is set")
		}
		if c.ADBindUser == "" || c.ADBindPassword == "" {
			return fmt.Errorf("AD_BIND_USER and AD_BIND_PASSWORD are required when AD_SERVER is set")
		}
		if c.ADTimeoutSecs <= 0 {
			return fmt.Errorf("AD_TIMEOUT_SECONDS must be positive")
		}
	}
	return nil
}

// TokenTTL returns the configured access token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// ADTimeout returns the per-phase directory operation timeout.
func (c *Config) ADTimeout() time.Duration {
	return time.Duration(c.ADTimeoutSecs) * time.Second
}

// DirectoryEnabled reports whether directory authentication is configured.
func (c *Config) DirectoryEnabled() bool {
	return c.ADServer != ""
}

func trimAll(in []string) []string {
	var out []string
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
