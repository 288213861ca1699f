package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
	Platform PlatformConfig `toml:"platform"`
	Gate     GateConfig     `toml:"gate"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type AuthConfig struct {
	JWTSecret      string `toml:"jwt_secret"`
	TokenExpiryMin int    `toml:"token_expiry_min"`
}

type PlatformConfig struct {
	ID    string `toml:"id"`
	Scope string `toml:"scope"`
}

// GateConfig holds publish gate thresholds. Defaults reproduce the standard
// policy; override per deployment.
type GateConfig struct {
	MinPrimaryEvidenceRatio        float64 `toml:"min_primary_evidence_ratio"`
	MaxUnsupportedClaimShare       float64 `toml:"max_unsupported_claim_share"`
	RequireHighImpactCorroboration bool    `toml:"require_high_impact_corroboration"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Database: DatabaseConfig{
			Path: "data/newsgate.db",
		},
		Auth: AuthConfig{
			JWTSecret:      "change-me-in-production",
			TokenExpiryMin: 1440, // 24h
		},
		Platform: PlatformConfig{
			ID:    "local",
			Scope: "local",
		},
		Gate: GateConfig{
			MinPrimaryEvidenceRatio:        0.5,
			MaxUnsupportedClaimShare:       0.10,
			RequireHighImpactCorroboration: true,
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}
