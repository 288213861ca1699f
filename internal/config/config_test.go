package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %s", cfg.Server.Addr)
	}
	if cfg.Gate.MinPrimaryEvidenceRatio != 0.5 {
		t.Errorf("ratio threshold = %f", cfg.Gate.MinPrimaryEvidenceRatio)
	}
	if cfg.Gate.MaxUnsupportedClaimShare != 0.10 {
		t.Errorf("share threshold = %f", cfg.Gate.MaxUnsupportedClaimShare)
	}
	if !cfg.Gate.RequireHighImpactCorroboration {
		t.Error("corroboration requirement should default on")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Platform.ID != "local" {
		t.Errorf("platform id = %s", cfg.Platform.ID)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
addr = ":9090"

[platform]
id = "metro-desk"
scope = "syndicated"

[gate]
min_primary_evidence_ratio = 0.75
max_unsupported_claim_share = 0.05
require_high_impact_corroboration = false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("addr = %s", cfg.Server.Addr)
	}
	if cfg.Platform.ID != "metro-desk" || cfg.Platform.Scope != "syndicated" {
		t.Errorf("platform = %+v", cfg.Platform)
	}
	if cfg.Gate.MinPrimaryEvidenceRatio != 0.75 {
		t.Errorf("ratio = %f", cfg.Gate.MinPrimaryEvidenceRatio)
	}
	if cfg.Gate.RequireHighImpactCorroboration {
		t.Error("corroboration override not applied")
	}
	// Untouched sections keep their defaults.
	if cfg.Database.Path != "data/newsgate.db" {
		t.Errorf("db path = %s", cfg.Database.Path)
	}
}
