package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultUsesTagDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Session.Attempts != 3 {
		t.Errorf("Session.Attempts = %d, want 3", cfg.Session.Attempts)
	}
	if cfg.Session.Backoff != 30*time.Second {
		t.Errorf("Session.Backoff = %v, want 30s", cfg.Session.Backoff)
	}
	if cfg.Challenge.Interval != 15*time.Second || cfg.Challenge.Attempts != 8 {
		t.Errorf("Challenge = %+v, want 15s x 8", cfg.Challenge)
	}
	if cfg.Pricing.MarkupMultiplier != 1.4 {
		t.Errorf("MarkupMultiplier = %v, want 1.4", cfg.Pricing.MarkupMultiplier)
	}
	want := []string{"ai", "jsonld", "heuristic"}
	if len(cfg.Extraction.Chain) != len(want) {
		t.Fatalf("Chain = %v, want %v", cfg.Extraction.Chain, want)
	}
	for i := range want {
		if cfg.Extraction.Chain[i] != want[i] {
			t.Errorf("Chain[%d] = %q, want %q", i, cfg.Extraction.Chain[i], want[i])
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DEALSCOUT_MAX_CONCURRENT", "4")
	t.Setenv("DEALSCOUT_EXTRACT_CHAIN", "jsonld,heuristic")

	cfg := Default()
	if cfg.Run.MaxConcurrent != 4 {
		t.Errorf("MaxConcurrent = %d, want 4", cfg.Run.MaxConcurrent)
	}
	if len(cfg.Extraction.Chain) != 2 || cfg.Extraction.Chain[0] != "jsonld" {
		t.Errorf("Chain = %v", cfg.Extraction.Chain)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dealscout.yaml")
	body := "env: prod\nrun:\n  max_concurrent: 3\nstore:\n  kind: postgres\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Env != "prod" || cfg.Run.MaxConcurrent != 3 || cfg.Store.Kind != "postgres" {
		t.Errorf("unexpected config: env=%q concurrent=%d store=%q", cfg.Env, cfg.Run.MaxConcurrent, cfg.Store.Kind)
	}
	if cfg.Navigation.Timeout != 30*time.Second {
		t.Errorf("Navigation.Timeout = %v, want default 30s", cfg.Navigation.Timeout)
	}
}
