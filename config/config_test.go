package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.IndexURL != "https://pypi.org" {
		t.Errorf("IndexURL = %q, want https://pypi.org", cfg.IndexURL)
	}
	if cfg.ConcurrentLimit != 10 || cfg.MaxIterations != 10 {
		t.Errorf("limits = %d/%d, want 10/10", cfg.ConcurrentLimit, cfg.MaxIterations)
	}
	if !cfg.InferFromRange {
		t.Error("InferFromRange should default on")
	}
	if cfg.AllowPrereleases {
		t.Error("AllowPrereleases should default off")
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load(strings.NewReader(`
index_url = "https://mirror.internal/simple"
timeout = "5s"
max_retries = 1
concurrent_limit = 4
allow_prereleases = true
runtime_version = "3.11"
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.IndexURL != "https://mirror.internal/simple" {
		t.Errorf("IndexURL = %q", cfg.IndexURL)
	}
	if cfg.Timeout.Duration != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout.Duration)
	}
	if cfg.MaxRetries != 1 || cfg.ConcurrentLimit != 4 {
		t.Errorf("retries/limit = %d/%d", cfg.MaxRetries, cfg.ConcurrentLimit)
	}
	if !cfg.AllowPrereleases || cfg.RuntimeVersion != "3.11" {
		t.Errorf("prereleases/runtime = %v/%q", cfg.AllowPrereleases, cfg.RuntimeVersion)
	}

	// Unset keys keep their defaults.
	if cfg.MaxIterations != 10 {
		t.Errorf("MaxIterations = %d, want default 10", cfg.MaxIterations)
	}
	if !cfg.InferFromRange {
		t.Error("InferFromRange should keep its default")
	}
}

func TestLoadInvalid(t *testing.T) {
	if _, err := Load(strings.NewReader("timeout = [1, 2]")); err == nil {
		t.Error("expected decode error")
	}
}
