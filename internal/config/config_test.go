package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DuplicateTolerance != 5 {
		t.Errorf("DuplicateTolerance: got %d, want 5", cfg.DuplicateTolerance)
	}
	if cfg.MinDrawSize != 10 {
		t.Errorf("MinDrawSize: got %d, want 10", cfg.MinDrawSize)
	}
	if cfg.ServerAddress() != "127.0.0.1:8787" {
		t.Errorf("ServerAddress: got %s", cfg.ServerAddress())
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
relay_url: http://localhost:8787/api/image-proxy
page_origin: https://app.example.com
fetch_timeout: 3s
duplicate_tolerance: 8
grid_size: 4
http:
  port: "9000"
  relay_allowed_hosts:
    - cdn.example.com
    - .assets.example.org
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RelayURL != "http://localhost:8787/api/image-proxy" {
		t.Errorf("RelayURL: got %s", cfg.RelayURL)
	}
	if cfg.FetchTimeout != 3*time.Second {
		t.Errorf("FetchTimeout: got %s", cfg.FetchTimeout)
	}
	if cfg.DuplicateTolerance != 8 || cfg.GridSize != 4 {
		t.Errorf("got tolerance=%d grid=%d", cfg.DuplicateTolerance, cfg.GridSize)
	}
	if cfg.HTTP.Port != "9000" {
		t.Errorf("HTTP.Port: got %s", cfg.HTTP.Port)
	}
	if len(cfg.HTTP.RelayAllowedHosts) != 2 || cfg.HTTP.RelayAllowedHosts[1] != ".assets.example.org" {
		t.Errorf("RelayAllowedHosts: got %v", cfg.HTTP.RelayAllowedHosts)
	}
	// untouched fields keep their defaults
	if cfg.HTTP.Host != "127.0.0.1" {
		t.Errorf("HTTP.Host: got %s", cfg.HTTP.Host)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("grid_size: 4\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("DESIGN_SPEC_GRID_SIZE", "16")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.GridSize != 16 {
		t.Errorf("GridSize: got %d, want 16", cfg.GridSize)
	}
}

func TestLoad_EnvRelayAllowedHosts(t *testing.T) {
	t.Setenv("DESIGN_SPEC_RELAY_ALLOWED_HOSTS", " cdn.example.com, ,.assets.example.org ")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := []string{"cdn.example.com", ".assets.example.org"}
	if len(cfg.HTTP.RelayAllowedHosts) != len(want) {
		t.Fatalf("RelayAllowedHosts: got %v, want %v", cfg.HTTP.RelayAllowedHosts, want)
	}
	for i := range want {
		if cfg.HTTP.RelayAllowedHosts[i] != want[i] {
			t.Errorf("RelayAllowedHosts[%d]: got %q, want %q", i, cfg.HTTP.RelayAllowedHosts[i], want[i])
		}
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.HTTP.Port = "http" }},
		{"port out of range", func(c *Config) { c.HTTP.Port = "70000" }},
		{"zero timeout", func(c *Config) { c.FetchTimeout = 0 }},
		{"negative tolerance", func(c *Config) { c.DuplicateTolerance = -1 }},
		{"zero grid", func(c *Config) { c.GridSize = 0 }},
		{"zero canvas", func(c *Config) { c.MaxCanvasPixels = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate should fail")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load should fail for a missing file")
	}
}
