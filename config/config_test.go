package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/skillsenselab/harnesskit/logger"
)

func logging(level, format string) logger.Config {
	return logger.Config{Level: level, Format: format, Output: "stdout", Timestamp: true}
}

const sampleConfig = `
name: acceptance-harness
logging:
  level: debug
  format: json
services:
  remote_command:
    enable: true
    connections:
      - name: app-server
        enable: true
        host: app.internal
        port: 8443
      - name: standby
        enable: false
        host: standby.internal
        port: 8443
  imix:
    enable: false
    connections:
      - name: gateway
        enable: true
        url: ws://gateway:9001/feed
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "harness.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadHarness(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	cfg, err := LoadHarness(WithConfigFile(path))
	if err != nil {
		t.Fatalf("LoadHarness failed: %v", err)
	}

	if cfg.Name != "acceptance-harness" {
		t.Errorf("expected name 'acceptance-harness', got %q", cfg.Name)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected level 'debug', got %q", cfg.Logging.Level)
	}

	svc, ok := cfg.Services["remote_command"]
	if !ok {
		t.Fatal("expected remote_command service block")
	}
	if len(svc.Connections) != 2 {
		t.Fatalf("expected 2 connections, got %d", len(svc.Connections))
	}
	if svc.Connections[0].Name != "app-server" {
		t.Errorf("expected 'app-server', got %q", svc.Connections[0].Name)
	}
	if svc.Connections[0].Settings["host"] != "app.internal" {
		t.Errorf("expected host setting retained, got %v", svc.Connections[0].Settings)
	}
}

func TestEnabledConnections(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	cfg, err := LoadHarness(WithConfigFile(path))
	if err != nil {
		t.Fatalf("LoadHarness failed: %v", err)
	}

	enabled := cfg.EnabledConnections("remote_command")
	if len(enabled) != 1 {
		t.Fatalf("expected 1 enabled connection, got %d", len(enabled))
	}
	if enabled[0].Name != "app-server" {
		t.Errorf("expected 'app-server', got %q", enabled[0].Name)
	}

	// Service disabled entirely.
	if got := cfg.EnabledConnections("imix"); got != nil {
		t.Errorf("expected nil for disabled service, got %v", got)
	}

	// Unknown service.
	if got := cfg.EnabledConnections("oracle"); got != nil {
		t.Errorf("expected nil for unknown service, got %v", got)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Name != "harness" {
		t.Errorf("expected default name, got %q", cfg.Name)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default logging level, got %q", cfg.Logging.Level)
	}
	if cfg.Observability.Metrics.Endpoint == "" {
		t.Error("expected default metrics endpoint")
	}
	if cfg.Observability.Tracing.Sample != 1.0 {
		t.Errorf("expected default sample 1.0, got %v", cfg.Observability.Tracing.Sample)
	}
}

func TestValidateDuplicateConnectionNames(t *testing.T) {
	cfg := Config{
		Name:    "h",
		Logging: logging("info", "json"),
		Services: map[string]ServiceConfig{
			"database": {
				Enable: true,
				Connections: []ConnectionConfig{
					{Name: "primary", Enable: true},
					{Name: "primary", Enable: true},
				},
			},
		},
	}

	if err := cfg.Validate(); err == nil {
		t.Error("expected error for duplicate connection names")
	}
}

func TestValidateMissingConnectionName(t *testing.T) {
	cfg := Config{
		Name:    "h",
		Logging: logging("info", "json"),
		Services: map[string]ServiceConfig{
			"database": {
				Enable:      true,
				Connections: []ConnectionConfig{{Enable: true}},
			},
		},
	}

	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing connection name")
	}
}

func TestLoadMissingFile(t *testing.T) {
	var cfg Config
	err := Load(&cfg, WithConfigFile(filepath.Join(t.TempDir(), "absent.yml")))
	if err != nil {
		t.Fatalf("expected missing file to be skipped, got %v", err)
	}
}
