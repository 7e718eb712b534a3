package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Build.OutputDir != "data" {
		t.Fatalf("expected output dir data, got %q", cfg.Build.OutputDir)
	}
	if cfg.HTTP.RequestInterval != 1200*time.Millisecond {
		t.Fatalf("expected 1.2s interval, got %v", cfg.HTTP.RequestInterval)
	}
	if cfg.HTTP.MaxAttempts != 4 {
		t.Fatalf("expected 4 attempts, got %d", cfg.HTTP.MaxAttempts)
	}
	if cfg.Metadata.Backend != BackendFile {
		t.Fatalf("expected file backend, got %q", cfg.Metadata.Backend)
	}
	if !strings.Contains(cfg.Build.ImageCDN, "%s") {
		t.Fatalf("expected image cdn pattern, got %q", cfg.Build.ImageCDN)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "dossier.yaml")
	configYAML := `
build:
  output_dir: out
  limit: 5
  skip_images: true
http:
  request_interval: 2s
  max_attempts: 2
  user_agent: unit-agent
headless:
  enabled: true
  nav_timeout: 20s
metadata:
  backend: postgres
  postgres_dsn: postgres://localhost/dossier
storage:
  gcs_bucket: bucket
pubsub:
  project_id: proj
  topic: profiles
logging:
  development: false
  level: debug
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Build.OutputDir != "out" || cfg.Build.Limit != 5 || !cfg.Build.SkipImages {
		t.Fatalf("expected build overrides to apply: %+v", cfg.Build)
	}
	if cfg.HTTP.RequestInterval != 2*time.Second || cfg.HTTP.MaxAttempts != 2 {
		t.Fatalf("expected http overrides to apply: %+v", cfg.HTTP)
	}
	if !cfg.Headless.Enabled || cfg.Headless.NavTimeout != 20*time.Second {
		t.Fatalf("expected headless overrides to apply: %+v", cfg.Headless)
	}
	if cfg.Metadata.Backend != BackendPostgres {
		t.Fatalf("expected postgres backend, got %q", cfg.Metadata.Backend)
	}
	if cfg.PubSub.Topic != "profiles" || cfg.Storage.GCSBucket != "bucket" {
		t.Fatalf("expected cloud overrides to apply")
	}
	if cfg.Logging.Development || cfg.Logging.Level != "debug" {
		t.Fatalf("expected logging overrides to apply: %+v", cfg.Logging)
	}
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dossier.yaml")
	if err := os.WriteFile(path, []byte("build:\n  output_dir: from-file\n"), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	flags := pflag.NewFlagSet("build", pflag.ContinueOnError)
	flags.String("output-dir", "data", "")
	flags.Duration("request-interval", 0, "")
	flags.Int("limit", 0, "")
	if err := flags.Parse([]string{"--output-dir", "from-flag", "--request-interval", "50ms"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Build.OutputDir != "from-flag" {
		t.Fatalf("expected flag to win, got %q", cfg.Build.OutputDir)
	}
	if cfg.HTTP.RequestInterval != 200*time.Millisecond {
		t.Fatalf("expected interval raised to the floor, got %v", cfg.HTTP.RequestInterval)
	}
	if cfg.Build.Limit != 0 {
		t.Fatalf("expected unchanged flag to keep default, got %d", cfg.Build.Limit)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Build:    BuildConfig{OutputDir: "data"},
		HTTP:     HTTPConfig{RequestInterval: time.Second, MaxAttempts: 4, Timeout: time.Second},
		Metadata: MetadataConfig{Backend: BackendFile},
		Server:   ServerConfig{Port: 8080},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "missing output dir", mutate: func(c *Config) { c.Build.OutputDir = " " }, want: "build.output_dir"},
		{name: "negative limit", mutate: func(c *Config) { c.Build.Limit = -1 }, want: "build.limit"},
		{name: "interval below floor", mutate: func(c *Config) { c.HTTP.RequestInterval = 100 * time.Millisecond }, want: "http.request_interval"},
		{name: "no attempts", mutate: func(c *Config) { c.HTTP.MaxAttempts = 0 }, want: "http.max_attempts"},
		{name: "no timeout", mutate: func(c *Config) { c.HTTP.Timeout = 0 }, want: "http.timeout"},
		{name: "unknown backend", mutate: func(c *Config) { c.Metadata.Backend = "redis" }, want: "metadata.backend"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Metadata.Backend = BackendPostgres }, want: "metadata.postgres_dsn"},
		{name: "topic without project", mutate: func(c *Config) { c.PubSub.Topic = "profiles" }, want: "pubsub.project_id"},
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadTracingFromEnv(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Tracing.Stderr {
		t.Fatal("expected span export to be off by default")
	}

	t.Setenv("DOSSIER_TRACING_STDERR", "true")
	cfg, err = Load("", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Tracing.Stderr {
		t.Fatal("expected DOSSIER_TRACING_STDERR to enable span export")
	}
}
