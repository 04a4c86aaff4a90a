package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
server:
  server_key: defaultkey
  host: game.example.com
  port: 7350
  use_ssl: true
session:
  appear_online: false
  connect_timeout: 10s
credentials:
  type: file
  file:
    path: /tmp/creds.yaml
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.ServerKey != "defaultkey" {
		t.Errorf("Server.ServerKey = %q, want %q", cfg.Server.ServerKey, "defaultkey")
	}
	if cfg.Server.Host != "game.example.com" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "game.example.com")
	}
	if !cfg.Server.UseSSL {
		t.Error("Server.UseSSL = false, want true")
	}
	if cfg.Session.ShouldAppearOnline() {
		t.Error("ShouldAppearOnline() = true, want false")
	}
	if cfg.Session.ConnectTimeout != 10*time.Second {
		t.Errorf("Session.ConnectTimeout = %v, want %v", cfg.Session.ConnectTimeout, 10*time.Second)
	}
	if cfg.Credentials.File.Path != "/tmp/creds.yaml" {
		t.Errorf("Credentials.File.Path = %q, want %q", cfg.Credentials.File.Path, "/tmp/creds.yaml")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_SERVER_KEY", "secret123")

	yaml := `
server:
  server_key: ${TEST_SERVER_KEY}
  host: localhost
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.ServerKey != "secret123" {
		t.Errorf("Server.ServerKey = %q, want %q", cfg.Server.ServerKey, "secret123")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("GAMELINK_SERVER_HOST", "override.example.com")
	t.Setenv("GAMELINK_SERVER_PORT", "9000")
	t.Setenv("GAMELINK_KAFKA_BROKERS", "k1:9092,k2:9092")

	yaml := `
server:
  server_key: key
  host: localhost
  port: 7350
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Host != "override.example.com" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "override.example.com")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9000)
	}
	if cfg.Server.ServerKey != "key" {
		t.Errorf("Server.ServerKey = %q, want unchanged %q", cfg.Server.ServerKey, "key")
	}
	if len(cfg.Events.Kafka.Brokers) != 2 || cfg.Events.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("Events.Kafka.Brokers = %v, want [k1:9092 k2:9092]", cfg.Events.Kafka.Brokers)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
server:
  server_key: key
  host: localhost
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Server.Port != DefaultPort {
		t.Errorf("Server.Port = %d, want default %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Session.ConnectTimeout != DefaultConnectTimeout {
		t.Errorf("Session.ConnectTimeout = %v, want default %v", cfg.Session.ConnectTimeout, DefaultConnectTimeout)
	}
	if !cfg.Session.ShouldAppearOnline() {
		t.Error("ShouldAppearOnline() = false, want default true")
	}
	if cfg.Session.RefreshInterval != DefaultRefreshInterval {
		t.Errorf("Session.RefreshInterval = %v, want default %v", cfg.Session.RefreshInterval, DefaultRefreshInterval)
	}
	if cfg.Retry.MaxAttempts != DefaultRetryMaxAttempts {
		t.Errorf("Retry.MaxAttempts = %d, want default %d", cfg.Retry.MaxAttempts, DefaultRetryMaxAttempts)
	}
	if cfg.Credentials.Type != DefaultCredentialsType {
		t.Errorf("Credentials.Type = %q, want default %q", cfg.Credentials.Type, DefaultCredentialsType)
	}
	if cfg.Credentials.Postgres.Port != DefaultDBPort {
		t.Errorf("Credentials.Postgres.Port = %d, want default %d", cfg.Credentials.Postgres.Port, DefaultDBPort)
	}
	if cfg.Health.Port != DefaultHealthPort {
		t.Errorf("Health.Port = %d, want default %d", cfg.Health.Port, DefaultHealthPort)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults: %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Config{
			Server: ServerConfig{ServerKey: "k", Host: "h", Port: 7350},
		}
		cfg.ApplyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing server key",
			mutate:  func(c *Config) { c.Server.ServerKey = "" },
			wantErr: "server.server_key is required",
		},
		{
			name:    "missing host",
			mutate:  func(c *Config) { c.Server.Host = "" },
			wantErr: "server.host is required",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "zero retry attempts",
			mutate:  func(c *Config) { c.Retry.MaxAttempts = -1 },
			wantErr: "retry.max_attempts must be >= 1",
		},
		{
			name: "ping interval not below timeout",
			mutate: func(c *Config) {
				c.Socket.PingInterval = time.Minute
				c.Socket.PingTimeout = time.Minute
			},
			wantErr: "socket.ping_interval (1m0s) must be less than ping_timeout (1m0s)",
		},
		{
			name:    "unknown credential store",
			mutate:  func(c *Config) { c.Credentials.Type = "etcd" },
			wantErr: `credentials.type "etcd" is not supported`,
		},
		{
			name: "redis without addr",
			mutate: func(c *Config) {
				c.Credentials.Type = "redis"
			},
			wantErr: "credentials.redis.addr is required",
		},
		{
			name: "postgres min_conns exceeds max_conns",
			mutate: func(c *Config) {
				c.Credentials.Type = "postgres"
				c.Credentials.Postgres = DBConfig{Host: "localhost", Name: "db", User: "user", MaxConns: 5, MinConns: 10}
			},
			wantErr: "credentials.postgres.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
