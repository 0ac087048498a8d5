package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 8000 {
		t.Errorf("Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("Driver = %q, want %q", cfg.Database.Driver, DriverSQLite)
	}
	if cfg.Pagination.MaxLimit != 100 {
		t.Errorf("MaxLimit = %d, want 100", cfg.Pagination.MaxLimit)
	}
	if cfg.Media.Backend != MediaLocal {
		t.Errorf("Media.Backend = %q, want %q", cfg.Media.Backend, MediaLocal)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.Issuer != "taskgraph" {
		t.Errorf("Issuer = %q, want \"taskgraph\"", cfg.Auth.Issuer)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFile)
	content := `
[server]
port = 9090

[database]
driver = "postgres"
dsn = "postgres://localhost/taskgraph"

[pagination]
max_limit = 0

[auth]
secret = "s3cret"
token_ttl = "1h"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Driver != DriverPostgres {
		t.Errorf("Driver = %q, want %q", cfg.Database.Driver, DriverPostgres)
	}
	// Zeroed value falls back to the default
	if cfg.Pagination.MaxLimit != 100 {
		t.Errorf("MaxLimit = %d, want 100", cfg.Pagination.MaxLimit)
	}
	// Untouched sections keep their defaults
	if cfg.Media.BaseURL != "/media/" {
		t.Errorf("Media.BaseURL = %q, want \"/media/\"", cfg.Media.BaseURL)
	}
	ttl, err := cfg.TokenTTL()
	if err != nil {
		t.Fatalf("TokenTTL() error = %v", err)
	}
	if ttl != time.Hour {
		t.Errorf("TokenTTL() = %s, want 1h", ttl)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFile)
	if err := os.WriteFile(path, []byte("[server\nport ="), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid TOML")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TASKGRAPH_PORT", "7000")
	t.Setenv("DATABASE_URL", "postgres://db.internal/app")
	t.Setenv("TASKGRAPH_SECRET", "from-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 7000 {
		t.Errorf("Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Database.Driver != DriverPostgres {
		t.Errorf("Driver = %q, want %q", cfg.Database.Driver, DriverPostgres)
	}
	if cfg.Database.DSN != "postgres://db.internal/app" {
		t.Errorf("DSN = %q", cfg.Database.DSN)
	}
	if cfg.Auth.Secret != "from-env" {
		t.Errorf("Secret = %q, want \"from-env\"", cfg.Auth.Secret)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing secret", func(c *Config) { c.Auth.Secret = "" }, true},
		{"bad driver", func(c *Config) { c.Database.Driver = "oracle" }, true},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }, true},
		{"bad ttl", func(c *Config) { c.Auth.TokenTTL = "soon" }, true},
		{"negative ttl", func(c *Config) { c.Auth.TokenTTL = "-1h" }, true},
		{"minio without bucket", func(c *Config) {
			c.Media.Backend = MediaMinio
			c.Media.Minio.Endpoint = "localhost:9000"
		}, true},
		{"minio complete", func(c *Config) {
			c.Media.Backend = MediaMinio
			c.Media.Minio.Endpoint = "localhost:9000"
			c.Media.Minio.Bucket = "media"
		}, false},
		{"unknown media backend", func(c *Config) { c.Media.Backend = "ftp" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Auth.Secret = "secret"
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFile)
	cfg := Default()
	cfg.Server.Port = 1234
	cfg.Media.Backend = MediaMinio

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Server.Port != 1234 {
		t.Errorf("Port = %d, want 1234", loaded.Server.Port)
	}
	if loaded.Media.Backend != MediaMinio {
		t.Errorf("Media.Backend = %q, want %q", loaded.Media.Backend, MediaMinio)
	}
}

func TestMaxUploadBytes(t *testing.T) {
	cfg := Default()
	if got := cfg.MaxUploadBytes(); got != 10<<20 {
		t.Errorf("MaxUploadBytes() = %d, want %d", got, 10<<20)
	}
	cfg.Server.MaxUploadMB = 0
	if got := cfg.MaxUploadBytes(); got != 10<<20 {
		t.Errorf("MaxUploadBytes() with zero = %d, want %d", got, 10<<20)
	}
}
