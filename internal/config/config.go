package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const ConfigFile = "taskgraph.toml"

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Supported media backends.
const (
	MediaLocal = "local"
	MediaMinio = "minio"
)

// Config holds the taskgraph configuration.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Auth       AuthConfig       `toml:"auth"`
	Media      MediaConfig      `toml:"media"`
	Social     SocialConfig     `toml:"social"`
	Pagination PaginationConfig `toml:"pagination"`
	Log        LogConfig        `toml:"log"`
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
	MaxUploadMB    int64    `toml:"max_upload_mb"`
}

// DatabaseConfig selects and configures the SQL backend.
type DatabaseConfig struct {
	Driver       string `toml:"driver"`
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns"`
	AutoMigrate  bool   `toml:"auto_migrate"`
}

// AuthConfig configures token signing.
type AuthConfig struct {
	Secret   string `toml:"secret"`
	Issuer   string `toml:"issuer"`
	TokenTTL string `toml:"token_ttl"`
}

// MediaConfig selects where uploaded images are stored.
type MediaConfig struct {
	Backend string      `toml:"backend"`
	Dir     string      `toml:"dir"`
	BaseURL string      `toml:"base_url"`
	Minio   MinioConfig `toml:"minio"`
}

// MinioConfig configures an S3-compatible bucket.
type MinioConfig struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	UseSSL    bool   `toml:"use_ssl"`
	PublicURL string `toml:"public_url"`
}

// SocialConfig holds the endpoints used to verify provider access tokens.
type SocialConfig struct {
	GoogleUserInfoURL string `toml:"google_userinfo_url"`
	GitHubAPIURL      string `toml:"github_api_url"`
}

// PaginationConfig bounds connection page sizes.
type PaginationConfig struct {
	MaxLimit int `toml:"max_limit"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8000,
			AllowedOrigins: []string{"*"},
			MaxUploadMB:    10,
		},
		Database: DatabaseConfig{
			Driver:       DriverSQLite,
			DSN:          "file:taskgraph.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
			MaxOpenConns: 25,
			AutoMigrate:  true,
		},
		Auth: AuthConfig{
			Issuer:   "taskgraph",
			TokenTTL: "168h",
		},
		Media: MediaConfig{
			Backend: MediaLocal,
			Dir:     "media",
			BaseURL: "/media/",
		},
		Social: SocialConfig{
			GoogleUserInfoURL: "https://www.googleapis.com/oauth2/v3/userinfo",
			GitHubAPIURL:      "https://api.github.com",
		},
		Pagination: PaginationConfig{
			MaxLimit: 100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the given file and applies environment overrides.
// Returns default config (plus overrides) if the file doesn't exist.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigFile
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	cfg.applyEnv()

	// Apply defaults for values zeroed out by the file
	if cfg.Pagination.MaxLimit <= 0 {
		cfg.Pagination.MaxLimit = 100
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
	}
	if cfg.Media.Backend == "" {
		cfg.Media.Backend = MediaLocal
	}

	return cfg, nil
}

// applyEnv overlays TASKGRAPH_* environment variables.
func (c *Config) applyEnv() {
	c.Server.Port = getEnvInt("TASKGRAPH_PORT", c.Server.Port)
	if origins := os.Getenv("TASKGRAPH_ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = strings.Split(origins, ",")
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		c.Database.DSN = url
		if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
			c.Database.Driver = DriverPostgres
		}
	}
	c.Database.Driver = getEnv("TASKGRAPH_DB_DRIVER", c.Database.Driver)
	c.Database.AutoMigrate = getEnvBool("TASKGRAPH_AUTO_MIGRATE", c.Database.AutoMigrate)

	c.Auth.Secret = getEnv("TASKGRAPH_SECRET", c.Auth.Secret)
	c.Auth.Issuer = getEnv("TASKGRAPH_ISSUER", c.Auth.Issuer)
	c.Auth.TokenTTL = getEnv("TASKGRAPH_TOKEN_TTL", c.Auth.TokenTTL)

	c.Media.Backend = getEnv("TASKGRAPH_MEDIA_BACKEND", c.Media.Backend)
	c.Media.Dir = getEnv("TASKGRAPH_MEDIA_DIR", c.Media.Dir)
	c.Media.Minio.Endpoint = getEnv("MINIO_ENDPOINT", c.Media.Minio.Endpoint)
	c.Media.Minio.AccessKey = getEnv("MINIO_ACCESS_KEY", c.Media.Minio.AccessKey)
	c.Media.Minio.SecretKey = getEnv("MINIO_SECRET_KEY", c.Media.Minio.SecretKey)
	c.Media.Minio.Bucket = getEnv("MINIO_BUCKET", c.Media.Minio.Bucket)

	c.Log.Level = getEnv("TASKGRAPH_LOG_LEVEL", c.Log.Level)
	c.Log.Development = getEnvBool("TASKGRAPH_LOG_DEV", c.Log.Development)
}

// Validate reports configuration that cannot be served.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn is required")
	}
	if c.Auth.Secret == "" {
		return errors.New("auth secret is required (set TASKGRAPH_SECRET)")
	}
	if _, err := c.TokenTTL(); err != nil {
		return err
	}
	switch c.Media.Backend {
	case MediaLocal:
		if c.Media.Dir == "" {
			return errors.New("media dir is required for the local backend")
		}
	case MediaMinio:
		if c.Media.Minio.Endpoint == "" || c.Media.Minio.Bucket == "" {
			return errors.New("minio endpoint and bucket are required for the minio backend")
		}
	default:
		return fmt.Errorf("unsupported media backend: %s", c.Media.Backend)
	}
	return nil
}

// TokenTTL returns the parsed token lifetime.
func (c *Config) TokenTTL() (time.Duration, error) {
	d, err := time.ParseDuration(c.Auth.TokenTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid token_ttl %q: %w", c.Auth.TokenTTL, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("token_ttl must be positive, got %s", d)
	}
	return d, nil
}

// MaxUploadBytes returns the multipart upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	if c.Server.MaxUploadMB <= 0 {
		return 10 << 20
	}
	return c.Server.MaxUploadMB << 20
}

// Save writes the configuration to the given path.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
