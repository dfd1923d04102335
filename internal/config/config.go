package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Locate   LocateConfig   `yaml:"locate"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Export   ExportConfig   `yaml:"export"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Driver          string `yaml:"driver"`           // "sqlite", "postgres" or "file"
	DSN             string `yaml:"dsn"`              // file path for sqlite and file, connection string for postgres
	CanonicalSchema string `yaml:"canonical_schema"` // schema holding GitLab's namespaces, projects, project_repositories
	EnhanceSchema   string `yaml:"enhance_schema"`   // schema receiving materialized output
}

// LocateConfig supplies the formatting parameters used when materializing
// and exporting repository locators. Empty values skip that locator.
type LocateConfig struct {
	HostName      string `yaml:"host_name"`
	BareReposHome string `yaml:"bare_repos_home"`
}

type RefreshConfig struct {
	Schedule string `yaml:"schedule"` // cron spec, e.g. "@every 5m"; empty disables scheduling
	OnStart  bool   `yaml:"on_start"`
	Timeout  string `yaml:"timeout"`
}

type ExportConfig struct {
	Backend  string `yaml:"backend"` // "local" or "s3"
	Path     string `yaml:"path"`    // root directory for the local backend
	Prefix   string `yaml:"prefix"`
	Format   string `yaml:"format"` // "json" or "yaml"
	Compress bool   `yaml:"compress"`
	Keep     int    `yaml:"keep"`
	// OnPublish exports every pass published by `glenhance serve`.
	OnPublish bool     `yaml:"on_publish"`
	S3        S3Config `yaml:"s3"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	TokenDuration string `yaml:"token_duration"` // e.g. "24h"
	// AdminUser and AdminPasswordHash (bcrypt) enable POST /api/v1/token.
	// When unset, admin tokens can only be minted with `glenhance token`.
	AdminUser         string `yaml:"admin_user"`
	AdminPasswordHash string `yaml:"admin_password_hash"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

const defaultJWTSecret = "change-me-in-production"

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) ValidateDatabase() error {
	switch c.Database.Driver {
	case "sqlite", "postgres", "file":
	default:
		return fmt.Errorf("database.driver must be sqlite, postgres or file (got %q)", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn must be configured")
	}
	return nil
}

func (c *Config) ValidateServe() error {
	if c == nil {
		return fmt.Errorf("config is required")
	}
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	if err := c.ValidateAuth(); err != nil {
		return err
	}
	if _, err := c.RefreshTimeout(); err != nil {
		return err
	}
	return nil
}

func (c *Config) ValidateAuth() error {
	if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == defaultJWTSecret {
		return fmt.Errorf("GLENHANCE_JWT_SECRET must be set to a non-default value (example: GLENHANCE_JWT_SECRET=dev-jwt-secret-change-this)")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("GLENHANCE_JWT_SECRET must be at least 16 characters (current length: %d)", len(c.Auth.JWTSecret))
	}
	if _, err := c.TokenTTL(); err != nil {
		return err
	}
	if (c.Auth.AdminUser == "") != (c.Auth.AdminPasswordHash == "") {
		return fmt.Errorf("auth.admin_user and auth.admin_password_hash must be set together")
	}
	return nil
}

func (c *Config) ValidateExport() error {
	switch c.Export.Backend {
	case "local":
		if c.Export.Path == "" {
			return fmt.Errorf("export.path must be configured for the local backend")
		}
	case "s3":
		if c.Export.S3.Endpoint == "" || c.Export.S3.Bucket == "" {
			return fmt.Errorf("export.s3.endpoint and export.s3.bucket must be configured for the s3 backend")
		}
	default:
		return fmt.Errorf("export.backend must be local or s3 (got %q)", c.Export.Backend)
	}
	switch c.Export.Format {
	case "json", "yaml":
	default:
		return fmt.Errorf("export.format must be json or yaml (got %q)", c.Export.Format)
	}
	if c.Export.Keep < 0 {
		return fmt.Errorf("export.keep must not be negative")
	}
	return nil
}

func (c *Config) TokenTTL() (time.Duration, error) {
	d, err := time.ParseDuration(c.Auth.TokenDuration)
	if err != nil {
		return 0, fmt.Errorf("auth.token_duration: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("auth.token_duration must be positive")
	}
	return d, nil
}

// RefreshTimeout bounds one resolution pass. Zero means no limit.
func (c *Config) RefreshTimeout() (time.Duration, error) {
	if strings.TrimSpace(c.Refresh.Timeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Refresh.Timeout)
	if err != nil {
		return 0, fmt.Errorf("refresh.timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("refresh.timeout must not be negative")
	}
	return d, nil
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "glenhance.db",
			CanonicalSchema: "gitlab",
			EnhanceSchema:   "gitlab_enhance",
		},
		Refresh: RefreshConfig{
			Schedule: "@every 5m",
			OnStart:  true,
			Timeout:  "2m",
		},
		Export: ExportConfig{
			Backend: "local",
			Path:    "data/exports",
			Prefix:  "glenhance",
			Format:  "json",
			Keep:    10,
		},
		Auth: AuthConfig{
			JWTSecret:     defaultJWTSecret,
			TokenDuration: "24h",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GLENHANCE_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("GLENHANCE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("GLENHANCE_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("GLENHANCE_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	// Legacy SQLACTL_* names from the sqlactl tooling are accepted;
	// GLENHANCE_* wins when both are set.
	if v := firstEnv("GLENHANCE_CANONICAL_SCHEMA", "SQLACTL_GITLAB_CANONICAL_SCHEMA_NAME"); v != "" {
		cfg.Database.CanonicalSchema = v
	}
	if v := firstEnv("GLENHANCE_ENHANCE_SCHEMA", "SQLACTL_GITLAB_ENHANCE_SCHEMA_NAME"); v != "" {
		cfg.Database.EnhanceSchema = v
	}
	if v := os.Getenv("GLENHANCE_HOST_NAME"); v != "" {
		cfg.Locate.HostName = strings.TrimSpace(v)
	}
	if v := os.Getenv("GLENHANCE_BARE_REPOS_HOME"); v != "" {
		cfg.Locate.BareReposHome = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("GLENHANCE_REFRESH_SCHEDULE"); ok {
		cfg.Refresh.Schedule = strings.TrimSpace(v)
	}
	if v := os.Getenv("GLENHANCE_REFRESH_ON_START"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Refresh.OnStart = enabled
		}
	}
	if v := os.Getenv("GLENHANCE_REFRESH_TIMEOUT"); v != "" {
		cfg.Refresh.Timeout = v
	}
	if v := os.Getenv("GLENHANCE_EXPORT_BACKEND"); v != "" {
		cfg.Export.Backend = v
	}
	if v := os.Getenv("GLENHANCE_EXPORT_PATH"); v != "" {
		cfg.Export.Path = v
	}
	if v := os.Getenv("GLENHANCE_EXPORT_PREFIX"); v != "" {
		cfg.Export.Prefix = v
	}
	if v := os.Getenv("GLENHANCE_EXPORT_FORMAT"); v != "" {
		cfg.Export.Format = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("GLENHANCE_EXPORT_COMPRESS"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Export.Compress = enabled
		}
	}
	if v := os.Getenv("GLENHANCE_EXPORT_KEEP"); v != "" {
		if value, err := strconv.Atoi(v); err == nil && value >= 0 {
			cfg.Export.Keep = value
		}
	}
	if v := os.Getenv("GLENHANCE_EXPORT_ON_PUBLISH"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Export.OnPublish = enabled
		}
	}
	if v := os.Getenv("GLENHANCE_S3_ENDPOINT"); v != "" {
		cfg.Export.S3.Endpoint = v
	}
	if v := os.Getenv("GLENHANCE_S3_BUCKET"); v != "" {
		cfg.Export.S3.Bucket = v
	}
	if v := os.Getenv("GLENHANCE_S3_REGION"); v != "" {
		cfg.Export.S3.Region = v
	}
	if v := os.Getenv("GLENHANCE_S3_ACCESS_KEY"); v != "" {
		cfg.Export.S3.AccessKey = v
	}
	if v := os.Getenv("GLENHANCE_S3_SECRET_KEY"); v != "" {
		cfg.Export.S3.SecretKey = v
	}
	if v := os.Getenv("GLENHANCE_S3_USE_SSL"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Export.S3.UseSSL = enabled
		}
	}
	if v := os.Getenv("GLENHANCE_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("GLENHANCE_ADMIN_USER"); v != "" {
		cfg.Auth.AdminUser = v
	}
	if v := os.Getenv("GLENHANCE_ADMIN_PASSWORD_HASH"); v != "" {
		cfg.Auth.AdminPasswordHash = v
	}
	if v := os.Getenv("GLENHANCE_TOKEN_DURATION"); v != "" {
		cfg.Auth.TokenDuration = v
	}
	if v := os.Getenv("GLENHANCE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("GLENHANCE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = strings.ToLower(strings.TrimSpace(v))
	}
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}
