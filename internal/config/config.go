// Package config loads the service configuration from YAML, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when neither the flag nor MEMBERPORTAL_CONFIG is set.
const DefaultConfigPath = "config.yaml"

// AppConfig carries command-line level options.
type AppConfig struct {
	ConfigPath string
	EnvFile    string
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Listen         string        `yaml:"listen"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	BodyLimitMB    int64         `yaml:"body_limit_mb"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`
}

// DatabaseConfig configures the primary database.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	TimeZone     string `yaml:"timezone"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// JWTConfig configures admin tokens.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// LIFFConfig configures LINE identity verification.
type LIFFConfig struct {
	LIFFID    string        `yaml:"liff_id"`
	ChannelID string        `yaml:"channel_id"`
	APIBase   string        `yaml:"api_base"`
	Timeout   time.Duration `yaml:"timeout"`
}

// BackendConfig configures the loyalty REST API client.
type BackendConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig selects the profile cache implementation.
type CacheConfig struct {
	Driver   string        `yaml:"driver"` // memory or redis.
	RedisURL string        `yaml:"redis_url"`
	Prefix   string        `yaml:"prefix"`
	MaxAge   time.Duration `yaml:"max_age"` // Hard expiry for stored entries.
}

// StorageConfig selects where receipt images are kept.
type StorageConfig struct {
	Driver          string `yaml:"driver"` // local or s3.
	LocalDir        string `yaml:"local_dir"`
	Bucket          string `yaml:"bucket"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PublicBaseURL   string `yaml:"public_base_url"`
}

// LoggingConfig configures logrus and optional file rotation.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // text or json.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	LIFF     LIFFConfig     `yaml:"liff"`
	Backend  BackendConfig  `yaml:"backend"`
	Cache    CacheConfig    `yaml:"cache"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ResolveConfigPath picks the flag value, then MEMBERPORTAL_CONFIG, then the default.
func ResolveConfigPath(flagValue string) string {
	if p := strings.TrimSpace(flagValue); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv("MEMBERPORTAL_CONFIG")); p != "" {
		return p
	}
	return DefaultConfigPath
}

// ConfigExists reports whether a config file exists at path.
func ConfigExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Load reads envFile (when present), the YAML file at path (when present) and
// environment overrides, then applies defaults.
func Load(path, envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if errEnv := godotenv.Load(envFile); errEnv != nil && !errors.Is(errEnv, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load %s: %w", envFile, errEnv)
	}

	cfg := &Config{}
	data, errRead := os.ReadFile(path)
	switch {
	case errRead == nil:
		if errParse := yaml.Unmarshal(data, cfg); errParse != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, errParse)
		}
	case errors.Is(errRead, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Database.DSN) == "" {
		problems = append(problems, "database.dsn is required")
	}
	if len(strings.TrimSpace(c.JWT.Secret)) < 16 {
		problems = append(problems, "jwt.secret must be at least 16 characters")
	}
	switch c.Cache.Driver {
	case "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			problems = append(problems, "cache.redis_url is required for the redis driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("cache.driver %q is not supported", c.Cache.Driver))
	}
	switch c.Storage.Driver {
	case "local":
	case "s3":
		if c.Storage.Bucket == "" {
			problems = append(problems, "storage.bucket is required for the s3 driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("storage.driver %q is not supported", c.Storage.Driver))
	}
	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Listen, "LISTEN_ADDR")
	setString(&cfg.Database.DSN, "DATABASE_URL")
	setString(&cfg.Database.TimeZone, "DATABASE_TIMEZONE")
	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setString(&cfg.LIFF.LIFFID, "LIFF_ID", "NEXT_PUBLIC_LIFF_ID")
	setString(&cfg.LIFF.ChannelID, "LIFF_CHANNEL_ID", "LINE_CHANNEL_ID")
	setString(&cfg.Backend.BaseURL, "BACKEND_URL", "NEXT_PUBLIC_BACKEND_URL")
	setString(&cfg.Cache.RedisURL, "REDIS_URL")
	if cfg.Cache.RedisURL != "" && cfg.Cache.Driver == "" {
		cfg.Cache.Driver = "redis"
	}
	setString(&cfg.Storage.Bucket, "R2_BUCKET_NAME", "S3_BUCKET")
	setString(&cfg.Storage.AccessKeyID, "R2_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID")
	setString(&cfg.Storage.SecretAccessKey, "R2_ACCESS_KEY_SECRET", "AWS_SECRET_ACCESS_KEY")
	setString(&cfg.Storage.PublicBaseURL, "CDN_BASE_URL")
	setString(&cfg.Storage.Endpoint, "S3_ENDPOINT")
	if account := strings.TrimSpace(os.Getenv("CLOUDFLARE_ACCOUNT_ID")); account != "" && cfg.Storage.Endpoint == "" {
		cfg.Storage.Endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", account)
	}
	if cfg.Storage.Bucket != "" && cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "s3"
	}
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	if raw := strings.TrimSpace(os.Getenv("JWT_EXPIRY")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			cfg.JWT.Expiry = d
		}
	}
	if raw := strings.TrimSpace(os.Getenv("BODY_LIMIT_MB")); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cfg.Server.BodyLimitMB = n
		}
	}
}

// setString overwrites dst with the first non-empty variable among names.
func setString(dst *string, names ...string) {
	for _, name := range names {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*dst = v
			return
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.BodyLimitMB <= 0 {
		cfg.Server.BodyLimitMB = 20
	}
	if cfg.Server.ShutdownGrace <= 0 {
		cfg.Server.ShutdownGrace = 10 * time.Second
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "Asia/Bangkok"
	}
	if cfg.JWT.Expiry <= 0 {
		cfg.JWT.Expiry = 12 * time.Hour
	}
	if cfg.LIFF.Timeout <= 0 {
		cfg.LIFF.Timeout = 10 * time.Second
	}
	if cfg.Backend.Timeout <= 0 {
		cfg.Backend.Timeout = 10 * time.Second
	}
	cfg.Backend.BaseURL = strings.TrimRight(cfg.Backend.BaseURL, "/")
	if cfg.Cache.Driver == "" {
		cfg.Cache.Driver = "memory"
	}
	cfg.Cache.Driver = strings.ToLower(cfg.Cache.Driver)
	if cfg.Cache.Prefix == "" {
		cfg.Cache.Prefix = "memberportal:"
	}
	if cfg.Cache.MaxAge <= 0 {
		cfg.Cache.MaxAge = time.Hour
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "local"
	}
	cfg.Storage.Driver = strings.ToLower(cfg.Storage.Driver)
	if cfg.Storage.LocalDir == "" {
		cfg.Storage.LocalDir = "uploads"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "auto"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.MaxSizeMB <= 0 {
		cfg.Logging.MaxSizeMB = 100
	}
	if cfg.Logging.MaxBackups <= 0 {
		cfg.Logging.MaxBackups = 7
	}
	if cfg.Logging.MaxAgeDays <= 0 {
		cfg.Logging.MaxAgeDays = 30
	}
}
