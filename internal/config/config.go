package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration loaded from YAML.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Offer     OfferConfig     `yaml:"offer"`
	Ops       OpsConfig       `yaml:"ops"`
	Notify    NotifyConfig    `yaml:"notify"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate-limit"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"` // Listen address, e.g. ":8080".
}

// DatabaseConfig holds the persistence DSN.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // SQLite file DSN or PostgreSQL DSN.
}

// RedisConfig holds optional Redis settings for public-surface rate limiting.
type RedisConfig struct {
	Addr     string `yaml:"addr"` // Empty disables the rate limiter.
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// OfferConfig holds offer issuance settings.
type OfferConfig struct {
	TTLMinutes    int    `yaml:"ttl-minutes"`    // Offer validity window.
	LinkBaseURL   string `yaml:"link-base-url"`  // Base URL embedded in issued links.
	SigningSecret string `yaml:"signing-secret"` // HMAC key for link signatures.
}

// OpsConfig holds the operations API credential pair and session settings.
type OpsConfig struct {
	Username         string `yaml:"username"`
	PasswordHash     string `yaml:"password-hash"` // bcrypt hash of the ops password.
	JWTSecret        string `yaml:"jwt-secret"`
	JWTExpiryMinutes int    `yaml:"jwt-expiry-minutes"`
}

// NotifyConfig selects the outbound notification channel.
type NotifyConfig struct {
	Channel    string `yaml:"channel"` // "mock" (default) or "webhook".
	WebhookURL string `yaml:"webhook-url"`
}

// LoggingConfig holds logrus level and optional rotating file output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"` // Empty logs to stderr only.
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
}

// RateLimitConfig bounds requests per client on the public offer surface.
type RateLimitConfig struct {
	Requests      int `yaml:"requests"`       // Max requests per window; 0 disables.
	WindowSeconds int `yaml:"window-seconds"` // Fixed window length.
}

// TTL returns the configured offer validity window as a duration.
func (c OfferConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// JWTExpiry returns the ops session lifetime as a duration.
func (c OpsConfig) JWTExpiry() time.Duration {
	return time.Duration(c.JWTExpiryMinutes) * time.Minute
}

// ResolveConfigPath returns the effective config file path, defaulting to
// config.yaml in the working directory.
func ResolveConfigPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		trimmed = "config.yaml"
	}
	return filepath.Clean(trimmed)
}

// Load reads, decodes, applies env overrides, defaults, and validates.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, errRead := os.ReadFile(ResolveConfigPath(path))
	if errRead != nil {
		if !os.IsNotExist(errRead) {
			return nil, fmt.Errorf("config: read %s: %w", path, errRead)
		}
	} else if errDecode := yaml.Unmarshal(data, cfg); errDecode != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, errDecode)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if errValidate := cfg.Validate(); errValidate != nil {
		return nil, errValidate
	}
	return cfg, nil
}

// applyEnvOverrides lets REOFFER_* environment variables override file values,
// so secrets can stay out of the config file.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("REOFFER_SIGNING_SECRET")); v != "" {
		cfg.Offer.SigningSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("REOFFER_DATABASE_DSN")); v != "" {
		cfg.Database.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("REOFFER_REDIS_ADDR")); v != "" {
		cfg.Redis.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("REOFFER_OPS_JWT_SECRET")); v != "" {
		cfg.Ops.JWTSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("REOFFER_OPS_PASSWORD_HASH")); v != "" {
		cfg.Ops.PasswordHash = v
	}
	if v := strings.TrimSpace(os.Getenv("REOFFER_OFFER_TTL_MINUTES")); v != "" {
		if minutes, errParse := strconv.Atoi(v); errParse == nil && minutes > 0 {
			cfg.Offer.TTLMinutes = minutes
		}
	}
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = ":8080"
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		cfg.Database.DSN = "file:reoffer.db"
	}
	if cfg.Offer.TTLMinutes <= 0 {
		cfg.Offer.TTLMinutes = 60
	}
	if strings.TrimSpace(cfg.Offer.LinkBaseURL) == "" {
		cfg.Offer.LinkBaseURL = "http://localhost:8080/offer"
	}
	if cfg.Ops.JWTExpiryMinutes <= 0 {
		cfg.Ops.JWTExpiryMinutes = 12 * 60
	}
	if strings.TrimSpace(cfg.Notify.Channel) == "" {
		cfg.Notify.Channel = "mock"
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.MaxSizeMB <= 0 {
		cfg.Logging.MaxSizeMB = 100
	}
	if cfg.Logging.MaxBackups <= 0 {
		cfg.Logging.MaxBackups = 5
	}
	if cfg.Logging.MaxAgeDays <= 0 {
		cfg.Logging.MaxAgeDays = 30
	}
	if cfg.RateLimit.WindowSeconds <= 0 {
		cfg.RateLimit.WindowSeconds = 60
	}
}

// Validate rejects configurations the server cannot safely start with.
// A missing signing secret is fatal here rather than per-request.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Offer.SigningSecret) == "" {
		return fmt.Errorf("config: offer.signing-secret is required (or REOFFER_SIGNING_SECRET)")
	}
	switch strings.ToLower(strings.TrimSpace(c.Notify.Channel)) {
	case "mock":
	case "webhook":
		if strings.TrimSpace(c.Notify.WebhookURL) == "" {
			return fmt.Errorf("config: notify.webhook-url is required for the webhook channel")
		}
	default:
		return fmt.Errorf("config: unknown notify channel: %s", c.Notify.Channel)
	}
	return nil
}
