// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Pricing  PricingConfig  `yaml:"pricing"`
	Credits  CreditsConfig  `yaml:"credits"`
	Email    EmailConfig    `yaml:"email"`
	Overage  OverageConfig  `yaml:"overage"`
	Usage    UsageConfig    `yaml:"usage"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures the database.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite"
	DSN    string `yaml:"dsn"`
}

// PricingConfig configures USD-to-EUR cost conversion.
type PricingConfig struct {
	Margin   float64 `yaml:"margin"`     // markup multiplier on raw provider cost
	USDToEUR float64 `yaml:"usd_to_eur"` // fixed conversion rate
}

// CreditsConfig configures plan-credit resolution.
// Use "static" for fixed allowances or "remote" to query the plan service.
type CreditsConfig struct {
	Mode       string             `yaml:"mode"` // "static" or "remote"
	DefaultEur float64            `yaml:"default_eur,omitempty"`
	PerUser    map[string]float64 `yaml:"per_user,omitempty"`
	Remote     RemoteConfig       `yaml:"remote,omitempty"`
}

// RemoteConfig configures a remote service endpoint.
type RemoteConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// EmailConfig configures alert delivery.
// Use "none", "smtp", or "mock".
type EmailConfig struct {
	Provider string     `yaml:"provider"`
	AppName  string     `yaml:"app_name,omitempty"`
	SMTP     SMTPConfig `yaml:"smtp,omitempty"`
}

// SMTPConfig configures the SMTP server for alert emails.
// RecipientTemplate maps a user ID to an address (one %s verb, e.g.
// "%s@users.glowdesk.app"); the user directory is not this service's.
type SMTPConfig struct {
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	Username          string `yaml:"username,omitempty"`
	Password          string `yaml:"password,omitempty"`
	From              string `yaml:"from"`
	FromName          string `yaml:"from_name,omitempty"`
	RecipientTemplate string `yaml:"recipient_template"`
}

// OverageConfig configures metered billing for extra usage.
// Use "none", "stripe", or "mock".
type OverageConfig struct {
	Mode      string `yaml:"mode"`
	StripeKey string `yaml:"stripe_key,omitempty"`
}

// UsageConfig configures usage event recording.
// "sync" writes each event directly; "buffered" batches writes.
type UsageConfig struct {
	Mode          string        `yaml:"mode"` // "sync" or "buffered"
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	RetentionDays int           `yaml:"retention_days"` // 0 = keep forever
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled *bool `yaml:"enabled"` // Enable /metrics endpoint (default: true)
}

// IsEnabled reports whether the /metrics endpoint should be served.
// Metrics are on unless explicitly disabled.
func (m MetricsConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// This is useful for Docker deployments where no config file is needed.
//
// Environment variables:
//
//	AIMETER_DATABASE_DSN     - Database path (default: aimeter.db)
//	AIMETER_SERVER_HOST      - Server host (default: 0.0.0.0)
//	AIMETER_SERVER_PORT      - Server port (default: 8080)
//	AIMETER_PRICING_MARGIN   - Markup multiplier (default: 1.3)
//	AIMETER_PRICING_RATE     - USD-to-EUR rate (default: 0.92)
//	AIMETER_CREDITS_MODE     - Credit resolution: static or remote (default: static)
//	AIMETER_CREDITS_URL      - Plan service URL (remote mode)
//	AIMETER_EMAIL_PROVIDER   - Alert delivery: none, smtp, mock (default: none)
//	AIMETER_SMTP_RECIPIENT_TEMPLATE - User-ID-to-address template (smtp mode)
//	AIMETER_OVERAGE_MODE     - Overage billing: none, stripe, mock (default: none)
//	AIMETER_OVERAGE_STRIPE_KEY - Stripe secret key (stripe mode)
//	AIMETER_USAGE_MODE       - Recording: sync or buffered (default: sync)
//	AIMETER_LOG_LEVEL        - Log level (default: info)
//	AIMETER_LOG_FORMAT       - Log format: json or console (default: json)
//	AIMETER_METRICS_ENABLED  - Enable /metrics endpoint (default: true)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment
// variables when the file does not exist.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies AIMETER_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AIMETER_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("AIMETER_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("AIMETER_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("AIMETER_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	if v := os.Getenv("AIMETER_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("AIMETER_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	if v := os.Getenv("AIMETER_PRICING_MARGIN"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pricing.Margin = f
		}
	}
	if v := os.Getenv("AIMETER_PRICING_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pricing.USDToEUR = f
		}
	}

	if v := os.Getenv("AIMETER_CREDITS_MODE"); v != "" {
		cfg.Credits.Mode = v
	}
	if v := os.Getenv("AIMETER_CREDITS_DEFAULT_EUR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Credits.DefaultEur = f
		}
	}
	if v := os.Getenv("AIMETER_CREDITS_URL"); v != "" {
		cfg.Credits.Remote.URL = v
	}
	if v := os.Getenv("AIMETER_CREDITS_API_KEY"); v != "" {
		cfg.Credits.Remote.APIKey = v
	}

	if v := os.Getenv("AIMETER_EMAIL_PROVIDER"); v != "" {
		cfg.Email.Provider = v
	}
	if v := os.Getenv("AIMETER_SMTP_HOST"); v != "" {
		cfg.Email.SMTP.Host = v
	}
	if v := os.Getenv("AIMETER_SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Email.SMTP.Port = port
		}
	}
	if v := os.Getenv("AIMETER_SMTP_USERNAME"); v != "" {
		cfg.Email.SMTP.Username = v
	}
	if v := os.Getenv("AIMETER_SMTP_PASSWORD"); v != "" {
		cfg.Email.SMTP.Password = v
	}
	if v := os.Getenv("AIMETER_SMTP_FROM"); v != "" {
		cfg.Email.SMTP.From = v
	}
	if v := os.Getenv("AIMETER_SMTP_RECIPIENT_TEMPLATE"); v != "" {
		cfg.Email.SMTP.RecipientTemplate = v
	}

	if v := os.Getenv("AIMETER_OVERAGE_MODE"); v != "" {
		cfg.Overage.Mode = v
	}
	if v := os.Getenv("AIMETER_OVERAGE_STRIPE_KEY"); v != "" {
		cfg.Overage.StripeKey = v
	}

	if v := os.Getenv("AIMETER_USAGE_MODE"); v != "" {
		cfg.Usage.Mode = v
	}
	if v := os.Getenv("AIMETER_USAGE_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Usage.BatchSize = n
		}
	}
	if v := os.Getenv("AIMETER_USAGE_FLUSH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Usage.FlushInterval = d
		}
	}

	if v := os.Getenv("AIMETER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AIMETER_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("AIMETER_METRICS_ENABLED"); v != "" {
		b := parseBool(v)
		cfg.Metrics.Enabled = &b
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "aimeter.db"
	}

	if cfg.Pricing.Margin == 0 {
		cfg.Pricing.Margin = 1.30
	}
	if cfg.Pricing.USDToEUR == 0 {
		cfg.Pricing.USDToEUR = 0.92
	}

	if cfg.Credits.Mode == "" {
		cfg.Credits.Mode = "static"
	}
	if cfg.Credits.Remote.Timeout == 0 {
		cfg.Credits.Remote.Timeout = 5 * time.Second
	}

	if cfg.Email.Provider == "" {
		cfg.Email.Provider = "none"
	}
	if cfg.Email.SMTP.Port == 0 {
		cfg.Email.SMTP.Port = 587
	}

	if cfg.Overage.Mode == "" {
		cfg.Overage.Mode = "none"
	}

	if cfg.Usage.Mode == "" {
		cfg.Usage.Mode = "sync"
	}
	if cfg.Usage.BatchSize == 0 {
		cfg.Usage.BatchSize = 100
	}
	if cfg.Usage.FlushInterval == 0 {
		cfg.Usage.FlushInterval = 5 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Enabled == nil {
		enabled := true
		cfg.Metrics.Enabled = &enabled
	}
}

func validate(cfg *Config) error {
	if cfg.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
	if cfg.Pricing.Margin < 1 {
		return fmt.Errorf("pricing.margin must be >= 1, got %g", cfg.Pricing.Margin)
	}
	if cfg.Pricing.USDToEUR <= 0 {
		return fmt.Errorf("pricing.usd_to_eur must be > 0, got %g", cfg.Pricing.USDToEUR)
	}
	switch cfg.Credits.Mode {
	case "static":
	case "remote":
		if cfg.Credits.Remote.URL == "" {
			return fmt.Errorf("credits.remote.url is required in remote mode")
		}
	default:
		return fmt.Errorf("unknown credits mode: %s", cfg.Credits.Mode)
	}
	switch cfg.Email.Provider {
	case "none", "mock":
	case "smtp":
		if cfg.Email.SMTP.Host == "" {
			return fmt.Errorf("email.smtp.host is required for smtp provider")
		}
		if cfg.Email.SMTP.From == "" {
			return fmt.Errorf("email.smtp.from is required for smtp provider")
		}
		if !strings.Contains(cfg.Email.SMTP.RecipientTemplate, "%s") {
			return fmt.Errorf("email.smtp.recipient_template must map a user ID to an address (one %%s verb)")
		}
	default:
		return fmt.Errorf("unknown email provider: %s", cfg.Email.Provider)
	}
	switch cfg.Overage.Mode {
	case "none", "mock":
	case "stripe":
		if cfg.Overage.StripeKey == "" {
			return fmt.Errorf("overage.stripe_key is required in stripe mode")
		}
	default:
		return fmt.Errorf("unknown overage mode: %s", cfg.Overage.Mode)
	}
	switch cfg.Usage.Mode {
	case "sync", "buffered":
	default:
		return fmt.Errorf("unknown usage mode: %s", cfg.Usage.Mode)
	}
	return nil
}
