package internal

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	GatewayPlaygroundURL = "https://playground.api.beamcheckout.com"
	GatewayProductionURL = "https://api.beamcheckout.com"
)

type Config struct {
	Env           string              `mapstructure:"env"`
	Server        ServerConfig        `mapstructure:"http_server"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Webhook       WebhookConfig       `mapstructure:"webhook"`
	Payment       PaymentConfig       `mapstructure:"payment"`
	PaymentStatus PaymentStatusConfig `mapstructure:"payment_status"`
	Poller        PollerConfig        `mapstructure:"poller"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	PublicBaseURL     string        `mapstructure:"public_base_url"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type GatewayConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Environment   string        `mapstructure:"environment"`
	APIKey        string        `mapstructure:"api_key"`
	MerchantID    string        `mapstructure:"merchant_id"`
	Timeout       time.Duration `mapstructure:"timeout"`
	LookupTimeout time.Duration `mapstructure:"lookup_timeout"`
}

type WebhookConfig struct {
	Secret        string        `mapstructure:"secret"`
	BackupSecret  string        `mapstructure:"backup_secret"`
	StagingSecret string        `mapstructure:"staging_secret"`
	Tolerance     time.Duration `mapstructure:"tolerance"`
}

// SecretFor returns the secret a webhook route verifies with. Backup and
// staging routes share the primary secret unless they have their own.
func (w WebhookConfig) SecretFor(endpoint string) string {
	switch endpoint {
	case "backup":
		if w.BackupSecret != "" {
			return w.BackupSecret
		}
	case "staging":
		if w.StagingSecret != "" {
			return w.StagingSecret
		}
	}
	return w.Secret
}

type PaymentConfig struct {
	MinAmount     int64         `mapstructure:"min_amount"`
	MaxAmount     int64         `mapstructure:"max_amount"`
	DefaultAmount int64         `mapstructure:"default_amount"`
	Currency      string        `mapstructure:"currency"`
	QRExpiry      time.Duration `mapstructure:"qr_expiry"`
}

type PaymentStatusConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type PollerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	LokiURL string `mapstructure:"loki_url"`
}

// Defaults returns the configuration used when neither config.yml nor the
// environment override a key.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"env": EnvDevelopment,

		"http_server.port":                3000,
		"http_server.public_base_url":     "http://localhost:3000",
		"http_server.read_header_timeout": 5 * time.Second,
		"http_server.read_timeout":        15 * time.Second,
		"http_server.write_timeout":       60 * time.Second,
		"http_server.idle_timeout":        120 * time.Second,

		"gateway.base_url":       "",
		"gateway.environment":    "production",
		"gateway.api_key":        "",
		"gateway.merchant_id":    "",
		"gateway.timeout":        30 * time.Second,
		"gateway.lookup_timeout": 10 * time.Second,

		"webhook.secret":         "",
		"webhook.backup_secret":  "",
		"webhook.staging_secret": "",
		"webhook.tolerance":      300 * time.Second,

		"payment.min_amount":     100,
		"payment.max_amount":     1000000,
		"payment.default_amount": 100,
		"payment.currency":       "THB",
		"payment.qr_expiry":      30 * time.Minute,

		"payment_status.ttl":            30 * time.Minute,
		"payment_status.sweep_interval": 10 * time.Minute,

		"poller.interval": 2 * time.Second,
		"poller.timeout":  30 * time.Second,

		"observability.metrics.enabled":  true,
		"observability.metrics.path":     "/metrics",
		"observability.logging.level":    "info",
		"observability.logging.format":   "text",
		"observability.logging.loki_url": "",
	}
}

// EnvBindings maps config keys onto the environment variable names the kiosk
// deployment already uses.
func EnvBindings() map[string][]string {
	return map[string][]string{
		"env":                            {"APP_ENV", "NODE_ENV"},
		"http_server.port":               {"PORT"},
		"http_server.public_base_url":    {"PUBLIC_BASE_URL"},
		"gateway.base_url":               {"BEAM_BASE_URL"},
		"gateway.environment":            {"BEAM_ENV"},
		"gateway.api_key":                {"BEAM_API_KEY"},
		"gateway.merchant_id":            {"BEAM_MERCHANT_ID"},
		"webhook.secret":                 {"BEAM_WEBHOOK_SECRET"},
		"webhook.backup_secret":          {"BEAM_WEBHOOK_BACKUP_SECRET"},
		"webhook.staging_secret":         {"BEAM_WEBHOOK_STAGING_SECRET"},
		"observability.logging.loki_url": {"LOKI_URL"},
	}
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, EnvProduction)
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Gateway.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("gateway config: %v", err))
	}

	if err := c.Payment.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("payment config: %v", err))
	}

	if err := c.PaymentStatus.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("payment status config: %v", err))
	}

	if err := c.Poller.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("poller config: %v", err))
	}

	if err := c.Observability.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.PublicBaseURL != "" {
		if _, err := url.ParseRequestURI(c.PublicBaseURL); err != nil {
			return fmt.Errorf("invalid public_base_url %s: %w", c.PublicBaseURL, err)
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *GatewayConfig) Validate() error {
	if c.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
			return fmt.Errorf("invalid base_url %s: %w", c.BaseURL, err)
		}
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	return nil
}

// ResolvedBaseURL prefers an explicit base URL, then the playground switch.
func (c *GatewayConfig) ResolvedBaseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	if strings.EqualFold(c.Environment, "playground") {
		return GatewayPlaygroundURL
	}
	return GatewayProductionURL
}

func (c *GatewayConfig) HasCredentials() bool {
	return c.APIKey != "" && c.MerchantID != ""
}

func (c *PaymentConfig) Validate() error {
	if c.MinAmount <= 0 {
		return errors.New("min_amount must be positive")
	}
	if c.MaxAmount < c.MinAmount {
		return errors.New("max_amount cannot be lower than min_amount")
	}
	if c.DefaultAmount < c.MinAmount || c.DefaultAmount > c.MaxAmount {
		return errors.New("default_amount must be within [min_amount, max_amount]")
	}
	if c.Currency == "" {
		return errors.New("currency is required")
	}
	return nil
}

func (c *PaymentStatusConfig) Validate() error {
	if c.TTL <= 0 {
		return errors.New("ttl must be positive")
	}
	if c.SweepInterval <= 0 {
		return errors.New("sweep_interval must be positive")
	}
	return nil
}

func (c *PollerConfig) Validate() error {
	if c.Interval <= 0 || c.Timeout <= 0 {
		return errors.New("interval and timeout must be positive")
	}
	if c.Timeout < c.Interval {
		return errors.New("timeout must be >= interval")
	}
	return nil
}

func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported level %q", c.Level)
	}
	switch c.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unsupported format %q", c.Format)
	}
	return nil
}
