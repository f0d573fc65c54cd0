// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"ai-image-billing/internal/domain/model"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	PublicBaseURL  string        `yaml:"public_base_url"` // used to build success/cancel URLs
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url" envconfig:"DATABASE_URL"`
	MaxConns int32  `yaml:"max_conns" ignored:"true"`
}

type RedisConfig struct {
	URL      string        `yaml:"url" envconfig:"REDIS_URL"`
	Password string        `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" ignored:"true"`
	TTL      time.Duration `yaml:"ttl" ignored:"true"`
}

type SessionConfig struct {
	Secret       string        `yaml:"secret" envconfig:"SESSION_SECRET"`
	CookieName   string        `yaml:"cookie_name" ignored:"true"`
	CookieDomain string        `yaml:"cookie_domain" ignored:"true"`
	SecureCookie bool          `yaml:"secure_cookie" ignored:"true"`
	TTL          time.Duration `yaml:"ttl" ignored:"true"`
}

type AdminConfig struct {
	Emails []string `yaml:"emails" envconfig:"ADMIN_EMAILS"`
}

type StripeConfig struct {
	SecretKey      string `yaml:"secret_key" envconfig:"STRIPE_SECRET_KEY"`
	PublishableKey string `yaml:"publishable_key" envconfig:"STRIPE_PUBLISHABLE_KEY"`
	WebhookSecret  string `yaml:"webhook_secret" envconfig:"STRIPE_WEBHOOK_SECRET"`
	Environment    string `yaml:"environment" ignored:"true"` // test|live
}

type CreemConfig struct {
	APIKey        string `yaml:"api_key" envconfig:"CREEM_API_KEY"`
	WebhookSecret string `yaml:"webhook_secret" envconfig:"CREEM_WEBHOOK_SECRET"`
	BaseURL       string `yaml:"base_url" ignored:"true"`
}

type PaymentConfig struct {
	Stripe          StripeConfig  `yaml:"stripe"`
	Creem           CreemConfig   `yaml:"creem"`
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	// Fake registers a local signed-webhook provider in place of creem. LoadConfig
	// accepts it only in developer mode and with a FakeSecret.
	Fake       bool   `yaml:"fake"`
	FakeSecret string `yaml:"fake_secret"`
	// Defaults seed the first PaymentConfig version when none is stored.
	Defaults PaymentDefaults `yaml:"defaults"`
}

type PaymentDefaults struct {
	StripeEnabled             bool   `yaml:"stripe_enabled"`
	CreemEnabled              bool   `yaml:"creem_enabled"`
	DefaultProvider           string `yaml:"default_provider"`
	AllowUserChoice           bool   `yaml:"allow_user_choice"`
	ChinaOnlyCreem            bool   `yaml:"china_only_creem"`
	InternationalPreferStripe bool   `yaml:"international_prefer_stripe"`
	LargeAmountThreshold      int64  `yaml:"large_amount_threshold"`
	LargeAmountProvider       string `yaml:"large_amount_provider"`
}

type PricingConfig struct {
	DefaultLocale string `yaml:"default_locale"`
	// Dir overrides the embedded catalog with <dir>/<locale>.yaml files.
	Dir string `yaml:"dir"`
}

type CronConfig struct {
	Secret         string        `yaml:"secret" envconfig:"CRON_SECRET"`
	SweepBatchSize int           `yaml:"sweep_batch_size" ignored:"true"`
	LockTTL        time.Duration `yaml:"lock_ttl" ignored:"true"`
	// ExpiryInterval > 0 also runs the sweep in-process (single-instance deployments).
	ExpiryInterval time.Duration `yaml:"expiry_interval" ignored:"true"`
}

type AlertsConfig struct {
	TelegramToken string  `yaml:"telegram_token" envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatIDs       []int64 `yaml:"chat_ids" ignored:"true"`
	Workers       int     `yaml:"workers" ignored:"true"`
}

type LimitsConfig struct {
	ConsumePerMinute int `yaml:"consume_per_minute"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Session  SessionConfig  `yaml:"session"`
	Admin    AdminConfig    `yaml:"admin"`
	Payment  PaymentConfig  `yaml:"payment"`
	Pricing  PricingConfig  `yaml:"pricing"`
	Cron     CronConfig     `yaml:"cron"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Limits   LimitsConfig   `yaml:"limits"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path (missing file is allowed), loads an
// optional .env, then applies environment overrides for secrets.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// env-only deployment
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Session.Secret == "" {
		if !dev {
			return nil, errors.New("session.secret is required")
		}
		cfg.Session.Secret = "dev-session-secret"
	}

	if cfg.Payment.Fake {
		switch {
		case !dev:
			return nil, errors.New("payment.fake is only allowed in developer mode")
		case cfg.Payment.FakeSecret == "":
			return nil, errors.New("payment.fake_secret is required when payment.fake is set")
		case cfg.Payment.Creem.APIKey != "":
			return nil, errors.New("payment.fake replaces creem; unset the creem api key or disable fake")
		}
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// applyEnv lets each section pick up its envconfig-tagged secrets. Values
// already present in YAML are kept unless the variable is set.
func applyEnv(cfg *Config) error {
	targets := []any{
		&cfg.Database, &cfg.Redis, &cfg.Session, &cfg.Payment.Stripe,
		&cfg.Payment.Creem, &cfg.Cron, &cfg.Alerts,
	}
	for _, t := range targets {
		if err := envconfig.Process("", t); err != nil {
			return fmt.Errorf("env config: %w", err)
		}
	}
	// ADMIN_EMAILS is a comma separated list; envconfig splits on commas.
	if raw := os.Getenv("ADMIN_EMAILS"); raw != "" {
		var admin AdminConfig
		if err := envconfig.Process("", &admin); err != nil {
			return fmt.Errorf("env config: %w", err)
		}
		cfg.Admin.Emails = admin.Emails
	}
	for i, e := range cfg.Admin.Emails {
		cfg.Admin.Emails[i] = strings.ToLower(strings.TrimSpace(e))
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 30 * time.Second
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL, 5*time.Minute)
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = "session"
	}
	cfg.Session.TTL = normalizeTTL(cfg.Session.TTL, 7*24*time.Hour)
	cfg.Payment.ProviderTimeout = normalizeTTL(cfg.Payment.ProviderTimeout, 10*time.Second)
	if cfg.Payment.Stripe.Environment == "" {
		cfg.Payment.Stripe.Environment = "test"
	}
	if cfg.Payment.Creem.BaseURL == "" {
		cfg.Payment.Creem.BaseURL = "https://api.creem.io"
	}
	if cfg.Payment.Defaults.DefaultProvider == "" {
		cfg.Payment.Defaults.DefaultProvider = string(model.ProviderCreem)
	}
	if cfg.Pricing.DefaultLocale == "" {
		cfg.Pricing.DefaultLocale = "en"
	}
	if cfg.Cron.SweepBatchSize <= 0 {
		cfg.Cron.SweepBatchSize = 500
	}
	cfg.Cron.LockTTL = normalizeTTL(cfg.Cron.LockTTL, 5*time.Minute)
	if cfg.Alerts.Workers <= 0 {
		cfg.Alerts.Workers = 2
	}
	if cfg.Limits.ConsumePerMinute <= 0 {
		cfg.Limits.ConsumePerMinute = 60
	}
}

// InitialPaymentConfig converts the YAML defaults into the first stored version.
func (c *Config) InitialPaymentConfig() model.PaymentConfig {
	d := c.Payment.Defaults
	return model.PaymentConfig{
		StripeEnabled:             d.StripeEnabled,
		CreemEnabled:              d.CreemEnabled,
		DefaultProvider:           model.ParseProvider(d.DefaultProvider),
		AllowUserChoice:           d.AllowUserChoice,
		ChinaOnlyCreem:            d.ChinaOnlyCreem,
		InternationalPreferStripe: d.InternationalPreferStripe,
		LargeAmountThreshold:      d.LargeAmountThreshold,
		LargeAmountProvider:       model.ParseProvider(d.LargeAmountProvider),
		UpdatedBy:                 "bootstrap",
	}
}

// IsAdmin checks an email against the allowlist.
func (c *AdminConfig) IsAdmin(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, e := range c.Emails {
		if e == email {
			return true
		}
	}
	return false
}

func normalizeTTL(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
