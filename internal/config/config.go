package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	HMACSecret string        `yaml:"hmac_secret"`
	TTL        time.Duration `yaml:"ttl"`
}

// PricingConfig drives the rate converter. Every rate is expressed as
// home-currency units per one unit of the foreign currency, as a decimal
// string so nothing passes through a float.
type PricingConfig struct {
	HomeCurrency      string            `yaml:"home_currency"`
	FiatRates         map[string]string `yaml:"fiat_rates"`
	CryptoRates       map[string]string `yaml:"crypto_rates"`
	CryptoDiscountPct int               `yaml:"crypto_discount_pct"`
	CurrencyDecimals  map[string]int32  `yaml:"currency_decimals"`
}

// StripeConfig carries only the secret key. Stripe routes test traffic by
// key prefix, so there is no sandbox toggle to configure.
type StripeConfig struct {
	SecretKey string `yaml:"secret_key"`
}

type PagoparConfig struct {
	PublicKey  string `yaml:"public_key"`
	PrivateKey string `yaml:"private_key"`
	Sandbox    bool   `yaml:"sandbox"`
}

type BancardConfig struct {
	PublicKey  string `yaml:"public_key"`
	PrivateKey string `yaml:"private_key"`
	Sandbox    bool   `yaml:"sandbox"`
}

type CryptoConfig struct {
	WalletAddress string `yaml:"wallet_address"`
	Network       string `yaml:"network"` // e.g. TRC20
}

type PaymentConfig struct {
	CallbackBaseURL string        `yaml:"callback_base_url"`
	Stripe          StripeConfig  `yaml:"stripe"`
	Pagopar         PagoparConfig `yaml:"pagopar"`
	Bancard         BancardConfig `yaml:"bancard"`
	Crypto          CryptoConfig  `yaml:"crypto"`
}

type ReconcilerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	Pricing    PricingConfig    `yaml:"pricing"`
	Payment    PaymentConfig    `yaml:"payment"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads and validates the YAML config at path.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.PoolSize <= 0 {
		cfg.Database.PoolSize = 10
	}
	if cfg.Auth.TTL <= 0 {
		cfg.Auth.TTL = 24 * time.Hour
	}
	if cfg.Pricing.HomeCurrency == "" {
		cfg.Pricing.HomeCurrency = "PYG"
	}
	if cfg.Pricing.CryptoDiscountPct == 0 {
		cfg.Pricing.CryptoDiscountPct = 25
	}
	if cfg.Pricing.CurrencyDecimals == nil {
		cfg.Pricing.CurrencyDecimals = map[string]int32{}
	}
	if _, ok := cfg.Pricing.CurrencyDecimals["PYG"]; !ok {
		cfg.Pricing.CurrencyDecimals["PYG"] = 0
	}
	if cfg.Reconciler.Interval <= 0 {
		cfg.Reconciler.Interval = 5 * time.Minute
	}
	if cfg.Reconciler.StaleAfter <= 0 {
		cfg.Reconciler.StaleAfter = 30 * time.Minute
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Auth.HMACSecret == "" {
		return nil, errors.New("auth.hmac_secret is required")
	}
	if cfg.Payment.CallbackBaseURL == "" {
		return nil, errors.New("payment.callback_base_url is required")
	}
	if cfg.Pricing.CryptoDiscountPct < 0 || cfg.Pricing.CryptoDiscountPct >= 100 {
		return nil, fmt.Errorf("pricing.crypto_discount_pct out of range: %d", cfg.Pricing.CryptoDiscountPct)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
