// File: internal/config/config.go
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

type AuthConfig struct {
	HMACSecret string        `yaml:"hmac_secret"` // shared with the auth collaborator that mints session tokens
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // active-session index entries expire after this
}

type GatewayConfig struct {
	BaseURL  string           `yaml:"base_url"`
	APIToken string           `yaml:"api_token"`
	Country  string           `yaml:"country"`
	Currency string           `yaml:"currency"`
	Timeout  time.Duration    `yaml:"timeout"`
	Plans    map[string]int64 `yaml:"plans"` // plan name -> price in minor currency units
	Sandbox  bool             `yaml:"sandbox"`
}

type ReconcilerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
	Workers      int           `yaml:"workers"`
}

type RetentionConfig struct {
	Window        time.Duration `yaml:"window"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type NotifyConfig struct {
	TelegramToken string `yaml:"telegram_token"`
	ChatID        int64  `yaml:"chat_id"`
}

type CheckoutConfig struct {
	ReturnURL string `yaml:"return_url"` // where the callback handler redirects after clearing the query
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
	Auth       AuthConfig       `yaml:"auth"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Retention  RetentionConfig  `yaml:"retention"`
	Notify     NotifyConfig     `yaml:"notify"`
	Checkout   CheckoutConfig   `yaml:"checkout"`

	Runtime RuntimeConfig `yaml:"-"`
}

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
	if cfg.Auth.SessionTTL <= 0 {
		cfg.Auth.SessionTTL = 30 * time.Minute
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Gateway.Currency == "" {
		cfg.Gateway.Currency = "USD"
	}
	if cfg.Gateway.Country == "" {
		cfg.Gateway.Country = "COD"
	}
	if cfg.Gateway.Timeout <= 0 {
		cfg.Gateway.Timeout = 15 * time.Second
	}
	if cfg.Gateway.Plans == nil {
		cfg.Gateway.Plans = map[string]int64{"student": 1, "pro": 2, "advanced": 3}
	}
	if cfg.Reconciler.PollInterval <= 0 {
		cfg.Reconciler.PollInterval = 3 * time.Second
	}
	if cfg.Reconciler.MaxAttempts <= 0 {
		cfg.Reconciler.MaxAttempts = 40
	}
	if cfg.Reconciler.Workers <= 0 {
		cfg.Reconciler.Workers = 16
	}
	if cfg.Retention.Window <= 0 {
		cfg.Retention.Window = 24 * time.Hour
	}
	if cfg.Retention.SweepInterval <= 0 {
		cfg.Retention.SweepInterval = time.Hour
	}
	if cfg.Checkout.ReturnURL == "" {
		cfg.Checkout.ReturnURL = "/checkout"
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
	if !dev {
		if cfg.Gateway.BaseURL == "" {
			return nil, errors.New("gateway.base_url is required")
		}
		if cfg.Gateway.APIToken == "" {
			return nil, errors.New("gateway.api_token is required")
		}
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * time.Minute
	}
	return d
}
