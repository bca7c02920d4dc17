// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // postgres | memory
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
	Migrate  bool   `yaml:"migrate"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
	JWTSecret     string `yaml:"jwt_secret"`
	PinCost       int    `yaml:"pin_cost"` // bcrypt cost
}

type PanicConfig struct {
	Gateway        string        `yaml:"gateway"` // log | telegram
	ContactTimeout time.Duration `yaml:"contact_timeout"`
}

type TelegramConfig struct {
	Token       string `yaml:"token"`
	RelayChatID int64  `yaml:"relay_chat_id"` // dispatch desk that forwards alerts
}

type SweepConfig struct {
	Interval time.Duration `yaml:"interval"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type PinConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Window      time.Duration `yaml:"window"`
}

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Security SecurityConfig `yaml:"security"`
	Panic    PanicConfig    `yaml:"panic"`
	Telegram TelegramConfig `yaml:"telegram"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Pin      PinConfig      `yaml:"pin"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path and applies defaults.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse is LoadConfig without the file system; used by tests.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 15 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "postgres"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	cfg.Panic.Gateway = strings.ToLower(strings.TrimSpace(cfg.Panic.Gateway))
	if cfg.Panic.Gateway == "" {
		cfg.Panic.Gateway = "log"
	}
	if cfg.Panic.ContactTimeout <= 0 {
		cfg.Panic.ContactTimeout = 5 * time.Second
	}
	if cfg.Sweep.Interval <= 0 {
		cfg.Sweep.Interval = time.Minute
	}
	if cfg.Sweep.LockTTL <= 0 {
		cfg.Sweep.LockTTL = 30 * time.Second
	}
	if cfg.Pin.MaxAttempts <= 0 {
		cfg.Pin.MaxAttempts = 5
	}
	if cfg.Pin.Window <= 0 {
		cfg.Pin.Window = 15 * time.Minute
	}
}

// Minimal validation
func validate(cfg *Config) error {
	switch cfg.Storage.Driver {
	case "postgres":
		if cfg.Database.URL == "" {
			return errors.New("database.url is required")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.driver %q is not supported", cfg.Storage.Driver)
	}
	if cfg.Security.JWTSecret == "" && !cfg.Runtime.Dev {
		return errors.New("security.jwt_secret is required")
	}
	switch cfg.Panic.Gateway {
	case "log":
	case "telegram":
		if cfg.Telegram.Token == "" || cfg.Telegram.RelayChatID == 0 {
			return errors.New("telegram.token and telegram.relay_chat_id are required for the telegram gateway")
		}
	default:
		return fmt.Errorf("panic.gateway %q is not supported", cfg.Panic.Gateway)
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
