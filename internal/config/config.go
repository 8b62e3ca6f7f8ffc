// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
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

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// SubscriptionConfig holds the lifecycle magnitudes.
type SubscriptionConfig struct {
	TrialDays        int           `yaml:"trial_days"`
	TermDays         int           `yaml:"term_days"`
	DefaultAmount    int64         `yaml:"default_amount"` // whole BDT
	ExpiringSoonDays int           `yaml:"expiring_soon_days"`
	SubmitRateLimit  int           `yaml:"submit_rate_limit"` // proofs per tenant per window; 0 disables
	SubmitRateWindow time.Duration `yaml:"submit_rate_window"`
}

type SchedulerConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type Config struct {
	Log          LogConfig          `yaml:"log"`
	HTTP         HTTPConfig         `yaml:"http"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Auth         AuthConfig         `yaml:"auth"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig parses the -config and -dev flags and loads the file.
func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()
	return Load(configPath, dev)
}

// Load reads the YAML file at path, applies .env and environment overrides,
// fills defaults and validates the result.
func Load(path string, dev bool) (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 15 * time.Second
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}

	s := &cfg.Subscription
	if s.TrialDays <= 0 {
		s.TrialDays = 14
	}
	if s.TermDays <= 0 {
		s.TermDays = 365
	}
	if s.DefaultAmount == 0 {
		s.DefaultAmount = 1200
	}
	if s.ExpiringSoonDays <= 0 {
		s.ExpiringSoonDays = 15
	}
	if s.SubmitRateLimit < 0 {
		s.SubmitRateLimit = 0
	}
	if s.SubmitRateWindow <= 0 {
		s.SubmitRateWindow = time.Hour
	}

	if cfg.Scheduler.SweepInterval <= 0 {
		cfg.Scheduler.SweepInterval = 5 * time.Minute
	}
}

// Validate checks the settings the process cannot start without.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Subscription.DefaultAmount < 1 {
		return errors.New("subscription.default_amount must be at least 1")
	}
	return nil
}
