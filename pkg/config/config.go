// Package config loads ledgerd settings: defaults, then an optional YAML
// file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"ledger-core/pkg/accounts"
	"ledger-core/pkg/engine"
	"ledger-core/pkg/logging"
	"ledger-core/pkg/pin"
	"ledger-core/pkg/store/postgres"
	"ledger-core/pkg/store/redis"
	"ledger-core/pkg/store/resilience"
	"ledger-core/pkg/store/writer"
	"ledger-core/pkg/txlog"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	// BackendChain is memory over redis over postgres.
	BackendChain = "chain"
)

type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Logging  logging.Config  `yaml:"logging"`
	Metrics  MetricsConfig   `yaml:"metrics"`
	Store    StoreConfig     `yaml:"store"`
	Accounts accounts.Config `yaml:"accounts"`
	PIN      pin.Config      `yaml:"pin"`
	Engine   engine.Config   `yaml:"engine"`
	TxLog    txlog.Config    `yaml:"txlog"`

	// SeedDemo installs the demo account at startup.
	SeedDemo bool `yaml:"seed_demo"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

type StoreConfig struct {
	Backend   string `yaml:"backend"`
	KeyPrefix string `yaml:"key_prefix"`

	Memory   MemoryConfig    `yaml:"memory"`
	Redis    redis.Config    `yaml:"redis"`
	Postgres postgres.Config `yaml:"postgres"`

	// Chain settings apply to the chain backend only.
	CacheTTL   time.Duration     `yaml:"cache_ttl"`
	Writer     writer.Config     `yaml:"writer"`
	Resilience resilience.Config `yaml:"resilience"`
}

type MemoryConfig struct {
	// MaxSize applies when memory is a cache tier; the standalone memory
	// backend is always unbounded.
	MaxSize         int           `yaml:"max_size"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// Default returns a configuration that runs entirely in memory.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: logging.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "ledger",
		},
		Store: StoreConfig{
			Backend:   BackendMemory,
			KeyPrefix: "ledger",
			Memory: MemoryConfig{
				MaxSize:         1000,
				CleanupInterval: time.Minute,
			},
			Redis:      redis.DefaultConfig(),
			Postgres:   postgres.DefaultConfig(),
			CacheTTL:   5 * time.Minute,
			Writer:     writer.DefaultConfig(),
			Resilience: resilience.DefaultConfig(),
		},
		Accounts: accounts.DefaultConfig(),
		PIN:      pin.DefaultConfig(),
		Engine:   engine.DefaultConfig(),
		TxLog:    txlog.DefaultConfig(),
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overlays LEDGER_*, REDIS_* and POSTGRES_* variables, plus the
// LOG_* variables understood by the logging package.
func (c *Config) ApplyEnv() error {
	c.Logging = logging.ApplyEnv(c.Logging)

	c.Server.Addr = getEnv("LEDGER_ADDR", c.Server.Addr)
	c.Store.Backend = getEnv("LEDGER_STORE", c.Store.Backend)
	c.Store.KeyPrefix = getEnv("LEDGER_KEY_PREFIX", c.Store.KeyPrefix)
	c.Store.Redis.Addr = getEnv("REDIS_ADDR", c.Store.Redis.Addr)
	c.Store.Redis.Password = getEnv("REDIS_PASSWORD", c.Store.Redis.Password)
	c.Store.Postgres.DSN = getEnv("POSTGRES_DSN", c.Store.Postgres.DSN)
	c.Store.Postgres.Host = getEnv("POSTGRES_HOST", c.Store.Postgres.Host)
	c.Store.Postgres.User = getEnv("POSTGRES_USER", c.Store.Postgres.User)
	c.Store.Postgres.Password = getEnv("POSTGRES_PASSWORD", c.Store.Postgres.Password)
	c.Store.Postgres.Database = getEnv("POSTGRES_DB", c.Store.Postgres.Database)
	c.Metrics.Namespace = getEnv("LEDGER_METRICS_NAMESPACE", c.Metrics.Namespace)

	var errs []error
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: POSTGRES_PORT: %w", err))
		} else {
			c.Store.Postgres.Port = port
		}
	}
	if v := os.Getenv("LEDGER_COMMIT_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: LEDGER_COMMIT_DELAY: %w", err))
		} else {
			c.Engine.CommitDelay = d
		}
	}
	if v := os.Getenv("LEDGER_SEED_DEMO"); v != "" {
		seed, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: LEDGER_SEED_DEMO: %w", err))
		} else {
			c.SeedDemo = seed
		}
	}
	return errors.Join(errs...)
}

// Validate checks the settings ledgerd cannot start without.
func (c Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case BackendMemory, BackendRedis, BackendPostgres, BackendChain:
	default:
		errs = append(errs, fmt.Errorf("config: unknown store backend %q", c.Store.Backend))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("config: server address is required"))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if err := c.PIN.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Engine.CommitDelay < 0 {
		errs = append(errs, fmt.Errorf("config: negative commit delay %v", c.Engine.CommitDelay))
	}
	if c.Accounts.OpeningBalance.IsNegative() {
		errs = append(errs, errors.New("config: opening balance must not be negative"))
	}
	if c.Accounts.DailyLimit.IsNegative() {
		errs = append(errs, errors.New("config: daily limit must not be negative"))
	}
	if c.Store.Backend == BackendChain && c.Store.CacheTTL <= 0 {
		errs = append(errs, errors.New("config: chain backend needs a positive cache_ttl"))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
