package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type RateLimitConfig struct {
	Disabled bool          `yaml:"disabled"`
	Max      int           `yaml:"max"`
	Window   time.Duration `yaml:"window"`
}

type LadderConfig struct {
	DefaultLevels uint64 `yaml:"default_levels"`
	MaxLevels     uint64 `yaml:"max_levels"`
}

// Config is the service configuration. Values come from Default, then the
// YAML file named by CONFIG_FILE, then individual environment variables.
type Config struct {
	Port     string `yaml:"port"`
	GRPCPort string `yaml:"grpc_port"`
	// DataDir holds the pebble store. Empty keeps all accounts in memory.
	DataDir         string        `yaml:"data_dir"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	RateLimit              RateLimitConfig `yaml:"rate_limit"`
	MaxConcurrentRequests  int64           `yaml:"max_concurrent_requests"`
	MaintenanceMode        bool            `yaml:"maintenance_mode"`
	RequestLoggingDisabled bool            `yaml:"request_logging_disabled"`

	Ladder LadderConfig `yaml:"ladder"`
}

func Default() Config {
	return Config{
		Port:            "8080",
		GRPCPort:        "9090",
		ShutdownTimeout: 10 * time.Second,
		RateLimit: RateLimitConfig{
			Max:    100,
			Window: time.Second,
		},
		Ladder: LadderConfig{
			DefaultLevels: 10,
			MaxLevels:     1000,
		},
	}
}

// Load builds the configuration from defaults, CONFIG_FILE and the environment.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields from the environment. A value that does not parse
// is ignored and the previous one kept.
func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("GRPC_PORT"); v != "" {
		c.GRPCPort = v
	}
	if v, ok := os.LookupEnv("DATA_DIR"); ok {
		c.DataDir = v
	}
	envDuration("SHUTDOWN_TIMEOUT", &c.ShutdownTimeout)

	if v := os.Getenv("RATE_LIMIT_DISABLED"); v != "" {
		c.RateLimit.Disabled = v == "1"
	}
	if v := os.Getenv("RATE_LIMIT_MAX"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			c.RateLimit.Max = parsed
		}
	}
	envDuration("RATE_LIMIT_WINDOW", &c.RateLimit.Window)

	if v := os.Getenv("MAX_CONCURRENT_REQUESTS"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			c.MaxConcurrentRequests = parsed
		}
	}
	if v := os.Getenv("MAINTENANCE_MODE"); v != "" {
		c.MaintenanceMode = v == "1"
	}
	if v := os.Getenv("REQUEST_LOGGING_DISABLED"); v != "" {
		c.RequestLoggingDisabled = v == "1"
	}

	envUint("LADDER_DEFAULT_LEVELS", &c.Ladder.DefaultLevels)
	envUint("LADDER_MAX_LEVELS", &c.Ladder.MaxLevels)
}

func envDuration(key string, dst *time.Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || parsed <= 0 {
		log.Warn().Str("key", key).Str("value", v).Msg("Ignoring invalid duration")
		return
	}
	*dst = parsed
}

func envUint(key string, dst *uint64) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	parsed, err := strconv.ParseUint(v, 10, 64)
	if err != nil || parsed == 0 {
		log.Warn().Str("key", key).Str("value", v).Msg("Ignoring invalid number")
		return
	}
	*dst = parsed
}

func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("config: port is required")
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("config: rate limit needs a positive max and window")
	}
	if c.Ladder.DefaultLevels == 0 || c.Ladder.MaxLevels == 0 {
		return fmt.Errorf("config: ladder levels must be positive")
	}
	// edge case: a default above the cap would be silently clamped on every request
	if c.Ladder.DefaultLevels > c.Ladder.MaxLevels {
		return fmt.Errorf("config: ladder default_levels %d exceeds max_levels %d",
			c.Ladder.DefaultLevels, c.Ladder.MaxLevels)
	}
	return nil
}

// InMemory reports whether accounts are kept only in memory.
func (c Config) InMemory() bool {
	return c.DataDir == ""
}
