package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"gocorr/domain/correlation"
	"gocorr/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Correlation CorrelationConfig
	Database    DatabaseConfig
	Server      ServerConfig
	Profiling   ProfilingConfig
	Log         LogConfig
}

// CorrelationConfig holds the run-wide pipeline constants
type CorrelationConfig struct {
	Window    int
	Timesteps int
	TopK      int
	MaxSeries int
	Mode      correlation.Mode
	Workers   int
	Pipelined bool
}

// DatabaseConfig holds database connection settings. An empty URL disables
// result persistence.
type DatabaseConfig struct {
	URL            string
	MaxOpenConns   int
	ConnMaxIdle    time.Duration
	RequestTimeout time.Duration
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// ProfilingConfig controls the per-timestep score summary and p-values
type ProfilingConfig struct {
	Enabled bool
}

// LogConfig holds logger settings
type LogConfig struct {
	Level zerolog.Level
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Correlation: loadCorrelationConfig(),
		Database:    loadDatabaseConfig(),
		Server:      loadServerConfig(),
		Profiling:   loadProfilingConfig(),
	}

	logConfig, err := loadLogConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load log configuration")
	}
	config.Log = *logConfig

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

// Params converts the correlation settings to pipeline parameters
func (c *Config) Params() correlation.Params {
	return correlation.Params{
		Window:    c.Correlation.Window,
		Timesteps: c.Correlation.Timesteps,
		TopK:      c.Correlation.TopK,
		MaxSeries: c.Correlation.MaxSeries,
		Mode:      c.Correlation.Mode,
		Workers:   c.Correlation.Workers,
		Pipelined: c.Correlation.Pipelined,
	}
}

func loadCorrelationConfig() CorrelationConfig {
	return CorrelationConfig{
		Window:    getEnvIntOrDefault("CORR_WINDOW", correlation.DefaultWindow),
		Timesteps: getEnvIntOrDefault("CORR_TIMESTEPS", 0),
		TopK:      getEnvIntOrDefault("CORR_TOP_K", correlation.DefaultTopK),
		MaxSeries: getEnvIntOrDefault("CORR_MAX_SERIES", correlation.DefaultMaxSeries),
		Mode:      correlation.Mode(strings.ToLower(getEnvOrDefault("CORR_MODE", string(correlation.ModeSequential)))),
		Workers:   getEnvIntOrDefault("CORR_WORKERS", runtime.GOMAXPROCS(0)),
		Pipelined: getEnvBoolOrDefault("CORR_PIPELINED", true),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:            getEnvOrDefault("DATABASE_URL", ""),
		MaxOpenConns:   getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 10),
		ConnMaxIdle:    getEnvDurationOrDefault("DB_CONN_MAX_IDLE", 5*time.Minute),
		RequestTimeout: getEnvDurationOrDefault("DB_REQUEST_TIMEOUT", 30*time.Second),
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),
	}
}

func loadProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled: getEnvBoolOrDefault("CORR_PROFILE", false),
	}
}

func loadLogConfig() (*LogConfig, error) {
	level, err := zerolog.ParseLevel(getEnvOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, errors.ConfigInvalid("LOG_LEVEL is not a valid level")
	}
	return &LogConfig{Level: level}, nil
}

// validateConfig checks the settings that do not depend on the input matrix.
// Series-dependent limits are enforced by correlation.Params.Validate.
func validateConfig(config *Config) error {
	c := config.Correlation
	if c.Window < 2 {
		return errors.ConfigInvalid("CORR_WINDOW must be at least 2")
	}
	if c.TopK < 0 {
		return errors.ConfigInvalid("CORR_TOP_K must not be negative")
	}
	if c.Timesteps < 0 {
		return errors.ConfigInvalid("CORR_TIMESTEPS must not be negative")
	}
	if c.MaxSeries <= 0 || c.MaxSeries > correlation.DefaultMaxSeries {
		return errors.ConfigInvalid("CORR_MAX_SERIES must be between 1 and 6000")
	}
	if !c.Mode.Valid() {
		return errors.ConfigInvalid("CORR_MODE must be sequential or stateless")
	}
	if config.Server.Port == "" {
		return errors.ConfigInvalid("PORT is required")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
