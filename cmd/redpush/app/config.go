package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/redpush/pkg/constants"
	"github.com/agentstation/redpush/pkg/errors"
)

// Config holds the application configuration loaded from various sources
// including config files, environment variables, and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Server connection
	RedashURL  string
	APIKey     string
	AuthScheme string
	PageSize   int
	Timeout    time.Duration
	RateLimit  float64

	// Run behavior
	Parallelism int
	Journal     string
	MetricsFile string

	// Logging configuration
	LogLevel    string // --log-level flag
	EnvLogLevel string // LOG_LEVEL, REDPUSH_LOG_LEVEL or log_level in the config file
	LogFormat   string
	LogOutput   string
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables (REDPUSH_*, plus REDASH_URL and REDASH_API_KEY)
// 3. .env files
// 4. Config file (.redpush.yaml in the working or home directory)
// 5. Defaults
func LoadConfig() (*Config, error) {
	return loadConfig(viper.New(), "")
}

// LoadConfigFile is LoadConfig reading an explicit config file.
func LoadConfigFile(path string) (*Config, error) {
	return loadConfig(viper.New(), path)
}

func loadConfig(v *viper.Viper, configFile string) (*Config, error) {
	// Load .env files first (before Viper env binding)
	loadEnvFiles()

	v.SetEnvPrefix("REDPUSH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	setDefaults(v)
	bindLegacyEnv(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigType("yaml")
		v.SetConfigName(".redpush")
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing default config is fine; an explicit one must exist
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.NewConfigError("config", "reading "+configFile, err)
		}
	}

	config := &Config{
		ConfigFile: v.ConfigFileUsed(),

		RedashURL:  v.GetString("redash_url"),
		APIKey:     v.GetString("api_key"),
		AuthScheme: v.GetString("auth_scheme"),
		PageSize:   v.GetInt("page_size"),
		Timeout:    v.GetDuration("timeout"),
		RateLimit:  v.GetFloat64("rate_limit"),

		Parallelism: v.GetInt("parallelism"),
		Journal:     v.GetString("journal"),
		MetricsFile: v.GetString("metrics_file"),

		Format: v.GetString("format"),

		// Logging configuration; LogLevel is left to the --log-level flag
		EnvLogLevel: v.GetString("log_level"),
		LogFormat:   getEnvOrDefault("LOG_FORMAT", v.GetString("log_format")),
		LogOutput:   getEnvOrDefault("LOG_OUTPUT", v.GetString("log_output")),
	}

	return config, nil
}

// setDefaults registers the default of every key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("auth_scheme", "header")
	v.SetDefault("page_size", constants.DefaultPageSize)
	v.SetDefault("timeout", constants.DefaultHTTPTimeout)
	v.SetDefault("rate_limit", constants.DefaultRateLimit)
	v.SetDefault("parallelism", constants.DefaultParallelism)
	v.SetDefault("log_format", "auto")
	v.SetDefault("log_output", "stderr")
}

// bindLegacyEnv binds the unprefixed variables older setups export.
func bindLegacyEnv(v *viper.Viper) {
	bindings := map[string][]string{
		"redash_url": {"REDPUSH_REDASH_URL", "REDASH_URL"},
		"api_key":    {"REDPUSH_API_KEY", "REDASH_API_KEY"},
		"log_level":  {"REDPUSH_LOG_LEVEL", "LOG_LEVEL"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			// Log warning but continue - this isn't critical
			fmt.Fprintf(os.Stderr, "Warning: failed to bind environment variable %s: %v\n", key, err)
		}
	}
}

// UpdateFromFlags updates config values from parsed command flags.
// This should be called after cobra parses flags to ensure flag
// values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// loadEnvFiles loads environment variables from .env files.
func loadEnvFiles() {
	// Load never overrides a variable that is already set, so the real
	// environment wins over .env.local, which wins over .env
	envFiles := []string{
		".env.local",
		".env",
	}

	for _, envFile := range envFiles {
		_ = godotenv.Load(envFile)
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
