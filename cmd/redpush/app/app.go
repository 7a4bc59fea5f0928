// Package app provides the application context and dependency management
// for the redpush CLI. It centralizes configuration, logging and the
// dashboard server client.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/redpush"
	"github.com/agentstation/redpush/pkg/errors"
	"github.com/agentstation/redpush/pkg/metrics"
)

// App represents the redpush application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	// Configuration
	config *Config

	// Logger
	logger *zerolog.Logger

	// Client instance (lazy-initialized, singleton)
	mu     sync.RWMutex
	client redpush.Client
}

// New creates a new App instance with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the configured output format.
func (a *App) OutputFormat() string {
	return a.config.Format
}

// NoColor reports whether colored output is disabled.
func (a *App) NoColor() bool {
	return a.config.NoColor
}

// Client returns the dashboard server client. Without options the client
// is created once and cached; with options a new, uncached client is
// created from the configuration plus opts.
func (a *App) Client(opts ...redpush.Option) (redpush.Client, error) {
	if len(opts) > 0 {
		c, err := redpush.New(append(a.clientOptions(), opts...)...)
		if err != nil {
			return nil, errors.WrapResource("create", "client", "with custom options", err)
		}
		return c, nil
	}

	a.mu.RLock()
	if a.client != nil {
		c := a.client
		a.mu.RUnlock()
		return c, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	// Double-check after acquiring write lock
	if a.client != nil {
		return a.client, nil
	}

	c, err := redpush.New(a.clientOptions()...)
	if err != nil {
		return nil, errors.WrapResource("create", "client", "", err)
	}
	a.client = c
	return c, nil
}

// Shutdown releases the client's journal.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	c := a.client
	a.client = nil
	a.mu.Unlock()

	if c == nil {
		return nil
	}
	if err := c.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close client during shutdown")
		return err
	}
	return nil
}

// clientOptions constructs client options from the app configuration.
func (a *App) clientOptions() []redpush.Option {
	cfg := a.config
	opts := []redpush.Option{
		redpush.WithURL(cfg.RedashURL),
		redpush.WithAPIKey(cfg.APIKey),
		redpush.WithAuthScheme(cfg.AuthScheme),
		redpush.WithTimeout(cfg.Timeout),
		redpush.WithRateLimit(cfg.RateLimit),
	}
	if cfg.PageSize > 0 {
		opts = append(opts, redpush.WithPageSize(cfg.PageSize))
	}
	if cfg.Parallelism > 0 {
		opts = append(opts, redpush.WithParallelism(cfg.Parallelism))
	}
	if cfg.Journal != "" {
		opts = append(opts, redpush.WithJournal(cfg.Journal))
	}
	if cfg.MetricsFile != "" {
		opts = append(opts, redpush.WithMetrics(metrics.New(), cfg.MetricsFile))
	}
	return opts
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		logger := NewLogger(config)
		a.logger = &logger
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithClient sets a custom client (useful for testing).
func WithClient(c redpush.Client) Option {
	return func(a *App) error {
		a.client = c
		return nil
	}
}
