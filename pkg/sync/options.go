// Package sync provides the options and result of a push run.
package sync

import (
	"time"

	"github.com/agentstation/redpush/pkg/constants"
	"github.com/agentstation/redpush/pkg/errors"
)

// Options controls one push or prune run.
type Options struct {
	DryRun      bool          // Read from the server, log writes without sending them
	Prune       bool          // Archive remote queries that are not declared
	PruneOnly   bool          // Skip reconciliation and only archive
	Parallelism int           // Concurrently reconciled query groups; 0 uses the client default
	Timeout     time.Duration // Timeout for the entire run
	RunID       string        // Id attached to every event; generated when empty
}

// Apply applies the given options to the push options.
func (s *Options) Apply(opts ...Option) *Options {
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Defaults returns the default push options.
func Defaults() *Options {
	return &Options{
		Timeout: constants.PushTimeout,
	}
}

// Option is a function that configures push Options.
type Option func(*Options)

// Validate checks if the push options are valid.
func (s *Options) Validate() error {
	if s.Timeout < 0 {
		return &errors.ValidationError{
			Field:   "Timeout",
			Value:   s.Timeout,
			Message: "timeout must be non-negative",
		}
	}
	if s.Parallelism < 0 || s.Parallelism > constants.MaxParallelism {
		return &errors.ValidationError{
			Field:   "Parallelism",
			Value:   s.Parallelism,
			Message: "parallelism must be between 0 and 32",
		}
	}
	return nil
}

// WithDryRun configures dry run mode.
func WithDryRun(dryRun bool) Option {
	return func(opts *Options) {
		opts.DryRun = dryRun
	}
}

// WithPrune archives undeclared remote queries after reconciling.
func WithPrune(prune bool) Option {
	return func(opts *Options) {
		opts.Prune = prune
	}
}

// WithPruneOnly skips reconciliation; only undeclared queries are archived.
func WithPruneOnly() Option {
	return func(opts *Options) {
		opts.Prune = true
		opts.PruneOnly = true
	}
}

// WithParallelism overrides the client's parallelism for one run.
func WithParallelism(n int) Option {
	return func(opts *Options) {
		opts.Parallelism = n
	}
}

// WithTimeout configures the run timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.Timeout = timeout
	}
}

// WithRunID sets the run id instead of generating one.
func WithRunID(id string) Option {
	return func(opts *Options) {
		opts.RunID = id
	}
}
