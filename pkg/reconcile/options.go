package reconcile

import (
	"github.com/google/uuid"

	"github.com/agentstation/redpush/pkg/constants"
	"github.com/agentstation/redpush/pkg/errors"
)

// options configures an Engine.
type options struct {
	dryRun      bool
	parallelism int
	runID       string
	observers   []Observer
}

func defaultOptions() *options {
	return &options{
		parallelism: constants.DefaultParallelism,
	}
}

// Option is a function that configures an Engine.
type Option func(*options) error

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}
	return o, nil
}

// newOptions returns engine options with default values.
func newOptions(opts ...Option) (*options, error) {
	return defaultOptions().apply(opts...)
}

// WithDryRun makes every write a logged no-op answered with a synthetic id.
func WithDryRun(enabled bool) Option {
	return func(o *options) error {
		o.dryRun = enabled
		return nil
	}
}

// WithParallelism runs up to n independent query groups concurrently.
// Queries sharing a dashboard always land in the same group.
func WithParallelism(n int) Option {
	return func(o *options) error {
		if n < 1 || n > constants.MaxParallelism {
			return &errors.ValidationError{
				Field:   "parallelism",
				Value:   n,
				Message: "must be between 1 and 32",
			}
		}
		o.parallelism = n
		return nil
	}
}

// WithRunID sets the id attached to every event and log line of the run.
func WithRunID(id string) Option {
	return func(o *options) error {
		if id == "" {
			return &errors.ValidationError{
				Field:   "run_id",
				Message: "cannot be empty",
			}
		}
		o.runID = id
		return nil
	}
}

// WithObservers subscribes observers to the run's events.
func WithObservers(observers ...Observer) Option {
	return func(o *options) error {
		for _, obs := range observers {
			if obs == nil {
				return &errors.ValidationError{
					Field:   "observers",
					Message: "cannot contain nil",
				}
			}
		}
		o.observers = append(o.observers, observers...)
		return nil
	}
}
