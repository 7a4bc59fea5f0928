package redpush

import (
	"net/http"
	"time"

	"github.com/agentstation/redpush/internal/transport"
	"github.com/agentstation/redpush/pkg/constants"
	"github.com/agentstation/redpush/pkg/errors"
	"github.com/agentstation/redpush/pkg/metrics"
	"github.com/agentstation/redpush/pkg/reconcile"
)

// options holds the client configuration.
type options struct {
	url         string
	apiKey      string
	authScheme  string
	pageSize    int
	timeout     time.Duration
	rateLimit   float64
	parallelism int
	httpClient  *http.Client
	observers   []reconcile.Observer
	metrics     *metrics.Metrics
	metricsFile string
	journalPath string
}

// Option is a function that configures a Client.
type Option func(*options) error

// defaults returns the default client options.
func defaults() *options {
	return &options{
		authScheme:  transport.SchemeHeader,
		pageSize:    constants.DefaultPageSize,
		timeout:     constants.DefaultHTTPTimeout,
		rateLimit:   constants.DefaultRateLimit,
		parallelism: constants.DefaultParallelism,
	}
}

// apply applies the given options and returns the first error.
func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithURL sets the dashboard server base URL.
func WithURL(url string) Option {
	return func(o *options) error {
		o.url = url
		return nil
	}
}

// WithAPIKey sets the API key sent with every request.
func WithAPIKey(key string) Option {
	return func(o *options) error {
		o.apiKey = key
		return nil
	}
}

// WithAuthScheme chooses how the API key is sent: header, query or none.
func WithAuthScheme(scheme string) Option {
	return func(o *options) error {
		switch scheme {
		case "", transport.SchemeHeader, transport.SchemeQuery, transport.SchemeNone:
			o.authScheme = scheme
			return nil
		default:
			return errors.NewValidationError("auth_scheme", scheme, "must be one of header, query, none")
		}
	}
}

// WithPageSize sets the page size used when listing queries.
func WithPageSize(n int) Option {
	return func(o *options) error {
		if n < 1 || n > constants.MaxPageSize {
			return errors.NewValidationError("page_size", n, "must be between 1 and 1000")
		}
		o.pageSize = n
		return nil
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return errors.NewValidationError("timeout", d, "must be non-negative")
		}
		o.timeout = d
		return nil
	}
}

// WithRateLimit paces requests to perSecond. Zero disables pacing.
func WithRateLimit(perSecond float64) Option {
	return func(o *options) error {
		if perSecond < 0 {
			return errors.NewValidationError("rate_limit", perSecond, "must be non-negative")
		}
		o.rateLimit = perSecond
		return nil
	}
}

// WithParallelism sets how many independent query groups a push
// reconciles at once.
func WithParallelism(n int) Option {
	return func(o *options) error {
		if n < 1 || n > constants.MaxParallelism {
			return errors.NewValidationError("parallelism", n, "must be between 1 and 32")
		}
		o.parallelism = n
		return nil
	}
}

// WithHTTPClient replaces the HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) error {
		o.httpClient = hc
		return nil
	}
}

// WithObservers registers observers notified of every reconcile event.
func WithObservers(observers ...reconcile.Observer) Option {
	return func(o *options) error {
		o.observers = append(o.observers, observers...)
		return nil
	}
}

// WithMetrics records request and run metrics into m. When path is not
// empty the metrics are written there in the textfile format after each run.
func WithMetrics(m *metrics.Metrics, path string) Option {
	return func(o *options) error {
		o.metrics = m
		o.metricsFile = path
		return nil
	}
}

// WithJournal records every event into the SQLite journal at path.
func WithJournal(path string) Option {
	return func(o *options) error {
		o.journalPath = path
		return nil
	}
}
