// Package redpush keeps a dashboard server's queries, visualizations and
// dashboards in line with a declared YAML file.
//
// Every declared resource carries a tracking id that is stored inside the
// remote resource's options, so later runs recognise what they created
// and update it instead of creating a copy.
//
// Example usage:
//
//	client, err := redpush.New(
//	    redpush.WithURL("https://dash.example.com"),
//	    redpush.WithAPIKey(os.Getenv("REDPUSH_API_KEY")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	queries, err := declared.Load("queries.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create or update everything declared, then archive what is not
//	result, err := client.Push(ctx, queries, sync.WithPrune(true))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Summary())
package redpush

import (
	"context"

	"github.com/agentstation/redpush/internal/journal"
	"github.com/agentstation/redpush/internal/redash"
	"github.com/agentstation/redpush/internal/transport"
	"github.com/agentstation/redpush/pkg/constants"
	"github.com/agentstation/redpush/pkg/errors"
	"github.com/agentstation/redpush/pkg/logging"
	"github.com/agentstation/redpush/pkg/reconcile"
	"github.com/agentstation/redpush/pkg/resources"
	"github.com/agentstation/redpush/pkg/sync"
)

// Compile-time interface check to ensure proper implementation.
var _ Client = (*client)(nil)

// Pusher applies declared queries to the server.
type Pusher interface {
	// Push creates or updates every declared resource. With sync.WithPrune
	// it then archives remote queries that are not declared.
	Push(ctx context.Context, declared []resources.Query, opts ...sync.Option) (*sync.Result, error)

	// Prune archives remote queries that are missing from declared.
	Prune(ctx context.Context, declared []resources.Query, opts ...sync.Option) (*sync.Result, error)
}

// Dumper reads the server's queries in declared form.
type Dumper interface {
	// Dump lists remote queries. With visualizations each query is fetched
	// in full so its visualizations are included. A non-nil error with a
	// non-nil slice means some queries are listed without visualizations.
	Dump(ctx context.Context, visualizations bool) ([]resources.Query, error)
}

// Comparer reports how declared queries differ from the server.
type Comparer interface {
	// Diff compares declared against the remote queries.
	Diff(ctx context.Context, declared []resources.Query) (*Diff, error)
}

// Users creates accounts on the server.
type Users interface {
	// CreateUsers creates each user, best effort.
	CreateUsers(ctx context.Context, users []resources.User) (int, []error)
}

// History reads the apply journal.
type History interface {
	// History returns the newest journal entries.
	History(ctx context.Context, limit int) ([]journal.Entry, error)
}

// Client talks to one dashboard server.
type Client interface {
	Pusher
	Dumper
	Comparer
	Users
	History

	// Close releases the journal.
	Close() error
}

// client is the internal implementation of the Client interface.
type client struct {
	options *options
	remote  *redash.Client
	journal *journal.Journal
}

// New creates a Client. WithURL is required.
func New(opts ...Option) (Client, error) {
	o, err := defaults().apply(opts...)
	if err != nil {
		return nil, err
	}

	topts := []transport.Option{
		transport.WithHTTPClient(o.httpClient),
		transport.WithTimeout(o.timeout),
		transport.WithAuthenticator(transport.AuthenticatorFor(o.authScheme)),
		transport.WithRateLimit(o.rateLimit, constants.BurstSize),
	}
	if o.metrics != nil {
		topts = append(topts, transport.WithRequestObserver(o.metrics.ObserveRequest))
	}
	tc, err := transport.New(o.url, o.apiKey, topts...)
	if err != nil {
		return nil, err
	}

	c := &client{
		options: o,
		remote:  redash.New(tc, redash.WithPageSize(o.pageSize)),
	}

	if o.journalPath != "" {
		if c.journal, err = journal.Open(o.journalPath); err != nil {
			return nil, err
		}
	}

	logging.Debug().
		Str("server", tc.Server()).
		Int("page_size", o.pageSize).
		Int("parallelism", o.parallelism).
		Bool("journal", c.journal != nil).
		Msg("Client created")

	return c, nil
}

// Close releases the journal.
func (c *client) Close() error {
	if c.journal == nil {
		return nil
	}
	return c.journal.Close()
}

// CreateUsers creates each user, best effort. Failures are logged and
// returned; they do not stop the batch.
func (c *client) CreateUsers(ctx context.Context, users []resources.User) (int, []error) {
	return c.remote.CreateUsers(ctx, users)
}

// History returns the newest journal entries.
func (c *client) History(ctx context.Context, limit int) ([]journal.Entry, error) {
	if c.journal == nil {
		return nil, errors.NewConfigError("journal", "no journal configured", nil)
	}
	return c.journal.List(ctx, limit)
}

// observers returns the configured observers plus the journal and metrics.
func (c *client) observers() []reconcile.Observer {
	obs := append([]reconcile.Observer(nil), c.options.observers...)
	if c.journal != nil {
		obs = append(obs, c.journal)
	}
	if c.options.metrics != nil {
		obs = append(obs, c.options.metrics)
	}
	return obs
}
