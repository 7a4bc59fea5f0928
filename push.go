package redpush

import (
	"context"

	"github.com/agentstation/redpush/pkg/logging"
	"github.com/agentstation/redpush/pkg/reconcile"
	"github.com/agentstation/redpush/pkg/resources"
	"github.com/agentstation/redpush/pkg/sync"
	"github.com/agentstation/redpush/pkg/tracking"
)

// Push creates or updates every declared resource on the server.
func (c *client) Push(ctx context.Context, declared []resources.Query, opts ...sync.Option) (*sync.Result, error) {
	return c.run(ctx, declared, sync.Defaults().Apply(opts...))
}

// Prune archives remote queries that are missing from declared.
func (c *client) Prune(ctx context.Context, declared []resources.Query, opts ...sync.Option) (*sync.Result, error) {
	opts = append(opts, sync.WithPruneOnly())
	return c.run(ctx, declared, sync.Defaults().Apply(opts...))
}

func (c *client) run(ctx context.Context, declared []resources.Query, options *sync.Options) (*sync.Result, error) {
	// Step 0: Set context
	if ctx == nil {
		ctx = context.Background()
	}

	// Step 1: Validate options
	if err := options.Validate(); err != nil {
		return nil, err
	}

	// Step 2: Setup context with timeout
	var cancel context.CancelFunc
	if options.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
	} else {
		cancel = func() {}
	}
	defer cancel()

	// Step 3: Build the engine for this run
	engine, err := c.engine(options)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithRunID(ctx, engine.RunID())

	// Step 4: Fetch the remote snapshot
	snapshot, failed, err := c.snapshot(ctx, declared, !options.PruneOnly)
	if err != nil {
		return nil, err
	}

	// Step 5: Reconcile, then prune over the same snapshot
	result := &sync.Result{DryRun: options.DryRun}
	if !options.PruneOnly {
		reconcilable, skipped := splitFailed(declared, failed)
		result.Push, err = engine.Reconcile(ctx, snapshot, reconcilable)
		for _, q := range skipped {
			result.Push.Fail(reconcile.KindQuery, q.TrackingID, failed[q.TrackingID])
		}
		if err != nil {
			c.finish(ctx, result)
			return result, err
		}
	}
	if options.Prune {
		if result.Prune, err = engine.ArchiveUnlisted(ctx, snapshot, declared); err != nil {
			c.finish(ctx, result)
			return result, err
		}
	}

	// Step 6: Record metrics
	c.finish(ctx, result)

	if options.DryRun {
		logging.FromContext(ctx).Info().Bool("dry_run", true).Msg("Dry run completed - no changes applied")
	}
	return result, nil
}

// engine creates a reconcile engine for one run.
func (c *client) engine(options *sync.Options) (*reconcile.Engine, error) {
	parallelism := c.options.parallelism
	if options.Parallelism > 0 {
		parallelism = options.Parallelism
	}

	ropts := []reconcile.Option{
		reconcile.WithDryRun(options.DryRun),
		reconcile.WithParallelism(parallelism),
		reconcile.WithObservers(c.observers()...),
	}
	if options.RunID != "" {
		ropts = append(ropts, reconcile.WithRunID(options.RunID))
	}
	return reconcile.New(c.remote, ropts...)
}

// snapshot lists the remote queries. When full is set, queries matched by
// a declared query that has visualizations are fetched again so their
// visualizations can be matched too. A failed fetch is reported in failed,
// keyed by tracking id, unless ctx is done.
func (c *client) snapshot(ctx context.Context, declared []resources.Query, full bool) ([]resources.Query, map[resources.TrackingID]error, error) {
	queries, err := c.remote.Queries(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !full {
		return queries, nil, nil
	}

	wanted := make(map[resources.TrackingID]bool)
	for _, q := range declared {
		if !q.TrackingID.IsZero() && len(q.Visualizations) > 0 {
			wanted[q.TrackingID] = true
		}
	}

	// Only the first remote query per tracking id is ever matched.
	log := logging.FromContext(ctx)
	failed := make(map[resources.TrackingID]error)
	index := tracking.NewIndex(queries)
	for i, q := range queries {
		if !wanted[q.TrackingID] {
			continue
		}
		if first, _ := index.Lookup(q.TrackingID); first.ID != q.ID {
			continue
		}
		fullQuery, err := c.remote.Query(ctx, q.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, err
			}
			log.Warn().Err(err).
				Str("tracking_id", q.TrackingID.String()).
				Int("query_id", q.ID).
				Msg("Failed to fetch remote query, skipping it")
			failed[q.TrackingID] = err
			continue
		}
		queries[i] = fullQuery
	}

	log.Debug().
		Int("queries", len(queries)).
		Int("full", len(wanted)).
		Int("failed", len(failed)).
		Msg("Fetched remote snapshot")
	return queries, failed, nil
}

// splitFailed separates the declared queries whose remote fetch failed.
func splitFailed(declared []resources.Query, failed map[resources.TrackingID]error) (ok, skipped []resources.Query) {
	if len(failed) == 0 {
		return declared, nil
	}
	for _, q := range declared {
		if _, bad := failed[q.TrackingID]; bad && !q.TrackingID.IsZero() {
			skipped = append(skipped, q)
			continue
		}
		ok = append(ok, q)
	}
	return ok, skipped
}

// finish records run metrics and writes the metrics textfile.
func (c *client) finish(ctx context.Context, result *sync.Result) {
	m := c.options.metrics
	if m == nil {
		return
	}
	for _, r := range result.Results() {
		m.ObserveResult(r)
	}
	if c.options.metricsFile == "" {
		return
	}
	if err := m.WriteTextfile(c.options.metricsFile); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("path", c.options.metricsFile).Msg("Failed to write metrics")
	}
}
