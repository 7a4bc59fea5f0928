// Package reconcile brings a dashboard server in line with declared
// queries, visualizations and dashboard placements.
//
// Declared resources are matched to remote ones by tracking id. Matched
// resources are updated in place, unmatched ones are created, and remote
// queries that are no longer declared can be archived. Problems with one
// resource are logged and recorded; they never stop the pass.
package reconcile

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentstation/redpush/pkg/logging"
	"github.com/agentstation/redpush/pkg/resources"
	"github.com/agentstation/redpush/pkg/tracking"
)

// Engine runs reconciliation passes against one remote.
type Engine struct {
	remote      Remote
	resolver    *DashboardResolver
	dryRun      bool
	parallelism int
	runID       string
	emitter     *emitter
}

// New creates an Engine. With WithDryRun the remote only serves reads.
func New(remote Remote, opts ...Option) (*Engine, error) {
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	if o.dryRun {
		remote = newDryRunRemote(remote)
	}
	return &Engine{
		remote:      remote,
		resolver:    NewDashboardResolver(remote),
		dryRun:      o.dryRun,
		parallelism: o.parallelism,
		runID:       o.runID,
		emitter:     &emitter{observers: o.observers},
	}, nil
}

// RunID returns the id attached to this engine's events.
func (e *Engine) RunID() string {
	return e.runID
}

// Reconcile syncs declared against the remote. snapshot is the remote
// query set fetched at the start of the run; matched queries should carry
// their visualizations. The returned error is non-nil only when ctx ends
// the pass early; per-resource failures are in the Result.
func (e *Engine) Reconcile(ctx context.Context, snapshot, declared []resources.Query) (*Result, error) {
	r := e.newRun()
	ctx = logging.WithRunID(ctx, e.runID)
	log := logging.FromContext(ctx)

	log.Info().
		Int("declared", len(declared)).
		Int("remote", len(snapshot)).
		Bool("dry_run", e.dryRun).
		Int("parallelism", e.parallelism).
		Msg("Reconciling queries")

	index := tracking.NewIndex(snapshot)
	for _, dup := range index.Duplicates() {
		log.Warn().Str("tracking_id", dup.ID.String()).Int("count", dup.Count).
			Msg("Remote queries share a tracking id, using the first")
		r.anomaly(ctx, Anomaly{
			Type:       AnomalyDuplicateTrackingID,
			Kind:       KindQuery,
			TrackingID: dup.ID,
			Message:    "tracking id carried by more than one remote query",
		})
	}
	reportDeclaredDuplicates(ctx, r, declared)

	qr := &QueryReconciler{run: r, snapshot: index, visualizations: &VisualizationReconciler{run: r}}

	var err error
	groups := partition(declared)
	if e.parallelism <= 1 || len(groups) <= 1 {
		_, err = qr.Reconcile(ctx, declared, nil)
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.parallelism)
		for _, group := range groups {
			g.Go(func() error {
				_, err := qr.Reconcile(gctx, group, nil)
				return err
			})
		}
		err = g.Wait()
	}

	r.result.finish()
	logSummary(ctx, r.result)
	return r.result, err
}

// ArchiveUnlisted archives every remote query in snapshot whose tracking
// id is missing or not declared.
func (e *Engine) ArchiveUnlisted(ctx context.Context, snapshot, declared []resources.Query) (*Result, error) {
	r := e.newRun()
	ctx = logging.WithRunID(ctx, e.runID)

	oc := &OrphanCollector{run: r}
	err := oc.ArchiveUnlisted(ctx, snapshot, declared)

	r.result.finish()
	logSummary(ctx, r.result)
	return r.result, err
}

// run is the state shared by the components of one pass.
type run struct {
	remote   Remote
	resolver *DashboardResolver
	result   *Result
	emitter  *emitter
	dryRun   bool
	runID    string

	// reported holds the anomaly keys already recorded once.
	reported sync.Map
}

func (e *Engine) newRun() *run {
	return &run{
		remote:   e.remote,
		resolver: e.resolver,
		result:   NewResult(e.runID, e.dryRun),
		emitter:  e.emitter,
		dryRun:   e.dryRun,
		runID:    e.runID,
	}
}

// record adds ev to the result and hands it to the observers.
func (r *run) record(ctx context.Context, ev Event) {
	ev.RunID = r.runID
	ev.DryRun = r.dryRun
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	r.result.add(ev)
	r.emitter.emit(ctx, ev)
}

// anomalyOnce records a once per key and reports whether it did.
func (r *run) anomalyOnce(ctx context.Context, key string, a Anomaly) bool {
	if _, seen := r.reported.LoadOrStore(key, struct{}{}); seen {
		return false
	}
	r.anomaly(ctx, a)
	return true
}

// anomaly records a non-fatal problem.
func (r *run) anomaly(ctx context.Context, a Anomaly) {
	a = a.withErr()
	r.result.addAnomaly(a)
	r.record(ctx, Event{
		Kind:       a.Kind,
		Action:     ActionAnomaly,
		TrackingID: a.TrackingID,
		Name:       a.Name,
		Anomaly:    a.Type,
		Message:    a.Message,
	})
}

// reportDeclaredDuplicates warns about declared queries sharing a tracking
// id. Each is still reconciled; the later ones update the same remote query.
func reportDeclaredDuplicates(ctx context.Context, r *run, declared []resources.Query) {
	for _, dup := range tracking.NewIndex(declared).Duplicates() {
		logging.FromContext(ctx).Warn().Str("tracking_id", dup.ID.String()).Int("count", dup.Count).
			Msg("Declared queries share a tracking id")
		r.anomaly(ctx, Anomaly{
			Type:       AnomalyDuplicateTrackingID,
			Kind:       KindQuery,
			TrackingID: dup.ID,
			Message:    "tracking id declared more than once",
		})
	}
}

func logSummary(ctx context.Context, res *Result) {
	log := logging.FromContext(ctx)
	for _, row := range res.Summary() {
		log.Info().
			Str("kind", string(row.Kind)).
			Int("created", row.Created).
			Int("updated", row.Updated).
			Int("archived", row.Archived).
			Int("skipped", row.Skipped).
			Int("failed", row.Failed).
			Msg("Reconciliation summary")
	}
	if n := len(res.Errors); n > 0 {
		log.Error().Int("failures", n).Msg("Some resources failed to sync")
	}
}
