package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/agentstation/redpush/pkg/resources"
)

// Kind is the type of resource an event is about.
type Kind string

// Resource kinds.
const (
	KindQuery         Kind = "query"
	KindVisualization Kind = "visualization"
	KindDashboard     Kind = "dashboard"
	KindWidget        Kind = "widget"
)

// Kinds lists the resource kinds in report order.
func Kinds() []Kind {
	return []Kind{KindQuery, KindVisualization, KindDashboard, KindWidget}
}

// Action is what the engine did, or would do in a dry run.
type Action string

// Actions.
const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionArchive Action = "archive"
	ActionSkip    Action = "skip"
	ActionFail    Action = "fail"
	ActionAnomaly Action = "anomaly"
)

// AnomalyType classifies a non-fatal problem.
type AnomalyType string

// Anomaly types.
const (
	AnomalyMissingTrackingID   AnomalyType = "missing_tracking_id"
	AnomalyDuplicateTrackingID AnomalyType = "duplicate_tracking_id"
	AnomalyDuplicateDashboard  AnomalyType = "duplicate_dashboard_name"
	AnomalyDraftDashboard      AnomalyType = "draft_dashboard"
	AnomalyUnknownSize         AnomalyType = "unknown_size"
	AnomalyUnnamedPlacement    AnomalyType = "unnamed_placement"
)

// Event records one action taken on one resource.
type Event struct {
	RunID      string
	Time       time.Time
	Kind       Kind
	Action     Action
	TrackingID resources.TrackingID
	RemoteID   int
	Name       string
	DryRun     bool
	Anomaly    AnomalyType
	Message    string
	Err        error
}

// Observer receives every event of a run. Observers cannot change the
// outcome of a run.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// emitter delivers events one at a time, in emission order.
type emitter struct {
	mu        sync.Mutex
	observers []Observer
}

func (e *emitter) emit(ctx context.Context, ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, o := range e.observers {
		o.Observe(ctx, ev)
	}
}
