package reconcile

import (
	"fmt"
	"sync"
	"time"

	"github.com/agentstation/redpush/pkg/errors"
	"github.com/agentstation/redpush/pkg/resources"
)

// Result represents the outcome of one reconciliation pass.
type Result struct {
	mu sync.Mutex

	// Metadata about the pass
	Metadata ResultMetadata

	// Counts of actions per resource kind
	Counts map[Kind]map[Action]int

	// IDs maps query tracking ids to the remote ids they were saved under
	IDs map[resources.TrackingID]int

	// Anomalies contains non-fatal problems, in the order they were found
	Anomalies []Anomaly

	// Errors contains per-resource failures; the pass continued past each
	Errors []error
}

// ResultMetadata contains metadata about the reconciliation pass.
type ResultMetadata struct {
	RunID     string
	DryRun    bool
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Anomaly is a reported, non-fatal problem.
type Anomaly struct {
	Type       AnomalyType          `json:"type" yaml:"type"`
	Kind       Kind                 `json:"kind" yaml:"kind"`
	TrackingID resources.TrackingID `json:"tracking_id,omitempty" yaml:"tracking_id,omitempty"`
	Name       string               `json:"name,omitempty" yaml:"name,omitempty"`
	Message    string               `json:"message" yaml:"message"`

	// Err wraps the sentinel for Type so callers can use errors.Is.
	Err error `json:"-" yaml:"-"`
}

// anomalyErrors maps each anomaly type to the sentinel it wraps.
var anomalyErrors = map[AnomalyType]error{
	AnomalyMissingTrackingID:   errors.ErrMissingTrackingID,
	AnomalyDuplicateTrackingID: errors.ErrDuplicateTrackingID,
	AnomalyDuplicateDashboard:  errors.ErrDuplicateDashboard,
	AnomalyDraftDashboard:      errors.ErrRemoteRejected,
	AnomalyUnknownSize:         errors.ErrInvalidInput,
	AnomalyUnnamedPlacement:    errors.ErrInvalidInput,
}

// withErr fills Err from Type when it is unset.
func (a Anomaly) withErr() Anomaly {
	if a.Err == nil {
		if sentinel, ok := anomalyErrors[a.Type]; ok {
			a.Err = fmt.Errorf("%s: %w", a.String(), sentinel)
		}
	}
	return a
}

// String renders the anomaly for log lines and reports.
func (a Anomaly) String() string {
	id := a.Name
	if !a.TrackingID.IsZero() {
		id = a.TrackingID.String()
	}
	if id == "" {
		return fmt.Sprintf("%s: %s", a.Kind, a.Message)
	}
	return fmt.Sprintf("%s %s: %s", a.Kind, id, a.Message)
}

// NewResult creates an empty result.
func NewResult(runID string, dryRun bool) *Result {
	return &Result{
		Metadata: ResultMetadata{
			RunID:     runID,
			DryRun:    dryRun,
			StartTime: time.Now(),
		},
		Counts: make(map[Kind]map[Action]int),
		IDs:    make(map[resources.TrackingID]int),
	}
}

func (r *Result) add(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ev.Action != ActionAnomaly {
		if r.Counts[ev.Kind] == nil {
			r.Counts[ev.Kind] = make(map[Action]int)
		}
		r.Counts[ev.Kind][ev.Action]++
	}
	if ev.Kind == KindQuery && !ev.TrackingID.IsZero() && ev.RemoteID != 0 &&
		(ev.Action == ActionCreate || ev.Action == ActionUpdate) {
		r.IDs[ev.TrackingID] = ev.RemoteID
	}
	if ev.Err != nil {
		r.Errors = append(r.Errors, ev.Err)
	}
}

// Fail records a resource that failed before the pass could reconcile it.
func (r *Result) Fail(kind Kind, id resources.TrackingID, err error) {
	r.add(Event{Kind: kind, Action: ActionFail, TrackingID: id, Err: errors.NewSyncError(string(kind), id.String(), err)})
}

func (r *Result) addAnomaly(a Anomaly) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Anomalies = append(r.Anomalies, a)
}

func (r *Result) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Metadata.EndTime = time.Now()
	r.Metadata.Duration = r.Metadata.EndTime.Sub(r.Metadata.StartTime)
}

// Count returns how many times action was taken on kind.
func (r *Result) Count(kind Kind, action Action) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Counts[kind][action]
}

// IsSuccess returns true if no resource failed.
func (r *Result) IsSuccess() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Errors) == 0
}

// HasChanges returns true if anything was created, updated or archived.
func (r *Result) HasChanges() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, actions := range r.Counts {
		if actions[ActionCreate]+actions[ActionUpdate]+actions[ActionArchive] > 0 {
			return true
		}
	}
	return false
}

// Merge folds other into r. Metadata keeps r's start and the later end.
func (r *Result) Merge(other *Result) {
	if other == nil || other == r {
		return
	}
	other.mu.Lock()
	defer other.mu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()

	for kind, actions := range other.Counts {
		if r.Counts[kind] == nil {
			r.Counts[kind] = make(map[Action]int)
		}
		for action, n := range actions {
			r.Counts[kind][action] += n
		}
	}
	for id, remote := range other.IDs {
		r.IDs[id] = remote
	}
	r.Anomalies = append(r.Anomalies, other.Anomalies...)
	r.Errors = append(r.Errors, other.Errors...)
	if other.Metadata.EndTime.After(r.Metadata.EndTime) {
		r.Metadata.EndTime = other.Metadata.EndTime
		r.Metadata.Duration = r.Metadata.EndTime.Sub(r.Metadata.StartTime)
	}
}

// SummaryRow is one line of the per-kind report.
type SummaryRow struct {
	Kind     Kind `json:"kind" yaml:"kind"`
	Created  int  `json:"created" yaml:"created"`
	Updated  int  `json:"updated" yaml:"updated"`
	Archived int  `json:"archived" yaml:"archived"`
	Skipped  int  `json:"skipped" yaml:"skipped"`
	Failed   int  `json:"failed" yaml:"failed"`
}

// Summary returns one row per resource kind that saw any action.
func (r *Result) Summary() []SummaryRow {
	r.mu.Lock()
	defer r.mu.Unlock()

	var rows []SummaryRow
	for _, kind := range Kinds() {
		a := r.Counts[kind]
		if len(a) == 0 {
			continue
		}
		rows = append(rows, SummaryRow{
			Kind:     kind,
			Created:  a[ActionCreate],
			Updated:  a[ActionUpdate],
			Archived: a[ActionArchive],
			Skipped:  a[ActionSkip],
			Failed:   a[ActionFail],
		})
	}
	return rows
}
