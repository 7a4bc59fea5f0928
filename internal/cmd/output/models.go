package output

import (
	"strconv"
	"time"

	"github.com/agentstation/redpush/internal/journal"
	"github.com/agentstation/redpush/pkg/constants"
	"github.com/agentstation/redpush/pkg/reconcile"
)

// Report is the printable form of a run result.
type Report struct {
	RunID     string                 `json:"run_id" yaml:"run_id"`
	DryRun    bool                   `json:"dry_run" yaml:"dry_run"`
	Duration  string                 `json:"duration" yaml:"duration"`
	Success   bool                   `json:"success" yaml:"success"`
	Summary   []reconcile.SummaryRow `json:"summary" yaml:"summary"`
	Anomalies []reconcile.Anomaly    `json:"anomalies,omitempty" yaml:"anomalies,omitempty"`
	Errors    []string               `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// NewReport builds a Report from one or more results. Nil results are skipped.
func NewReport(results ...*reconcile.Result) Report {
	var merged *reconcile.Result
	for _, res := range results {
		if res == nil {
			continue
		}
		if merged == nil {
			merged = reconcile.NewResult(res.Metadata.RunID, res.Metadata.DryRun)
			merged.Metadata = res.Metadata
		}
		merged.Merge(res)
	}
	if merged == nil {
		return Report{Success: true}
	}

	r := Report{
		RunID:     merged.Metadata.RunID,
		DryRun:    merged.Metadata.DryRun,
		Duration:  merged.Metadata.Duration.Round(time.Millisecond).String(),
		Success:   merged.IsSuccess(),
		Summary:   merged.Summary(),
		Anomalies: merged.Anomalies,
	}
	for _, err := range merged.Errors {
		r.Errors = append(r.Errors, err.Error())
	}
	return r
}

// Table implements Tabular.
func (r Report) Table() Data {
	rows := make([][]string, 0, len(r.Summary))
	for _, s := range r.Summary {
		rows = append(rows, []string{
			string(s.Kind),
			strconv.Itoa(s.Created),
			strconv.Itoa(s.Updated),
			strconv.Itoa(s.Archived),
			strconv.Itoa(s.Skipped),
			strconv.Itoa(s.Failed),
		})
	}
	return Data{
		Headers:         []string{"Kind", "Created", "Updated", "Archived", "Skipped", "Failed"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignRight, AlignRight, AlignRight, AlignRight, AlignRight},
	}
}

// Anomalies is a printable anomaly list.
type Anomalies []reconcile.Anomaly

// Table implements Tabular.
func (a Anomalies) Table() Data {
	rows := make([][]string, 0, len(a))
	for _, an := range a {
		rows = append(rows, []string{string(an.Type), string(an.Kind), an.TrackingID.String(), an.Name, an.Message})
	}
	return Data{
		Headers: []string{"Anomaly", "Kind", "Tracking ID", "Name", "Message"},
		Rows:    rows,
	}
}

// History is a printable list of journal entries.
type History []journal.Entry

// Table implements Tabular.
func (h History) Table() Data {
	rows := make([][]string, 0, len(h))
	for _, e := range h {
		remote := ""
		if e.RemoteID != 0 {
			remote = strconv.Itoa(e.RemoteID)
		}
		action := string(e.Action)
		if e.DryRun {
			action += " (dry run)"
		}
		detail := e.Message
		if e.Error != "" {
			detail = e.Error
		}
		rows = append(rows, []string{
			e.Time.Local().Format(constants.TimeFormatHuman),
			shortRunID(e.RunID),
			string(e.Kind),
			action,
			e.TrackingID.String(),
			remote,
			e.Name,
			detail,
		})
	}
	return Data{
		Headers: []string{"Time", "Run", "Kind", "Action", "Tracking ID", "Remote ID", "Name", "Detail"},
		Rows:    rows,
	}
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
