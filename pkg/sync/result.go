package sync

import (
	"fmt"
	"strings"

	"github.com/agentstation/redpush/pkg/reconcile"
)

// Result represents the complete result of a push run.
type Result struct {
	Push  *reconcile.Result // Reconciliation pass; nil for prune-only runs
	Prune *reconcile.Result // Orphan pass; nil unless pruning was requested

	DryRun bool
}

// Results returns the non-nil passes in run order.
func (sr *Result) Results() []*reconcile.Result {
	var out []*reconcile.Result
	if sr.Push != nil {
		out = append(out, sr.Push)
	}
	if sr.Prune != nil {
		out = append(out, sr.Prune)
	}
	return out
}

// HasChanges returns true if any pass created, updated or archived something.
func (sr *Result) HasChanges() bool {
	for _, r := range sr.Results() {
		if r.HasChanges() {
			return true
		}
	}
	return false
}

// IsSuccess returns true if no resource failed in any pass.
func (sr *Result) IsSuccess() bool {
	for _, r := range sr.Results() {
		if !r.IsSuccess() {
			return false
		}
	}
	return true
}

// Errors returns every per-resource failure across passes.
func (sr *Result) Errors() []error {
	var errs []error
	for _, r := range sr.Results() {
		errs = append(errs, r.Errors...)
	}
	return errs
}

// Summary returns a human-readable summary of the push result.
func (sr *Result) Summary() string {
	if !sr.HasChanges() && sr.IsSuccess() {
		if sr.DryRun {
			return "(Dry run) No changes"
		}
		return "No changes"
	}

	var parts []string
	if sr.DryRun {
		parts = append(parts, "(Dry run)")
	}
	if sr.Push != nil {
		for _, kind := range reconcile.Kinds() {
			created := sr.Push.Count(kind, reconcile.ActionCreate)
			updated := sr.Push.Count(kind, reconcile.ActionUpdate)
			if created+updated == 0 {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s: %d created, %d updated", kind, created, updated))
		}
	}
	if sr.Prune != nil {
		if n := sr.Prune.Count(reconcile.KindQuery, reconcile.ActionArchive); n > 0 {
			parts = append(parts, fmt.Sprintf("queries archived: %d", n))
		}
	}
	if errs := sr.Errors(); len(errs) > 0 {
		parts = append(parts, fmt.Sprintf("failures: %d", len(errs)))
	}
	return strings.Join(parts, "; ")
}
