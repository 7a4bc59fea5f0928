// Package differ compares declared queries with the server's queries, or
// with another declared file, by tracking id.
package differ

import (
	"fmt"
	"io"
	"strings"

	"github.com/agentstation/redpush/pkg/resources"
)

// ChangeType represents the type of change.
type ChangeType string

const (
	// ChangeTypeAdd indicates an item was added.
	ChangeTypeAdd ChangeType = "add"
	// ChangeTypeUpdate indicates an item was updated.
	ChangeTypeUpdate ChangeType = "update"
	// ChangeTypeRemove indicates an item was removed.
	ChangeTypeRemove ChangeType = "remove"
)

// FieldChange represents a change to a specific field.
type FieldChange struct {
	Path     string     `json:"path" yaml:"path"`         // Field path (e.g., "visualizations[chart].name")
	OldValue string     `json:"old,omitempty" yaml:"old"` // Previous value (string representation)
	NewValue string     `json:"new,omitempty" yaml:"new"` // New value (string representation)
	Type     ChangeType `json:"type" yaml:"type"`
}

// QueryUpdate represents an update to an existing query.
type QueryUpdate struct {
	TrackingID resources.TrackingID `json:"tracking_id" yaml:"tracking_id"`
	Existing   resources.Query      `json:"-" yaml:"-"`
	New        resources.Query      `json:"-" yaml:"-"`
	Changes    []FieldChange        `json:"changes" yaml:"changes"`
}

// Changeset represents the changes a push of the declared queries would make.
type Changeset struct {
	Added     []resources.Query `json:"added" yaml:"added"`         // Declared, not on the existing side
	Updated   []QueryUpdate     `json:"updated" yaml:"updated"`     // On both sides, different
	Removed   []resources.Query `json:"removed" yaml:"removed"`     // Existing only; archived by a prune
	Untracked int               `json:"untracked" yaml:"untracked"` // Declared queries without a tracking id
	Summary   ChangesetSummary  `json:"summary" yaml:"summary"`
}

// ChangesetSummary provides summary statistics for a changeset.
type ChangesetSummary struct {
	Added        int `json:"added" yaml:"added"`
	Updated      int `json:"updated" yaml:"updated"`
	Removed      int `json:"removed" yaml:"removed"`
	TotalChanges int `json:"total" yaml:"total"`
}

func (c *Changeset) summarize() {
	c.Summary = ChangesetSummary{
		Added:        len(c.Added),
		Updated:      len(c.Updated),
		Removed:      len(c.Removed),
		TotalChanges: len(c.Added) + len(c.Updated) + len(c.Removed),
	}
}

// HasChanges returns true if the changeset contains any changes.
func (c *Changeset) HasChanges() bool {
	return c.Summary.TotalChanges > 0
}

// IsEmpty returns true if the changeset contains no changes.
func (c *Changeset) IsEmpty() bool {
	return c.Summary.TotalChanges == 0
}

// String returns a human-readable summary of the changeset.
func (c *Changeset) String() string {
	if c.IsEmpty() {
		return "No changes detected"
	}

	var parts []string
	if n := len(c.Added); n > 0 {
		parts = append(parts, fmt.Sprintf("%d added", n))
	}
	if n := len(c.Updated); n > 0 {
		parts = append(parts, fmt.Sprintf("%d updated", n))
	}
	if n := len(c.Removed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", n))
	}
	return fmt.Sprintf("Queries: %s (Total: %d changes)", strings.Join(parts, ", "), c.Summary.TotalChanges)
}

// Print writes a detailed, human-readable view of the changeset to w.
func (c *Changeset) Print(w io.Writer) {
	fmt.Fprintln(w, c.String())
	if c.IsEmpty() {
		return
	}
	fmt.Fprintln(w, strings.Repeat("─", 80))

	if len(c.Added) > 0 {
		fmt.Fprintf(w, "\n➕ Added Queries (%d):\n", len(c.Added))
		for _, q := range c.Added {
			fmt.Fprintf(w, "  • %s (%s)\n", q.TrackingID, q.Name)
		}
	}

	if len(c.Updated) > 0 {
		fmt.Fprintf(w, "\n🔄 Updated Queries (%d):\n", len(c.Updated))
		for _, update := range c.Updated {
			fmt.Fprintf(w, "  • %s:\n", update.TrackingID)
			for _, change := range update.Changes {
				switch change.Type {
				case ChangeTypeAdd:
					fmt.Fprintf(w, "    + %s: %s\n", change.Path, change.NewValue)
				case ChangeTypeRemove:
					fmt.Fprintf(w, "    - %s: %s\n", change.Path, change.OldValue)
				default:
					fmt.Fprintf(w, "    - %s: %s → %s\n", change.Path, change.OldValue, change.NewValue)
				}
			}
		}
	}

	if len(c.Removed) > 0 {
		fmt.Fprintf(w, "\n⚠️  Removed Queries (%d):\n", len(c.Removed))
		for _, q := range c.Removed {
			label := q.Label()
			if q.Name != "" && q.Name != label {
				label += " (" + q.Name + ")"
			}
			fmt.Fprintf(w, "  • %s\n", label)
		}
	}

	if c.Untracked > 0 {
		fmt.Fprintf(w, "\n%d declared queries have no tracking id and would be skipped\n", c.Untracked)
	}
}
