// Package diff provides the diff command.
package diff

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/redpush"
	"github.com/agentstation/redpush/internal/cmd/application"
	"github.com/agentstation/redpush/internal/cmd/cmdutil"
	"github.com/agentstation/redpush/internal/cmd/globals"
	"github.com/agentstation/redpush/internal/cmd/output"
	"github.com/agentstation/redpush/pkg/declared"
	"github.com/agentstation/redpush/pkg/differ"
)

// Flags holds the diff command flags.
type Flags struct {
	*globals.InputFlags
	Against string
	Stat    bool
}

// NewCommand creates the diff command using app context.
func NewCommand(app application.Application) *cobra.Command {
	var flags *Flags

	cmd := &cobra.Command{
		Use:     "diff",
		GroupID: "core",
		Short:   "Show how a declared file differs from the server",
		Long: `Diff canonicalizes both sides, sorting queries by tracking id and every
record's keys, and prints a unified diff followed by the changeset a push
with --prune would apply.

With --against the declared file is compared with a second file instead
of the server.`,
		Example: `  redpush diff -i queries.yaml                 # Compare with the server
  redpush diff -i new.yaml --against old.yaml  # Compare two files
  redpush diff -i queries.yaml --stat          # Only print diff statistics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Execute(cmd, app, flags)
		},
	}

	flags = &Flags{InputFlags: globals.AddInputFlags(cmd, false)}
	cmd.Flags().StringVar(&flags.Against, "against", "",
		"Compare with this file instead of the server")
	cmd.Flags().BoolVar(&flags.Stat, "stat", false,
		"Only print hunk and line statistics")

	return cmd
}

// Execute runs a diff with the given flags.
func Execute(cmd *cobra.Command, app application.Application, flags *Flags) error {
	queries, err := cmdutil.LoadDeclared(flags.Input)
	if err != nil {
		return err
	}

	var d *redpush.Diff
	if flags.Against != "" {
		existing, err := declared.Load(flags.Against)
		if err != nil {
			return err
		}
		d, err = redpush.Compare(existing, queries, flags.Against, flags.Input)
		if err != nil {
			return err
		}
	} else {
		client, err := app.Client()
		if err != nil {
			return err
		}
		if d, err = client.Diff(cmd.Context(), queries); err != nil {
			return err
		}
	}

	w := cmd.OutOrStdout()
	format := cmdutil.Format(app)
	if format != output.FormatTable {
		return output.NewFormatter(format).Format(w, d)
	}

	if flags.Stat {
		_, err = fmt.Fprintln(w, d.Stats.String())
		return err
	}
	if d.Unified != "" {
		if err := differ.Colorize(w, d.Unified, app.NoColor()); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	d.Changeset.Print(w)
	return nil
}
