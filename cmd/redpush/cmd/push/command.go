// Package push provides the push command.
package push

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/redpush/internal/cmd/application"
	"github.com/agentstation/redpush/internal/cmd/cmdutil"
	"github.com/agentstation/redpush/internal/cmd/globals"
	"github.com/agentstation/redpush/pkg/sync"
)

// Flags holds the push command flags.
type Flags struct {
	*globals.InputFlags
	Prune    bool
	Parallel int
}

// NewCommand creates the push command using app context.
func NewCommand(app application.Application) *cobra.Command {
	var flags *Flags

	cmd := &cobra.Command{
		Use:     "push",
		Aliases: []string{"load"},
		GroupID: "core",
		Short:   "Create or update declared queries, visualizations and widgets",
		Long: `Push reads a declared YAML file and brings the server in line with it.

For every declared query the command:
• Matches it to a remote query by tracking id, creating it when absent
• Creates or updates each visualization the same way
• Finds or creates every dashboard a visualization is placed on
• Creates the widget, or moves it when it already exists

Queries and visualizations without a tracking id are skipped with a
warning. A failure on one query is reported and the run continues.
With --prune, remote queries that are not declared are archived afterwards.`,
		Example: `  redpush push -i queries.yaml                 # Create or update everything declared
  redpush push -i queries.yaml --dry-run       # Show what would change
  redpush push -i queries.yaml --prune         # Also archive undeclared queries
  redpush push -i queries.yaml --parallel 4    # Reconcile independent queries concurrently`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Execute(cmd, app, flags)
		},
	}

	flags = &Flags{InputFlags: globals.AddInputFlags(cmd, true)}
	cmd.Flags().BoolVar(&flags.Prune, "prune", false,
		"Archive remote queries that are not declared")
	cmd.Flags().IntVar(&flags.Parallel, "parallel", 0,
		"Query groups reconciled concurrently (default from config)")

	return cmd
}

// Execute runs a push with the given flags.
func Execute(cmd *cobra.Command, app application.Application, flags *Flags) error {
	ctx := cmd.Context()
	logger := app.Logger()

	queries, err := cmdutil.LoadDeclared(flags.Input)
	if err != nil {
		return err
	}

	client, err := app.Client()
	if err != nil {
		return err
	}

	logger.Debug().
		Str("input", flags.Input).
		Int("queries", len(queries)).
		Bool("dry_run", flags.DryRun).
		Bool("prune", flags.Prune).
		Msg("Pushing declared queries")

	res, err := client.Push(ctx, queries, options(flags)...)
	if err != nil {
		return err
	}

	if err := cmdutil.PrintResult(cmd.OutOrStdout(), app, res); err != nil {
		return err
	}
	return cmdutil.ResultError("push", res)
}

// options builds push options from the flags.
func options(flags *Flags) []sync.Option {
	opts := []sync.Option{
		sync.WithDryRun(flags.DryRun),
		sync.WithPrune(flags.Prune),
	}
	if flags.Parallel > 0 {
		opts = append(opts, sync.WithParallelism(flags.Parallel))
	}
	return opts
}
