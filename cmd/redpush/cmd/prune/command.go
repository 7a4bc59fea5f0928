// Package prune provides the prune command.
package prune

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/redpush/internal/cmd/application"
	"github.com/agentstation/redpush/internal/cmd/cmdutil"
	"github.com/agentstation/redpush/internal/cmd/globals"
	"github.com/agentstation/redpush/pkg/sync"
)

// NewCommand creates the prune command using app context.
func NewCommand(app application.Application) *cobra.Command {
	var flags *globals.InputFlags

	cmd := &cobra.Command{
		Use:     "prune",
		GroupID: "core",
		Short:   "Archive remote queries that are not declared",
		Long: `Prune archives every remote query whose tracking id is missing or is not
in the declared file. Nothing is created or updated.

This is destructive: a query left out of the file by mistake is archived.
Run with --dry-run first.`,
		Example: `  redpush prune -i queries.yaml --dry-run      # List what would be archived
  redpush prune -i queries.yaml                # Archive undeclared queries`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			queries, err := cmdutil.LoadDeclared(flags.Input)
			if err != nil {
				return err
			}
			client, err := app.Client()
			if err != nil {
				return err
			}

			res, err := client.Prune(cmd.Context(), queries, sync.WithDryRun(flags.DryRun))
			if err != nil {
				return err
			}
			if err := cmdutil.PrintResult(cmd.OutOrStdout(), app, res); err != nil {
				return err
			}
			return cmdutil.ResultError("prune", res)
		},
	}

	flags = globals.AddInputFlags(cmd, true)

	return cmd
}
