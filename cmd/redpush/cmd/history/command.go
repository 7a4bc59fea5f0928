// Package history provides the history command.
package history

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/redpush/internal/cmd/application"
	"github.com/agentstation/redpush/internal/cmd/cmdutil"
	"github.com/agentstation/redpush/internal/cmd/globals"
	"github.com/agentstation/redpush/internal/cmd/output"
	"github.com/agentstation/redpush/pkg/constants"
)

// NewCommand creates the history command using app context.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		GroupID: "management",
		Short:   "List journaled actions, newest first",
		Long: `History reads the apply journal, an SQLite file recording every action
each run took. Set journal in the config file or REDPUSH_JOURNAL to enable it.`,
		Example: `  redpush history                              # Last 50 actions
  redpush history -l 200 --format json         # More, as JSON`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}

			entries, err := client.History(cmd.Context(), globals.Limit(cmd))
			if err != nil {
				return err
			}
			return output.NewFormatter(cmdutil.Format(app)).Format(cmd.OutOrStdout(), output.History(entries))
		},
	}

	globals.AddLimitFlag(cmd, constants.DefaultHistoryLimit)

	return cmd
}
