package app

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/redpush/cmd/redpush/cmd/completion"
	"github.com/agentstation/redpush/cmd/redpush/cmd/diff"
	"github.com/agentstation/redpush/cmd/redpush/cmd/dump"
	"github.com/agentstation/redpush/cmd/redpush/cmd/history"
	"github.com/agentstation/redpush/cmd/redpush/cmd/prune"
	"github.com/agentstation/redpush/cmd/redpush/cmd/push"
	"github.com/agentstation/redpush/cmd/redpush/cmd/users"
)

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Core commands
	rootCmd.AddCommand(push.NewCommand(a))
	rootCmd.AddCommand(prune.NewCommand(a))
	rootCmd.AddCommand(dump.NewCommand(a))
	rootCmd.AddCommand(diff.NewCommand(a))

	// Management commands
	rootCmd.AddCommand(users.NewCommand(a))
	rootCmd.AddCommand(history.NewCommand(a))

	// Utility commands
	rootCmd.AddCommand(a.NewVersionCommand())
	rootCmd.AddCommand(completion.NewCommand())
}

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("redpush %s\n", a.version)
			if a.config.Verbose {
				cmd.Printf("  commit:   %s\n", a.commit)
				cmd.Printf("  built:    %s\n", a.date)
				cmd.Printf("  built by: %s\n", a.builtBy)
			}
		},
	}
}
