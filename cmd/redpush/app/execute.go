package app

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/agentstation/redpush/internal/cmd/cmdutil"
	"github.com/agentstation/redpush/internal/cmd/globals"
	"github.com/agentstation/redpush/internal/cmd/output"
	"github.com/agentstation/redpush/pkg/logging"
)

// Execute runs the redpush CLI application with the given arguments.
// This is the main entry point called from main.go.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "redpush",
		Short:   "Declarative queries, visualizations and dashboards for Redash",
		Version: a.version,
		Long: `redpush keeps a Redash server in line with a YAML file of queries,
their visualizations and where those visualizations sit on dashboards.

Every declared resource carries a tracking id that is stored on the
server, so running push again updates what an earlier push created
instead of creating copies.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.AddGroup(&cobra.Group{
		ID:    "core",
		Title: "Core Commands:",
	})

	rootCmd.AddGroup(&cobra.Group{
		ID:    "management",
		Title: "Management Commands:",
	})

	globals.AddFlags(rootCmd)
	rootCmd.PersistentFlags().String("config", "", "config file (default is ./.redpush.yaml or $HOME/.redpush.yaml)")
	rootCmd.PersistentFlags().String("redash-url", "", "Redash server URL (env REDPUSH_REDASH_URL or REDASH_URL)")
	rootCmd.PersistentFlags().String("api-key", "", "Redash API key (env REDPUSH_API_KEY or REDASH_API_KEY)")

	rootCmd.SetVersionTemplate("redpush {{.Version}}\n")

	a.registerCommands(rootCmd)

	return rootCmd
}

// setupCommand is called before any command runs.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	flags, err := globals.Parse(cmd)
	if err != nil {
		return err
	}
	if _, err := output.ParseFormat(flags.Format); err != nil {
		return err
	}

	// An explicit config file replaces what New loaded
	if path := mustGetString(cmd, "config"); path != "" {
		config, err := LoadConfigFile(path)
		if err != nil {
			return err
		}
		a.config = config
	}

	a.config.UpdateFromFlags(flags.Verbose, flags.Quiet, flags.NoColor, flags.Format, flags.LogLevel)
	if url := mustGetString(cmd, "redash-url"); url != "" {
		a.config.RedashURL = url
	}
	if key := mustGetString(cmd, "api-key"); key != "" {
		a.config.APIKey = key
	}

	// Reinitialize logger with updated config
	logger := NewLogger(a.config)
	a.logger = &logger
	logging.SetDefault(logger)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.WithLogger(ctx, a.logger))

	return nil
}

// WriteError prints err and, when one applies, a hint on what to try next.
func WriteError(w io.Writer, err error) {
	fmt.Fprintln(w, err.Error())
	if hint := cmdutil.Hint(err); hint != "" {
		fmt.Fprintln(w, "hint: "+hint)
	}
}

// mustGetString retrieves a string flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}
