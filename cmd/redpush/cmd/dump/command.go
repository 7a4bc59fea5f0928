// Package dump provides the dump command.
package dump

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/redpush/internal/cmd/application"
	"github.com/agentstation/redpush/pkg/declared"
)

// Flags holds the dump command flags.
type Flags struct {
	Output         string
	Visualizations bool
}

// NewCommand creates the dump command using app context.
func NewCommand(app application.Application) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "dump",
		GroupID: "core",
		Short:   "Write the server's queries as a declared YAML file",
		Long: `Dump lists every query on the server and writes it in the declared file
format. Tracking ids stored on the server become trackingId keys.

Query listings do not include visualizations; with --visualizations each
query is fetched on its own so they are included.`,
		Example: `  redpush dump -o queries.yaml                 # Queries only
  redpush dump -o queries.yaml -V              # Queries with their visualizations
  redpush dump                                 # Print to stdout`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}

			queries, dumpErr := client.Dump(cmd.Context(), flags.Visualizations)
			if queries == nil && dumpErr != nil {
				return dumpErr
			}

			// Partial dumps are still written; the fetch errors decide the exit.
			if flags.Output == "" {
				if err := declared.Write(cmd.OutOrStdout(), queries); err != nil {
					return err
				}
				return dumpErr
			}
			if err := declared.Save(flags.Output, queries); err != nil {
				return err
			}
			app.Logger().Info().
				Str("path", flags.Output).
				Int("queries", len(queries)).
				Msg("Wrote declared file")
			return dumpErr
		},
	}

	cmd.Flags().StringVarP(&flags.Output, "output", "o", "",
		"File to write (default stdout)")
	cmd.Flags().BoolVarP(&flags.Visualizations, "visualizations", "V", false,
		"Fetch each query in full to include its visualizations")

	return cmd
}
