// Package users provides the users command.
package users

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/redpush/internal/cmd/application"
	"github.com/agentstation/redpush/internal/cmd/globals"
	"github.com/agentstation/redpush/pkg/declared"
	"github.com/agentstation/redpush/pkg/errors"
)

// NewCommand creates the users command using app context.
func NewCommand(app application.Application) *cobra.Command {
	var flags *globals.InputFlags

	cmd := &cobra.Command{
		Use:     "users",
		GroupID: "management",
		Short:   "Create the users listed in a YAML file",
		Long: `Users creates an account for every {name, email} entry in the file.

Creation is best effort: a user that already exists is reported and the
rest of the file is still processed.`,
		Example: `  redpush users -i users.yaml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.Validate(); err != nil {
				return err
			}
			users, err := declared.LoadUsers(flags.Input)
			if err != nil {
				return err
			}
			client, err := app.Client()
			if err != nil {
				return err
			}

			created, errs := client.CreateUsers(cmd.Context(), users)
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d of %d users\n", created, len(users))
			if len(errs) > 0 {
				return fmt.Errorf("%d users not created: %w", len(errs), errors.Join(errs...))
			}
			return nil
		},
	}

	flags = globals.AddInputFlags(cmd, false)

	return cmd
}
