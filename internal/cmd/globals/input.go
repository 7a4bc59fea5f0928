package globals

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/redpush/pkg/errors"
)

// InputFlags holds the declared file flags shared by push, prune, diff and users.
type InputFlags struct {
	Input  string
	DryRun bool
}

// AddInputFlags adds the -i/--input flag and, when dryRun is set, --dry-run.
func AddInputFlags(cmd *cobra.Command, dryRun bool) *InputFlags {
	flags := &InputFlags{}

	cmd.Flags().StringVarP(&flags.Input, "input", "i", "",
		"Declared YAML file")
	_ = cmd.MarkFlagFilename("input", "yaml", "yml")
	if dryRun {
		cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false,
			"Read from the server and log what would change without writing")
		cmd.Flags().BoolVar(&flags.DryRun, "dry", false, "")
		_ = cmd.Flags().MarkHidden("dry")
	}

	return flags
}

// Validate checks that an input file was given.
func (f *InputFlags) Validate() error {
	if f.Input == "" {
		return errors.NewValidationError("input", "", "an input file is required (-i FILE)")
	}
	return nil
}

// mustGetInt retrieves an integer flag value or panics if the flag doesn't exist.
func mustGetInt(cmd *cobra.Command, name string) int {
	val, err := cmd.Flags().GetInt(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}

// Limit returns the --limit flag, added by AddLimitFlag.
func Limit(cmd *cobra.Command) int {
	return mustGetInt(cmd, "limit")
}

// AddLimitFlag adds -l/--limit with the given default.
func AddLimitFlag(cmd *cobra.Command, def int) {
	cmd.Flags().IntP("limit", "l", def, "Limit number of results")
}
