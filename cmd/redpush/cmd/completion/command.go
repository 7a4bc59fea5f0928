// Package completion provides the shell completion command.
package completion

import (
	"io"

	"github.com/spf13/cobra"
)

// NewCommand creates the completion command. It replaces cobra's generated
// one so the scripts carry descriptions and the help names redpush.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion",
		Short: "Generate shell completion scripts",
		Long: `Generate a completion script for bash, zsh, fish or powershell.

To load completions in your current bash session:

  source <(redpush completion bash)

For zsh, write the script somewhere on $fpath:

  redpush completion zsh > "${fpath[1]}/_redpush"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(shellCommand("bash", func(root *cobra.Command, w io.Writer) error {
		return root.GenBashCompletionV2(w, true)
	}))
	cmd.AddCommand(shellCommand("zsh", func(root *cobra.Command, w io.Writer) error {
		return root.GenZshCompletion(w)
	}))
	cmd.AddCommand(shellCommand("fish", func(root *cobra.Command, w io.Writer) error {
		return root.GenFishCompletion(w, true)
	}))
	cmd.AddCommand(shellCommand("powershell", func(root *cobra.Command, w io.Writer) error {
		return root.GenPowerShellCompletionWithDesc(w)
	}))

	return cmd
}

// shellCommand creates a subcommand printing the script for one shell.
func shellCommand(shell string, generate func(*cobra.Command, io.Writer) error) *cobra.Command {
	return &cobra.Command{
		Use:                   shell,
		Short:                 "Generate " + shell + " completion script",
		Args:                  cobra.NoArgs,
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return generate(cmd.Root(), cmd.OutOrStdout())
		},
	}
}
