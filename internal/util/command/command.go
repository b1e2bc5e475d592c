package command

import (
	"github.com/spf13/cobra"
)

// NewSubcommandGroup groups related subcommands under a parent command
// that only prints its own help when invoked bare.
func NewSubcommandGroup(name string, subcommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use: name,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}
	cmd.AddCommand(subcommands...)
	return cmd
}
