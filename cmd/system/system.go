package system

import "github.com/spf13/cobra"

func NewSystemCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "system",
		Short: "Database setup, bootstrap and tooling commands",
	}

	cmd.AddCommand(NewInitCommand())
	cmd.AddCommand(NewMigrateCommand())
	cmd.AddCommand(NewSeedCommand())
	cmd.AddCommand(NewGenDocsCommand())

	return cmd
}
