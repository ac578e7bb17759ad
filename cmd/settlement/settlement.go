package settlement

import "github.com/spf13/cobra"

func NewSettlementCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settlement",
		Short: "Settlement batch commands",
	}

	cmd.AddCommand(NewRunCommand())

	return cmd
}
