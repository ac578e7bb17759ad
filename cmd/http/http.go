package http

import "github.com/spf13/cobra"

// NewHTTPCommand groups the API server commands. The server process also
// hosts the outbox relay, the settlement ticker and the transaction
// subscriber when they are enabled.
func NewHTTPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "http",
		Aliases: []string{"api"},
		Short:   "Run the settlement API",
	}
	cmd.AddCommand(NewStartCommand())
	return cmd
}
