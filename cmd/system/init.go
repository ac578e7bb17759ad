package system

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/franchise_backend/config"
	"github.com/Alijeyrad/franchise_backend/pkg/database"
)

func NewInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the ledger database if it does not exist",
		Long: `init connects to the maintenance database of the configured server and
creates database.dbname plus any extra names under server.databases.
Existing databases are left alone, so it is safe to run on every deploy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
			if err != nil {
				return err
			}
			cfg, err := config.ReadConfigFile(cfgPath)
			if err != nil {
				return err
			}

			if err := database.InitializeDatabases(cfg); err != nil {
				return fmt.Errorf("initialize databases: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database %q ready; run `system migrate` next\n", cfg.Database.DBName)
			return nil
		},
	}
}
