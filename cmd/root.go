package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	httpcmd "github.com/Alijeyrad/franchise_backend/cmd/http"
	settlementcmd "github.com/Alijeyrad/franchise_backend/cmd/settlement"
	systemcmd "github.com/Alijeyrad/franchise_backend/cmd/system"
)

var (
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "franchise",
	Short: "Commission distribution and settlement engine for franchise networks.",
	Long: `franchise splits every chargeable event across the tiers of a franchise
network (HQ down to dealer, plus influencers) and turns accumulated earnings
into settlements that HQ approves and pays out.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global config flag, available for all commands.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")

	// Attach top-level command trees.
	rootCmd.AddCommand(systemcmd.NewSystemCommand())
	rootCmd.AddCommand(httpcmd.NewHTTPCommand())
	rootCmd.AddCommand(settlementcmd.NewSettlementCommand())
}
