package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opgate/opgate/internal/integrity"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "opgate",
	Short: "Operation gate with a hash-chained audit ledger",
	Long:  "Gates operations through principle checks and impact scoring before they run.\nEvery decision and outcome lands in an append-only, hash-chained audit ledger.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := integrity.Verify(); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			os.Exit(78) // EX_CONFIG
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to config file (default ~/.opgate/config.yaml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
