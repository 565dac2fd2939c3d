package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cnpj-finder/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "cnpj-finder",
	Short: "Find CNPJ identifiers for a spreadsheet of companies",
	Long:  "Searches public CNPJ directories through the Serper API for each company row and writes an annotated spreadsheet with the identifier found.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
