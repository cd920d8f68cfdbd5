// Package root contains the root command for the application.
package root

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"fjacquet/budget-import/internal/config"
	"fjacquet/budget-import/internal/logging"
)

var (
	// Log is the shared logger instance for commands
	Log = logging.NewLogrusAdapterFromLogger(logrus.New())

	// Cfg holds the loaded configuration after PersistentPreRun
	Cfg *config.Config

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "budget-import",
		Short: "Import transactions from statements, receipts and email into a ledger.",
		Long: `budget-import extracts financial transactions from bank statement PDFs,
receipt photos and transaction-notification emails, deduplicates them against
the ledger and commits the new ones.`,
		Run: func(cmd *cobra.Command, args []string) {
			Log.Info("Welcome to budget-import!")
			Log.Info("Use --help to see available commands")
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadEnv()

			cfg, err := config.InitializeConfig()
			if err != nil {
				return err
			}
			if providerFlag != "" {
				cfg.Provider = providerFlag
			}
			if ledgerFlag != "" {
				cfg.Ledger.File = ledgerFlag
			}
			Cfg = cfg

			Log = logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format)
			logging.SetDefault(Log)
			return nil
		},
	}

	providerFlag string
	ledgerFlag   string
)

// Init initializes the root command and its persistent flags.
func Init() {
	Cmd.PersistentFlags().StringVar(&providerFlag, "provider", "",
		"extraction provider: remote-llm, local-llm or ocr (overrides config)")
	Cmd.PersistentFlags().StringVar(&ledgerFlag, "ledger", "",
		"path to the ledger YAML file (overrides config)")
}
