package main

import (
	"errors"
	"os"

	"github.com/org/creditledger/internal/records"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "credit",
	Short:         "Credit record CLI",
	Long:          "Submit, list and verify encrypted financial records kept on the credit ledger.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := zerolog.WarnLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		zerolog.SetGlobalLevel(level)

		c, err := loadConfig(configPath())
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := rootCmd.Execute(); err != nil {
		// Declining to sign is a choice, not a failure.
		if errors.Is(err, records.ErrWriteRejected) {
			printSuccess(os.Stdout, describe(err))
			return
		}
		printError(describe(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table", "Output format: table, json")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Sign transactions without asking")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log ledger calls and skipped records")

	rootCmd.AddCommand(walletCmd())
	rootCmd.AddCommand(recordsCmd())
	rootCmd.AddCommand(configCmd())
}
