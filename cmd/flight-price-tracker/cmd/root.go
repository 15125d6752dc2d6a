// Package cmd implements the CLI commands for flight-price-tracker.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/flight-price-tracker/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "flight-price-tracker",
	Short: "Monitor flight prices and alert on price breaks",
	Long: "An API-first service that polls flight price providers on a tiered schedule,\n" +
		"aggregates their quotes, evaluates user filters, and notifies users when a\n" +
		"price drops below their target.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
	rootCmd.AddCommand(versionCommand())
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads .env into the environment and then the YAML config.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
