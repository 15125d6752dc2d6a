package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/flight-price-tracker/pkg/logger"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run one poll cycle and exit",
	Long: "Run a single monitoring cycle against the configured store and providers\n" +
		"without starting the HTTP server, then print the cycle report as JSON.",
	RunE: runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)
}

func runPoll(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Schedule.JobTimeout)
	defer cancel()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.scheduler.RunMonitoring(ctx)
	if err != nil {
		return fmt.Errorf("running poll cycle: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
