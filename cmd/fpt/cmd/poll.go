package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func pollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run one poll cycle now",
		Long: "Trigger an immediate monitoring cycle on the server. Every due filter is\n" +
			"checked against the providers and the cycle report is printed.",
		Example: `  fpt poll
  fpt poll --output json`,
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient()
			report, err := c.Poll(context.Background())
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(report)
			}
			return printCycle(os.Stdout, report)
		},
	}
}

func analysisCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "analysis",
		Short:   "Recompute price trends now",
		Example: `  fpt analysis`,
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient()
			res, err := c.RunAnalysis(context.Background())
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(res)
			}
			fmt.Printf("Analysis completed: %d trends updated.\n", res.Rows)
			return nil
		},
	}
}

func cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "cleanup",
		Short:   "Expire stale alerts and prune old prices now",
		Example: `  fpt cleanup`,
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient()
			res, err := c.RunCleanup(context.Background())
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(res)
			}
			fmt.Printf("Cleanup completed: %d rows affected.\n", res.Rows)
			return nil
		},
	}
}

func schedulerCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "scheduler",
		Short: "Control the server's job scheduler",
	}

	root.AddCommand(&cobra.Command{
		Use:     "restart",
		Short:   "Wait for running jobs and rebuild the schedule",
		Example: `  fpt scheduler restart`,
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient()
			if err := c.RestartScheduler(context.Background()); err != nil {
				return err
			}
			fmt.Println("Scheduler restarted.")
			return nil
		},
	})

	return root
}
