package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	apiclient "github.com/donaldgifford/flight-price-tracker/internal/api/client"
)

func jobsCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect scheduled job runs",
		Long: "Every monitoring, analysis, and cleanup run is recorded with its status,\n" +
			"rows affected, and error text. Runs left open by a crash show as crashed.",
	}
	root.AddCommand(jobsListCmd(), jobsHistoryCmd())
	return root
}

func jobsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "Latest run of each job",
		Example: "  fpt jobs list\n  fpt jobs list -o json",
		RunE: func(_ *cobra.Command, _ []string) error {
			out, err := newClient().ListJobs(context.Background())
			if err != nil {
				return err
			}
			return printJobRuns(out, "No job has run yet.")
		},
	}
}

func jobsHistoryCmd() *cobra.Command {
	var hq apiclient.HistoryQuery

	cmd := &cobra.Command{
		Use:       "history <monitoring|analysis|cleanup>",
		Short:     "Run history for one job",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"monitoring", "analysis", "cleanup"},
		Example:   "  fpt jobs history monitoring\n  fpt jobs history cleanup --status failed --limit 50",
		RunE: func(_ *cobra.Command, args []string) error {
			out, err := newClient().GetJobHistory(context.Background(), args[0], hq)
			if err != nil {
				return err
			}
			return printJobRuns(out, fmt.Sprintf("No matching runs for %s.", args[0]))
		},
	}

	cmd.Flags().IntVar(&hq.Limit, "limit", 0, "runs to scan, newest first (server default 20)")
	cmd.Flags().StringVar(&hq.Status, "status", "", "only runs with this status (running|succeeded|failed|crashed)")
	return cmd
}

func printJobRuns(out *apiclient.JobRuns, empty string) error {
	if jsonOutput() {
		return outputJSON(out)
	}
	if len(out.Runs) == 0 {
		fmt.Println(empty)
		return nil
	}
	if err := printJobRunsTable(os.Stdout, out.Runs); err != nil {
		return err
	}
	if out.Failures > 0 {
		fmt.Printf("\n%d failed or crashed\n", out.Failures)
	}
	return nil
}
