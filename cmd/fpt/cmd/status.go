package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [job]",
		Short: "Show scheduler and job status",
		Long: "Show whether the scheduler is running, the state of each background job,\n" +
			"and a summary of the most recent poll cycle. Pass a job name to see\n" +
			"just that job.",
		Args: cobra.MaximumNArgs(1),
		Example: `  fpt status
  fpt status monitoring
  fpt status --output json`,
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			ctx := context.Background()

			if len(args) == 1 {
				st, err := c.GetJobStatus(ctx, args[0])
				if err != nil {
					return err
				}
				if jsonOutput() {
					return outputJSON(st)
				}
				if err := printJobStatusTable(os.Stdout, []domain.JobStatus{st.Job}); err != nil {
					return err
				}
				if st.LastCycle != nil {
					fmt.Println()
					return printCycle(os.Stdout, st.LastCycle)
				}
				return nil
			}

			st, err := c.GetStatus(ctx)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(st)
			}

			state := "stopped"
			if st.SchedulerRunning {
				state = "running"
			}
			fmt.Printf("Scheduler: %s\n\n", state)
			if err := printJobStatusTable(os.Stdout, st.Jobs); err != nil {
				return err
			}
			if st.LastCycle != nil {
				fmt.Println("\nLast poll cycle:")
				return printCycle(os.Stdout, st.LastCycle)
			}
			return nil
		},
	}
}
