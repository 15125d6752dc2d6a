package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	apiclient "github.com/donaldgifford/flight-price-tracker/internal/api/client"
)

func alertsCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "alerts",
		Short: "Inspect and control price alerts",
		Long: "Every filter owns one alert. Alerts move between active, triggered,\n" +
			"paused, and expired as prices change or an operator intervenes.",
	}

	root.AddCommand(
		alertsListCmd(),
		alertsGetCmd(),
		alertsHistoryCmd(),
		alertActionCmd(apiclient.ActionPause, "Pause an alert so it is no longer checked"),
		alertActionCmd(apiclient.ActionResume, "Resume a paused alert"),
		alertActionCmd(apiclient.ActionReset, "Re-arm a triggered alert"),
		alertActionCmd(apiclient.ActionExpire, "Expire an alert permanently"),
	)

	return root
}

func alertsListCmd() *cobra.Command {
	var (
		opts     apiclient.AlertListOptions
		statuses string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List alerts",
		Example: `  fpt alerts list
  fpt alerts list --status triggered,paused --order-by quality_score`,
		RunE: func(_ *cobra.Command, _ []string) error {
			if statuses != "" {
				opts.Statuses = strings.Split(statuses, ",")
			}
			c := newClient()
			res, err := c.ListAlerts(context.Background(), opts)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(res)
			}
			if len(res.Alerts) == 0 {
				fmt.Println("No alerts found.")
				return nil
			}
			if err := printAlertTable(os.Stdout, res.Alerts); err != nil {
				return err
			}
			fmt.Printf("\nShowing %d of %d alerts.\n", len(res.Alerts), res.Total)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", "", "only alerts owned by this user")
	cmd.Flags().StringVar(&opts.FilterID, "filter", "", "only the alert for this filter")
	cmd.Flags().StringVar(&statuses, "status", "", "comma-separated statuses")
	cmd.Flags().StringVar(&opts.OrderBy, "order-by", "", "sort field (updated_at, quality_score, current_price)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "page size (server default 50)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "page offset")
	return cmd
}

func alertsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			a, err := c.GetAlert(context.Background(), args[0])
			if err != nil {
				if apiclient.IsNotFound(err) {
					return fmt.Errorf("alert %q not found", args[0])
				}
				return err
			}
			if jsonOutput() {
				return outputJSON(a)
			}
			return printAlertDetail(os.Stdout, a)
		},
	}
}

func alertsHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show an alert's transitions and notification deliveries",
		Args:  cobra.ExactArgs(1),
		Example: `  fpt alerts history 7f1e... --limit 10`,
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			h, err := c.GetAlertHistory(context.Background(), args[0], limit)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(h)
			}
			return printAlertHistory(os.Stdout, h)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum entries of each kind (server default 50)")
	return cmd
}

func alertActionCmd(action, short string) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:     action + " <id>",
		Short:   short,
		Args:    cobra.ExactArgs(1),
		Example: fmt.Sprintf("  fpt alerts %s 7f1e... --reason \"trip cancelled\"", action),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			a, err := c.AlertAction(context.Background(), args[0], action, reason)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(a)
			}
			fmt.Printf("Alert %s is now %s.\n", a.ID, a.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the alert history")
	return cmd
}
