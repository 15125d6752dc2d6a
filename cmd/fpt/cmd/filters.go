package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	apiclient "github.com/donaldgifford/flight-price-tracker/internal/api/client"
)

func filtersCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "filters",
		Short: "Manage flight filters",
		Long: "Filters describe the flights a user wants (routes, dates, cabin, stops)\n" +
			"and the price that should trigger an alert. Each filter owns one alert.",
	}

	root.AddCommand(
		filtersListCmd(),
		filtersGetCmd(),
		filtersCreateCmd(),
	)

	return root
}

func filtersListCmd() *cobra.Command {
	var opts apiclient.FilterListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List filters",
		Example: `  fpt filters list
  fpt filters list --user u-123 --active`,
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient()
			res, err := c.ListFilters(context.Background(), opts)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(res)
			}
			if len(res.Filters) == 0 {
				fmt.Println("No filters found.")
				return nil
			}
			if err := printFilterTable(os.Stdout, res.Filters); err != nil {
				return err
			}
			fmt.Printf("\nShowing %d of %d filters.\n", len(res.Filters), res.Total)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", "", "only filters owned by this user")
	cmd.Flags().BoolVar(&opts.ActiveOnly, "active", false, "only active filters")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "page size (server default 50)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "page offset")
	return cmd
}

func filtersGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <id>",
		Short:   "Show a filter with its alert and price trend",
		Args:    cobra.ExactArgs(1),
		Example: `  fpt filters get 0b6d0c4e-...`,
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			d, err := c.GetFilter(context.Background(), args[0])
			if err != nil {
				if apiclient.IsNotFound(err) {
					return fmt.Errorf("filter %q not found", args[0])
				}
				return err
			}
			if jsonOutput() {
				return outputJSON(d)
			}
			return printFilterDetail(os.Stdout, d)
		},
	}
}

func filtersCreateCmd() *cobra.Command {
	var (
		file   string
		userID string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a filter from a YAML file",
		Example: `  fpt filters create -f jfk-lhr.yaml

  # jfk-lhr.yaml
  user_id: u-123
  name: London in December
  routes:
    - origin: JFK
      destination: LHR
  depart_date: 2026-12-10T00:00:00Z
  target_price: 450
  currency: USD
  frequency: daily
  channels: [email]
  contact:
    email: traveler@example.com`,
		RunE: func(_ *cobra.Command, _ []string) error {
			req, err := readFilterRequest(file)
			if err != nil {
				return err
			}
			if userID != "" {
				req.UserID = userID
			}

			c := newClient()
			created, err := c.CreateFilter(context.Background(), req)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(created)
			}
			fmt.Printf("Filter created: %s (%s)\n", created.Filter.ID, routesString(created.Filter.Routes))
			fmt.Printf("Alert: %s (%s)\n", created.Alert.ID, created.Alert.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file describing the filter (required)")
	cmd.Flags().StringVar(&userID, "user", "", "override the file's user_id")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readFilterRequest(path string) (*apiclient.FilterRequest, error) {
	if path == "" {
		return nil, errors.New("a filter file is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading filter file: %w", err)
	}

	var req apiclient.FilterRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parsing filter file: %w", err)
	}
	return &req, nil
}
