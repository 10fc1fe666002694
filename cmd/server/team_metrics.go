package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func newTeamMetricsCommand() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "team-metrics",
		Short: "Print the team response report as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := a.service.GetTeamResponseMetrics(ctx, days)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(m)
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "report window in days")
	return cmd
}
