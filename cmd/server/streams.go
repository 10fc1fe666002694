package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/timeplus-io/lead-alert-gateway/pkg/timeplus"
)

func newStreamsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "streams",
		Short: "Manage the Timeplus response and audit streams",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "setup",
		Short: "Create the streams if they are missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTimeplus(func(ctx context.Context, client *timeplus.Client) error {
				return timeplus.SetupStreams(ctx, client)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "drop",
		Short: "Drop the streams and every recorded event",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTimeplus(func(ctx context.Context, client *timeplus.Client) error {
				for _, stream := range []string{timeplus.ResponseEventsStream, timeplus.AlertEventsStream} {
					if err := client.DeleteStream(ctx, stream); err != nil {
						return err
					}
					logrus.Infof("Dropped stream %s", stream)
				}
				return nil
			})
		},
	})

	return cmd
}

func withTimeplus(fn func(ctx context.Context, client *timeplus.Client) error) error {
	if !cfg.Timeplus.Enabled {
		return fmt.Errorf("timeplus.enabled is false")
	}

	client, err := timeplus.NewClient(&cfg.Timeplus)
	if err != nil {
		return fmt.Errorf("failed to create Timeplus client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return fn(ctx, client)
}
