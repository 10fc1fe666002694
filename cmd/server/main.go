package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/timeplus-io/lead-alert-gateway/pkg/config"
)

// @title Lead Alert Gateway API
// @version 1.0
// @description API for assigning new leads, tracking responses and escalating missed SLAs
// @BasePath /api

var (
	configPath string
	cfg        *config.Config
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "lead-alert-gateway",
		Short: "Lead response alerting and escalation service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			config.ConfigureLogging(loaded.Log, os.Getenv("LOG_LEVEL"))
			cfg = loaded
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	root.AddCommand(newServeCommand())
	root.AddCommand(newWorkerCommand())
	root.AddCommand(newTeamMetricsCommand())
	root.AddCommand(newStreamsCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logrus.Fatalf("Command failed: %v", err)
	}
}
