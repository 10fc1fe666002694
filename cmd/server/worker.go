package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/worker"

	"github.com/timeplus-io/lead-alert-gateway/pkg/scheduler"
)

func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the Temporal worker that executes escalation workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Scheduler.Backend != "temporal" {
				return fmt.Errorf("worker requires scheduler.backend=temporal, got %q", cfg.Scheduler.Backend)
			}

			a, err := newApp(context.Background(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			w := worker.New(a.temporal, cfg.Scheduler.TaskQueue, worker.Options{})
			scheduler.RegisterWorker(w, a.service.EscalateIfNoResponse)

			logrus.Infof("Worker listening on task queue: %s", cfg.Scheduler.TaskQueue)
			if err := w.Run(worker.InterruptCh()); err != nil {
				return fmt.Errorf("unable to start worker: %w", err)
			}
			return nil
		},
	}
}
