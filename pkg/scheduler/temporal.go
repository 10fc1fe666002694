package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// EscalationInput is the argument of one escalation workflow
type EscalationInput struct {
	AlertID string
	LeadID  string
	Delay   time.Duration
}

// WorkflowClient is the part of the Temporal client the scheduler uses
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	CancelWorkflow(ctx context.Context, workflowID string, runID string) error
}

// TemporalScheduler runs each escalation as a Temporal workflow, so pending
// escalations survive process restarts
type TemporalScheduler struct {
	client    WorkflowClient
	taskQueue string
}

// NewTemporalScheduler creates a scheduler that starts workflows on taskQueue
func NewTemporalScheduler(c WorkflowClient, taskQueue string) *TemporalScheduler {
	return &TemporalScheduler{client: c, taskQueue: taskQueue}
}

// Schedule implements Scheduler
func (s *TemporalScheduler) Schedule(ctx context.Context, alertID, leadID string, delay time.Duration) error {
	opts := client.StartWorkflowOptions{
		ID:                       WorkflowID(alertID),
		TaskQueue:                s.taskQueue,
		WorkflowExecutionTimeout: delay + time.Hour,
	}

	run, err := s.client.ExecuteWorkflow(ctx, opts, EscalationWorkflow, EscalationInput{
		AlertID: alertID,
		LeadID:  leadID,
		Delay:   delay,
	})
	if err != nil {
		return fmt.Errorf("failed to start escalation workflow for alert %s: %w", alertID, err)
	}
	if run != nil {
		logrus.Debugf("Started escalation workflow %s (run %s)", run.GetID(), run.GetRunID())
	}
	return nil
}

// Cancel implements Scheduler
func (s *TemporalScheduler) Cancel(ctx context.Context, alertID string) error {
	if err := s.client.CancelWorkflow(ctx, WorkflowID(alertID), ""); err != nil {
		return fmt.Errorf("failed to cancel escalation workflow for alert %s: %w", alertID, err)
	}
	return nil
}

// Stop implements Scheduler. The Temporal client is owned by the caller.
func (s *TemporalScheduler) Stop() {}

// Activities holds the escalation activity and its dependency
type Activities struct {
	Escalate EscalateFunc
}

// EscalateAlert runs the guarded escalation transition
func (a *Activities) EscalateAlert(ctx context.Context, in EscalationInput) (bool, error) {
	return a.Escalate(ctx, in.AlertID, in.LeadID)
}

// EscalationWorkflow sleeps until the deadline, then escalates the alert. Cancelling
// the workflow during the sleep ends it without escalation.
func EscalationWorkflow(ctx workflow.Context, in EscalationInput) (bool, error) {
	logger := workflow.GetLogger(ctx)

	if err := workflow.Sleep(ctx, in.Delay); err != nil {
		logger.Info("Escalation cancelled", "alertID", in.AlertID)
		return false, err
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    5,
		},
	})

	var a *Activities
	var escalated bool
	if err := workflow.ExecuteActivity(ctx, a.EscalateAlert, in).Get(ctx, &escalated); err != nil {
		logger.Error("Escalation activity failed", "alertID", in.AlertID, "error", err)
		return false, err
	}

	logger.Info("Escalation deadline reached", "alertID", in.AlertID, "escalated", escalated)
	return escalated, nil
}

// RegisterWorker registers the escalation workflow and activity on w
func RegisterWorker(w worker.Registry, escalate EscalateFunc) {
	w.RegisterWorkflow(EscalationWorkflow)
	w.RegisterActivity(&Activities{Escalate: escalate})
}
