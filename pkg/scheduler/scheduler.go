package scheduler

import (
	"context"
	"fmt"
	"time"
)

// EscalateFunc runs when an alert's escalation deadline passes. It must be safe to
// call for an alert that already reached a terminal state.
type EscalateFunc func(ctx context.Context, alertID, leadID string) (bool, error)

// Scheduler owns one cancellable delayed escalation task per alert
type Scheduler interface {
	// Schedule arranges for the escalation of alertID after delay. Scheduling an
	// alert that already has a task replaces it.
	Schedule(ctx context.Context, alertID, leadID string, delay time.Duration) error
	// Cancel releases the task of an alert that no longer needs escalation
	Cancel(ctx context.Context, alertID string) error
	// Stop releases all in-process resources
	Stop()
}

// WorkflowID returns the durable task identifier of an alert's escalation
func WorkflowID(alertID string) string {
	return fmt.Sprintf("lead-alert-escalation-%s", alertID)
}
