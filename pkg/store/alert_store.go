package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timeplus-io/lead-alert-gateway/pkg/models"
)

// maxCASAttempts bounds how often UpdateIfStatus retries after losing a race whose
// new pre-state still admits the transition
const maxCASAttempts = 3

// Mutator edits a copy of the stored alert. It is only called when the stored status
// is one of the allowed pre-states.
type Mutator func(alert *models.Alert) error

// AlertStore holds one record per in-flight alert, keyed by alert ID.
// Records expire a fixed TTL after creation regardless of state.
type AlertStore interface {
	// Create stores a new alert. It fails if an alert with the same ID exists.
	Create(ctx context.Context, alert *models.Alert, ttl time.Duration) error
	// Get returns a copy of the alert or models.ErrAlertNotFound
	Get(ctx context.Context, alertID string) (*models.Alert, error)
	// UpdateIfStatus applies mutate only if the stored status is one of allowed, and
	// writes the result conditionally on the status it was computed from. A stored
	// status outside allowed yields models.ErrStaleState.
	UpdateIfStatus(ctx context.Context, alertID string, allowed []models.AlertStatus, mutate Mutator) (*models.Alert, error)
}

// ErrAlertExists is returned by Create when the alert ID is already stored
var ErrAlertExists = errors.New("alert already exists")

func statusAllowed(status models.AlertStatus, allowed []models.AlertStatus) bool {
	for _, s := range allowed {
		if s == status {
			return true
		}
	}
	return false
}

// applyMutation runs mutate on a copy of current and validates the resulting move
func applyMutation(current *models.Alert, mutate Mutator) (*models.Alert, error) {
	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	if next.ID != current.ID {
		return nil, fmt.Errorf("mutation changed alert ID %s: %w", current.ID, models.ErrInvalidTransition)
	}
	if next.Status != current.Status && !current.Status.CanTransitionTo(next.Status) {
		return nil, fmt.Errorf("%s -> %s: %w", current.Status, next.Status, models.ErrInvalidTransition)
	}
	return next, nil
}
