package timeplus

import (
	"context"
	"fmt"

	"github.com/timeplus-io/lead-alert-gateway/pkg/models"
)

// AlertEventStore keeps the lifecycle audit trail in the lead_alert_events stream.
// Alert records expire from the state store after an hour; this stream does not.
type AlertEventStore struct {
	client TimeplusClient
}

// NewAlertEventStore creates an audit store on top of client
func NewAlertEventStore(client TimeplusClient) *AlertEventStore {
	return &AlertEventStore{client: client}
}

// AppendAlertEvent writes one transition
func (s *AlertEventStore) AppendAlertEvent(ctx context.Context, event models.AlertEvent) error {
	values := []interface{}{
		event.AlertID,
		event.LeadID,
		event.Event,
		string(event.Status),
		string(event.Priority),
		event.ActorID,
		event.AssignedTo,
		event.OccurredAt,
	}
	if err := s.client.InsertIntoStream(ctx, AlertEventsStream, columnNames(GetAlertEventsSchema()), values); err != nil {
		return fmt.Errorf("failed to append %s for alert %s: %w", event.Event, event.AlertID, err)
	}
	return nil
}

// History returns the recorded transitions of one alert, oldest first
func (s *AlertEventStore) History(ctx context.Context, alertID string) ([]models.AlertEvent, error) {
	rows, err := s.client.ExecuteQuery(ctx, GetAlertHistoryQuery(alertID))
	if err != nil {
		return nil, fmt.Errorf("failed to query history of alert %s: %w", alertID, err)
	}

	events := make([]models.AlertEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, models.AlertEvent{
			AlertID:    getString(row, "alert_id"),
			LeadID:     getString(row, "lead_id"),
			Event:      getString(row, "event"),
			Status:     models.AlertStatus(getString(row, "status")),
			Priority:   models.Priority(getString(row, "priority")),
			ActorID:    getString(row, "actor_id"),
			AssignedTo: getString(row, "assigned_to"),
			OccurredAt: getTime(row, "occurred_at"),
		})
	}
	return events, nil
}
