package timeplus

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/timeplus-io/lead-alert-gateway/pkg/models"
)

// ResponseEventStore appends completed responses to the lead_response_events stream
// and reads them back for team reporting
type ResponseEventStore struct {
	client TimeplusClient
}

// NewResponseEventStore creates a response event store on top of client
func NewResponseEventStore(client TimeplusClient) *ResponseEventStore {
	return &ResponseEventStore{client: client}
}

// Append writes one response event
func (s *ResponseEventStore) Append(ctx context.Context, event models.ResponseEvent) error {
	values := []interface{}{
		event.AlertID,
		event.LeadID,
		event.ResponderID,
		event.ResponderName,
		string(event.Priority),
		event.ResponseSeconds,
		event.WithinTarget,
		event.Escalated,
		event.RespondedAt,
	}
	if err := s.client.InsertIntoStream(ctx, ResponseEventsStream, columnNames(GetResponseEventsSchema()), values); err != nil {
		return fmt.Errorf("failed to append response event for alert %s: %w", event.AlertID, err)
	}
	logrus.Debugf("Appended response event for alert %s (%.1fs)", event.AlertID, event.ResponseSeconds)
	return nil
}

// Since returns all response events with responded_at at or after from, oldest first
func (s *ResponseEventStore) Since(ctx context.Context, from time.Time) ([]models.ResponseEvent, error) {
	rows, err := s.client.ExecuteQuery(ctx, GetResponseEventsSinceQuery(from))
	if err != nil {
		return nil, fmt.Errorf("failed to query response events: %w", err)
	}

	events := make([]models.ResponseEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, models.ResponseEvent{
			AlertID:         getString(row, "alert_id"),
			LeadID:          getString(row, "lead_id"),
			ResponderID:     getString(row, "responder_id"),
			ResponderName:   getString(row, "responder_name"),
			Priority:        models.Priority(getString(row, "priority")),
			ResponseSeconds: getFloat(row, "response_seconds"),
			WithinTarget:    getBool(row, "within_target"),
			Escalated:       getBool(row, "escalated"),
			RespondedAt:     getTime(row, "responded_at"),
		})
	}
	return events, nil
}
