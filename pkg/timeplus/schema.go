package timeplus

import (
	"fmt"
	"time"
)

// Stream names
const (
	// ResponseEventsStream is the append-only stream of completed lead responses
	ResponseEventsStream = "lead_response_events"

	// AlertEventsStream is the audit stream of alert lifecycle transitions
	AlertEventsStream = "lead_alert_events"
)

// timeLayout is the datetime64(3) literal format accepted by Timeplus
const timeLayout = "2006-01-02 15:04:05.000"

// GetResponseEventsSchema returns the schema for the response events stream
func GetResponseEventsSchema() []Column {
	return []Column{
		{Name: "alert_id", Type: "string"},
		{Name: "lead_id", Type: "string"},
		{Name: "responder_id", Type: "string"},
		{Name: "responder_name", Type: "string"},
		{Name: "priority", Type: "string"},
		{Name: "response_seconds", Type: "float64"},
		{Name: "within_target", Type: "bool"},
		{Name: "escalated", Type: "bool"},
		{Name: "responded_at", Type: "datetime64(3)"},
	}
}

// GetAlertEventsSchema returns the schema for the alert audit stream
func GetAlertEventsSchema() []Column {
	return []Column{
		{Name: "alert_id", Type: "string"},
		{Name: "lead_id", Type: "string"},
		{Name: "event", Type: "string"},
		{Name: "status", Type: "string"},
		{Name: "priority", Type: "string"},
		{Name: "actor_id", Type: "string"},
		{Name: "assigned_to", Type: "string"},
		{Name: "occurred_at", Type: "datetime64(3)"},
	}
}

// columnNames returns the names of a schema in order
func columnNames(schema []Column) []string {
	names := make([]string, len(schema))
	for i, col := range schema {
		names[i] = col.Name
	}
	return names
}

// GetResponseEventsSinceQuery returns a historical query over response events at or after from
func GetResponseEventsSinceQuery(from time.Time) string {
	return fmt.Sprintf(`SELECT alert_id, lead_id, responder_id, responder_name, priority,
       response_seconds, within_target, escalated, responded_at
FROM table(%s)
WHERE responded_at >= to_datetime64('%s', 3)
ORDER BY responded_at`,
		ResponseEventsStream, from.UTC().Format(timeLayout))
}

// GetAlertHistoryQuery returns a historical query over the audit trail of one alert
func GetAlertHistoryQuery(alertID string) string {
	return fmt.Sprintf(`SELECT alert_id, lead_id, event, status, priority, actor_id, assigned_to, occurred_at
FROM table(%s)
WHERE alert_id = '%s'
ORDER BY occurred_at`,
		AlertEventsStream, escapeString(alertID))
}
