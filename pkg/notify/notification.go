package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/timeplus-io/lead-alert-gateway/pkg/models"
)

// Notification types
const (
	TypeNewLeadAlert    = "new_lead_alert"
	TypeLeadEscalation  = "lead_escalation"
	TypeResponseSuccess = "lead_response_success"
)

// Notification is one message to staff through a set of channels
type Notification struct {
	Type       string                 `json:"type"`
	AlertID    string                 `json:"alertId"`
	LeadID     string                 `json:"leadId"`
	Priority   models.Priority        `json:"priority"`
	Recipients []string               `json:"recipients"`
	Channels   []string               `json:"channels"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	SentAt     time.Time              `json:"sentAt"`
}

// Dispatcher delivers notifications. Delivery mechanics are owned by the provider
// behind it.
type Dispatcher interface {
	Send(ctx context.Context, n Notification) error
}

// Publisher pushes live-update events to connected UIs
type Publisher interface {
	Publish(ctx context.Context, topic, event string, payload interface{}) error
}

// LogDispatcher writes notifications to the log instead of delivering them
type LogDispatcher struct{}

// Send implements Dispatcher
func (LogDispatcher) Send(ctx context.Context, n Notification) error {
	logrus.WithFields(logrus.Fields{
		"type":       n.Type,
		"alert_id":   n.AlertID,
		"priority":   n.Priority,
		"recipients": n.Recipients,
		"channels":   n.Channels,
	}).Info("Notification")
	return nil
}

// LogPublisher writes live-update events to the log
type LogPublisher struct{}

// Publish implements Publisher
func (LogPublisher) Publish(ctx context.Context, topic, event string, payload interface{}) error {
	logrus.WithFields(logrus.Fields{
		"topic": topic,
		"event": event,
	}).Debug("Live update")
	return nil
}
