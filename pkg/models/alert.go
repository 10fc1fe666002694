package models

import (
	"time"
)

// Priority is the urgency tier of a lead alert
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// AlertStatus represents the current state of a lead alert
type AlertStatus string

const (
	AlertStatusPending      AlertStatus = "pending"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusEscalated    AlertStatus = "escalated"
	AlertStatusResponded    AlertStatus = "responded"
)

// statusRank orders states so that transitions can only move forward.
// Acknowledged and escalated are siblings: escalated is reachable from acknowledged,
// never the reverse.
var statusRank = map[AlertStatus]int{
	AlertStatusPending:      0,
	AlertStatusAcknowledged: 1,
	AlertStatusEscalated:    2,
	AlertStatusResponded:    3,
}

// IsTerminal reports whether no further transition is allowed
func (s AlertStatus) IsTerminal() bool {
	return s == AlertStatusResponded
}

// Valid reports whether s is a known status
func (s AlertStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransitionTo reports whether moving from s to next is a forward move allowed by
// the lifecycle: pending -> acknowledged|escalated|responded,
// acknowledged -> escalated|responded, escalated -> responded.
func (s AlertStatus) CanTransitionTo(next AlertStatus) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from
}

// LeadSnapshot is a point-in-time copy of the lead fields an alert needs.
// It is never re-read from the CRM during the alert's life.
type LeadSnapshot struct {
	Name        string  `json:"name"`
	Phone       string  `json:"phone,omitempty"`
	Email       string  `json:"email,omitempty"`
	Source      string  `json:"source,omitempty"`
	ProjectType string  `json:"projectType,omitempty"`
	Score       float64 `json:"score"`
}

// Alert is one lead's in-flight response obligation
type Alert struct {
	ID              string       `json:"id"`
	LeadID          string       `json:"leadId"`
	Lead            LeadSnapshot `json:"lead"`
	Priority        Priority     `json:"priority"`
	Status          AlertStatus  `json:"status"`
	AssignedTo      string       `json:"assignedTo"`
	AssignedToName  string       `json:"assignedToName"`
	CreatedAt       time.Time    `json:"createdAt"`
	SLADeadline     time.Time    `json:"slaDeadline"`
	EscalationLevel int          `json:"escalationLevel"`

	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	AcknowledgedBy string     `json:"acknowledgedBy,omitempty"`
	EscalatedAt    *time.Time `json:"escalatedAt,omitempty"`

	RespondedAt     *time.Time        `json:"respondedAt,omitempty"`
	RespondedBy     string            `json:"respondedBy,omitempty"`
	ResponsePayload map[string]string `json:"responsePayload,omitempty"`
	ResponseSeconds *float64          `json:"responseSeconds,omitempty"`
}

// Clone returns a deep copy so callers never share the stored record
func (a *Alert) Clone() *Alert {
	if a == nil {
		return nil
	}
	c := *a
	c.AcknowledgedAt = cloneTime(a.AcknowledgedAt)
	c.EscalatedAt = cloneTime(a.EscalatedAt)
	c.RespondedAt = cloneTime(a.RespondedAt)
	if a.ResponseSeconds != nil {
		v := *a.ResponseSeconds
		c.ResponseSeconds = &v
	}
	if a.ResponsePayload != nil {
		c.ResponsePayload = make(map[string]string, len(a.ResponsePayload))
		for k, v := range a.ResponsePayload {
			c.ResponsePayload[k] = v
		}
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// LeadData is the inbound lead payload for triggering an alert
type LeadData struct {
	Name        string  `json:"name" validate:"required"`
	Phone       string  `json:"phone,omitempty"`
	Email       string  `json:"email,omitempty" validate:"omitempty,email"`
	Source      string  `json:"source,omitempty"`
	ProjectType string  `json:"projectType,omitempty"`
	Score       float64 `json:"score" validate:"gte=0,lte=100"`
}

// Snapshot copies the lead fields into an alert snapshot
func (l LeadData) Snapshot() LeadSnapshot {
	return LeadSnapshot{
		Name:        l.Name,
		Phone:       l.Phone,
		Email:       l.Email,
		Source:      l.Source,
		ProjectType: l.ProjectType,
		Score:       l.Score,
	}
}

// TriggerAlertRequest represents the request payload for triggering a lead alert
type TriggerAlertRequest struct {
	LeadID string   `json:"leadId" validate:"required"`
	Lead   LeadData `json:"lead"`
}

// AcknowledgeAlertRequest represents the request payload for acknowledging an alert
type AcknowledgeAlertRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// RespondAlertRequest represents the request payload for marking an alert responded
type RespondAlertRequest struct {
	UserID  string            `json:"userId" validate:"required"`
	Payload map[string]string `json:"payload,omitempty"`
}
