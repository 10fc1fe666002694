package models

import "time"

// Responder is a staff member eligible to be assigned a lead alert
type Responder struct {
	ID          string   `json:"id" mapstructure:"id" validate:"required"`
	Name        string   `json:"name" mapstructure:"name" validate:"required"`
	Role        string   `json:"role" mapstructure:"role"`
	Specialties []string `json:"specialties,omitempty" mapstructure:"specialties"`
	ManagerID   string   `json:"managerId,omitempty" mapstructure:"managerId"`
	Email       string   `json:"email,omitempty" mapstructure:"email"`
	Phone       string   `json:"phone,omitempty" mapstructure:"phone"`
}

// ResponderStats holds the rolling performance record of one responder
type ResponderStats struct {
	ResponderID              string  `json:"responderId"`
	TotalResponses           int64   `json:"totalResponses"`
	TotalResponseTimeSeconds float64 `json:"totalResponseTimeSeconds"`
	AvgResponseTimeSeconds   float64 `json:"avgResponseTimeSeconds"`
	WithinTargetCount        int64   `json:"withinTargetCount"`
	TargetRatePercent        float64 `json:"targetRatePercent"`
	ActiveLeadCount          int64   `json:"activeLeadCount"`
}

// HasHistory reports whether the responder has completed at least one alert
func (s ResponderStats) HasHistory() bool {
	return s.TotalResponses > 0
}

// ResponseEvent is a completed response, appended to the durable metrics store
type ResponseEvent struct {
	AlertID         string    `json:"alertId"`
	LeadID          string    `json:"leadId"`
	ResponderID     string    `json:"responderId"`
	ResponderName   string    `json:"responderName"`
	Priority        Priority  `json:"priority"`
	ResponseSeconds float64   `json:"responseSeconds"`
	WithinTarget    bool      `json:"withinTarget"`
	Escalated       bool      `json:"escalated"`
	RespondedAt     time.Time `json:"respondedAt"`
}

// AlertEvent is one lifecycle transition, kept in the audit stream after the alert
// itself has expired from the state store
type AlertEvent struct {
	AlertID    string      `json:"alertId"`
	LeadID     string      `json:"leadId"`
	Event      string      `json:"event"`
	Status     AlertStatus `json:"status"`
	Priority   Priority    `json:"priority"`
	ActorID    string      `json:"actorId,omitempty"`
	AssignedTo string      `json:"assignedTo"`
	OccurredAt time.Time   `json:"occurredAt"`
}

// LeaderboardEntry is one responder's row in the team metrics report
type LeaderboardEntry struct {
	ResponderID            string  `json:"responderId"`
	ResponderName          string  `json:"responderName"`
	TotalResponses         int64   `json:"totalResponses"`
	AvgResponseTimeSeconds float64 `json:"avgResponseTimeSeconds"`
	WithinTargetCount      int64   `json:"withinTargetCount"`
	TargetRatePercent      float64 `json:"targetRatePercent"`
}

// TeamMetrics is the aggregate report over all response events in a window
type TeamMetrics struct {
	PeriodDays             int                `json:"periodDays"`
	From                   time.Time          `json:"from"`
	To                     time.Time          `json:"to"`
	TotalResponses         int64              `json:"totalResponses"`
	AvgResponseTimeSeconds float64            `json:"avgResponseTimeSeconds"`
	WithinTargetPercent    float64            `json:"withinTargetPercent"`
	FastestResponseSeconds float64            `json:"fastestResponseSeconds"`
	SlowestResponseSeconds float64            `json:"slowestResponseSeconds"`
	EscalatedResponses     int64              `json:"escalatedResponses"`
	Leaderboard            []LeaderboardEntry `json:"leaderboard"`
}
