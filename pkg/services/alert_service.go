package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/facebookgo/clock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/timeplus-io/lead-alert-gateway/pkg/config"
	"github.com/timeplus-io/lead-alert-gateway/pkg/metrics"
	"github.com/timeplus-io/lead-alert-gateway/pkg/models"
	"github.com/timeplus-io/lead-alert-gateway/pkg/notify"
	"github.com/timeplus-io/lead-alert-gateway/pkg/roster"
	"github.com/timeplus-io/lead-alert-gateway/pkg/scheduler"
	"github.com/timeplus-io/lead-alert-gateway/pkg/store"
	"github.com/timeplus-io/lead-alert-gateway/pkg/telemetry"
)

// Live-update event names
const (
	EventAlertCreated      = "lead_alert.created"
	EventAlertAcknowledged = "lead_alert.acknowledged"
	EventAlertResponded    = "lead_alert.responded"
	EventAlertEscalated    = "lead_alert.escalated"
)

// auditTimeout bounds the audit append done on the transition path
const auditTimeout = 2 * time.Second

// Notifier delivers notifications and live updates without blocking the caller
type Notifier interface {
	Notify(n notify.Notification)
	Publish(topic, event string, payload interface{})
}

// AlertOptions holds the SLA and assignment settings of the service
type AlertOptions struct {
	Target          time.Duration
	EscalationDelay time.Duration
	AlertTTL        time.Duration
	EscalationGroup string
	LiveUpdateTopic string
	Weights         ScoringWeights
}

// AlertOptionsFromConfig builds AlertOptions from the alerting configuration
func AlertOptionsFromConfig(cfg config.AlertingConfig) AlertOptions {
	return AlertOptions{
		Target:          cfg.Target(),
		EscalationDelay: cfg.EscalationDelay(),
		AlertTTL:        cfg.AlertTTL(),
		EscalationGroup: cfg.EscalationGroup,
		LiveUpdateTopic: cfg.LiveUpdateTopic,
		Weights: ScoringWeights{
			Workload:       cfg.WorkloadWeight,
			TargetRate:     cfg.TargetRateWeight,
			Speed:          cfg.SpeedWeight,
			SpecialtyBonus: cfg.SpecialtyBonus,
			TargetSeconds:  cfg.Target().Seconds(),
		},
	}
}

// AlertDeps are the collaborators of the AlertService. Audit, Telemetry and Clock
// are optional.
type AlertDeps struct {
	Alerts    store.AlertStore
	Stats     store.StatsStore
	Roster    roster.Provider
	Recorder  *metrics.Recorder
	Scheduler scheduler.Scheduler
	Notifier  Notifier
	Audit     store.AuditLog
	Telemetry *telemetry.Metrics
	Clock     clock.Clock
}

// AlertService drives lead alerts through pending, acknowledged, escalated and
// responded. Every transition is a conditional store update, so a human action and
// the escalation timer racing on one alert produce exactly one winner.
type AlertService struct {
	alerts    store.AlertStore
	stats     store.StatsStore
	roster    roster.Provider
	recorder  *metrics.Recorder
	scheduler scheduler.Scheduler
	notifier  Notifier
	audit     store.AuditLog
	telemetry *telemetry.Metrics
	clock     clock.Clock
	opts      AlertOptions
}

// NewAlertService creates an AlertService
func NewAlertService(deps AlertDeps, opts AlertOptions) *AlertService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.New()
	}
	if opts.Target <= 0 {
		opts.Target = 120 * time.Second
	}
	if opts.EscalationDelay <= 0 {
		opts.EscalationDelay = opts.Target
	}
	if opts.AlertTTL <= 0 {
		opts.AlertTTL = time.Hour
	}
	// An alert must escalate before it expires, or its workload slot is never released
	if opts.EscalationDelay >= opts.AlertTTL {
		logrus.Warnf("Escalation delay %v is not below the alert TTL %v, using %v", opts.EscalationDelay, opts.AlertTTL, opts.AlertTTL/2)
		opts.EscalationDelay = opts.AlertTTL / 2
	}
	if opts.LiveUpdateTopic == "" {
		opts.LiveUpdateTopic = "lead_alerts"
	}
	if opts.Weights == (ScoringWeights{}) {
		opts.Weights = DefaultScoringWeights()
	}
	if opts.Weights.TargetSeconds <= 0 {
		opts.Weights.TargetSeconds = opts.Target.Seconds()
	}

	return &AlertService{
		alerts:    deps.Alerts,
		stats:     deps.Stats,
		roster:    deps.Roster,
		recorder:  deps.Recorder,
		scheduler: deps.Scheduler,
		notifier:  deps.Notifier,
		audit:     deps.Audit,
		telemetry: deps.Telemetry,
		clock:     clk,
		opts:      opts,
	}
}

func (s *AlertService) now() time.Time {
	return s.clock.Now().UTC()
}

// TriggerLeadAlert assigns a new lead to the best available responder and starts its
// response clock. It fails with models.ErrNoAvailableResponder, writing nothing,
// when the roster is empty.
func (s *AlertService) TriggerLeadAlert(ctx context.Context, leadID string, lead models.LeadData) (string, error) {
	priority := ClassifyPriority(lead.Score)

	responders, err := s.roster.Available(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load responder roster: %w", err)
	}
	if len(responders) == 0 {
		s.telemetry.NoResponder()
		logrus.Warnf("No available responder for lead %s (priority %s)", leadID, priority)
		return "", models.ErrNoAvailableResponder
	}

	chosen, err := s.reserveResponder(ctx, responders, lead.ProjectType)
	if err != nil {
		if errors.Is(err, models.ErrNoAvailableResponder) {
			s.telemetry.NoResponder()
		}
		return "", err
	}

	now := s.now()
	alert := &models.Alert{
		ID:             uuid.New().String(),
		LeadID:         leadID,
		Lead:           lead.Snapshot(),
		Priority:       priority,
		Status:         models.AlertStatusPending,
		AssignedTo:     chosen.Responder.ID,
		AssignedToName: chosen.Responder.Name,
		CreatedAt:      now,
		SLADeadline:    now.Add(s.opts.Target),
	}

	if err := s.alerts.Create(ctx, alert, s.opts.AlertTTL); err != nil {
		s.releaseActive(ctx, chosen.Responder.ID)
		return "", fmt.Errorf("failed to create alert for lead %s: %w", leadID, err)
	}

	log := logrus.WithFields(logrus.Fields{"alert_id": alert.ID, "lead_id": leadID})
	log.Infof("Lead alert created: priority=%s assigned_to=%s score=%.3f", priority, chosen.Responder.ID, chosen.Score)

	if err := s.scheduler.Schedule(ctx, alert.ID, leadID, s.opts.EscalationDelay); err != nil {
		log.Errorf("Failed to schedule escalation: %v", err)
	}

	s.notifier.Notify(notify.Notification{
		Type:       notify.TypeNewLeadAlert,
		AlertID:    alert.ID,
		LeadID:     leadID,
		Priority:   priority,
		Recipients: []string{chosen.Responder.ID},
		Channels:   ChannelsFor(priority),
		Payload:    leadPayload(alert),
		SentAt:     now,
	})
	s.transitioned(ctx, alert, EventAlertCreated, "")

	s.telemetry.AlertTriggered(string(priority))
	return alert.ID, nil
}

// AcknowledgeAlert moves a pending alert to acknowledged. It returns false without
// error when the alert is unknown, expired or already past pending.
func (s *AlertService) AcknowledgeAlert(ctx context.Context, alertID, userID string) (bool, error) {
	updated, err := s.alerts.UpdateIfStatus(ctx, alertID,
		[]models.AlertStatus{models.AlertStatusPending},
		func(a *models.Alert) error {
			now := s.now()
			a.Status = models.AlertStatusAcknowledged
			a.AcknowledgedAt = &now
			a.AcknowledgedBy = userID
			return nil
		})
	if ok, err := s.benign("acknowledge", alertID, err); !ok {
		return false, err
	}

	logrus.WithField("alert_id", alertID).Infof("Alert acknowledged by %s", userID)
	s.transitioned(ctx, updated, EventAlertAcknowledged, userID)
	s.telemetry.AlertAcknowledged(string(updated.Priority))
	return true, nil
}

// MarkResponded closes an alert. The response time is fixed here, the escalation
// task is released and the response is recorded against the assigned responder.
// A success notification goes out only for an on-target response that was never
// escalated.
func (s *AlertService) MarkResponded(ctx context.Context, alertID, userID string, payload map[string]string) (bool, error) {
	updated, err := s.alerts.UpdateIfStatus(ctx, alertID,
		[]models.AlertStatus{models.AlertStatusPending, models.AlertStatusAcknowledged, models.AlertStatusEscalated},
		func(a *models.Alert) error {
			now := s.now()
			seconds := now.Sub(a.CreatedAt).Seconds()
			if seconds < 0 {
				seconds = 0
			}
			a.Status = models.AlertStatusResponded
			a.RespondedAt = &now
			a.RespondedBy = userID
			a.ResponsePayload = payload
			a.ResponseSeconds = &seconds
			return nil
		})
	if ok, err := s.benign("respond", alertID, err); !ok {
		return false, err
	}

	log := logrus.WithFields(logrus.Fields{"alert_id": alertID, "lead_id": updated.LeadID})

	if err := s.scheduler.Cancel(ctx, alertID); err != nil {
		log.Debugf("Escalation task not cancelled: %v", err)
	}

	seconds := *updated.ResponseSeconds
	withinTarget := seconds <= s.opts.Target.Seconds()
	escalated := updated.EscalatedAt != nil

	if _, err := s.recorder.Record(ctx, models.ResponseEvent{
		AlertID:         updated.ID,
		LeadID:          updated.LeadID,
		ResponderID:     updated.AssignedTo,
		ResponderName:   updated.AssignedToName,
		Priority:        updated.Priority,
		ResponseSeconds: seconds,
		WithinTarget:    withinTarget,
		Escalated:       escalated,
		RespondedAt:     *updated.RespondedAt,
	}); err != nil {
		log.Errorf("Failed to record response metrics: %v", err)
	}

	log.Infof("Alert responded by %s after %.1fs (within_target=%t escalated=%t)", userID, seconds, withinTarget, escalated)

	if withinTarget && !escalated {
		s.notifier.Notify(notify.Notification{
			Type:       notify.TypeResponseSuccess,
			AlertID:    updated.ID,
			LeadID:     updated.LeadID,
			Priority:   updated.Priority,
			Recipients: uniqueRecipients(updated.AssignedTo, userID),
			Channels:   []string{ChannelPush},
			Payload: map[string]interface{}{
				"leadName":        updated.Lead.Name,
				"responseSeconds": seconds,
			},
			SentAt: *updated.RespondedAt,
		})
	}

	s.transitioned(ctx, updated, EventAlertResponded, userID)
	s.telemetry.AlertResponded(string(updated.Priority), seconds, withinTarget)
	return true, nil
}

// EscalateIfNoResponse is called by the scheduler at the escalation deadline. It
// moves a pending or acknowledged alert to escalated and widens the audience; for a
// responded, escalated or expired alert it is a no-op returning false.
func (s *AlertService) EscalateIfNoResponse(ctx context.Context, alertID, leadID string) (bool, error) {
	updated, err := s.alerts.UpdateIfStatus(ctx, alertID,
		[]models.AlertStatus{models.AlertStatusPending, models.AlertStatusAcknowledged},
		func(a *models.Alert) error {
			now := s.now()
			a.Status = models.AlertStatusEscalated
			a.EscalatedAt = &now
			a.EscalationLevel = 1
			return nil
		})
	if ok, err := s.benign("escalate", alertID, err); !ok {
		return false, err
	}

	log := logrus.WithFields(logrus.Fields{"alert_id": alertID, "lead_id": updated.LeadID})
	if leadID != "" && leadID != updated.LeadID {
		log.Warnf("Escalation scheduled for lead %s but alert belongs to %s", leadID, updated.LeadID)
	}

	// The lead is now the escalation audience's to work
	s.releaseActive(ctx, updated.AssignedTo)

	audience := s.escalationAudience(ctx, updated.AssignedTo)
	log.Warnf("Alert escalated: no response from %s within %v, notifying %v", updated.AssignedTo, s.opts.EscalationDelay, audience)

	payload := leadPayload(updated)
	payload["assignedTo"] = updated.AssignedTo
	payload["assignedToName"] = updated.AssignedToName
	payload["acknowledged"] = updated.AcknowledgedAt != nil

	s.notifier.Notify(notify.Notification{
		Type:       notify.TypeLeadEscalation,
		AlertID:    updated.ID,
		LeadID:     updated.LeadID,
		Priority:   updated.Priority,
		Recipients: audience,
		Channels:   EscalationChannels(updated.Priority),
		Payload:    payload,
		SentAt:     *updated.EscalatedAt,
	})
	s.transitioned(ctx, updated, EventAlertEscalated, "")
	s.telemetry.AlertEscalated(string(updated.Priority))
	return true, nil
}

// GetAlert returns the current alert record or models.ErrAlertNotFound
func (s *AlertService) GetAlert(ctx context.Context, alertID string) (*models.Alert, error) {
	return s.alerts.Get(ctx, alertID)
}

// GetAlertHistory returns the recorded transitions of an alert
func (s *AlertService) GetAlertHistory(ctx context.Context, alertID string) ([]models.AlertEvent, error) {
	if s.audit == nil {
		return []models.AlertEvent{}, nil
	}
	return s.audit.History(ctx, alertID)
}

// GetTeamResponseMetrics aggregates response events over the last periodDays days
func (s *AlertService) GetTeamResponseMetrics(ctx context.Context, periodDays int) (*models.TeamMetrics, error) {
	return s.recorder.TeamMetrics(ctx, periodDays)
}

// GetResponderStats returns the rolling stats of one responder
func (s *AlertService) GetResponderStats(ctx context.Context, responderID string) (models.ResponderStats, error) {
	return s.recorder.ResponderStats(ctx, responderID)
}

// benign sorts a transition error. Unknown alerts and lost races are expected
// outcomes and yield (false, nil); anything else is returned.
func (s *AlertService) benign(operation, alertID string, err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, models.ErrAlertNotFound):
		logrus.WithField("alert_id", alertID).Debugf("Cannot %s: alert not found", operation)
		return false, nil
	case errors.Is(err, models.ErrStaleState):
		s.telemetry.StaleTransition(operation)
		logrus.WithField("alert_id", alertID).Infof("Cannot %s: %v", operation, err)
		return false, nil
	default:
		return false, fmt.Errorf("failed to %s alert %s: %w", operation, alertID, err)
	}
}

// reserveAttempts bounds how often a trigger re-ranks after another trigger took the
// workload slot it ranked on
const reserveAttempts = 10

// reserveResponder ranks the roster and takes one active lead on the winner. The
// reservation only lands if the winner's workload is still what the ranking saw, so
// concurrent triggers spread over the roster instead of piling onto one responder.
func (s *AlertService) reserveResponder(ctx context.Context, responders []models.Responder, projectType string) (Candidate, error) {
	ids := make([]string, len(responders))
	for i, r := range responders {
		ids[i] = r.ID
	}

	var chosen Candidate
	for attempt := 0; attempt < reserveAttempts; attempt++ {
		stats, err := s.stats.GetMany(ctx, ids)
		if err != nil {
			return Candidate{}, fmt.Errorf("failed to load responder stats: %w", err)
		}

		chosen, err = SelectResponder(s.opts.Weights, responders, stats, projectType)
		if err != nil {
			return Candidate{}, err
		}

		ok, err := s.stats.ReserveActive(ctx, chosen.Responder.ID, chosen.Stats.ActiveLeadCount)
		if err != nil {
			return Candidate{}, err
		}
		if ok {
			return chosen, nil
		}
		logrus.Debugf("Workload of %s changed during assignment, re-ranking", chosen.Responder.ID)
	}

	logrus.Warnf("Assignment still contended after %d attempts, assigning %s", reserveAttempts, chosen.Responder.ID)
	if _, err := s.stats.IncrementActive(ctx, chosen.Responder.ID, 1); err != nil {
		return Candidate{}, err
	}
	return chosen, nil
}

func (s *AlertService) releaseActive(ctx context.Context, responderID string) {
	if _, err := s.stats.IncrementActive(ctx, responderID, -1); err != nil {
		logrus.Errorf("Failed to release active lead of %s: %v", responderID, err)
	}
}

// escalationAudience returns the assigned responder's manager, or the configured
// escalation group when there is none
func (s *AlertService) escalationAudience(ctx context.Context, responderID string) []string {
	r, ok, err := s.roster.Get(ctx, responderID)
	if err != nil {
		logrus.Warnf("Failed to look up responder %s for escalation: %v", responderID, err)
	}
	if ok && r.ManagerID != "" {
		return []string{r.ManagerID}
	}
	if s.opts.EscalationGroup != "" {
		return []string{s.opts.EscalationGroup}
	}
	return []string{responderID}
}

// transitioned publishes the live update and appends the audit record of a transition
func (s *AlertService) transitioned(ctx context.Context, alert *models.Alert, event, actorID string) {
	s.notifier.Publish(s.opts.LiveUpdateTopic, event, alert)

	if s.audit == nil {
		return
	}
	auditCtx, cancel := context.WithTimeout(ctx, auditTimeout)
	defer cancel()
	if err := s.audit.AppendAlertEvent(auditCtx, models.AlertEvent{
		AlertID:    alert.ID,
		LeadID:     alert.LeadID,
		Event:      event,
		Status:     alert.Status,
		Priority:   alert.Priority,
		ActorID:    actorID,
		AssignedTo: alert.AssignedTo,
		OccurredAt: s.now(),
	}); err != nil {
		logrus.WithField("alert_id", alert.ID).Warnf("Failed to audit %s: %v", event, err)
	}
}

func leadPayload(a *models.Alert) map[string]interface{} {
	return map[string]interface{}{
		"leadName":    a.Lead.Name,
		"leadPhone":   a.Lead.Phone,
		"leadSource":  a.Lead.Source,
		"projectType": a.Lead.ProjectType,
		"score":       a.Lead.Score,
		"slaDeadline": a.SLADeadline,
	}
}

func uniqueRecipients(ids ...string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
