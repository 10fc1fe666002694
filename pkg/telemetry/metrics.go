package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lead_alert"

// Metrics holds the operational Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	alertsTriggered      *prometheus.CounterVec
	alertsAcknowledged   *prometheus.CounterVec
	alertsEscalated      *prometheus.CounterVec
	alertsResponded      *prometheus.CounterVec
	responseSeconds      *prometheus.HistogramVec
	staleTransitions     *prometheus.CounterVec
	noResponder          prometheus.Counter
	notificationFailures *prometheus.CounterVec
	breakerState         *prometheus.GaugeVec
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		alertsTriggered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_triggered_total",
			Help:      "Lead alerts created, by priority.",
		}, []string{"priority"}),
		alertsAcknowledged: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_acknowledged_total",
			Help:      "Lead alerts acknowledged, by priority.",
		}, []string{"priority"}),
		alertsEscalated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_escalated_total",
			Help:      "Lead alerts escalated after missing the response target, by priority.",
		}, []string{"priority"}),
		alertsResponded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_responded_total",
			Help:      "Lead alerts responded to, by priority and target outcome.",
		}, []string{"priority", "within_target"}),
		responseSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_seconds",
			Help:      "Time from alert creation to response.",
			Buckets:   []float64{15, 30, 60, 90, 120, 180, 300, 600, 1800},
		}, []string{"priority"}),
		staleTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_transitions_total",
			Help:      "Transitions rejected because another actor moved the alert first.",
		}, []string{"operation"}),
		noResponder: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "no_available_responder_total",
			Help:      "Triggers rejected because the roster was empty.",
		}),
		notificationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Notifications and live updates that failed to deliver.",
		}, []string{"kind"}),
		breakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notifier_breaker_state",
			Help:      "Notifier circuit breaker state (0 closed, 1 half-open, 2 open).",
		}, []string{"name"}),
	}
}

// AlertTriggered counts a created alert
func (m *Metrics) AlertTriggered(priority string) {
	if m == nil {
		return
	}
	m.alertsTriggered.WithLabelValues(priority).Inc()
}

// AlertAcknowledged counts an acknowledgment
func (m *Metrics) AlertAcknowledged(priority string) {
	if m == nil {
		return
	}
	m.alertsAcknowledged.WithLabelValues(priority).Inc()
}

// AlertEscalated counts an escalation
func (m *Metrics) AlertEscalated(priority string) {
	if m == nil {
		return
	}
	m.alertsEscalated.WithLabelValues(priority).Inc()
}

// AlertResponded counts a response and observes its latency
func (m *Metrics) AlertResponded(priority string, seconds float64, withinTarget bool) {
	if m == nil {
		return
	}
	m.alertsResponded.WithLabelValues(priority, strconv.FormatBool(withinTarget)).Inc()
	m.responseSeconds.WithLabelValues(priority).Observe(seconds)
}

// StaleTransition counts a transition lost to a concurrent actor
func (m *Metrics) StaleTransition(operation string) {
	if m == nil {
		return
	}
	m.staleTransitions.WithLabelValues(operation).Inc()
}

// NoResponder counts a trigger with an empty roster
func (m *Metrics) NoResponder() {
	if m == nil {
		return
	}
	m.noResponder.Inc()
}

// NotificationFailed counts a failed delivery; kind is "notify" or "publish"
func (m *Metrics) NotificationFailed(kind string) {
	if m == nil {
		return
	}
	m.notificationFailures.WithLabelValues(kind).Inc()
}

// BreakerState records the state of a named circuit breaker
func (m *Metrics) BreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(float64(state))
}
