package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timeplus-io/lead-alert-gateway/pkg/metrics"
	"github.com/timeplus-io/lead-alert-gateway/pkg/models"
	"github.com/timeplus-io/lead-alert-gateway/pkg/notify"
	"github.com/timeplus-io/lead-alert-gateway/pkg/roster"
	"github.com/timeplus-io/lead-alert-gateway/pkg/scheduler"
	"github.com/timeplus-io/lead-alert-gateway/pkg/store"
)

// recordingNotifier delivers synchronously so tests can assert on what was sent
type recordingNotifier struct {
	mu            sync.Mutex
	notifications []notify.Notification
	events        []string
}

func (r *recordingNotifier) Notify(n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *recordingNotifier) Publish(topic, event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingNotifier) ofType(typ string) []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Notification
	for _, n := range r.notifications {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

func (r *recordingNotifier) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type serviceHarness struct {
	svc      *AlertService
	clock    *clock.Mock
	alerts   *store.MemoryAlertStore
	stats    *store.MemoryStatsStore
	events   *metrics.MemoryEventStore
	audit    *store.MemoryAuditLog
	sched    *scheduler.LocalScheduler
	notifier *recordingNotifier
}

func newServiceHarness(t *testing.T, responders ...models.Responder) *serviceHarness {
	return newServiceHarnessWithNotifier(t, &recordingNotifier{}, responders...)
}

func newServiceHarnessWithNotifier(t *testing.T, n Notifier, responders ...models.Responder) *serviceHarness {
	clk := clock.NewMock()
	clk.Add(24 * time.Hour)

	h := &serviceHarness{
		clock:  clk,
		alerts: store.NewMemoryAlertStore(clk),
		stats:  store.NewMemoryStatsStore(),
		events: metrics.NewMemoryEventStore(),
		audit:  store.NewMemoryAuditLog(),
	}
	if rec, ok := n.(*recordingNotifier); ok {
		h.notifier = rec
	}

	var svc *AlertService
	h.sched = scheduler.NewLocalScheduler(clk, func(ctx context.Context, alertID, leadID string) (bool, error) {
		return svc.EscalateIfNoResponse(ctx, alertID, leadID)
	}, time.Second)
	t.Cleanup(h.sched.Stop)

	svc = NewAlertService(AlertDeps{
		Alerts:    h.alerts,
		Stats:     h.stats,
		Roster:    roster.NewStaticProvider(responders),
		Recorder:  metrics.NewRecorder(h.events, h.stats, clk),
		Scheduler: h.sched,
		Notifier:  n,
		Audit:     h.audit,
		Clock:     clk,
	}, AlertOptions{
		Target:          120 * time.Second,
		EscalationDelay: 120 * time.Second,
		AlertTTL:        time.Hour,
		EscalationGroup: "sales-managers",
		LiveUpdateTopic: "lead_alerts",
	})
	h.svc = svc
	return h
}

func hotLead() models.LeadData {
	return models.LeadData{Name: "Jane Roof", Phone: "555-0100", Source: "web", ProjectType: "metal", Score: 85}
}

var alice = models.Responder{ID: "u1", Name: "Alice", Role: "sales", ManagerID: "m1"}

func TestTriggerLeadAlertCreatesPendingAlert(t *testing.T) {
	h := newServiceHarness(t, alice)
	ctx := context.Background()
	createdAt := h.clock.Now().UTC()

	alertID, err := h.svc.TriggerLeadAlert(ctx, "lead-1", hotLead())
	require.NoError(t, err)
	require.NotEmpty(t, alertID)

	alert, err := h.svc.GetAlert(ctx, alertID)
	require.NoError(t, err)
	assert.Equal(t, models.PriorityCritical, alert.Priority)
	assert.Equal(t, models.AlertStatusPending, alert.Status)
	assert.Equal(t, "u1", alert.AssignedTo)
	assert.Equal(t, "Alice", alert.AssignedToName)
	assert.Equal(t, "Jane Roof", alert.Lead.Name)
	assert.True(t, createdAt.Equal(alert.CreatedAt))
	assert.True(t, createdAt.Add(120*time.Second).Equal(alert.SLADeadline))

	sent := h.notifier.ofType(notify.TypeNewLeadAlert)
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"u1"}, sent[0].Recipients)
	assert.Equal(t, []string{ChannelEmail, ChannelSMS, ChannelPush}, sent[0].Channels)
	assert.Equal(t, []string{EventAlertCreated}, h.notifier.Events())

	st, err := h.svc.GetResponderStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.ActiveLeadCount)
	assert.Equal(t, 1, h.sched.Pending())
}

func TestTriggerLeadAlertChannelsByPriority(t *testing.T) {
	tests := []struct {
		score    float64
		priority models.Priority
		channels []string
	}{
		{85, models.PriorityCritical, []string{ChannelEmail, ChannelSMS, ChannelPush}},
		{65, models.PriorityHigh, []string{ChannelEmail, ChannelPush}},
		{45, models.PriorityNormal, []string{ChannelEmail, ChannelPush}},
		{10, models.PriorityLow, []string{ChannelEmail}},
	}

	for _, tt := range tests {
		t.Run(string(tt.priority), func(t *testing.T) {
			h := newServiceHarness(t, alice)
			lead := hotLead()
			lead.Score = tt.score

			alertID, err := h.svc.TriggerLeadAlert(context.Background(), "lead-1", lead)
			require.NoError(t, err)

			alert, err := h.svc.GetAlert(context.Background(), alertID)
			require.NoError(t, err)
			assert.Equal(t, tt.priority, alert.Priority)

			sent := h.notifier.ofType(notify.TypeNewLeadAlert)
			require.Len(t, sent, 1)
			assert.Equal(t, tt.channels, sent[0].Channels)
		})
	}
}

func TestTriggerLeadAlertEmptyRoster(t *testing.T) {
	h := newServiceHarness(t)

	alertID, err := h.svc.TriggerLeadAlert(context.Background(), "lead-1", hotLead())
	assert.True(t, errors.Is(err, models.ErrNoAvailableResponder))
	assert.Empty(t, alertID)

	assert.Equal(t, 0, h.alerts.Len())
	assert.Equal(t, 0, h.sched.Pending())
	assert.Empty(t, h.notifier.ofType(notify.TypeNewLeadAlert))
	assert.Empty(t, h.notifier.Events())
}

func TestTriggerLeadAlertSpreadsWorkload(t *testing.T) {
	bob := models.Responder{ID: "u2", Name: "Bob", Role: "sales"}
	h := newServiceHarness(t, alice, bob)
	ctx := context.Background()

	first, err := h.svc.TriggerLeadAlert(ctx, "lead-1", hotLead())
	require.NoError(t, err)
	second, err := h.svc.TriggerLeadAlert(ctx, "lead-2", hotLead())
	require.NoError(t, err)

	a1, err := h.svc.GetAlert(ctx, first)
	require.NoError(t, err)
	a2, err := h.svc.GetAlert(ctx, second)
	require.NoError(t, err)

	// Equal scores go to the lower ID; the second lead sees Alice's extra workload
	assert.Equal(t, "u1", a1.AssignedTo)
	assert.Equal(t, "u2", a2.AssignedTo)
}

func TestAcknowledgeThenRespondWithinTarget(t *testing.T) {
	h := newServiceHarness(t, alice)
	ctx := context.Background()

	alertID, err := h.svc.TriggerLeadAlert(ctx, "lead-1", hotLead())
	require.NoError(t, err)

	h.clock.Add(45 * time.Second)
	ok, err := h.svc.AcknowledgeAlert(ctx, alertID, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	alert, err := h.svc.GetAlert(ctx, alertID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusAcknowledged, alert.Status)
	assert.Equal(t, "u1", alert.AcknowledgedBy)
	require.NotNil(t, alert.AcknowledgedAt)
	assert.Equal(t, 45*time.Second, alert.AcknowledgedAt.Sub(alert.CreatedAt))

	h.clock.Add(45 * time.Second)
	ok, err = h.svc.MarkResponded(ctx, alertID, "u1", map[string]string{"outcome": "booked inspection"})
	require.NoError(t, err)
	assert.True(t, ok)

	alert, err = h.svc.GetAlert(ctx, alertID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusResponded, alert.Status)
	require.NotNil(t, alert.ResponseSeconds)
	assert.Equal(t, 90.0, *alert.ResponseSeconds)
	assert.Equal(t, alert.RespondedAt.Sub(alert.CreatedAt).Seconds(), *alert.ResponseSeconds)
	assert.Equal(t, "booked inspection", alert.ResponsePayload["outcome"])

	success := h.notifier.ofType(notify.TypeResponseSuccess)
	require.Len(t, success, 1)
	assert.Equal(t, []string{"u1"}, success[0].Recipients)

	st, err := h.svc.GetResponderStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.TotalResponses)
	assert.Equal(t, 90.0, st.AvgResponseTimeSeconds)
	assert.Equal(t, 100.0, st.TargetRatePercent)
	assert.Equal(t, int64(0), st.ActiveLeadCount)

	// The escalation task was released and never fires
	assert.Equal(t, 0, h.sched.Pending())
	h.clock.Add(5 * time.Minute)
	assert.Empty(t, h.notifier.ofType(notify.TypeLeadEscalation))

	assert.Equal(t, []string{EventAlertCreated, EventAlertAcknowledged, EventAlertResponded}, h.notifier.Events())

	history, err := h.svc.GetAlertHistory(ctx, alertID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, EventAlertResponded, history[2].Event)
	assert.Equal(t, "u1", history[2].ActorID)
}

func TestEscalationAfterTargetMissed(t *testing.T) {
	h := newServiceHarness(t, alice)
	ctx := context.Background()

	alertID, err := h.svc.TriggerLeadAlert(ctx, "lead-1", hotLead())
	require.NoError(t, err)

	h.clock.Add(119 * time.Second)
	alert, err := h.svc.GetAlert(ctx, alertID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusPending, alert.Status)

	h.clock.Add(time.Second)
	alert, err = h.svc.GetAlert(ctx, alertID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusEscalated, alert.Status)
	assert.Equal(t, 1, alert.EscalationLevel)
	require.NotNil(t, alert.EscalatedAt)
	assert.Equal(t, 120*time.Second, alert.EscalatedAt.Sub(alert.CreatedAt))

	escalations := h.notifier.ofType(notify.TypeLeadEscalation)
	require.Len(t, escalations, 1)
	assert.Equal(t, []string{"m1"}, escalations[0].Recipients)
	assert.Contains(t, escalations[0].Channels, ChannelVoice)
	assert.Equal(t, []string{ChannelEmail, ChannelSMS, ChannelPush, ChannelVoice}, escalations[0].Channels)

	// Escalation hands the lead over, releasing the assignee's workload slot
	st, err := h.svc.GetResponderStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.ActiveLeadCount)

	// A late response closes the alert but earns no success notification
	h.clock.Add(30 * time.Second)
	ok, err := h.svc.MarkResponded(ctx, alertID, "m1", nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, h.notifier.ofType(notify.TypeResponseSuccess))

	events, err := h.events.Since(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "u1", events[0].ResponderID)
	assert.Equal(t, 150.0, events[0].ResponseSeconds)
	assert.False(t, events[0].WithinTarget)
	assert.True(t, events[0].Escalated)

	st, err = h.svc.GetResponderStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, st.TargetRatePercent)
	assert.Equal(t, int64(1), st.TotalResponses)
	assert.Equal(t, int64(0), st.ActiveLeadCount)
}

func TestEscalationFromAcknowledged(t *testing.T) {
	h := newServiceHarness(t, alice)
	ctx := context.Background()

	alertID, err := h.svc.TriggerLeadAlert(ctx, "lead-1", hotLead())
	require.NoError(t, err)

	h.clock.Add(30 * time.Second)
	ok, err := h.svc.AcknowledgeAlert(ctx, alertID, "u1")
	require.NoError(t, err)
	require.True(t, ok)

	h.clock.Add(90 * time.Second)
	alert, err := h.svc.GetAlert(ctx, alertID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusEscalated, alert.Status)
	assert.Equal(t, "u1", alert.AcknowledgedBy)

	escalations := h.notifier.ofType(notify.TypeLeadEscalation)
	require.Len(t, escalations, 1)
	assert.Equal(t, true, escalations[0].Payload["acknowledged"])
}

func TestEscalationAudienceFallsBackToGroup(t *testing.T) {
	h := newServiceHarness(t, models.Responder{ID: "u9", Name: "Solo"})
	ctx := context.Background()

	_, err := h.svc.TriggerLeadAlert(ctx, "lead-1", hotLead())
	require.NoError(t, err)
	h.clock.Add(2 * time.Minute)

	escalations := h.notifier.ofType(notify.TypeLeadEscalation)
	require.Len(t, escalations, 1)
	assert.Equal(t, []string{"sales-managers"}, escalations[0].Recipients)
}

func TestLateEscalationIsNoop(t *testing.T) {
	h := newServiceHarness(t, alice)
	ctx := context.Background()

	alertID, err := h.svc.TriggerLeadAlert(ctx, "lead-1", hotLead())
	require.NoError(t, err)

	h.clock.Add(119 * time.Second)
	ok, err := h.svc.MarkResponded(ctx, alertID, "u1", nil)
	require.NoError(t, err)
	require.True(t, ok)

	h.clock.Add(time.Second)
	ok, err = h.svc.EscalateIfNoResponse(ctx, alertID, "lead-1")
	require.NoError(t, err)
	assert.False(t, ok)

	alert, err := h.svc.GetAlert(ctx, alertID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusResponded, alert.Status)
	assert.Nil(t, alert.EscalatedAt)
	assert.Empty(t, h.notifier.ofType(notify.TypeLeadEscalation))
	assert.Len(t, h.notifier.ofType(notify.TypeResponseSuccess), 1)
}

func TestRespondedAlertIsImmutable(t *testing.T) {
	h := newServiceHarness(t, alice)
	ctx := context.Background()

	alertID, err := h.svc.TriggerLeadAlert(ctx, "lead-1", hotLead())
	require.NoError(t, err)
	h.clock.Add(10 * time.Second)
	ok, err := h.svc.MarkResponded(ctx, alertID, "u1", nil)
	require.NoError(t, err)
	require.True(t, ok)

	before, err := h.svc.GetAlert(ctx, alertID)
	require.NoError(t, err)

	h.clock.Add(10 * time.Second)
	ok, err = h.svc.AcknowledgeAlert(ctx, alertID, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = h.svc.MarkResponded(ctx, alertID, "u2", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = h.svc.EscalateIfNoResponse(ctx, alertID, "lead-1")
	require.NoError(t, err)
	assert.False(t, ok)

	after, err := h.svc.GetAlert(ctx, alertID)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	st, err := h.svc.GetResponderStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.TotalResponses)
}

func TestOperationsOnUnknownAlert(t *testing.T) {
	h := newServiceHarness(t, alice)
	ctx := context.Background()

	ok, err := h.svc.AcknowledgeAlert(ctx, "missing", "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = h.svc.MarkResponded(ctx, "missing", "u1", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = h.svc.EscalateIfNoResponse(ctx, "missing", "lead-1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.svc.GetAlert(ctx, "missing")
	assert.True(t, errors.Is(err, models.ErrAlertNotFound))
}

func TestSecondAcknowledgeIsNoop(t *testing.T) {
	h := newServiceHarness(t, alice)
	ctx := context.Background()

	alertID, err := h.svc.TriggerLeadAlert(ctx, "lead-1", hotLead())
	require.NoError(t, err)

	ok, err := h.svc.AcknowledgeAlert(ctx, alertID, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.svc.AcknowledgeAlert(ctx, alertID, "u2")
	require.NoError(t, err)
	assert.False(t, ok)

	alert, err := h.svc.GetAlert(ctx, alertID)
	require.NoError(t, err)
	assert.Equal(t, "u1", alert.AcknowledgedBy)
}

func TestAlertExpiresAfterTTL(t *testing.T) {
	h := newServiceHarness(t, alice)
	ctx := context.Background()

	alertID, err := h.svc.TriggerLeadAlert(ctx, "lead-1", hotLead())
	require.NoError(t, err)
	ok, err := h.svc.MarkResponded(ctx, alertID, "u1", nil)
	require.NoError(t, err)
	require.True(t, ok)

	h.clock.Add(time.Hour)
	_, err = h.svc.GetAlert(ctx, alertID)
	assert.True(t, errors.Is(err, models.ErrAlertNotFound))

	// The audit trail outlives the record
	history, err := h.svc.GetAlertHistory(ctx, alertID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestConcurrentAcknowledgeAndEscalate(t *testing.T) {
	h := newServiceHarness(t, alice)
	ctx := context.Background()

	const n = 20
	ids := make([]string, n)
	for i := range ids {
		id, err := h.svc.TriggerLeadAlert(ctx, "lead", hotLead())
		require.NoError(t, err)
		ids[i] = id
	}

	var acks, escalations int32
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(2)
		go func(id string) {
			defer wg.Done()
			if ok, err := h.svc.AcknowledgeAlert(ctx, id, "u1"); assert.NoError(t, err) && ok {
				atomic.AddInt32(&acks, 1)
			}
		}(id)
		go func(id string) {
			defer wg.Done()
			if ok, err := h.svc.EscalateIfNoResponse(ctx, id, "lead"); assert.NoError(t, err) && ok {
				atomic.AddInt32(&escalations, 1)
			}
		}(id)
	}
	wg.Wait()

	// Escalation may follow an acknowledgment but an acknowledgment never follows
	// an escalation, so every alert escalates exactly once and acks only win first
	assert.Equal(t, int32(n), atomic.LoadInt32(&escalations))
	for _, id := range ids {
		alert, err := h.svc.GetAlert(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.AlertStatusEscalated, alert.Status)
		if alert.AcknowledgedAt != nil {
			assert.Equal(t, "u1", alert.AcknowledgedBy)
		}
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&acks), int32(n))
}

func TestConcurrentRespondSingleWinner(t *testing.T) {
	h := newServiceHarness(t, alice)
	ctx := context.Background()

	alertID, err := h.svc.TriggerLeadAlert(ctx, "lead-1", hotLead())
	require.NoError(t, err)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := h.svc.MarkResponded(ctx, alertID, "u1", nil); assert.NoError(t, err) && ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	st, err := h.svc.GetResponderStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.TotalResponses)
	assert.Len(t, h.notifier.ofType(notify.TypeResponseSuccess), 1)
}

func TestTeamResponseMetrics(t *testing.T) {
	bob := models.Responder{ID: "u2", Name: "Bob"}
	h := newServiceHarness(t, alice, bob)
	ctx := context.Background()

	first, err := h.svc.TriggerLeadAlert(ctx, "lead-1", hotLead())
	require.NoError(t, err)
	second, err := h.svc.TriggerLeadAlert(ctx, "lead-2", hotLead())
	require.NoError(t, err)

	h.clock.Add(60 * time.Second)
	_, err = h.svc.MarkResponded(ctx, first, "u1", nil)
	require.NoError(t, err)
	h.clock.Add(120 * time.Second)
	_, err = h.svc.MarkResponded(ctx, second, "u2", nil)
	require.NoError(t, err)

	m, err := h.svc.GetTeamResponseMetrics(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.TotalResponses)
	assert.Equal(t, 120.0, m.AvgResponseTimeSeconds)
	assert.Equal(t, 50.0, m.WithinTargetPercent)
	assert.Equal(t, 60.0, m.FastestResponseSeconds)
	assert.Equal(t, 180.0, m.SlowestResponseSeconds)
	assert.Equal(t, int64(1), m.EscalatedResponses)
	require.Len(t, m.Leaderboard, 2)
	assert.Equal(t, "u1", m.Leaderboard[0].ResponderID)
	assert.Equal(t, "Alice", m.Leaderboard[0].ResponderName)
}

func TestConcurrentTriggersSpreadAcrossIdleResponders(t *testing.T) {
	bob := models.Responder{ID: "u2", Name: "Bob", Role: "sales"}
	h := newServiceHarness(t, alice, bob)
	ctx := context.Background()
	const n = 10

	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := h.svc.TriggerLeadAlert(ctx, "lead", hotLead())
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	assigned := map[string]int{}
	for _, id := range ids {
		alert, err := h.svc.GetAlert(ctx, id)
		require.NoError(t, err)
		assigned[alert.AssignedTo]++
	}
	assert.Equal(t, map[string]int{"u1": n / 2, "u2": n / 2}, assigned)

	for _, id := range []string{"u1", "u2"} {
		st, err := h.svc.GetResponderStats(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(n/2), st.ActiveLeadCount)
	}
}

type blockingDispatcher struct {
	release chan struct{}
}

func (b *blockingDispatcher) Send(ctx context.Context, n notify.Notification) error {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return nil
}

func TestTriggerNotBlockedBySlowProvider(t *testing.T) {
	d := &blockingDispatcher{release: make(chan struct{})}
	n := notify.NewAsyncNotifier(d, notify.LogPublisher{}, 1, 2, 10*time.Second, nil)
	defer n.Close()
	defer close(d.release)

	h := newServiceHarnessWithNotifier(t, n, alice)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 6; i++ {
		_, err := h.svc.TriggerLeadAlert(ctx, "lead", hotLead())
		require.NoError(t, err)
	}
	assert.Less(t, time.Since(start), time.Second)

	// Every escalation timer is armed even though deliveries are stuck
	assert.Equal(t, 6, h.sched.Pending())
}

func TestEscalationDelayKeptBelowAlertTTL(t *testing.T) {
	svc := NewAlertService(AlertDeps{}, AlertOptions{
		Target:          time.Minute,
		EscalationDelay: 2 * time.Hour,
		AlertTTL:        time.Hour,
	})
	assert.Equal(t, 30*time.Minute, svc.opts.EscalationDelay)
}
