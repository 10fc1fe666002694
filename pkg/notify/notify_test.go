package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timeplus-io/lead-alert-gateway/pkg/models"
)

type recordingDispatcher struct {
	mu    sync.Mutex
	sent  []Notification
	err   error
	delay time.Duration
}

func (r *recordingDispatcher) Send(ctx context.Context, n Notification) error {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

func (r *recordingDispatcher) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.sent...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (r *recordingPublisher) Publish(ctx context.Context, topic, event string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, topic+":"+event)
	return r.err
}

func TestAsyncNotifierDelivers(t *testing.T) {
	d := &recordingDispatcher{}
	p := &recordingPublisher{}
	n := NewAsyncNotifier(d, p, 4, 64, time.Second, nil)
	defer n.Close()

	for i := 0; i < 10; i++ {
		n.Notify(Notification{Type: TypeNewLeadAlert, AlertID: "a1"})
	}
	n.Publish("lead_alerts", "lead_alert.created", map[string]string{"alertId": "a1"})
	n.Flush()

	assert.Len(t, d.Sent(), 10)
	assert.Equal(t, []string{"lead_alerts:lead_alert.created"}, p.events)

	// The pool keeps working after a flush
	n.Notify(Notification{Type: TypeResponseSuccess, AlertID: "a1"})
	n.Flush()
	assert.Len(t, d.Sent(), 11)
}

func TestAsyncNotifierDoesNotBlockCaller(t *testing.T) {
	d := &recordingDispatcher{delay: 50 * time.Millisecond}
	n := NewAsyncNotifier(d, LogPublisher{}, 2, 8, time.Second, nil)
	defer n.Close()

	start := time.Now()
	n.Notify(Notification{Type: TypeNewLeadAlert})
	assert.Less(t, time.Since(start), 40*time.Millisecond)

	n.Flush()
	assert.Len(t, d.Sent(), 1)
}

type gatedDispatcher struct {
	started chan struct{}
	release chan struct{}
	sent    int32
}

func (g *gatedDispatcher) Send(ctx context.Context, n Notification) error {
	select {
	case g.started <- struct{}{}:
	default:
	}
	<-g.release
	atomic.AddInt32(&g.sent, 1)
	return nil
}

func TestAsyncNotifierSaturatedDropsInsteadOfBlocking(t *testing.T) {
	d := &gatedDispatcher{started: make(chan struct{}, 1), release: make(chan struct{})}
	var mu sync.Mutex
	kinds := map[string]int{}
	n := NewAsyncNotifier(d, LogPublisher{}, 1, 2, time.Second, func(kind string) {
		mu.Lock()
		defer mu.Unlock()
		kinds[kind]++
	})

	// Occupy the only worker
	n.Notify(Notification{Type: TypeNewLeadAlert, AlertID: "a0"})
	<-d.started

	start := time.Now()
	for i := 1; i < 10; i++ {
		n.Notify(Notification{Type: TypeNewLeadAlert})
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(d.release)
	n.Close()

	assert.Equal(t, int32(3), atomic.LoadInt32(&d.sent))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]int{"dropped": 7}, kinds)
}

func TestAsyncNotifierCountsFailures(t *testing.T) {
	var failures int32
	d := &recordingDispatcher{err: errors.New("provider down")}
	p := &recordingPublisher{err: errors.New("redis down")}
	n := NewAsyncNotifier(d, p, 1, 4, time.Second, func(kind string) {
		atomic.AddInt32(&failures, 1)
	})

	n.Notify(Notification{Type: TypeLeadEscalation})
	n.Publish("t", "e", nil)
	n.Close()

	assert.Equal(t, int32(2), atomic.LoadInt32(&failures))

	// Closed notifiers drop silently
	n.Notify(Notification{Type: TypeLeadEscalation})
	assert.Len(t, d.Sent(), 1)
}

func TestWebhookDispatcherRetries(t *testing.T) {
	var hits int32
	var got Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d := NewWebhookDispatcher(srv.URL, WebhookOptions{
		Timeout:      time.Second,
		RetryMax:     2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	})

	err := d.Send(context.Background(), Notification{
		Type:       TypeNewLeadAlert,
		AlertID:    "a1",
		Priority:   models.PriorityCritical,
		Recipients: []string{"u1"},
		Channels:   []string{"email", "sms", "push"},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, "a1", got.AlertID)
	assert.Equal(t, []string{"email", "sms", "push"}, got.Channels)
}

func TestWebhookDispatcherClientError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	d := NewWebhookDispatcher(srv.URL, WebhookOptions{RetryMax: 3, RetryWaitMin: time.Millisecond, RetryWaitMax: time.Millisecond})
	err := d.Send(context.Background(), Notification{Type: TypeNewLeadAlert, AlertID: "a1"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestBreakerDispatcherOpens(t *testing.T) {
	boom := errors.New("provider down")
	d := &recordingDispatcher{err: boom}

	var states []int
	b := NewBreakerDispatcher(d, BreakerSettings{
		Name:            "webhook",
		MaxRequests:     1,
		Timeout:         time.Minute,
		FailureRequests: 3,
		OnStateChange: func(name string, state int) {
			states = append(states, state)
		},
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		assert.True(t, errors.Is(b.Send(ctx, Notification{}), boom))
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	err := b.Send(ctx, Notification{})
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Len(t, d.Sent(), 3)
	assert.Equal(t, []int{int(gobreaker.StateOpen)}, states)
}

func TestRedisPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, "lead_alerts")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	p := NewRedisPublisher(rdb)
	require.NoError(t, p.Publish(ctx, "lead_alerts", "lead_alert.escalated", map[string]string{"alertId": "a1"}))

	select {
	case msg := <-sub.Channel():
		var update LiveUpdate
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &update))
		assert.Equal(t, "lead_alert.escalated", update.Event)
		assert.Equal(t, map[string]interface{}{"alertId": "a1"}, update.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("no live update received")
	}
}
