package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/facebookgo/clock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timeplus-io/lead-alert-gateway/pkg/models"
)

type alertStoreHarness struct {
	name    string
	store   AlertStore
	advance func(d time.Duration)
}

func newAlertStoreHarnesses(t *testing.T) []alertStoreHarness {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	clk := clock.NewMock()

	return []alertStoreHarness{
		{
			name:    "redis",
			store:   NewRedisAlertStore(rdb, "test"),
			advance: mr.FastForward,
		},
		{
			name:    "memory",
			store:   NewMemoryAlertStore(clk),
			advance: clk.Add,
		},
	}
}

func newPendingAlert(id string) *models.Alert {
	return &models.Alert{
		ID:             id,
		LeadID:         "lead-" + id,
		Lead:           models.LeadSnapshot{Name: "Jane Roof", Phone: "555-0100", Source: "web", Score: 85},
		Priority:       models.PriorityCritical,
		Status:         models.AlertStatusPending,
		AssignedTo:     "u1",
		AssignedToName: "Alice",
		CreatedAt:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func acknowledgeBy(user string) Mutator {
	return func(a *models.Alert) error {
		now := a.CreatedAt.Add(45 * time.Second)
		a.Status = models.AlertStatusAcknowledged
		a.AcknowledgedAt = &now
		a.AcknowledgedBy = user
		return nil
	}
}

func TestAlertStoreCreateAndGet(t *testing.T) {
	for _, h := range newAlertStoreHarnesses(t) {
		t.Run(h.name, func(t *testing.T) {
			ctx := context.Background()
			alert := newPendingAlert("a1")

			require.NoError(t, h.store.Create(ctx, alert, time.Hour))

			got, err := h.store.Get(ctx, "a1")
			require.NoError(t, err)
			assert.Equal(t, models.AlertStatusPending, got.Status)
			assert.Equal(t, "Jane Roof", got.Lead.Name)
			assert.Equal(t, "u1", got.AssignedTo)
			assert.True(t, alert.CreatedAt.Equal(got.CreatedAt))

			err = h.store.Create(ctx, alert, time.Hour)
			assert.True(t, errors.Is(err, ErrAlertExists))

			_, err = h.store.Get(ctx, "missing")
			assert.True(t, errors.Is(err, models.ErrAlertNotFound))
		})
	}
}

func TestAlertStoreExpiry(t *testing.T) {
	for _, h := range newAlertStoreHarnesses(t) {
		t.Run(h.name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, h.store.Create(ctx, newPendingAlert("a1"), time.Hour))

			// Terminal state does not extend the TTL
			_, err := h.store.UpdateIfStatus(ctx, "a1", []models.AlertStatus{models.AlertStatusPending}, func(a *models.Alert) error {
				a.Status = models.AlertStatusResponded
				return nil
			})
			require.NoError(t, err)

			h.advance(59 * time.Minute)
			_, err = h.store.Get(ctx, "a1")
			require.NoError(t, err)

			h.advance(2 * time.Minute)
			_, err = h.store.Get(ctx, "a1")
			assert.True(t, errors.Is(err, models.ErrAlertNotFound))

			_, err = h.store.UpdateIfStatus(ctx, "a1", []models.AlertStatus{models.AlertStatusResponded}, func(a *models.Alert) error { return nil })
			assert.True(t, errors.Is(err, models.ErrAlertNotFound))
		})
	}
}

func TestAlertStoreUpdateIfStatus(t *testing.T) {
	for _, h := range newAlertStoreHarnesses(t) {
		t.Run(h.name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, h.store.Create(ctx, newPendingAlert("a1"), time.Hour))

			updated, err := h.store.UpdateIfStatus(ctx, "a1", []models.AlertStatus{models.AlertStatusPending}, acknowledgeBy("u1"))
			require.NoError(t, err)
			assert.Equal(t, models.AlertStatusAcknowledged, updated.Status)
			assert.Equal(t, "u1", updated.AcknowledgedBy)

			// A second acknowledgment finds the alert past pending
			_, err = h.store.UpdateIfStatus(ctx, "a1", []models.AlertStatus{models.AlertStatusPending}, acknowledgeBy("u2"))
			assert.True(t, errors.Is(err, models.ErrStaleState))

			got, err := h.store.Get(ctx, "a1")
			require.NoError(t, err)
			assert.Equal(t, "u1", got.AcknowledgedBy)
		})
	}
}

func TestAlertStoreRejectsBackwardTransition(t *testing.T) {
	for _, h := range newAlertStoreHarnesses(t) {
		t.Run(h.name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, h.store.Create(ctx, newPendingAlert("a1"), time.Hour))
			_, err := h.store.UpdateIfStatus(ctx, "a1", []models.AlertStatus{models.AlertStatusPending}, acknowledgeBy("u1"))
			require.NoError(t, err)

			_, err = h.store.UpdateIfStatus(ctx, "a1", []models.AlertStatus{models.AlertStatusAcknowledged}, func(a *models.Alert) error {
				a.Status = models.AlertStatusPending
				return nil
			})
			assert.True(t, errors.Is(err, models.ErrInvalidTransition))

			got, err := h.store.Get(ctx, "a1")
			require.NoError(t, err)
			assert.Equal(t, models.AlertStatusAcknowledged, got.Status)
		})
	}
}

func TestAlertStoreMutatorError(t *testing.T) {
	for _, h := range newAlertStoreHarnesses(t) {
		t.Run(h.name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, h.store.Create(ctx, newPendingAlert("a1"), time.Hour))

			boom := errors.New("boom")
			_, err := h.store.UpdateIfStatus(ctx, "a1", []models.AlertStatus{models.AlertStatusPending}, func(a *models.Alert) error {
				a.Status = models.AlertStatusEscalated
				return boom
			})
			assert.True(t, errors.Is(err, boom))

			got, err := h.store.Get(ctx, "a1")
			require.NoError(t, err)
			assert.Equal(t, models.AlertStatusPending, got.Status)
		})
	}
}

func TestAlertStoreConcurrentTransitionsSingleWinner(t *testing.T) {
	for _, h := range newAlertStoreHarnesses(t) {
		t.Run(h.name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, h.store.Create(ctx, newPendingAlert("a1"), time.Hour))

			var wins, stale int32
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					var mutate Mutator
					if i%2 == 0 {
						mutate = acknowledgeBy("u1")
					} else {
						mutate = func(a *models.Alert) error {
							a.Status = models.AlertStatusEscalated
							return nil
						}
					}
					_, err := h.store.UpdateIfStatus(ctx, "a1", []models.AlertStatus{models.AlertStatusPending}, mutate)
					switch {
					case err == nil:
						atomic.AddInt32(&wins, 1)
					case errors.Is(err, models.ErrStaleState):
						atomic.AddInt32(&stale, 1)
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}(i)
			}
			wg.Wait()

			assert.Equal(t, int32(1), wins)
			assert.Equal(t, int32(15), stale)
		})
	}
}

func TestRedisAlertStoreLostRaceIsRejected(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	s := NewRedisAlertStore(rdb, "test")
	require.NoError(t, s.Create(ctx, newPendingAlert("a1"), time.Hour))

	// Another actor responds while our mutation is being computed
	_, err := s.UpdateIfStatus(ctx, "a1", []models.AlertStatus{models.AlertStatusPending, models.AlertStatusAcknowledged}, func(a *models.Alert) error {
		_, innerErr := s.UpdateIfStatus(ctx, "a1", []models.AlertStatus{models.AlertStatusPending}, func(b *models.Alert) error {
			b.Status = models.AlertStatusResponded
			return nil
		})
		if innerErr != nil {
			return innerErr
		}
		a.Status = models.AlertStatusEscalated
		return nil
	})
	assert.True(t, errors.Is(err, models.ErrStaleState))

	got, err := s.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusResponded, got.Status)

	ttl := mr.TTL("test:alert:a1")
	assert.Greater(t, ttl, 59*time.Minute)
}
