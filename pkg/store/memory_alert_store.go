package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/facebookgo/clock"

	"github.com/timeplus-io/lead-alert-gateway/pkg/models"
)

type memoryEntry struct {
	alert     *models.Alert
	expiresAt time.Time
}

// MemoryAlertStore is a single-process AlertStore. Each update runs under the store
// mutex, which gives the same per-key atomicity as the Redis script.
type MemoryAlertStore struct {
	clock   clock.Clock
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryAlertStore creates an in-memory alert store. A nil clock uses wall time.
func NewMemoryAlertStore(clk clock.Clock) *MemoryAlertStore {
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryAlertStore{
		clock:   clk,
		entries: make(map[string]memoryEntry),
	}
}

// Create implements AlertStore
func (s *MemoryAlertStore) Create(ctx context.Context, alert *models.Alert, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.liveLocked(alert.ID); ok {
		return fmt.Errorf("alert %s: %w", alert.ID, ErrAlertExists)
	}
	s.entries[alert.ID] = memoryEntry{
		alert:     alert.Clone(),
		expiresAt: s.clock.Now().Add(ttl),
	}
	return nil
}

// Get implements AlertStore
func (s *MemoryAlertStore) Get(ctx context.Context, alertID string) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.liveLocked(alertID)
	if !ok {
		return nil, models.ErrAlertNotFound
	}
	return e.alert.Clone(), nil
}

// UpdateIfStatus implements AlertStore
func (s *MemoryAlertStore) UpdateIfStatus(ctx context.Context, alertID string, allowed []models.AlertStatus, mutate Mutator) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.liveLocked(alertID)
	if !ok {
		return nil, models.ErrAlertNotFound
	}
	if !statusAllowed(e.alert.Status, allowed) {
		return nil, fmt.Errorf("alert %s is %s: %w", alertID, e.alert.Status, models.ErrStaleState)
	}

	next, err := applyMutation(e.alert, mutate)
	if err != nil {
		return nil, err
	}
	e.alert = next
	s.entries[alertID] = e
	return next.Clone(), nil
}

// Len returns the number of unexpired alerts
func (s *MemoryAlertStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return len(s.entries)
}

func (s *MemoryAlertStore) liveLocked(alertID string) (memoryEntry, bool) {
	e, ok := s.entries[alertID]
	if !ok {
		return memoryEntry{}, false
	}
	if !s.clock.Now().Before(e.expiresAt) {
		delete(s.entries, alertID)
		return memoryEntry{}, false
	}
	return e, true
}

func (s *MemoryAlertStore) sweepLocked() {
	now := s.clock.Now()
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
		}
	}
}
