package metrics

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/timeplus-io/lead-alert-gateway/pkg/models"
)

// EventStore is the durable, append-only log of completed responses
type EventStore interface {
	Append(ctx context.Context, event models.ResponseEvent) error
	Since(ctx context.Context, from time.Time) ([]models.ResponseEvent, error)
}

// MemoryEventStore keeps response events in process. Used in development and tests.
type MemoryEventStore struct {
	mu     sync.RWMutex
	events []models.ResponseEvent
}

// NewMemoryEventStore creates an empty in-memory event store
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{}
}

// Append implements EventStore
func (s *MemoryEventStore) Append(ctx context.Context, event models.ResponseEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Since implements EventStore
func (s *MemoryEventStore) Since(ctx context.Context, from time.Time) ([]models.ResponseEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ResponseEvent, 0, len(s.events))
	for _, e := range s.events {
		if !e.RespondedAt.Before(from) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RespondedAt.Before(out[j].RespondedAt)
	})
	return out, nil
}
