package store

import (
	"context"
	"sync"

	"github.com/timeplus-io/lead-alert-gateway/pkg/models"
)

// MemoryStatsStore is a single-process StatsStore
type MemoryStatsStore struct {
	mu    sync.Mutex
	stats map[string]models.ResponderStats
}

// NewMemoryStatsStore creates an empty in-memory stats store
func NewMemoryStatsStore() *MemoryStatsStore {
	return &MemoryStatsStore{stats: make(map[string]models.ResponderStats)}
}

// Get implements StatsStore
func (s *MemoryStatsStore) Get(ctx context.Context, responderID string) (models.ResponderStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats[responderID]
	st.ResponderID = responderID
	return st, nil
}

// GetMany implements StatsStore
func (s *MemoryStatsStore) GetMany(ctx context.Context, responderIDs []string) (map[string]models.ResponderStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]models.ResponderStats, len(responderIDs))
	for _, id := range responderIDs {
		st := s.stats[id]
		st.ResponderID = id
		out[id] = st
	}
	return out, nil
}

// IncrementActive implements StatsStore
func (s *MemoryStatsStore) IncrementActive(ctx context.Context, responderID string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats[responderID]
	st.ResponderID = responderID
	st.ActiveLeadCount += delta
	if st.ActiveLeadCount < 0 {
		st.ActiveLeadCount = 0
	}
	s.stats[responderID] = st
	return st.ActiveLeadCount, nil
}

// ReserveActive implements StatsStore
func (s *MemoryStatsStore) ReserveActive(ctx context.Context, responderID string, expected int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats[responderID]
	if st.ActiveLeadCount != expected {
		return false, nil
	}
	st.ResponderID = responderID
	st.ActiveLeadCount++
	s.stats[responderID] = st
	return true, nil
}

// RecordResponse implements StatsStore
func (s *MemoryStatsStore) RecordResponse(ctx context.Context, responderID string, responseSeconds float64, withinTarget, releaseActive bool) (models.ResponderStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats[responderID]
	st.ResponderID = responderID
	st = foldResponse(st, responseSeconds, withinTarget, releaseActive)
	s.stats[responderID] = st
	return st, nil
}
