package store

import (
	"context"
	"sync"

	"github.com/timeplus-io/lead-alert-gateway/pkg/models"
)

// AuditLog records alert lifecycle transitions beyond the alert record's TTL
type AuditLog interface {
	AppendAlertEvent(ctx context.Context, event models.AlertEvent) error
	History(ctx context.Context, alertID string) ([]models.AlertEvent, error)
}

// MemoryAuditLog is an in-process AuditLog
type MemoryAuditLog struct {
	mu     sync.RWMutex
	events map[string][]models.AlertEvent
}

// NewMemoryAuditLog creates an empty audit log
func NewMemoryAuditLog() *MemoryAuditLog {
	return &MemoryAuditLog{events: make(map[string][]models.AlertEvent)}
}

// AppendAlertEvent implements AuditLog
func (l *MemoryAuditLog) AppendAlertEvent(ctx context.Context, event models.AlertEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events[event.AlertID] = append(l.events[event.AlertID], event)
	return nil
}

// History implements AuditLog
func (l *MemoryAuditLog) History(ctx context.Context, alertID string) ([]models.AlertEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.AlertEvent{}, l.events[alertID]...), nil
}
