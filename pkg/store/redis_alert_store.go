package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/timeplus-io/lead-alert-gateway/pkg/models"
)

// Alerts are stored as a hash {status, data}. The status field is duplicated out of the
// JSON document so the conditional write can compare it server side.
const (
	fieldStatus = "status"
	fieldData   = "data"
)

// createAlertScript writes the alert only if the key is absent and applies the TTL
// in the same round trip.
var createAlertScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// casAlertScript replaces the alert only if the stored status still equals the status
// the new document was computed from. HSET on an existing key keeps its TTL.
// Returns -1 when the key is gone, 0 when the status moved, 1 on write.
var casAlertScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'status')
if not current then
	return -1
end
if current ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[2], 'data', ARGV[3])
return 1
`)

// RedisAlertStore is the AlertStore backed by Redis
type RedisAlertStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisAlertStore creates a Redis-backed alert store
func NewRedisAlertStore(rdb redis.UniversalClient, keyPrefix string) *RedisAlertStore {
	return &RedisAlertStore{rdb: rdb, prefix: keyPrefix}
}

func (s *RedisAlertStore) key(alertID string) string {
	return fmt.Sprintf("%s:alert:%s", s.prefix, alertID)
}

// Create implements AlertStore
func (s *RedisAlertStore) Create(ctx context.Context, alert *models.Alert, ttl time.Duration) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert %s: %w", alert.ID, err)
	}

	created, err := createAlertScript.Run(ctx, s.rdb, []string{s.key(alert.ID)},
		string(alert.Status), string(data), ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to create alert %s: %w", alert.ID, err)
	}
	if created == 0 {
		return fmt.Errorf("alert %s: %w", alert.ID, ErrAlertExists)
	}
	return nil
}

// Get implements AlertStore
func (s *RedisAlertStore) Get(ctx context.Context, alertID string) (*models.Alert, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key(alertID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read alert %s: %w", alertID, err)
	}
	return decodeAlert(alertID, fields)
}

// UpdateIfStatus implements AlertStore
func (s *RedisAlertStore) UpdateIfStatus(ctx context.Context, alertID string, allowed []models.AlertStatus, mutate Mutator) (*models.Alert, error) {
	key := s.key(alertID)

	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		current, err := s.Get(ctx, alertID)
		if err != nil {
			return nil, err
		}
		if !statusAllowed(current.Status, allowed) {
			return nil, fmt.Errorf("alert %s is %s: %w", alertID, current.Status, models.ErrStaleState)
		}

		next, err := applyMutation(current, mutate)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal alert %s: %w", alertID, err)
		}

		res, err := casAlertScript.Run(ctx, s.rdb, []string{key},
			string(current.Status), string(next.Status), string(data)).Int()
		if err != nil {
			return nil, fmt.Errorf("failed to update alert %s: %w", alertID, err)
		}

		switch res {
		case 1:
			return next, nil
		case -1:
			return nil, models.ErrAlertNotFound
		}

		logrus.Debugf("Conditional update of alert %s lost a race (attempt %d/%d)", alertID, attempt, maxCASAttempts)
	}

	return nil, fmt.Errorf("alert %s changed during %d update attempts: %w", alertID, maxCASAttempts, models.ErrStaleState)
}

func decodeAlert(alertID string, fields map[string]string) (*models.Alert, error) {
	data, ok := fields[fieldData]
	if !ok || data == "" {
		return nil, models.ErrAlertNotFound
	}

	var alert models.Alert
	if err := json.Unmarshal([]byte(data), &alert); err != nil {
		return nil, fmt.Errorf("failed to decode alert %s: %w", alertID, err)
	}
	if status := models.AlertStatus(fields[fieldStatus]); status.Valid() {
		alert.Status = status
	}
	return &alert, nil
}
