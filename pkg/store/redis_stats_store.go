package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/timeplus-io/lead-alert-gateway/pkg/models"
)

// recordResponseScript folds one response into the responder hash atomically.
// ARGV[1] = response seconds, ARGV[2] = 1 if within target else 0,
// ARGV[3] = 1 to release one active lead.
var recordResponseScript = redis.NewScript(`
local key = KEYS[1]
local value = tonumber(ARGV[1])
local within = tonumber(ARGV[2])
local release = tonumber(ARGV[3])
local count = tonumber(redis.call('HGET', key, 'total_responses') or '0')
local total = tonumber(redis.call('HGET', key, 'total_response_time_seconds') or '0')
local avg = tonumber(redis.call('HGET', key, 'avg_response_time_seconds') or '0')
local hits = tonumber(redis.call('HGET', key, 'within_target_count') or '0')
local active = tonumber(redis.call('HGET', key, 'active_lead_count') or '0')

avg = (avg * count + value) / (count + 1)
count = count + 1
total = total + value
hits = hits + within
local rate = hits / count * 100
active = active - release
if active < 0 then
	active = 0
end

local out = {
	tostring(count),
	string.format('%.17g', total),
	string.format('%.17g', avg),
	tostring(hits),
	string.format('%.17g', rate),
	tostring(active),
}
redis.call('HSET', key,
	'total_responses', out[1],
	'total_response_time_seconds', out[2],
	'avg_response_time_seconds', out[3],
	'within_target_count', out[4],
	'target_rate_percent', out[5],
	'active_lead_count', out[6])
return out
`)

// incrActiveScript adjusts the active gauge and clamps it at zero
var incrActiveScript = redis.NewScript(`
local v = redis.call('HINCRBY', KEYS[1], 'active_lead_count', ARGV[1])
if v < 0 then
	redis.call('HSET', KEYS[1], 'active_lead_count', 0)
	v = 0
end
return v
`)

// reserveActiveScript increments the active gauge only when it still holds ARGV[1]
var reserveActiveScript = redis.NewScript(`
local current = tonumber(redis.call('HGET', KEYS[1], 'active_lead_count') or '0')
if current ~= tonumber(ARGV[1]) then
	return 0
end
redis.call('HINCRBY', KEYS[1], 'active_lead_count', 1)
return 1
`)

// RedisStatsStore is the StatsStore backed by one Redis hash per responder
type RedisStatsStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisStatsStore creates a Redis-backed stats store
func NewRedisStatsStore(rdb redis.UniversalClient, keyPrefix string) *RedisStatsStore {
	return &RedisStatsStore{rdb: rdb, prefix: keyPrefix}
}

func (s *RedisStatsStore) key(responderID string) string {
	return fmt.Sprintf("%s:responder_stats:%s", s.prefix, responderID)
}

// Get implements StatsStore
func (s *RedisStatsStore) Get(ctx context.Context, responderID string) (models.ResponderStats, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key(responderID)).Result()
	if err != nil {
		return models.ResponderStats{}, fmt.Errorf("failed to read stats for %s: %w", responderID, err)
	}
	return parseStats(responderID, fields), nil
}

// GetMany implements StatsStore
func (s *RedisStatsStore) GetMany(ctx context.Context, responderIDs []string) (map[string]models.ResponderStats, error) {
	out := make(map[string]models.ResponderStats, len(responderIDs))
	if len(responderIDs) == 0 {
		return out, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(responderIDs))
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range responderIDs {
			cmds[i] = pipe.HGetAll(ctx, s.key(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read responder stats: %w", err)
	}

	for i, id := range responderIDs {
		out[id] = parseStats(id, cmds[i].Val())
	}
	return out, nil
}

// IncrementActive implements StatsStore
func (s *RedisStatsStore) IncrementActive(ctx context.Context, responderID string, delta int64) (int64, error) {
	v, err := incrActiveScript.Run(ctx, s.rdb, []string{s.key(responderID)}, delta).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to update active count for %s: %w", responderID, err)
	}
	return v, nil
}

// ReserveActive implements StatsStore
func (s *RedisStatsStore) ReserveActive(ctx context.Context, responderID string, expected int64) (bool, error) {
	v, err := reserveActiveScript.Run(ctx, s.rdb, []string{s.key(responderID)}, expected).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to reserve active lead for %s: %w", responderID, err)
	}
	return v == 1, nil
}

// RecordResponse implements StatsStore
func (s *RedisStatsStore) RecordResponse(ctx context.Context, responderID string, responseSeconds float64, withinTarget, releaseActive bool) (models.ResponderStats, error) {
	within := 0
	if withinTarget {
		within = 1
	}
	release := 0
	if releaseActive {
		release = 1
	}

	vals, err := recordResponseScript.Run(ctx, s.rdb, []string{s.key(responderID)}, responseSeconds, within, release).StringSlice()
	if err != nil {
		return models.ResponderStats{}, fmt.Errorf("failed to record response for %s: %w", responderID, err)
	}
	if len(vals) != 6 {
		return models.ResponderStats{}, fmt.Errorf("unexpected stats reply for %s: %v", responderID, vals)
	}

	return parseStats(responderID, map[string]string{
		statTotalResponses: vals[0],
		statTotalTime:      vals[1],
		statAvgTime:        vals[2],
		statWithinTarget:   vals[3],
		statTargetRate:     vals[4],
		statActive:         vals[5],
	}), nil
}
