package roster

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/timeplus-io/lead-alert-gateway/pkg/models"
)

// RedisProvider reads the roster shared by every gateway instance. The set
// <prefix>:roster holds the IDs of on-shift responders and each profile lives in
// the hash <prefix>:responder:<id>.
type RedisProvider struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisProvider creates a Redis-backed roster
func NewRedisProvider(rdb redis.UniversalClient, keyPrefix string) *RedisProvider {
	return &RedisProvider{rdb: rdb, prefix: keyPrefix}
}

func (p *RedisProvider) rosterKey() string {
	return p.prefix + ":roster"
}

func (p *RedisProvider) responderKey(id string) string {
	return fmt.Sprintf("%s:responder:%s", p.prefix, id)
}

// Available implements Provider
func (p *RedisProvider) Available(ctx context.Context) ([]models.Responder, error) {
	ids, err := p.rdb.SMembers(ctx, p.rosterKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}
	if len(ids) == 0 {
		return []models.Responder{}, nil
	}
	sort.Strings(ids)

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = p.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, p.responderKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read responder profiles: %w", err)
	}

	out := make([]models.Responder, 0, len(ids))
	for i, id := range ids {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			logrus.Warnf("Responder %s is on the roster but has no profile", id)
			continue
		}
		out = append(out, decodeResponder(id, fields))
	}
	return out, nil
}

// Get implements Provider
func (p *RedisProvider) Get(ctx context.Context, id string) (models.Responder, bool, error) {
	fields, err := p.rdb.HGetAll(ctx, p.responderKey(id)).Result()
	if err != nil {
		return models.Responder{}, false, fmt.Errorf("failed to read responder %s: %w", id, err)
	}
	if len(fields) == 0 {
		return models.Responder{}, false, nil
	}
	return decodeResponder(id, fields), true, nil
}

// Add implements Editor. The profile write and roster membership go in one
// transaction.
func (p *RedisProvider) Add(ctx context.Context, r models.Responder) error {
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, p.responderKey(r.ID),
			"name", r.Name,
			"role", r.Role,
			"specialties", strings.Join(r.Specialties, ","),
			"manager_id", r.ManagerID,
			"email", r.Email,
			"phone", r.Phone,
		)
		pipe.SAdd(ctx, p.rosterKey(), r.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to add responder %s: %w", r.ID, err)
	}
	return nil
}

// Remove implements Editor. The profile is kept for escalation lookups.
func (p *RedisProvider) Remove(ctx context.Context, id string) error {
	if err := p.rdb.SRem(ctx, p.rosterKey(), id).Err(); err != nil {
		return fmt.Errorf("failed to remove responder %s: %w", id, err)
	}
	return nil
}

func decodeResponder(id string, fields map[string]string) models.Responder {
	r := models.Responder{
		ID:        id,
		Name:      fields["name"],
		Role:      fields["role"],
		ManagerID: fields["manager_id"],
		Email:     fields["email"],
		Phone:     fields["phone"],
	}
	if s := fields["specialties"]; s != "" {
		for _, sp := range strings.Split(s, ",") {
			if sp = strings.TrimSpace(sp); sp != "" {
				r.Specialties = append(r.Specialties, sp)
			}
		}
	}
	return r
}
