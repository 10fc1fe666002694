package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LiveUpdate is the message published on a live-update channel
type LiveUpdate struct {
	Event       string      `json:"event"`
	Payload     interface{} `json:"payload"`
	PublishedAt time.Time   `json:"publishedAt"`
}

// RedisPublisher publishes live updates on Redis pub/sub. The socket layer
// subscribes to the topic channel.
type RedisPublisher struct {
	rdb redis.UniversalClient
}

// NewRedisPublisher creates a Redis pub/sub publisher
func NewRedisPublisher(rdb redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

// Publish implements Publisher
func (p *RedisPublisher) Publish(ctx context.Context, topic, event string, payload interface{}) error {
	data, err := json.Marshal(LiveUpdate{Event: event, Payload: payload, PublishedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal live update %s: %w", event, err)
	}
	if err := p.rdb.Publish(ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s on %s: %w", event, topic, err)
	}
	return nil
}
