// Package events contains EventPublisher implementations.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/example/dispatch/internal/ports/secondary"
)

// RedisPublisher publishes lifecycle events with Redis PUBLISH on the event topic.
type RedisPublisher struct {
	client redis.UniversalClient
}

// NewRedisPublisher creates a publisher over an existing client.
func NewRedisPublisher(client redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

var _ secondary.EventPublisher = (*RedisPublisher)(nil)

// Publish sends the JSON envelope to event.Topic().
func (p *RedisPublisher) Publish(ctx context.Context, event secondary.Event) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, event.Topic(), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Topic(), err)
	}
	return nil
}

// Encode renders the wire envelope.
func Encode(event secondary.Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", event.EventType, err)
	}
	return payload, nil
}
