package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards events. It is used when redis is not configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// streamMaxLen caps the stream; trimming is approximate.
const streamMaxLen = 10000

type RedisPublisher struct {
	client *redis.Client
	stream string
}

func NewRedisPublisher(client *redis.Client, stream string) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream}
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: event.Values(),
	}).Err()
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.Type, p.stream, err)
	}
	return nil
}
