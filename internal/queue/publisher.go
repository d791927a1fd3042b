package queue

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamMaxLen caps the feed stream. Fan-out is cache maintenance, not a
// system of record; anything a worker misses is rebuilt by the next cache
// warm, so old messages can be trimmed freely.
const StreamMaxLen = 10000

// Publisher pushes feed events onto a stream.
type Publisher interface {
	// Publish appends an event and returns the Redis-assigned message ID.
	Publish(ctx context.Context, stream string, event FeedEvent) (messageID string, err error)
}

type RedisPublisher struct {
	client *redis.Client
}

// NewPublisher creates a Publisher backed by Redis Streams.
func NewPublisher(client *redis.Client) Publisher {
	return &RedisPublisher{client: client}
}

// Publish appends the event with XADD, letting Redis mint the ID and trimming
// the stream to roughly StreamMaxLen as it goes.
func (p *RedisPublisher) Publish(ctx context.Context, stream string, event FeedEvent) (string, error) {
	start := time.Now()

	values, err := event.ToMap()
	if err != nil {
		return "", fmt.Errorf("serialize event: %w", err)
	}

	messageID, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: StreamMaxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd to stream: %w", err)
	}

	log.Printf("[Publisher] Publish OK: stream=%s type=%s msgID=%s duration=%v",
		stream, event.Type, messageID, time.Since(start))
	return messageID, nil
}
