package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Producer appends chain links to the Redis stream. Each message carries a
// durable cursor, so a lost consumer resumes the set exactly where the
// previous link stopped.
type Producer struct {
	client *redis.Client
	stream string
}

func NewProducer(client *redis.Client, stream string) *Producer {
	return &Producer{client: client, stream: stream}
}

func (p *Producer) EnqueueLink(ctx context.Context, setID string, batchStart int) error {
	if p.client == nil {
		return fmt.Errorf("queue unavailable")
	}
	_, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"setId":      setID,
			"batchStart": batchStart,
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("enqueue chain link: %w", err)
	}
	return nil
}
