package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultChannel is the pub/sub channel sale events are published on.
const DefaultChannel = "listlift:sales"

// RedisSource reads sale notifications from a Redis pub/sub channel.
type RedisSource struct {
	client  *redis.Client
	channel string
}

func NewRedisSource(client *redis.Client, channel string) *RedisSource {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisSource{client: client, channel: channel}
}

func (r *RedisSource) Subscribe(ctx context.Context) (<-chan SaleNotification, error) {
	pubsub := r.client.Subscribe(ctx, r.channel)
	// Wait for the subscription confirmation so errors surface here
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	out := make(chan SaleNotification)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var n SaleNotification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed sale notification")
					continue
				}
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	log.Info().Str("channel", r.channel).Msg("subscribed to sale notifications")
	return out, nil
}

// Publish sends n on the channel.
func (r *RedisSource) Publish(ctx context.Context, n SaleNotification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode sale notification: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish sale notification: %w", err)
	}
	return nil
}
