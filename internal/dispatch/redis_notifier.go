package dispatch

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"farewatch/pkg/models"
)

// RedisNotifier publishes alerts on a pub/sub channel for a push gateway to
// pick up. Messages published while nobody is subscribed are dropped.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) Name() string {
	return "redis"
}

func (n *RedisNotifier) Send(ctx context.Context, msg models.DispatchMessage) error {
	body, err := encodePush(msg)
	if err != nil {
		return err
	}
	if err := n.client.Publish(ctx, n.channel, body).Err(); err != nil {
		return fmt.Errorf("failed to publish alert to redis channel %s: %w", n.channel, err)
	}
	return nil
}
