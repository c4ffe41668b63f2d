package realtime

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RunRedisSubscriber relays every message on channel to the hub until ctx
// is cancelled. It returns an error only when the subscription cannot be
// established.
func RunRedisSubscriber(ctx context.Context, rdb *redis.Client, channel string, hub *Hub, logger *slog.Logger) error {
	sub := rdb.Subscribe(ctx, channel)
	defer sub.Close()

	// Wait for the confirmation so nothing published after this returns is missed.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	logger.Info("subscribed to events", "channel", channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if !hub.Broadcast(ctx, []byte(msg.Payload)) {
				return nil
			}
		}
	}
}
