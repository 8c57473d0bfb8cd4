package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/smilebright/dental-ai-platform/pkg/logging"
)

// RedisBridge replicates events across instances through Redis pub/sub.
// Publish goes to the Redis channel; every instance (including the
// publishing one) receives it there and hands it to its local hub.
type RedisBridge struct {
	redis   *redis.Client
	channel string
	hub     *Hub
	logger  *logging.Logger
}

// NewRedisBridge wires a hub to a Redis channel.
func NewRedisBridge(client *redis.Client, channel string, hub *Hub, logger *logging.Logger) *RedisBridge {
	if client == nil {
		panic("realtime: redis client required")
	}
	if hub == nil {
		panic("realtime: hub required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisBridge{
		redis:   client,
		channel: channel,
		hub:     hub,
		logger:  logger.Named("realtime.redis"),
	}
}

// Publish sends the event through Redis so all instances fan it out.
func (b *RedisBridge) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("realtime: marshal event %s: %w", ev.Name, err)
	}
	if err := b.redis.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("realtime: redis publish: %w", err)
	}
	return nil
}

// Run subscribes to the Redis channel and feeds received events into the
// local hub until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.redis.Subscribe(ctx, b.channel)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Warn("dropping malformed event payload", "error", err)
				continue
			}
			if err := b.hub.Publish(ctx, ev); err != nil {
				b.logger.Error("local fan-out failed", "event", ev.Name, "error", err)
			}
		}
	}
}
