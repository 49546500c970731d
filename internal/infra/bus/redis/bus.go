package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"parley/internal/infra/bus"
)

// Bus publishes events through Redis pub/sub so every node's subscribers see
// them, regardless of which node handled the originating request.
type Bus struct {
	client *redis.Client
	logger *slog.Logger
}

// NewBus connects to Redis using a redis:// URL and verifies the connection.
func NewBus(url string, logger *slog.Logger) (*Bus, error) {
	if url == "" {
		return nil, errors.New("redis: url is required")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	if logger != nil {
		logger.Info("redis bus connected", "addr", opt.Addr)
	}
	return &Bus{client: client, logger: logger}, nil
}

func (b *Bus) Publish(ctx context.Context, channel, event string, payload any) error {
	ev, err := bus.Envelope(channel, event, payload)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channel, raw).Err()
}

func (b *Bus) Close() error {
	return b.client.Close()
}

// Subscribe pattern-subscribes to the chat channel namespaces and forwards
// every received envelope to the handler until the context is cancelled.
// Intended to run in its own goroutine feeding the realtime hub.
func (b *Bus) Subscribe(ctx context.Context, handler bus.Handler) error {
	if handler == nil {
		return errors.New("redis: handler is required")
	}
	sub := b.client.PSubscribe(ctx, "user:*", "conversation:*")
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis: subscription closed")
			}
			var ev bus.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				if b.logger != nil {
					b.logger.Warn("dropping malformed bus event", "channel", msg.Channel, "error", err)
				}
				continue
			}
			handler.Deliver(ev)
		}
	}
}
