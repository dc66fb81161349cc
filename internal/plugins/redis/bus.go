package redis

import (
	"context"
	"encoding/json"
	"log/slog"

	"assist/internal/core/contracts"

	"github.com/redis/go-redis/v9"
)

// RedisEventBus mirrors channel broadcasts to every server instance over a
// single Pub/Sub channel.
type RedisEventBus struct {
	rdb     *redis.Client
	channel string
	log     *slog.Logger
}

func NewRedisEventBus(log *slog.Logger, rdb *redis.Client, channel string) *RedisEventBus {
	return &RedisEventBus{rdb: rdb, channel: channel, log: log}
}

func (b *RedisEventBus) Publish(ctx context.Context, msg contracts.BusMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// Subscribe blocks until ctx is done or the subscription fails.
func (b *RedisEventBus) Subscribe(ctx context.Context, handler func(ctx context.Context, msg contracts.BusMessage)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	b.log.InfoContext(ctx, "bus - subscribe - listening", "channel", b.channel)
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg contracts.BusMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				b.log.WarnContext(ctx, "bus - subscribe - wrong payload", "err", err)
				continue
			}
			handler(ctx, msg)
		}
	}
}
