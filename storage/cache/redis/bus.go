package rediscache

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/vericlock/vericlock/core"
)

const (
	busChannel    = keyPrefix + "events"
	defaultBuffer = 32
)

// Bus relays events through Redis Pub/Sub.
type Bus struct {
	rdb    *redis.Client
	logger core.Logger
}

var _ core.EventBus = (*Bus)(nil) // interface compliance check

func NewBus(rdb *redis.Client, logger core.Logger) *Bus {
	return &Bus{rdb: rdb, logger: logger}
}

func (b *Bus) Publish(ctx context.Context, evt core.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrap(err, "encoding event")
	}
	return errors.Wrap(b.rdb.Publish(ctx, busChannel, payload).Err(), "publishing event")
}

func (b *Bus) Subscribe(ctx context.Context) (<-chan core.Event, error) {
	pubsub := b.rdb.Subscribe(ctx, busChannel)
	// wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, errors.Wrap(err, "subscribing to events")
	}

	out := make(chan core.Event, defaultBuffer)
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var evt core.Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					b.logger.Warn("decoding event: "+err.Error(), err)
					continue
				}
				select {
				case out <- evt:
				default:
				}
			}
		}
	}()
	return out, nil
}
