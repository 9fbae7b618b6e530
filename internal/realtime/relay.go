// README: Redis pub/sub relay so every API replica delivers events to its own connected clients.
package realtime

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/logger"
)

type relayMessage struct {
	Room  string          `json:"room"`
	Event string          `json:"event"`
	Frame json.RawMessage `json:"frame"`
}

type RedisRelay struct {
	rdb     *redis.Client
	channel string
	hub     *Hub
	log     *logger.Logger
}

func NewRedisRelay(rdb *redis.Client, channel string, hub *Hub, log *logger.Logger) *RedisRelay {
	if log == nil {
		log = logger.Nop()
	}
	return &RedisRelay{rdb: rdb, channel: channel, hub: hub, log: log}
}

// Publish sends the event to every replica, this one included, through the Redis channel.
func (r *RedisRelay) Publish(ctx context.Context, room, event string, payload any) error {
	frame, err := Encode(event, payload)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(relayMessage{Room: room, Event: event, Frame: frame})
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, msg).Err()
}

// Run subscribes and feeds the local hub until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	r.log.Info(r.log.WithField(ctx, "channel", r.channel), "realtime.relay.subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return errors.New("relay subscription closed")
			}
			var msg relayMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				r.log.Warn(ctx, "realtime.relay.malformed", err)
				continue
			}
			r.hub.Deliver(ctx, msg.Room, msg.Event, msg.Frame)
		}
	}
}
