package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnlive/backend/pkg/redis"
)

const channelPrefix = "session:"

// pubsubPayload is the envelope carried over Redis between server instances.
// Origin lets a hub skip messages it published itself.
type pubsubPayload struct {
	Origin string          `json:"origin"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
	At     time.Time       `json:"at"`
}

// PublishSession publishes an event on the session's Redis channel.
func PublishSession(ctx context.Context, rdb *redis.Client, origin string, sessionID uuid.UUID, event string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(pubsubPayload{
		Origin: origin,
		Event:  event,
		Data:   raw,
		At:     time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return rdb.Publish(ctx, channelPrefix+sessionID.String(), payload).Err()
}

// SubscribeSession subscribes to a session's Redis channel and invokes deliver
// for each message from other instances. The returned func cancels the
// subscription.
func SubscribeSession(ctx context.Context, rdb *redis.Client, origin string, sessionID uuid.UUID, deliver func(room string, msg Message), logger *zap.Logger) func() {
	ctx, cancel := context.WithCancel(ctx)
	room := sessionID.String()
	sub := rdb.Subscribe(ctx, channelPrefix+room)

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				sub.Close()
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var p pubsubPayload
				if err := json.Unmarshal([]byte(m.Payload), &p); err != nil {
					logger.Warn("pubsub decode", zap.Error(err), zap.String("session_id", room))
					continue
				}
				if p.Origin == origin {
					continue
				}
				deliver(room, Message{Event: p.Event, Data: p.Data})
			}
		}
	}()

	return cancel
}
