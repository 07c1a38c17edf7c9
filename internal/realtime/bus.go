package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ipmarket-server/internal/domain/chat"
	"ipmarket-server/internal/infrastructure/metrics"
)

// RoomChannel names the pub/sub channel for one chat room.
func RoomChannel(roomID string) string { return "chat:" + roomID }

// UserChannel names the pub/sub channel for one wallet's notifications.
func UserChannel(wallet string) string { return "user:" + wallet }

// Bus publishes chat events to Redis and feeds subscribed channels back
// into the local hub, so events reach clients on every server instance.
// It implements chat.EventPublisher.
type Bus struct {
	rdb *redis.Client
	hub *Hub
	log zerolog.Logger
}

var _ chat.EventPublisher = (*Bus)(nil)

// NewBus creates the bus.
func NewBus(rdb *redis.Client, hub *Hub, log zerolog.Logger) *Bus {
	return &Bus{
		rdb: rdb,
		hub: hub,
		log: log.With().Str("component", "realtime-bus").Logger(),
	}
}

// PublishRoomEvent implements chat.EventPublisher. The event goes to the
// room channel and to each participant's user channel, so room lists
// refresh without a room subscription.
func (b *Bus) PublishRoomEvent(ctx context.Context, event chat.Event) error {
	if event.Room == nil {
		return fmt.Errorf("event %s carries no room", event.Type)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.Type, err)
	}

	channels := []string{RoomChannel(event.Room.PublicID)}
	for _, participant := range event.Room.Participants {
		channels = append(channels, UserChannel(participant))
	}

	for _, channel := range channels {
		if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
			return fmt.Errorf("publish %s to %s: %w", event.Type, channel, err)
		}
	}

	metrics.RealtimeEventsTotal.WithLabelValues(event.Type).Inc()
	return nil
}

// Run subscribes to all chat and user channels and forwards everything to
// the hub until the context ends.
func (b *Bus) Run(ctx context.Context) {
	pubsub := b.rdb.PSubscribe(ctx, "chat:*", "user:*")
	defer pubsub.Close()

	b.log.Info().Msg("realtime bus subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.hub.Deliver(Envelope{Channel: msg.Channel, Payload: []byte(msg.Payload)})
		}
	}
}
