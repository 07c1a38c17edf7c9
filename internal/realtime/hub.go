// Package realtime pushes chat and escrow events to connected browsers
// over websockets, with Redis pub/sub fanning events out across server
// instances.
package realtime

import (
	"context"

	"github.com/rs/zerolog"

	"ipmarket-server/internal/infrastructure/metrics"
)

// Envelope is one routed event: a channel name plus the encoded payload.
// Channel names are "chat:<roomID>" and "user:<walletAddress>".
type Envelope struct {
	Channel string
	Payload []byte
}

// Hub routes envelopes to the connected clients subscribed to their
// channel. Only the run loop touches the clients map, so it needs no lock.
type Hub struct {
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	deliver    chan Envelope

	log zerolog.Logger
}

// NewHub creates the hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan Envelope, 256),
		log:        log.With().Str("component", "realtime-hub").Logger(),
	}
}

// Deliver hands an envelope to the run loop for fan-out. Non-blocking; a
// full hub drops the event, the client catches up on its next list fetch.
func (h *Hub) Deliver(env Envelope) {
	select {
	case h.deliver <- env:
	default:
		h.log.Warn().Str("channel", env.Channel).Msg("hub delivery queue full, event dropped")
	}
}

// Run owns the client set until the context ends.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			metrics.WebsocketClients.Set(0)
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			metrics.WebsocketClients.Inc()

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.WebsocketClients.Dec()
			}

		case env := <-h.deliver:
			for client := range h.clients {
				if !client.subscribed(env.Channel) {
					continue
				}
				select {
				case client.send <- env.Payload:
				default:
					// Slow consumer; disconnect rather than block the hub.
					delete(h.clients, client)
					close(client.send)
					metrics.WebsocketClients.Dec()
				}
			}
		}
	}
}
