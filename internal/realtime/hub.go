// Package realtime pushes playlist change events to websocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"errors"

	"playlist-manager/internal/playlist"
)

var ErrHubStopped = errors.New("realtime: hub stopped")

// Hub owns the set of connected clients and fans every message out to all
// of them. Only Run touches the clients map.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Messages to send to every client.
	broadcast chan []byte

	register   chan *Client
	unregister chan *Client

	// Closed when Run returns.
	done chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer.
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	_ = client.conn.Close()
}

// Broadcast queues message for every client. It returns false when the hub
// has stopped or ctx ends first.
func (h *Hub) Broadcast(ctx context.Context, message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	case <-h.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Publish lets the hub act as the repository's event sink when no Redis
// broker is configured.
func (h *Hub) Publish(ctx context.Context, ev playlist.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if !h.Broadcast(ctx, data) {
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrHubStopped
	}
	return nil
}

func (h *Hub) add(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
