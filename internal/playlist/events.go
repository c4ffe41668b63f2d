package playlist

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// BroadcastChannel is the Redis channel change events are published on.
const BroadcastChannel = "broadcast"

const (
	EventPlaylistCreated = "playlist.created"
	EventPlaylistDeleted = "playlist.deleted"
	EventPlaylistRenamed = "playlist.renamed"
	EventVideoAdded      = "video.added"
	EventVideoUpdated    = "video.updated"
	EventVideoDeleted    = "video.deleted"
	EventVideoRefreshed  = "video.refreshed"
)

// Event notifies downstream consumers that the collection changed.
type Event struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
	At      time.Time      `json:"at"`
}

func newEvent(typ string, payload map[string]any) Event {
	return Event{
		ID:      uuid.NewString(),
		Type:    typ,
		Payload: payload,
		At:      time.Now().UTC(),
	}
}

// Publisher delivers change events. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// RedisPublisher publishes events as JSON on a Redis pub/sub channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = BroadcastChannel
	}
	return &RedisPublisher{rdb: rdb, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, data).Err()
}
