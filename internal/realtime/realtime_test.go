package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playlist-manager/internal/logging"
	"playlist-manager/internal/playlist"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

// dial connects to a server running h and consumes the welcome frame. The
// welcome is only written after the hub registered the client.
func dial(t *testing.T, h http.Handler, header http.Header) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	msg := readJSON(t, ws)
	require.Equal(t, "welcome", msg["type"])
	return ws
}

func readJSON(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestHandlerBroadcast(t *testing.T) {
	hub := startHub(t)
	h := NewHandler(hub, nil, logging.NullLogger())

	ws1 := dial(t, h, nil)
	ws2 := dial(t, h, nil)

	require.True(t, hub.Broadcast(context.Background(), []byte(`{"type":"video.added"}`)))

	assert.Equal(t, "video.added", readJSON(t, ws1)["type"])
	assert.Equal(t, "video.added", readJSON(t, ws2)["type"])
}

func TestHandlerOrigin(t *testing.T) {
	hub := startHub(t)
	h := NewHandler(hub, []string{"http://localhost:3000"}, logging.NullLogger())

	header := http.Header{}
	header.Set("Origin", "http://localhost:3000")
	dial(t, h, header)

	server := httptest.NewServer(h)
	defer server.Close()

	header.Set("Origin", "http://evil.com")
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), header)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHubPublish(t *testing.T) {
	hub := startHub(t)
	ws := dial(t, NewHandler(hub, nil, logging.NullLogger()), nil)

	var pub playlist.Publisher = hub
	ev := playlist.Event{ID: "1", Type: playlist.EventPlaylistCreated, Payload: map[string]any{"name": "news"}}
	require.NoError(t, pub.Publish(context.Background(), ev))

	msg := readJSON(t, ws)
	assert.Equal(t, playlist.EventPlaylistCreated, msg["type"])
	assert.Equal(t, map[string]any{"name": "news"}, msg["payload"])
}

func TestHubStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	ws := dial(t, NewHandler(hub, nil, logging.NullLogger()), nil)

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	// The client is disconnected.
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	assert.Error(t, err)

	assert.False(t, hub.Broadcast(context.Background(), []byte("late")))
	assert.ErrorIs(t, hub.Publish(context.Background(), playlist.Event{Type: "x"}), ErrHubStopped)
}

func TestRunRedisSubscriber(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	hub := startHub(t)
	ws := dial(t, NewHandler(hub, nil, logging.NullLogger()), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunRedisSubscriber(ctx, rdb, playlist.BroadcastChannel, hub, logging.NullLogger()) }()

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(playlist.BroadcastChannel)[playlist.BroadcastChannel] == 1
	}, 2*time.Second, 10*time.Millisecond)

	pub := playlist.NewRedisPublisher(rdb, playlist.BroadcastChannel)
	require.NoError(t, pub.Publish(context.Background(), playlist.Event{ID: "2", Type: playlist.EventVideoDeleted}))

	assert.Equal(t, playlist.EventVideoDeleted, readJSON(t, ws)["type"])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}
