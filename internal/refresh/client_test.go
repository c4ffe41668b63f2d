package refresh

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playlist-manager/internal/playlist"
	"playlist-manager/internal/storage/sqlite"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestFetchSendsConfiguredHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		got = r.Header.Clone()
		_, _ = w.Write([]byte(`{"status":"true","url":" http://cdn/new.m3u8 "}`))
	}))
	defer srv.Close()

	c := NewClient(Descriptor{
		Headers: map[string]string{
			"Referer":         "https://example.test/",
			"Accept-Encoding": "br",
		},
		Cookie:    "sid=abc",
		UserAgent: "playlist-manager/test",
		Timeout:   time.Second,
	})

	fresh, err := c.Fetch(context.Background(), srv.URL+"/update?id=1")
	require.NoError(t, err)
	assert.Equal(t, "http://cdn/new.m3u8", fresh)

	assert.Equal(t, "https://example.test/", got.Get("Referer"))
	assert.Equal(t, "sid=abc", got.Get("Cookie"))
	assert.Equal(t, "playlist-manager/test", got.Get("User-Agent"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.NotEqual(t, "br", got.Get("Accept-Encoding"))
}

func TestFetchRejectsUnusableResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"StatusFalse", 200, `{"status":"false","url":"http://x"}`},
		{"StatusBool", 200, `{"status":true,"url":"http://x"}`},
		{"MissingURL", 200, `{"status":"true"}`},
		{"BlankURL", 200, `{"status":"true","url":"  "}`},
		{"NotJSON", 200, `<html>`},
		{"ServerError", 500, `{"status":"true","url":"http://x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(Descriptor{})
			c.http.Transport = roundTripFunc(func(*http.Request) (*http.Response, error) {
				return jsonResponse(tt.status, tt.body), nil
			})

			fresh, err := c.Fetch(context.Background(), "http://update.test/x")
			assert.Empty(t, fresh)
			assert.ErrorIs(t, err, playlist.ErrUpstream)
		})
	}
}

func TestFetchRejectsBadURLs(t *testing.T) {
	var calls atomic.Int32
	c := NewClient(Descriptor{})
	c.http.Transport = roundTripFunc(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return jsonResponse(200, `{}`), nil
	})

	for _, u := range []string{"", "ftp://x/y", "file:///etc/passwd", "http://", "::"} {
		_, err := c.Fetch(context.Background(), u)
		assert.ErrorIs(t, err, playlist.ErrUpstream, "url %q", u)
	}
	assert.Zero(t, calls.Load())
}

func TestFetchTransportError(t *testing.T) {
	c := NewClient(Descriptor{})
	c.http.Transport = roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	})

	_, err := c.Fetch(context.Background(), "http://update.test/x")
	assert.Error(t, err)
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Descriptor{Timeout: 50 * time.Millisecond})
	_, err := c.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestFetchBodyLimit(t *testing.T) {
	c := NewClient(Descriptor{MaxBodyBytes: 16})
	c.http.Transport = roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"status":"true","url":"http://a-very-long-host.example/stream"}`), nil
	})

	_, err := c.Fetch(context.Background(), "http://update.test/x")
	assert.ErrorIs(t, err, playlist.ErrUpstream)
}

// A refresh whose response lacks a url fails and leaves the stored url alone.
func TestRefreshMissingURLKeepsStoredURL(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"true"}`))
	}))
	defer srv.Close()

	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "p.db"))
	require.NoError(t, err)
	defer store.Close()

	repo := playlist.NewRepository(store,
		playlist.WithRefresher(NewClient(Descriptor{Timeout: time.Second})),
		playlist.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	_, ok := repo.CreatePlaylist(ctx, "live")
	require.True(t, ok)
	_, ok = repo.AddVideo(ctx, "live", playlist.Video{Title: "ch", URL: "http://x/old", UpdateURL: srv.URL})
	require.True(t, ok)

	assert.False(t, repo.RefreshVideoURL(ctx, "live", "ch"))

	v, err := store.GetVideo(ctx, "live", "ch")
	require.NoError(t, err)
	assert.Equal(t, "http://x/old", v.URL)
}
