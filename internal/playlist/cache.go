package playlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type scopeKey struct{}

// WithScope attaches a cache scope (typically a session id) to ctx.
func WithScope(ctx context.Context, scope string) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFrom returns the cache scope carried by ctx, or "".
func ScopeFrom(ctx context.Context) string {
	s, _ := ctx.Value(scopeKey{}).(string)
	return s
}

// Cache is a read-through cache for ListAll results. Entries are keyed by
// scope; Invalidate drops the entries of every scope at once.
//
// Get also returns the generation it observed. Set stores nothing unless that
// generation is still current, so a list read before a mutation can never be
// cached after it. A negative generation means the cache is unusable.
type Cache interface {
	Get(ctx context.Context, scope string) (playlists []Playlist, gen int64, ok bool)
	Set(ctx context.Context, scope string, gen int64, playlists []Playlist)
	Invalidate(ctx context.Context)
}

type memoryEntry struct {
	gen       int64
	expiresAt time.Time
	data      []Playlist
}

// MemoryCache keeps entries in process memory. A generation counter makes
// invalidation O(1); stale entries are dropped on the next read or sweep.
type MemoryCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	gen     int64
	entries map[string]memoryEntry
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (c *MemoryCache) Get(_ context.Context, scope string) ([]Playlist, int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[scope]
	if !ok {
		return nil, c.gen, false
	}
	if e.gen != c.gen || !c.now().Before(e.expiresAt) {
		delete(c.entries, scope)
		return nil, c.gen, false
	}
	return clonePlaylists(e.data), c.gen, true
}

func (c *MemoryCache) Set(_ context.Context, scope string, gen int64, playlists []Playlist) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return
	}

	now := c.now()
	for k, e := range c.entries {
		if e.gen != c.gen || !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[scope] = memoryEntry{
		gen:       c.gen,
		expiresAt: now.Add(c.ttl),
		data:      clonePlaylists(playlists),
	}
}

func (c *MemoryCache) Invalidate(context.Context) {
	c.mu.Lock()
	c.gen++
	c.mu.Unlock()
}

// RedisCache stores entries under "<prefix>:<generation>:<scope>" with a TTL.
// Invalidate bumps the generation key so every existing entry becomes
// unreachable and expires on its own. An entry filled with a stale
// generation lands under an old key that no reader looks at.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(rdb *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if prefix == "" {
		prefix = "playlists"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{rdb: rdb, prefix: prefix, ttl: ttl, logger: logger}
}

func (c *RedisCache) genKey() string { return c.prefix + ":gen" }

func (c *RedisCache) entryKey(gen int64, scope string) string {
	return fmt.Sprintf("%s:%d:%s", c.prefix, gen, scope)
}

func (c *RedisCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, c.genKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *RedisCache) Get(ctx context.Context, scope string) ([]Playlist, int64, bool) {
	gen, err := c.generation(ctx)
	if err != nil {
		return nil, -1, false
	}
	data, err := c.rdb.Get(ctx, c.entryKey(gen, scope)).Bytes()
	if err != nil {
		return nil, gen, false
	}
	var out []Playlist
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, gen, false
	}
	return out, gen, true
}

func (c *RedisCache) Set(ctx context.Context, scope string, gen int64, playlists []Playlist) {
	if gen < 0 {
		return
	}
	data, err := json.Marshal(playlists)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, c.entryKey(gen, scope), data, c.ttl)
}

// Invalidate bumps the generation. When that fails the current generation's
// keys are deleted instead so readers fall through to the backend.
func (c *RedisCache) Invalidate(ctx context.Context) {
	err := c.rdb.Incr(ctx, c.genKey()).Err()
	if err == nil {
		return
	}
	c.logger.Warn("failed to invalidate playlist cache", "error", err)

	gen, gerr := c.generation(ctx)
	if gerr != nil {
		return
	}
	var keys []string
	iter := c.rdb.Scan(ctx, 0, fmt.Sprintf("%s:%d:*", c.prefix, gen), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		c.rdb.Del(ctx, keys...)
	}
}

func clonePlaylists(in []Playlist) []Playlist {
	out := make([]Playlist, len(in))
	for i, p := range in {
		out[i] = Playlist{Name: p.Name, Videos: append([]Video(nil), p.Videos...)}
		if out[i].Videos == nil {
			out[i].Videos = []Video{}
		}
	}
	return out
}
