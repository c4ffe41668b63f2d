package playlist

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// Refresher resolves a fresh media url from a video's update url.
type Refresher interface {
	Fetch(ctx context.Context, updateURL string) (string, error)
}

// Repository is the only entry point for reading and mutating playlists.
// Every method reports plain success or failure; causes are logged, never
// returned. Successful mutations invalidate the list cache and publish a
// change event.
type Repository struct {
	backend   Backend
	cache     Cache
	publisher Publisher
	refresher Refresher
	logger    *slog.Logger
}

type Option func(*Repository)

func WithCache(c Cache) Option { return func(r *Repository) { r.cache = c } }

func WithPublisher(p Publisher) Option { return func(r *Repository) { r.publisher = p } }

func WithRefresher(f Refresher) Option { return func(r *Repository) { r.refresher = f } }

func WithLogger(l *slog.Logger) Option { return func(r *Repository) { r.logger = l } }

func NewRepository(backend Backend, opts ...Option) *Repository {
	r := &Repository{backend: backend}
	for _, opt := range opts {
		opt(r)
	}
	if r.publisher == nil {
		r.publisher = NopPublisher{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// ListAll returns every playlist with its videos. On failure it returns an
// empty, non-nil slice and false.
func (r *Repository) ListAll(ctx context.Context) ([]Playlist, bool) {
	scope := ScopeFrom(ctx)
	var gen int64
	if r.cache != nil && scope != "" {
		pls, g, ok := r.cache.Get(ctx, scope)
		if ok {
			return pls, true
		}
		gen = g
	}

	pls, err := r.backend.ListAll(ctx)
	if err != nil {
		r.logger.Error("failed to list playlists", "error", err)
		return []Playlist{}, false
	}
	if pls == nil {
		pls = []Playlist{}
	}
	if r.cache != nil && scope != "" {
		r.cache.Set(ctx, scope, gen, pls)
	}
	return pls, true
}

func (r *Repository) CreatePlaylist(ctx context.Context, name string) (*Playlist, bool) {
	name, err := validateName(name)
	if err != nil {
		r.logger.Debug("rejected playlist", "error", err)
		return nil, false
	}

	pl, err := r.backend.CreatePlaylist(ctx, name)
	if err != nil {
		r.logFailure("failed to create playlist", err, "playlist", name)
		return nil, false
	}

	r.changed(ctx, EventPlaylistCreated, map[string]any{"playlist": pl})
	r.logger.Info("created playlist", "playlist", name)
	return pl, true
}

func (r *Repository) DeletePlaylist(ctx context.Context, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}

	if err := r.backend.DeletePlaylist(ctx, name); err != nil {
		r.logFailure("failed to delete playlist", err, "playlist", name)
		return false
	}

	r.changed(ctx, EventPlaylistDeleted, map[string]any{"name": name})
	r.logger.Info("deleted playlist", "playlist", name)
	return true
}

func (r *Repository) RenamePlaylist(ctx context.Context, oldName, newName string) bool {
	oldName = strings.TrimSpace(oldName)
	newName, err := validateName(newName)
	if err != nil || oldName == "" {
		r.logger.Debug("rejected playlist rename", "from", oldName, "error", err)
		return false
	}
	if oldName == newName {
		// Nothing changes, but the playlist still has to exist.
		if !r.exists(ctx, oldName) {
			r.logger.Info("failed to rename playlist", "from", oldName, "to", newName, "error", ErrNotFound)
			return false
		}
		return true
	}

	if err := r.backend.RenamePlaylist(ctx, oldName, newName); err != nil {
		r.logFailure("failed to rename playlist", err, "from", oldName, "to", newName)
		return false
	}

	r.changed(ctx, EventPlaylistRenamed, map[string]any{"from": oldName, "to": newName})
	r.logger.Info("renamed playlist", "from", oldName, "to", newName)
	return true
}

// AddVideo adds v to the named playlist and returns the playlist as stored afterwards.
func (r *Repository) AddVideo(ctx context.Context, playlistName string, v Video) (*Playlist, bool) {
	playlistName = strings.TrimSpace(playlistName)
	v = v.normalize()
	if err := v.validate(); err != nil || playlistName == "" {
		r.logger.Debug("rejected video", "playlist", playlistName, "error", err)
		return nil, false
	}

	pl, err := r.backend.AddVideo(ctx, playlistName, v)
	if err != nil {
		r.logFailure("failed to add video", err, "playlist", playlistName, "title", v.Title)
		return nil, false
	}

	r.changed(ctx, EventVideoAdded, map[string]any{"playlist": playlistName, "video": v})
	r.logger.Info("added video", "playlist", playlistName, "title", v.Title)
	return pl, true
}

// UpdateVideo replaces every field of the video currently titled oldTitle,
// including the title itself. Empty Logo or UpdateURL clears the field.
func (r *Repository) UpdateVideo(ctx context.Context, playlistName, oldTitle string, v Video) bool {
	playlistName = strings.TrimSpace(playlistName)
	oldTitle = strings.TrimSpace(oldTitle)
	v = v.normalize()
	if err := v.validate(); err != nil || playlistName == "" || oldTitle == "" {
		r.logger.Debug("rejected video update", "playlist", playlistName, "title", oldTitle, "error", err)
		return false
	}

	if err := r.backend.UpdateVideo(ctx, playlistName, oldTitle, v); err != nil {
		r.logFailure("failed to update video", err, "playlist", playlistName, "title", oldTitle)
		return false
	}

	r.changed(ctx, EventVideoUpdated, map[string]any{"playlist": playlistName, "oldTitle": oldTitle, "video": v})
	r.logger.Info("updated video", "playlist", playlistName, "title", oldTitle, "newTitle", v.Title)
	return true
}

func (r *Repository) DeleteVideo(ctx context.Context, playlistName, title string) bool {
	playlistName = strings.TrimSpace(playlistName)
	title = strings.TrimSpace(title)
	if playlistName == "" || title == "" {
		return false
	}

	if err := r.backend.DeleteVideo(ctx, playlistName, title); err != nil {
		r.logFailure("failed to delete video", err, "playlist", playlistName, "title", title)
		return false
	}

	r.changed(ctx, EventVideoDeleted, map[string]any{"playlist": playlistName, "title": title})
	r.logger.Info("deleted video", "playlist", playlistName, "title", title)
	return true
}

// RefreshVideoURL asks the video's update url for a fresh media url and stores
// it. Only the url changes. Videos without an update url fail without any
// network call.
func (r *Repository) RefreshVideoURL(ctx context.Context, playlistName, title string) bool {
	playlistName = strings.TrimSpace(playlistName)
	title = strings.TrimSpace(title)
	if r.refresher == nil {
		r.logger.Error("url refresh is not configured")
		return false
	}

	v, err := r.backend.GetVideo(ctx, playlistName, title)
	if err != nil {
		r.logFailure("failed to load video for refresh", err, "playlist", playlistName, "title", title)
		return false
	}
	if v.UpdateURL == "" {
		r.logger.Warn("video has no update url", "playlist", playlistName, "title", title)
		return false
	}

	fresh, err := r.refresher.Fetch(ctx, v.UpdateURL)
	if err != nil {
		r.logger.Error("failed to fetch fresh url", "playlist", playlistName, "title", title, "updateUrl", v.UpdateURL, "error", err)
		return false
	}
	fresh = strings.TrimSpace(fresh)
	if fresh == "" {
		r.logger.Error("update url returned an empty url", "playlist", playlistName, "title", title)
		return false
	}

	if err := r.backend.SetVideoURL(ctx, playlistName, title, fresh); err != nil {
		r.logFailure("failed to store refreshed url", err, "playlist", playlistName, "title", title)
		return false
	}

	r.changed(ctx, EventVideoRefreshed, map[string]any{"playlist": playlistName, "title": title, "url": fresh})
	r.logger.Info("refreshed video url", "playlist", playlistName, "title", title)
	return true
}

// ImportReport summarises a bulk import.
type ImportReport struct {
	Playlists int `json:"playlists"`
	Videos    int `json:"videos"`
	Failed    int `json:"failed"`
}

// Import creates each playlist and adds its videos. A playlist that already
// exists is not an error: its videos are merged into it.
func (r *Repository) Import(ctx context.Context, playlists []Playlist) ImportReport {
	var rep ImportReport
	for _, p := range playlists {
		if _, ok := r.CreatePlaylist(ctx, p.Name); ok {
			rep.Playlists++
		} else if !r.exists(ctx, p.Name) {
			rep.Failed += 1 + len(p.Videos)
			continue
		}
		for _, v := range p.Videos {
			if _, ok := r.AddVideo(ctx, p.Name, v); ok {
				rep.Videos++
			} else {
				rep.Failed++
			}
		}
	}
	return rep
}

// Healthy reports whether the backend is reachable.
func (r *Repository) Healthy(ctx context.Context) bool {
	if err := r.backend.Ping(ctx); err != nil {
		r.logger.Error("backend ping failed", "error", err)
		return false
	}
	return true
}

func (r *Repository) exists(ctx context.Context, name string) bool {
	name = strings.TrimSpace(name)
	pls, err := r.backend.ListAll(ctx)
	if err != nil {
		return false
	}
	for _, p := range pls {
		if p.Name == name {
			return true
		}
	}
	return false
}

func (r *Repository) changed(ctx context.Context, typ string, payload map[string]any) {
	if r.cache != nil {
		r.cache.Invalidate(ctx)
	}
	if err := r.publisher.Publish(ctx, newEvent(typ, payload)); err != nil {
		r.logger.Warn("failed to publish event", "type", typ, "error", err)
	}
}

// logFailure logs expected outcomes (not found, conflict) below error level.
func (r *Repository) logFailure(msg string, err error, args ...any) {
	args = append(args, "error", err)
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
		r.logger.Info(msg, args...)
		return
	}
	r.logger.Error(msg, args...)
}
