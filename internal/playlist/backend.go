package playlist

import "context"

// Backend is the persistence contract shared by every storage strategy.
// Exactly one implementation is active per process.
//
// Implementations report ErrNotFound when a referenced playlist or video does
// not exist and ErrConflict when a playlist name or a video title inside one
// playlist is already taken. Every other error is a storage failure.
// Each method is atomic with respect to the underlying store.
type Backend interface {
	// ListAll returns every playlist, ordered by name, with videos ordered by title.
	// Playlists without videos are included with an empty slice.
	ListAll(ctx context.Context) ([]Playlist, error)
	GetVideo(ctx context.Context, playlistName, title string) (*Video, error)

	CreatePlaylist(ctx context.Context, name string) (*Playlist, error)
	// DeletePlaylist removes the playlist and all of its videos.
	DeletePlaylist(ctx context.Context, name string) error
	RenamePlaylist(ctx context.Context, oldName, newName string) error

	// AddVideo appends v and returns the playlist as it is after the insert.
	AddVideo(ctx context.Context, playlistName string, v Video) (*Playlist, error)
	// UpdateVideo replaces every field of the video currently titled oldTitle.
	UpdateVideo(ctx context.Context, playlistName, oldTitle string, v Video) error
	// SetVideoURL replaces only the url of a video.
	SetVideoURL(ctx context.Context, playlistName, title, url string) error
	DeleteVideo(ctx context.Context, playlistName, title string) error

	Ping(ctx context.Context) error
	Close() error
}
