// Package bolt implements playlist.Backend as a single JSON document inside
// a bbolt file. It suits single-host deployments without a database server.
package bolt

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	bolt "go.etcd.io/bbolt"

	"playlist-manager/internal/playlist"
)

var bucketPlaylists = []byte("playlists")

// DefaultKey is the key the document is stored under.
const DefaultKey = "playlists"

type Store struct {
	db  *bolt.DB
	key []byte
}

// Open opens or creates the file at path. key selects the document inside
// the bucket; empty means DefaultKey.
func Open(path, key string) (*Store, error) {
	if key == "" {
		key = DefaultKey
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPlaylists)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, key: []byte(key)}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketPlaylists) == nil {
			return fmt.Errorf("bucket %q missing", bucketPlaylists)
		}
		return nil
	})
}

// load decodes the document. A missing key is an empty collection.
func (s *Store) load(tx *bolt.Tx) ([]playlist.Playlist, error) {
	data := tx.Bucket(bucketPlaylists).Get(s.key)
	if data == nil {
		return []playlist.Playlist{}, nil
	}
	var pls []playlist.Playlist
	if err := json.Unmarshal(data, &pls); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.key, err)
	}
	return pls, nil
}

func (s *Store) save(tx *bolt.Tx, pls []playlist.Playlist) error {
	data, err := json.Marshal(pls)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketPlaylists).Put(s.key, data)
}

// update runs fn against the decoded document and writes the result back in
// the same transaction. Returning an error from fn discards every change.
func (s *Store) update(fn func(pls []playlist.Playlist) ([]playlist.Playlist, error)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		pls, err := s.load(tx)
		if err != nil {
			return err
		}
		pls, err = fn(pls)
		if err != nil {
			return err
		}
		return s.save(tx, pls)
	})
}

func (s *Store) ListAll(context.Context) ([]playlist.Playlist, error) {
	var out []playlist.Playlist
	err := s.db.View(func(tx *bolt.Tx) error {
		pls, err := s.load(tx)
		if err != nil {
			return err
		}
		out = pls
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Videos == nil {
			out[i].Videos = []playlist.Video{}
		}
		slices.SortFunc(out[i].Videos, func(a, b playlist.Video) int { return cmp.Compare(a.Title, b.Title) })
	}
	slices.SortFunc(out, func(a, b playlist.Playlist) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) GetVideo(_ context.Context, playlistName, title string) (*playlist.Video, error) {
	var found *playlist.Video
	err := s.db.View(func(tx *bolt.Tx) error {
		pls, err := s.load(tx)
		if err != nil {
			return err
		}
		i := indexOf(pls, playlistName)
		if i < 0 {
			return playlist.ErrNotFound
		}
		v, ok := pls[i].FindVideo(title)
		if !ok {
			return playlist.ErrNotFound
		}
		found = &v
		return nil
	})
	return found, err
}

func (s *Store) CreatePlaylist(_ context.Context, name string) (*playlist.Playlist, error) {
	err := s.update(func(pls []playlist.Playlist) ([]playlist.Playlist, error) {
		if indexOf(pls, name) >= 0 {
			return nil, fmt.Errorf("%w: playlist %q", playlist.ErrConflict, name)
		}
		return append(pls, playlist.Playlist{Name: name, Videos: []playlist.Video{}}), nil
	})
	if err != nil {
		return nil, err
	}
	return &playlist.Playlist{Name: name, Videos: []playlist.Video{}}, nil
}

func (s *Store) DeletePlaylist(_ context.Context, name string) error {
	return s.update(func(pls []playlist.Playlist) ([]playlist.Playlist, error) {
		i := indexOf(pls, name)
		if i < 0 {
			return nil, playlist.ErrNotFound
		}
		return slices.Delete(pls, i, i+1), nil
	})
}

func (s *Store) RenamePlaylist(_ context.Context, oldName, newName string) error {
	return s.update(func(pls []playlist.Playlist) ([]playlist.Playlist, error) {
		i := indexOf(pls, oldName)
		if i < 0 {
			return nil, playlist.ErrNotFound
		}
		if indexOf(pls, newName) >= 0 {
			return nil, fmt.Errorf("%w: playlist %q", playlist.ErrConflict, newName)
		}
		pls[i].Name = newName
		return pls, nil
	})
}

func (s *Store) AddVideo(_ context.Context, playlistName string, v playlist.Video) (*playlist.Playlist, error) {
	var out playlist.Playlist
	err := s.update(func(pls []playlist.Playlist) ([]playlist.Playlist, error) {
		i := indexOf(pls, playlistName)
		if i < 0 {
			return nil, playlist.ErrNotFound
		}
		if _, ok := pls[i].FindVideo(v.Title); ok {
			return nil, fmt.Errorf("%w: video %q", playlist.ErrConflict, v.Title)
		}
		pls[i].Videos = append(pls[i].Videos, v)

		out = playlist.Playlist{Name: pls[i].Name, Videos: slices.Clone(pls[i].Videos)}
		return pls, nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out.Videos, func(a, b playlist.Video) int { return cmp.Compare(a.Title, b.Title) })
	return &out, nil
}

func (s *Store) UpdateVideo(_ context.Context, playlistName, oldTitle string, v playlist.Video) error {
	return s.update(func(pls []playlist.Playlist) ([]playlist.Playlist, error) {
		i, j, err := locate(pls, playlistName, oldTitle)
		if err != nil {
			return nil, err
		}
		if v.Title != oldTitle {
			if _, taken := pls[i].FindVideo(v.Title); taken {
				return nil, fmt.Errorf("%w: video %q", playlist.ErrConflict, v.Title)
			}
		}
		pls[i].Videos[j] = v
		return pls, nil
	})
}

func (s *Store) SetVideoURL(_ context.Context, playlistName, title, url string) error {
	return s.update(func(pls []playlist.Playlist) ([]playlist.Playlist, error) {
		i, j, err := locate(pls, playlistName, title)
		if err != nil {
			return nil, err
		}
		pls[i].Videos[j].URL = url
		return pls, nil
	})
}

func (s *Store) DeleteVideo(_ context.Context, playlistName, title string) error {
	return s.update(func(pls []playlist.Playlist) ([]playlist.Playlist, error) {
		i, j, err := locate(pls, playlistName, title)
		if err != nil {
			return nil, err
		}
		pls[i].Videos = slices.Delete(pls[i].Videos, j, j+1)
		return pls, nil
	})
}

func indexOf(pls []playlist.Playlist, name string) int {
	return slices.IndexFunc(pls, func(p playlist.Playlist) bool { return p.Name == name })
}

func locate(pls []playlist.Playlist, playlistName, title string) (int, int, error) {
	i := indexOf(pls, playlistName)
	if i < 0 {
		return 0, 0, playlist.ErrNotFound
	}
	j := slices.IndexFunc(pls[i].Videos, func(v playlist.Video) bool { return v.Title == title })
	if j < 0 {
		return 0, 0, playlist.ErrNotFound
	}
	return i, j, nil
}
