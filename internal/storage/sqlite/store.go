// Package sqlite implements playlist.Backend on an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"playlist-manager/internal/playlist"
)

// ErrDatabase wraps every driver error that is not a not-found or conflict.
var ErrDatabase = errors.New("sqlite database error")

func dbErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return playlist.ErrNotFound
	}
	if isUnique(err) {
		return fmt.Errorf("%w: %v", playlist.ErrConflict, err)
	}
	return fmt.Errorf("%w: %v", ErrDatabase, err)
}

func isUnique(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const schema = `
CREATE TABLE IF NOT EXISTS playlists (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS videos (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	playlist_id INTEGER NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
	title       TEXT NOT NULL,
	url         TEXT NOT NULL,
	logo        TEXT,
	update_url  TEXT,
	UNIQUE (playlist_id, title)
);

CREATE INDEX IF NOT EXISTS idx_videos_playlist ON videos(playlist_id);
`

type Store struct {
	conn *sql.DB
}

// Open creates or opens the database file at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, dbErr(err)
	}
	// SQLite allows one writer; a single connection keeps writes serialized.
	conn.SetMaxOpenConns(1)

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		conn.Close()
		return nil, dbErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		conn.Close()
		return nil, dbErr(err)
	}
	if err := tx.Commit(); err != nil {
		conn.Close()
		return nil, dbErr(err)
	}
	return &Store{conn: conn}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

func (s *Store) ListAll(ctx context.Context) ([]playlist.Playlist, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT p.name, v.title, v.url, v.logo, v.update_url
		FROM playlists p
		LEFT JOIN videos v ON v.playlist_id = p.id
		ORDER BY p.name, v.title`)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	playlists := []playlist.Playlist{}
	for rows.Next() {
		var (
			name                        string
			title, url, logo, updateURL sql.NullString
		)
		if err := rows.Scan(&name, &title, &url, &logo, &updateURL); err != nil {
			return nil, dbErr(err)
		}
		if n := len(playlists); n == 0 || playlists[n-1].Name != name {
			playlists = append(playlists, playlist.Playlist{Name: name, Videos: []playlist.Video{}})
		}
		if !title.Valid {
			continue
		}
		last := &playlists[len(playlists)-1]
		last.Videos = append(last.Videos, playlist.Video{
			Title:     title.String,
			URL:       url.String,
			Logo:      logo.String,
			UpdateURL: updateURL.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	return playlists, nil
}

func (s *Store) GetVideo(ctx context.Context, playlistName, title string) (*playlist.Video, error) {
	var (
		v               playlist.Video
		logo, updateURL sql.NullString
	)
	err := s.conn.QueryRowContext(ctx, `
		SELECT v.title, v.url, v.logo, v.update_url
		FROM videos v
		JOIN playlists p ON v.playlist_id = p.id
		WHERE p.name = ? AND v.title = ?`, playlistName, title).
		Scan(&v.Title, &v.URL, &logo, &updateURL)
	if err != nil {
		return nil, dbErr(err)
	}
	v.Logo = logo.String
	v.UpdateURL = updateURL.String
	return &v, nil
}

func (s *Store) CreatePlaylist(ctx context.Context, name string) (*playlist.Playlist, error) {
	if _, err := s.conn.ExecContext(ctx, `INSERT INTO playlists (name) VALUES (?)`, name); err != nil {
		return nil, dbErr(err)
	}
	return &playlist.Playlist{Name: name, Videos: []playlist.Video{}}, nil
}

func (s *Store) DeletePlaylist(ctx context.Context, name string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM playlists WHERE name = ?`, name)
	return affected(res, err)
}

func (s *Store) RenamePlaylist(ctx context.Context, oldName, newName string) error {
	res, err := s.conn.ExecContext(ctx, `UPDATE playlists SET name = ? WHERE name = ?`, newName, oldName)
	return affected(res, err)
}

func (s *Store) AddVideo(ctx context.Context, playlistName string, v playlist.Video) (*playlist.Playlist, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, dbErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	var playlistID int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM playlists WHERE name = ?`, playlistName).Scan(&playlistID); err != nil {
		return nil, dbErr(err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO videos (playlist_id, title, url, logo, update_url)
		VALUES (?, ?, ?, ?, ?)`,
		playlistID, v.Title, v.URL, nullString(v.Logo), nullString(v.UpdateURL)); err != nil {
		return nil, dbErr(err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT title, url, logo, update_url
		FROM videos
		WHERE playlist_id = ?
		ORDER BY title`, playlistID)
	if err != nil {
		return nil, dbErr(err)
	}
	videos := []playlist.Video{}
	for rows.Next() {
		var (
			video           playlist.Video
			logo, updateURL sql.NullString
		)
		if err := rows.Scan(&video.Title, &video.URL, &logo, &updateURL); err != nil {
			rows.Close()
			return nil, dbErr(err)
		}
		video.Logo = logo.String
		video.UpdateURL = updateURL.String
		videos = append(videos, video)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, dbErr(err)
	}
	return &playlist.Playlist{Name: playlistName, Videos: videos}, nil
}

func (s *Store) UpdateVideo(ctx context.Context, playlistName, oldTitle string, v playlist.Video) error {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE videos
		SET title = ?, url = ?, logo = ?, update_url = ?
		WHERE playlist_id = (SELECT id FROM playlists WHERE name = ?)
		  AND title = ?`,
		v.Title, v.URL, nullString(v.Logo), nullString(v.UpdateURL), playlistName, oldTitle)
	return affected(res, err)
}

func (s *Store) SetVideoURL(ctx context.Context, playlistName, title, url string) error {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE videos
		SET url = ?
		WHERE playlist_id = (SELECT id FROM playlists WHERE name = ?)
		  AND title = ?`,
		url, playlistName, title)
	return affected(res, err)
}

func (s *Store) DeleteVideo(ctx context.Context, playlistName, title string) error {
	res, err := s.conn.ExecContext(ctx, `
		DELETE FROM videos
		WHERE playlist_id = (SELECT id FROM playlists WHERE name = ?)
		  AND title = ?`,
		playlistName, title)
	return affected(res, err)
}

// affected turns a zero-row write into playlist.ErrNotFound.
func affected(res sql.Result, err error) error {
	if err != nil {
		return dbErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbErr(err)
	}
	if n == 0 {
		return playlist.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
