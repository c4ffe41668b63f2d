// Package postgres implements playlist.Backend on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"playlist-manager/internal/playlist"
)

// DB is the subset of *pgxpool.Pool the store needs. pgxmock satisfies it too.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

type PoolConfig struct {
	DSN             string
	MaxConns        int32
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// NewPool opens a bounded connection pool and checks it is reachable.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.ConnectTimeout > 0 {
		pc.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

type Store struct {
	db     DB
	logger *slog.Logger

	schemaOnce sync.Once
	schemaErr  error
}

func New(db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Init ensures the schema exists. Later calls return the first result.
func (s *Store) Init(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		s.schemaErr = EnsureSchema(ctx, s.db, s.logger)
	})
	return s.schemaErr
}

func (s *Store) ListAll(ctx context.Context) ([]playlist.Playlist, error) {
	rows, err := s.db.Query(ctx, `
		SELECT p.name, v.title, v.url, v.logo, v."updateUrl"
		FROM "Playlist" p
		LEFT JOIN "Video" v ON p.id = v."playlistId"
		ORDER BY p.name COLLATE "C", v.title COLLATE "C"
	`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	playlists := []playlist.Playlist{}
	for rows.Next() {
		var (
			name                         string
			title, url, logo, updateURL *string
		)
		if err := rows.Scan(&name, &title, &url, &logo, &updateURL); err != nil {
			return nil, mapErr(err)
		}
		if n := len(playlists); n == 0 || playlists[n-1].Name != name {
			playlists = append(playlists, playlist.Playlist{Name: name, Videos: []playlist.Video{}})
		}
		if title == nil {
			continue
		}
		last := &playlists[len(playlists)-1]
		last.Videos = append(last.Videos, playlist.Video{
			Title:     *title,
			URL:       deref(url),
			Logo:      deref(logo),
			UpdateURL: deref(updateURL),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return playlists, nil
}

func (s *Store) GetVideo(ctx context.Context, playlistName, title string) (*playlist.Video, error) {
	var (
		v               playlist.Video
		logo, updateURL *string
	)
	err := s.db.QueryRow(ctx, `
		SELECT v.title, v.url, v.logo, v."updateUrl"
		FROM "Video" v
		JOIN "Playlist" p ON v."playlistId" = p.id
		WHERE p.name = $1 AND v.title = $2
		LIMIT 1
	`, playlistName, title).Scan(&v.Title, &v.URL, &logo, &updateURL)
	if err != nil {
		return nil, mapErr(err)
	}
	v.Logo = deref(logo)
	v.UpdateURL = deref(updateURL)
	return &v, nil
}

func (s *Store) CreatePlaylist(ctx context.Context, name string) (*playlist.Playlist, error) {
	var id int
	err := s.db.QueryRow(ctx, `INSERT INTO "Playlist" (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	if err != nil {
		return nil, mapErr(err)
	}
	return &playlist.Playlist{Name: name, Videos: []playlist.Video{}}, nil
}

func (s *Store) DeletePlaylist(ctx context.Context, name string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM "Playlist" WHERE name = $1`, name)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return playlist.ErrNotFound
	}
	return nil
}

func (s *Store) RenamePlaylist(ctx context.Context, oldName, newName string) error {
	tag, err := s.db.Exec(ctx, `UPDATE "Playlist" SET name = $1 WHERE name = $2`, newName, oldName)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return playlist.ErrNotFound
	}
	return nil
}

// AddVideo locks the playlist row so a concurrent delete cannot slip between
// the insert and the read back.
func (s *Store) AddVideo(ctx context.Context, playlistName string, v playlist.Video) (*playlist.Playlist, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, mapErr(err)
	}
	defer tx.Rollback(ctx)

	var playlistID int
	err = tx.QueryRow(ctx, `SELECT id FROM "Playlist" WHERE name = $1 FOR UPDATE`, playlistName).Scan(&playlistID)
	if err != nil {
		return nil, mapErr(err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO "Video" (title, url, logo, "updateUrl", "playlistId")
		VALUES ($1, $2, $3, $4, $5)
	`, v.Title, v.URL, nullable(v.Logo), nullable(v.UpdateURL), playlistID); err != nil {
		return nil, mapErr(err)
	}

	rows, err := tx.Query(ctx, `
		SELECT title, url, logo, "updateUrl"
		FROM "Video"
		WHERE "playlistId" = $1
		ORDER BY title COLLATE "C"
	`, playlistID)
	if err != nil {
		return nil, mapErr(err)
	}
	videos, err := scanVideos(rows)
	if err != nil {
		return nil, mapErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapErr(err)
	}
	return &playlist.Playlist{Name: playlistName, Videos: videos}, nil
}

func (s *Store) UpdateVideo(ctx context.Context, playlistName, oldTitle string, v playlist.Video) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE "Video" v
		SET title = $1, url = $2, logo = $3, "updateUrl" = $4
		FROM "Playlist" p
		WHERE v."playlistId" = p.id
		  AND p.name = $5
		  AND v.title = $6
	`, v.Title, v.URL, nullable(v.Logo), nullable(v.UpdateURL), playlistName, oldTitle)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return playlist.ErrNotFound
	}
	return nil
}

func (s *Store) SetVideoURL(ctx context.Context, playlistName, title, url string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE "Video" v
		SET url = $1
		FROM "Playlist" p
		WHERE v."playlistId" = p.id
		  AND p.name = $2
		  AND v.title = $3
	`, url, playlistName, title)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return playlist.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteVideo(ctx context.Context, playlistName, title string) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM "Video" v
		USING "Playlist" p
		WHERE v."playlistId" = p.id
		  AND p.name = $1
		  AND v.title = $2
	`, playlistName, title)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return playlist.ErrNotFound
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Close() error {
	if c, ok := s.db.(interface{ Close() }); ok {
		c.Close()
	}
	return nil
}

func scanVideos(rows pgx.Rows) ([]playlist.Video, error) {
	defer rows.Close()

	videos := []playlist.Video{}
	for rows.Next() {
		var (
			v               playlist.Video
			logo, updateURL *string
		)
		if err := rows.Scan(&v.Title, &v.URL, &logo, &updateURL); err != nil {
			return nil, err
		}
		v.Logo = deref(logo)
		v.UpdateURL = deref(updateURL)
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", playlist.ErrConflict, pgErr.ConstraintName)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return playlist.ErrNotFound
	}
	return fmt.Errorf("postgres: %w", err)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
