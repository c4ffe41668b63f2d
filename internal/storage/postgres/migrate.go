package postgres

import (
	"context"
	"log/slog"
)

const createTables = `
	CREATE TABLE IF NOT EXISTS "Playlist" (
		id   SERIAL PRIMARY KEY,
		name VARCHAR(255) UNIQUE NOT NULL
	);
	CREATE TABLE IF NOT EXISTS "Video" (
		id           SERIAL PRIMARY KEY,
		title        VARCHAR(255) NOT NULL,
		url          VARCHAR NOT NULL,
		logo         VARCHAR,
		"updateUrl"  VARCHAR,
		"playlistId" INTEGER REFERENCES "Playlist"(id) ON DELETE CASCADE
	);
`

// Older deployments created "Video" without the optional columns.
const upgradeColumns = `
	ALTER TABLE "Video" ADD COLUMN IF NOT EXISTS logo VARCHAR;
	ALTER TABLE "Video" ADD COLUMN IF NOT EXISTS "updateUrl" VARCHAR;
`

const uniqueTitleIndex = `
	CREATE UNIQUE INDEX IF NOT EXISTS "Video_playlistId_title_key"
	ON "Video" ("playlistId", title)
`

// EnsureSchema creates the tables when they are missing and applies the
// idempotent upgrades. It is meant to run once per process.
func EnsureSchema(ctx context.Context, db DB, logger *slog.Logger) error {
	var exists bool
	err := db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'Playlist')
		   AND EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'Video')
	`).Scan(&exists)
	if err != nil {
		return err
	}

	if !exists {
		logger.Info("creating playlist schema")
		if _, err := db.Exec(ctx, createTables); err != nil {
			return err
		}
	}

	if _, err := db.Exec(ctx, upgradeColumns); err != nil {
		return err
	}

	// Fails when legacy rows already share a title inside one playlist. The
	// service still works then; title lookups just hit the first match.
	if _, err := db.Exec(ctx, uniqueTitleIndex); err != nil {
		logger.Warn("could not enforce unique video titles", "error", err)
	}

	return nil
}
