// Command import loads playlists from a JSON file into the configured
// storage, or with --export writes every stored playlist as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"playlist-manager/internal/config"
	"playlist-manager/internal/logging"
	"playlist-manager/internal/playlist"
	"playlist-manager/internal/storage"
)

var errListUnavailable = errors.New("playlists are unavailable")

func main() {
	fs := pflag.NewFlagSet("playlist-import", pflag.ExitOnError)
	config.AddFlags(fs)
	file := fs.StringP("file", "f", "-", "JSON file with an array of playlists, - for stdin")
	export := fs.Bool("export", false, "write all playlists to stdout instead of importing")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "playlist-import: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *file, *export); err != nil {
		logger.Error("playlist-import failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, file string, export bool) error {
	backend, err := storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer backend.Close()

	repo := playlist.NewRepository(backend, playlist.WithLogger(logger))
	if export {
		return runExport(ctx, repo, os.Stdout)
	}
	return importFile(ctx, repo, file)
}

func importFile(ctx context.Context, repo *playlist.Repository, path string) error {
	in := io.Reader(os.Stdin)
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	return runImport(ctx, repo, in, os.Stdout)
}

// runImport reads a JSON array of playlists from in and writes the import
// report to out.
func runImport(ctx context.Context, repo *playlist.Repository, in io.Reader, out io.Writer) error {
	var playlists []playlist.Playlist
	if err := json.NewDecoder(in).Decode(&playlists); err != nil {
		return fmt.Errorf("decode playlists: %w", err)
	}

	report := repo.Import(ctx, playlists)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d items could not be imported", report.Failed)
	}
	return nil
}

func runExport(ctx context.Context, repo *playlist.Repository, out io.Writer) error {
	playlists, ok := repo.ListAll(ctx)
	if !ok {
		return errListUnavailable
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(playlists)
}
