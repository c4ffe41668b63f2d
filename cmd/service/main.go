package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"playlist-manager/internal/auth"
	"playlist-manager/internal/config"
	"playlist-manager/internal/logging"
	"playlist-manager/internal/playlist"
	"playlist-manager/internal/realtime"
	"playlist-manager/internal/refresh"
	"playlist-manager/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	fs := pflag.NewFlagSet("playlist-manager", pflag.ExitOnError)
	config.AddFlags(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "playlist-manager: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	backend, err := storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer backend.Close()

	hub := realtime.NewHub()
	go hub.Run(ctx)

	opts := []playlist.Option{
		playlist.WithLogger(logger),
		playlist.WithRefresher(refresh.NewClient(refresh.Descriptor{
			Headers:      cfg.Refresh.Headers,
			Cookie:       cfg.Refresh.Cookie,
			UserAgent:    cfg.Refresh.UserAgent,
			Timeout:      cfg.Refresh.Timeout,
			MaxBodyBytes: cfg.Refresh.MaxBodyBytes,
		})),
	}

	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable at startup", "error", err)
		}

		opts = append(opts,
			playlist.WithCache(playlist.NewRedisCache(rdb, cfg.Redis.CachePrefix, cfg.Cache.TTL, logger)),
			playlist.WithPublisher(playlist.NewRedisPublisher(rdb, cfg.Redis.Channel)),
		)
		go func() {
			if err := realtime.RunRedisSubscriber(ctx, rdb, cfg.Redis.Channel, hub, logger); err != nil {
				logger.Error("redis subscriber stopped", "error", err)
			}
		}()
	} else {
		// Single instance: events go straight to local websocket clients.
		opts = append(opts,
			playlist.WithCache(playlist.NewMemoryCache(cfg.Cache.TTL)),
			playlist.WithPublisher(hub),
		)
	}

	repo := playlist.NewRepository(backend, opts...)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTP.Port),
		Handler:           newHandler(cfg, repo, hub, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("playlist-manager listening", "addr", srv.Addr, "storage", cfg.Storage.Driver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newHandler(cfg *config.Config, repo *playlist.Repository, hub *realtime.Hub, logger *slog.Logger) http.Handler {
	mws := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		playlist.RequestLogger(logger),
		middleware.Recoverer,
	}
	if cfg.HTTP.RequestTimeout > 0 {
		mws = append(mws, middleware.Timeout(cfg.HTTP.RequestTimeout))
	}
	if cfg.HTTP.MaxBodyBytes > 0 {
		mws = append(mws, playlist.BodySizeLimit(cfg.HTTP.MaxBodyBytes))
	}
	if cfg.Auth.JWTSecret != "" {
		mws = append(mws, auth.Middleware([]byte(cfg.Auth.JWTSecret), cfg.Auth.CookieName))
	} else {
		logger.Warn("auth disabled: auth.jwt_secret is empty")
	}

	ws := realtime.NewHandler(hub, cfg.HTTP.AllowedOrigins, logger)
	return playlist.NewServer(repo, ws, logger).Router(mws...)
}
