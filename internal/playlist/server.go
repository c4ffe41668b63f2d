package playlist

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Server struct {
	repo     *Repository
	realtime http.Handler
	logger   *slog.Logger
}

// NewServer exposes repo over HTTP. realtime, when non-nil, is mounted at /ws.
func NewServer(repo *Repository, realtime http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		repo:     repo,
		realtime: realtime,
		logger:   logger,
	}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		for _, mw := range middlewares {
			r.Use(mw)
		}
		r.Use(SessionScope)

		r.Get("/playlists", s.handleListPlaylists)
		r.Post("/playlists", s.handleCreatePlaylist)
		r.Patch("/playlists/{name}", s.handleRenamePlaylist)
		r.Delete("/playlists/{name}", s.handleDeletePlaylist)

		r.Post("/playlists/{name}/videos", s.handleAddVideo)
		r.Put("/playlists/{name}/videos/{title}", s.handleUpdateVideo)
		r.Delete("/playlists/{name}/videos/{title}", s.handleDeleteVideo)
		r.Post("/playlists/{name}/videos/{title}/refresh", s.handleRefreshVideo)

		if s.realtime != nil {
			r.Handle("/ws", s.realtime)
		}
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.repo.Healthy(r.Context()) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "unavailable",
			"service": "playlist-manager",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "playlist-manager",
	})
}
