package playlist

import (
	"net/http"
	"strings"
)

func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, ok := s.repo.ListAll(r.Context())
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "playlists are unavailable")
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	pl, ok := s.repo.CreatePlaylist(r.Context(), body.Name)
	if !ok {
		writeFailure(w, "could not create playlist")
		return
	}
	writeJSON(w, http.StatusCreated, pl)
}

// handleRenamePlaylist changes a playlist's name. Clients must address the
// playlist by its new name afterwards.
func (s *Server) handleRenamePlaylist(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")

	var body struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	newName := strings.TrimSpace(body.Name)
	if newName == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	if !s.repo.RenamePlaylist(r.Context(), name, newName) {
		writeFailure(w, "could not rename playlist")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": newName})
}

func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	if !s.repo.DeletePlaylist(r.Context(), pathParam(r, "name")) {
		writeFailure(w, "could not delete playlist")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
