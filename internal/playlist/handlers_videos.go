package playlist

import (
	"net/http"
	"strings"
)

type videoBody struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Logo      string `json:"logo"`
	UpdateURL string `json:"updateUrl"`
}

func (b videoBody) video() Video {
	return Video{Title: b.Title, URL: b.URL, Logo: b.Logo, UpdateURL: b.UpdateURL}
}

func (b videoBody) check() string {
	if strings.TrimSpace(b.Title) == "" {
		return "title is required"
	}
	if strings.TrimSpace(b.URL) == "" {
		return "url is required"
	}
	return ""
}

func (s *Server) handleAddVideo(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")

	var body videoBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if msg := body.check(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	pl, ok := s.repo.AddVideo(r.Context(), name, body.video())
	if !ok {
		writeFailure(w, "could not add video")
		return
	}
	writeJSON(w, http.StatusCreated, pl)
}

func (s *Server) handleUpdateVideo(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	title := pathParam(r, "title")

	var body videoBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if msg := body.check(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if !s.repo.UpdateVideo(r.Context(), name, title, body.video()) {
		writeFailure(w, "could not update video")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	if !s.repo.DeleteVideo(r.Context(), pathParam(r, "name"), pathParam(r, "title")) {
		writeFailure(w, "could not delete video")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefreshVideo(w http.ResponseWriter, r *http.Request) {
	if !s.repo.RefreshVideoURL(r.Context(), pathParam(r, "name"), pathParam(r, "title")) {
		writeFailure(w, "could not refresh video url")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
