package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/couchcryptid/quake-map-service/internal/domain"
	"github.com/couchcryptid/quake-map-service/internal/render"
)

// handleView returns the map view. Clients send back the ETag to skip
// unchanged snapshots.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.View.Snapshot()
	etag := `"v` + strconv.FormatUint(snap.Version, 10) + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleHover(w http.ResponseWriter, r *http.Request) {
	s.markerEvent(w, s.deps.Renderer.Hover(domain.MarkerHandle(r.PathValue("id"))), http.StatusAccepted)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	s.markerEvent(w, s.deps.Renderer.Leave(domain.MarkerHandle(r.PathValue("id"))), http.StatusNoContent)
}

func (s *Server) markerEvent(w http.ResponseWriter, err error, status int) {
	switch {
	case errors.Is(err, render.ErrUnknownMarker):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		w.WriteHeader(status)
	}
}
