package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/couchcryptid/quake-map-service/internal/algorithm"
	"github.com/couchcryptid/quake-map-service/internal/dataset"
	"github.com/couchcryptid/quake-map-service/internal/domain"
)

// handleExecute regenerates the dataset with the requested algorithm, resets
// the controls and redraws the map immediately.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("algorithm")
	if err := algorithm.ValidateName(name); err != nil {
		writeText(w, http.StatusBadRequest, "Invalid algorithm")
		return
	}
	if !s.limiter.Allow() {
		writeText(w, http.StatusTooManyRequests, "Too many requests")
		return
	}

	res, err := s.deps.Runner.Run(r.Context(), name)
	if err != nil {
		s.logger.Error("execute failed", "algorithm", name, "error", err)
		writeText(w, http.StatusInternalServerError, "Failed to execute "+name)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	records := s.reload(ctx)
	s.publish(ctx, domain.RunEvent{
		Algorithm:   name,
		Message:     res.Message,
		Runtime:     res.Runtime,
		Records:     records,
		GeneratedAt: domain.Now(),
	})

	writeJSON(w, http.StatusOK, res)
}

// reload resets the controls, drops the cached dataset and renders the new
// one without waiting for the debounce window. It returns the dataset size.
func (s *Server) reload(ctx context.Context) int {
	s.deps.Filters.Reset()
	s.deps.Dataset.Invalidate()
	if err := s.deps.Renderer.Refresh(ctx); err != nil {
		s.logger.Warn("redraw after generation used an empty dataset", "error", err)
		return 0
	}
	ds, err := s.deps.Dataset.Get(ctx)
	if err != nil {
		return 0
	}
	return ds.Len()
}

func (s *Server) publish(ctx context.Context, event domain.RunEvent) {
	if s.deps.Publisher == nil {
		return
	}
	if err := s.deps.Publisher.PublishRun(ctx, event); err != nil {
		s.logger.Warn("run event not published", "algorithm", event.Algorithm, "error", err)
	}
}

// handleDeleteData removes the generated dataset, as the client does on unload.
func (s *Server) handleDeleteData(w http.ResponseWriter, _ *http.Request) {
	name := s.deps.DataFile.Name()
	if err := s.deps.DataFile.Remove(); err != nil {
		s.logger.Error("delete dataset failed", "error", err)
		writeText(w, http.StatusInternalServerError, "Failed to delete "+name)
		return
	}
	s.deps.Dataset.Invalidate()
	s.logger.Info("dataset deleted", "file", name)
	writeText(w, http.StatusOK, name+" deleted")
}

// handleDataFile serves the generated dataset; 404 until one is generated.
func (s *Server) handleDataFile(w http.ResponseWriter, r *http.Request) {
	data, err := s.deps.DataFile.Fetch(r.Context())
	if errors.Is(err, dataset.ErrNoData) {
		writeError(w, http.StatusNotFound, dataset.ErrNoData)
		return
	}
	if err != nil {
		s.logger.Error("read dataset failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, s.deps.DataFile.Name(), time.Time{}, bytes.NewReader(data))
}
