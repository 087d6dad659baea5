// Package http serves the browser client and the map session API.
package http

import (
	"context"
	"encoding/json"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/quake-map-service/internal/adapter/mapview"
	"github.com/couchcryptid/quake-map-service/internal/algorithm"
	"github.com/couchcryptid/quake-map-service/internal/domain"
)

// FilterStore is the filter state holder driven by the control endpoints.
type FilterStore interface {
	Snapshot() domain.FilterState
	Bounds() domain.YearRange
	Catalog() []domain.MagnitudeBucket
	SetYearRange(r domain.YearRange) (domain.FilterState, error)
	SetBucket(id string, checked bool) (domain.FilterState, error)
	SetBuckets(ids []string) (domain.FilterState, error)
	SelectAll(checked bool) domain.FilterState
	Only(id string) (domain.FilterState, error)
	SetLocation(query string) domain.FilterState
	Reset() domain.FilterState
}

// Renderer runs the map pipeline and handles marker pointer events.
type Renderer interface {
	Refresh(ctx context.Context) error
	Hover(h domain.MarkerHandle) error
	Leave(h domain.MarkerHandle) error
}

// ViewSource provides the current map view.
type ViewSource interface {
	Snapshot() mapview.Snapshot
}

// Dataset is the session's dataset cache.
type Dataset interface {
	Get(ctx context.Context) (domain.Dataset, error)
	Invalidate()
}

// DataFile is the generated dataset file, served and deleted by name.
type DataFile interface {
	Fetch(ctx context.Context) ([]byte, error)
	Remove() error
	Name() string
}

// RunPublisher announces completed generation runs.
type RunPublisher interface {
	PublishRun(ctx context.Context, event domain.RunEvent) error
}

// Options configures the HTTP surface.
type Options struct {
	Addr        string
	CORSOrigins []string
	ExecuteRate float64
	Static      fs.FS
}

// Deps are the collaborators behind the endpoints. Publisher may be nil.
type Deps struct {
	Filters   FilterStore
	Renderer  Renderer
	View      ViewSource
	Dataset   Dataset
	DataFile  DataFile
	Runner    algorithm.Runner
	Publisher RunPublisher
	Ready     sharedobs.ReadinessChecker
}

// Server exposes the static client, the session API, and health, readiness,
// and metrics endpoints.
type Server struct {
	httpServer *http.Server
	deps       Deps
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewServer creates the HTTP server and registers every route.
func NewServer(opts Options, deps Deps, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		deps:     deps,
		limiter:  rate.NewLimiter(rate.Limit(opts.ExecuteRate), 1),
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(deps.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /execute", s.handleExecute)
	mux.HandleFunc("POST /deleteEarthquakeData", s.handleDeleteData)
	mux.HandleFunc("GET /"+deps.DataFile.Name(), s.handleDataFile)

	mux.HandleFunc("GET /api/view", s.handleView)
	mux.HandleFunc("GET /api/filters", s.handleGetFilters)
	mux.HandleFunc("POST /api/filters/years", s.handleSetYears)
	mux.HandleFunc("POST /api/filters/magnitudes", s.handleSetBuckets)
	mux.HandleFunc("POST /api/filters/magnitudes/all", s.handleSelectAll)
	mux.HandleFunc("POST /api/filters/magnitudes/{id}", s.handleSetBucket)
	mux.HandleFunc("POST /api/filters/magnitudes/{id}/only", s.handleOnly)
	mux.HandleFunc("POST /api/filters/location", s.handleSetLocation)
	mux.HandleFunc("POST /api/filters/reset", s.handleReset)
	mux.HandleFunc("POST /api/markers/{id}/hover", s.handleHover)
	mux.HandleFunc("POST /api/markers/{id}/leave", s.handleLeave)

	if opts.Static != nil {
		mux.Handle("GET /", http.FileServerFS(opts.Static))
	}

	handler := cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "If-None-Match"},
		ExposedHeaders: []string{"ETag"},
		MaxAge:         300,
	})(mux)

	s.httpServer = &http.Server{
		Addr:         opts.Addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 3 * time.Minute, // covers EXECUTE_TIMEOUT
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
