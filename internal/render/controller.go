// Package render keeps the map view consistent with the current filter state.
// Filter changes are coalesced by a trailing-edge debounce; each executed run
// filters the cached dataset, ranks it, rebuilds every marker and refreshes
// the summary panel, in that order and never interleaved with another run.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-map-service/internal/debounce"
	"github.com/couchcryptid/quake-map-service/internal/domain"
	"github.com/couchcryptid/quake-map-service/internal/observability"
)

// ErrUnknownMarker is returned for a marker handle that is not currently placed.
var ErrUnknownMarker = errors.New("unknown marker")

// Default quiescence windows.
const (
	DefaultRedrawWindow = 300 * time.Millisecond
	DefaultPopupWindow  = 100 * time.Millisecond
)

// MapAdapter is the marker and popup capability of the map widget.
type MapAdapter interface {
	CreateMarker(pos domain.Position, style domain.MarkerStyle) domain.MarkerHandle
	RemoveMarker(h domain.MarkerHandle)
	ShowPopup(h domain.MarkerHandle, content domain.PopupContent)
	HidePopup()
}

// Batcher is implemented by map adapters that can publish a group of changes
// atomically. When the adapter supports it, each run's marker rebuild and
// summary update become visible together.
type Batcher interface {
	Begin()
	Commit()
}

// SummaryView displays the count, ranking tables and extent of a run.
type SummaryView interface {
	ShowSummary(s domain.Summary)
}

// DatasetProvider returns the full, unfiltered dataset.
type DatasetProvider interface {
	Get(ctx context.Context) (domain.Dataset, error)
}

// FilterSource exposes the current filter state.
type FilterSource interface {
	Snapshot() domain.FilterState
}

// Options tunes the controller. Zero values select the defaults.
type Options struct {
	RedrawWindow time.Duration
	PopupWindow  time.Duration
	Clock        clockwork.Clock
}

// Controller is the only writer to the map adapter and summary view.
type Controller struct {
	data    DatasetProvider
	filters FilterSource
	view    MapAdapter
	summary SummaryView
	batch   Batcher
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock

	redraw *debounce.Debouncer[domain.FilterState]
	popup  *debounce.Debouncer[domain.MarkerHandle]

	runMu sync.Mutex // serializes pipeline runs

	mu      sync.Mutex
	markers map[domain.MarkerHandle]domain.EarthquakeRecord
	last    domain.Summary

	ready atomic.Bool
}

// New creates a Controller. Call Request on every filter state mutation.
func New(data DatasetProvider, filters FilterSource, view MapAdapter, summary SummaryView,
	logger *slog.Logger, metrics *observability.Metrics, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.RedrawWindow <= 0 {
		opts.RedrawWindow = DefaultRedrawWindow
	}
	if opts.PopupWindow <= 0 {
		opts.PopupWindow = DefaultPopupWindow
	}

	c := &Controller{
		data:    data,
		filters: filters,
		view:    view,
		summary: summary,
		logger:  logger,
		metrics: metrics,
		clock:   opts.Clock,
		markers: make(map[domain.MarkerHandle]domain.EarthquakeRecord),
	}
	if b, ok := view.(Batcher); ok {
		c.batch = b
	}
	c.redraw = debounce.New(opts.Clock, opts.RedrawWindow, c.runDebounced)
	c.popup = debounce.New(opts.Clock, opts.PopupWindow, c.openPopup)
	return c
}

// CheckReadiness returns nil once the first pipeline run has completed,
// whether or not the dataset could be loaded.
func (c *Controller) CheckReadiness(_ context.Context) error {
	if !c.ready.Load() {
		return errors.New("map has not been rendered yet")
	}
	return nil
}

// Request schedules a debounced run with state. Only the latest state at the
// end of the quiescence window is rendered.
func (c *Controller) Request(state domain.FilterState) {
	c.metrics.RenderRequests.Inc()
	c.redraw.Submit(state)
}

// Refresh runs the pipeline immediately with the current filter state,
// superseding any pending debounced run. The returned error reports a failed
// dataset load; the view is still rendered from the empty dataset.
func (c *Controller) Refresh(ctx context.Context) error {
	c.redraw.Cancel()
	return c.run(ctx, c.filters.Snapshot())
}

// Pending reports whether a debounced run is waiting for quiescence.
func (c *Controller) Pending() bool {
	return c.redraw.Pending()
}

// Summary returns the summary of the last completed run.
func (c *Controller) Summary() domain.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.last
	s.Filters = c.last.Filters.Clone()
	return s
}

// Hover schedules the popup for h after the popup window. A later Hover
// before the window elapses supersedes this one.
func (c *Controller) Hover(h domain.MarkerHandle) error {
	if !c.placed(h) {
		return fmt.Errorf("%w: %s", ErrUnknownMarker, h)
	}
	c.popup.Submit(h)
	return nil
}

// Leave closes the popup immediately and drops any scheduled open.
func (c *Controller) Leave(h domain.MarkerHandle) error {
	if !c.placed(h) {
		return fmt.Errorf("%w: %s", ErrUnknownMarker, h)
	}
	c.popup.Cancel()
	c.mu.Lock()
	c.view.HidePopup()
	c.mu.Unlock()
	return nil
}

// Stop cancels pending debounced work.
func (c *Controller) Stop() {
	c.redraw.Cancel()
	c.popup.Cancel()
}

func (c *Controller) placed(h domain.MarkerHandle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.markers[h]
	return ok
}

func (c *Controller) runDebounced(state domain.FilterState) {
	_ = c.run(context.Background(), state) //nolint:errcheck // load failures are logged by the provider
}

func (c *Controller) run(ctx context.Context, state domain.FilterState) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	start := c.clock.Now()

	ds, loadErr := c.data.Get(ctx)
	if loadErr != nil {
		c.logger.Warn("rendering without dataset", "error", loadErr)
	}

	filtered := domain.Filter(ds.Records, state)
	s := domain.Summary{
		Count:      len(filtered),
		CountLabel: domain.CountLabel(len(filtered)),
		YearLabel:  state.YearRange.Label(),
		Rankings:   domain.Rank(filtered),
		Extent:     extentOf(filtered),
		Filters:    state.Clone(),
	}

	if c.batch != nil {
		c.batch.Begin()
	}
	c.rebuildMarkers(filtered)
	c.summary.ShowSummary(s)
	if c.batch != nil {
		c.batch.Commit()
	}

	c.mu.Lock()
	c.last = s
	c.mu.Unlock()

	c.metrics.RenderRuns.Inc()
	c.metrics.RenderRunDuration.Observe(c.clock.Since(start).Seconds())
	c.metrics.FilteredRecords.Set(float64(len(filtered)))
	c.metrics.MarkersPlaced.Set(float64(len(filtered)))
	c.ready.Store(true)

	c.logger.Debug("map rendered",
		"records", len(filtered),
		"dataset_records", ds.Len(),
		"year_range", state.YearRange.Label(),
		"buckets", state.BucketIDs(),
		"location", state.LocationQuery,
	)
	return loadErr
}

// rebuildMarkers removes every placed marker and adds one per record.
func (c *Controller) rebuildMarkers(records []domain.EarthquakeRecord) {
	c.popup.Cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.view.HidePopup()
	for h := range c.markers {
		c.view.RemoveMarker(h)
	}
	c.markers = make(map[domain.MarkerHandle]domain.EarthquakeRecord, len(records))
	for _, rec := range records {
		// Magnitudes below 2 never reach here from a generated dataset; a
		// hand-made file gets the top band, as the legend's catch-all does.
		h := c.view.CreateMarker(rec.Position(), domain.CategoryFor(rec.Magnitude))
		c.markers[h] = rec
	}
}

// openPopup replaces the open popup with one bound to h. A marker removed by
// a rebuild since the hover was scheduled is ignored.
func (c *Controller) openPopup(h domain.MarkerHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.markers[h]
	if !ok {
		return
	}
	c.view.HidePopup()
	c.view.ShowPopup(h, domain.PopupFor(rec))
}
