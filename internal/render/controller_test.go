package render_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-map-service/internal/adapter/mapview"
	"github.com/couchcryptid/quake-map-service/internal/dataset"
	"github.com/couchcryptid/quake-map-service/internal/domain"
	"github.com/couchcryptid/quake-map-service/internal/filterstate"
	"github.com/couchcryptid/quake-map-service/internal/observability"
	"github.com/couchcryptid/quake-map-service/internal/render"
)

// --- fakes ---

type staticData struct {
	records []domain.EarthquakeRecord
	err     error
}

func (s *staticData) Get(context.Context) (domain.Dataset, error) {
	if s.err != nil {
		return domain.Dataset{}, s.err
	}
	return domain.Dataset{Records: s.records}, nil
}

// countingSummary records every summary shown, forwarding to the view.
type countingSummary struct {
	view *mapview.View
	mu   sync.Mutex
	runs []domain.Summary
}

func (c *countingSummary) ShowSummary(s domain.Summary) {
	c.mu.Lock()
	c.runs = append(c.runs, s)
	c.mu.Unlock()
	c.view.ShowSummary(s)
}

func (c *countingSummary) all() []domain.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Summary(nil), c.runs...)
}

type harness struct {
	clock   *clockwork.FakeClock
	store   *filterstate.Store
	view    *mapview.View
	summary *countingSummary
	ctrl    *render.Controller
}

func newHarness(t *testing.T, data render.DatasetProvider) *harness {
	t.Helper()
	h := &harness{
		clock: clockwork.NewFakeClock(),
		store: filterstate.New(domain.YearRange{Min: 1990, Max: 2004}, domain.DefaultBuckets()),
		view:  mapview.New(),
	}
	h.summary = &countingSummary{view: h.view}
	h.ctrl = render.New(data, h.store, h.view, h.summary,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		observability.NewMetricsForTesting(),
		render.Options{Clock: h.clock},
	)
	h.store.Subscribe(h.ctrl.Request)
	t.Cleanup(h.ctrl.Stop)
	return h
}

func (h *harness) waitRuns(t *testing.T, n int) []domain.Summary {
	t.Helper()
	require.Eventually(t, func() bool { return len(h.summary.all()) >= n }, time.Second, time.Millisecond)
	return h.summary.all()
}

var california = domain.EarthquakeRecord{Latitude: 34, Longitude: -118, Magnitude: 5.2, Year: 1994, State: "California"}

func sampleRecords() []domain.EarthquakeRecord {
	return []domain.EarthquakeRecord{
		{State: "CA", Magnitude: 2.5, Latitude: 36, Longitude: -120, Year: 1990},
		{State: "CA", Magnitude: 3.5, Latitude: 37, Longitude: -121, Year: 1995},
		{State: "NV", Magnitude: 4.5, Latitude: 39, Longitude: -117, Year: 2000},
		{State: "CA", Magnitude: 5.5, Latitude: 35, Longitude: -119, Year: 2004},
		{State: "NV", Magnitude: 6.5, Latitude: 38, Longitude: -116, Year: 1999},
		{State: "TX", Magnitude: 7.5, Latitude: 31, Longitude: -101, Year: 1992},
		{State: "NV", Magnitude: 2.2, Latitude: 40, Longitude: -115, Year: 2003},
	}
}

// --- tests ---

func TestController_SingleRecordScenario(t *testing.T) {
	h := newHarness(t, &staticData{records: []domain.EarthquakeRecord{california}})

	_, err := h.store.SetBuckets([]string{"5_6"})
	require.NoError(t, err)
	require.NoError(t, h.ctrl.Refresh(context.Background()))

	snap := h.view.Snapshot()
	require.Len(t, snap.Markers, 1)
	assert.InDelta(t, 34.0, snap.Markers[0].Lat, 0)
	assert.InDelta(t, -118.0, snap.Markers[0].Lng, 0)
	assert.Equal(t, "yellow", snap.Markers[0].Color)

	want := []domain.RankingEntry{{Region: "California", Count: 1}}
	assert.Equal(t, want, snap.Summary.Rankings.TopLow)
	assert.Equal(t, want, snap.Summary.Rankings.TopHigh)
	assert.Equal(t, 1, snap.Summary.Count)
	assert.Equal(t, "Number of Earthquakes: 1", snap.Summary.CountLabel)
	assert.Equal(t, "Selected Range: 1990 - 2004", snap.Summary.YearLabel)
}

func TestController_LocationMismatchScenario(t *testing.T) {
	h := newHarness(t, &staticData{records: []domain.EarthquakeRecord{california}})

	_, err := h.store.SetBuckets([]string{"5_6"})
	require.NoError(t, err)
	h.store.SetLocation("Nevada")
	require.NoError(t, h.ctrl.Refresh(context.Background()))

	snap := h.view.Snapshot()
	assert.Empty(t, snap.Markers)
	assert.Empty(t, snap.Summary.Rankings.TopLow)
	assert.Empty(t, snap.Summary.Rankings.TopHigh)
	assert.Nil(t, snap.Summary.Extent)
	assert.Equal(t, "Number of Earthquakes: 0", snap.Summary.CountLabel)
}

func TestController_DebounceCoalescesBurst(t *testing.T) {
	h := newHarness(t, &staticData{records: sampleRecords()})

	for _, loc := range []string{"C", "CA", "N", "NV", "TX"} {
		h.store.SetLocation(loc)
		h.clock.Advance(10 * time.Millisecond)
	}
	assert.True(t, h.ctrl.Pending())
	assert.Empty(t, h.summary.all(), "no leading-edge run")

	h.clock.Advance(render.DefaultRedrawWindow)
	runs := h.waitRuns(t, 1)

	require.Len(t, runs, 1)
	assert.Equal(t, "TX", runs[0].Filters.LocationQuery, "the last state wins")
	assert.Equal(t, 1, runs[0].Count)

	h.clock.Advance(time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Len(t, h.summary.all(), 1)
	assert.Len(t, h.view.Snapshot().Markers, 1)
}

func TestController_RebuildReplacesAllMarkers(t *testing.T) {
	h := newHarness(t, &staticData{records: sampleRecords()})

	require.NoError(t, h.ctrl.Refresh(context.Background()))
	first := h.view.Snapshot().Markers
	require.Len(t, first, 7)

	_, err := h.store.SetYearRange(domain.YearRange{Min: 1995, Max: 2000})
	require.NoError(t, err)
	require.NoError(t, h.ctrl.Refresh(context.Background()))

	second := h.view.Snapshot().Markers
	require.Len(t, second, 3)
	for _, m := range second {
		for _, old := range first {
			assert.NotEqual(t, old.ID, m.ID, "markers are rebuilt, not reused")
		}
	}
	assert.False(t, h.ctrl.Pending(), "Refresh supersedes the debounced run")
}

func TestController_RankingsAndExtent(t *testing.T) {
	h := newHarness(t, &staticData{records: sampleRecords()})
	require.NoError(t, h.ctrl.Refresh(context.Background()))

	s := h.ctrl.Summary()
	wantHigh := []domain.RankingEntry{{Region: "CA", Count: 3}, {Region: "NV", Count: 3}, {Region: "TX", Count: 1}}
	wantLow := []domain.RankingEntry{{Region: "TX", Count: 1}, {Region: "CA", Count: 3}, {Region: "NV", Count: 3}}
	if diff := cmp.Diff(wantHigh, s.Rankings.TopHigh); diff != "" {
		t.Errorf("top high mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantLow, s.Rankings.TopLow); diff != "" {
		t.Errorf("top low mismatch (-want +got):\n%s", diff)
	}

	require.NotNil(t, s.Extent)
	assert.Equal(t, domain.Extent{MinLat: 31, MinLng: -121, MaxLat: 40, MaxLng: -101}, *s.Extent)
}

func TestController_EmptyBucketSelectionShowsNothing(t *testing.T) {
	h := newHarness(t, &staticData{records: sampleRecords()})
	h.store.SelectAll(false)
	require.NoError(t, h.ctrl.Refresh(context.Background()))

	assert.Empty(t, h.view.Snapshot().Markers)
	assert.Zero(t, h.ctrl.Summary().Count)
}

func TestController_LoadFailureRendersEmpty(t *testing.T) {
	h := newHarness(t, &staticData{err: dataset.ErrNoData})

	require.Error(t, h.ctrl.CheckReadiness(context.Background()))

	err := h.ctrl.Refresh(context.Background())
	require.ErrorIs(t, err, dataset.ErrNoData)
	assert.Empty(t, h.view.Snapshot().Markers)
	require.NoError(t, h.ctrl.CheckReadiness(context.Background()), "a degraded run still counts as rendered")
}

func TestController_HoverDebounced(t *testing.T) {
	h := newHarness(t, &staticData{records: sampleRecords()})
	require.NoError(t, h.ctrl.Refresh(context.Background()))
	markers := h.view.Snapshot().Markers

	require.NoError(t, h.ctrl.Hover(markers[0].ID))
	h.clock.Advance(50 * time.Millisecond)
	require.NoError(t, h.ctrl.Hover(markers[2].ID))
	h.clock.Advance(render.DefaultPopupWindow - time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	assert.Nil(t, h.view.Snapshot().Popup, "popup waits for quiescence")

	h.clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return h.view.Snapshot().Popup != nil }, time.Second, time.Millisecond)

	p := h.view.Snapshot().Popup
	assert.Equal(t, markers[2].ID, p.Marker, "only the last hover opens")
	assert.Equal(t, "NV", p.State)
	assert.Equal(t, 2000, p.Year)
	assert.Equal(t, "NV - Magnitude 4.5 - Year 2000", p.Title)
}

func TestController_LeaveClosesImmediately(t *testing.T) {
	h := newHarness(t, &staticData{records: sampleRecords()})
	require.NoError(t, h.ctrl.Refresh(context.Background()))
	m := h.view.Snapshot().Markers[1]

	require.NoError(t, h.ctrl.Hover(m.ID))
	h.clock.Advance(render.DefaultPopupWindow)
	require.Eventually(t, func() bool { return h.view.Snapshot().Popup != nil }, time.Second, time.Millisecond)

	require.NoError(t, h.ctrl.Leave(m.ID))
	assert.Nil(t, h.view.Snapshot().Popup)

	// A hover cut short by a leave never opens.
	require.NoError(t, h.ctrl.Hover(m.ID))
	require.NoError(t, h.ctrl.Leave(m.ID))
	h.clock.Advance(render.DefaultPopupWindow * 2)
	time.Sleep(5 * time.Millisecond)
	assert.Nil(t, h.view.Snapshot().Popup)
}

func TestController_UnknownMarker(t *testing.T) {
	h := newHarness(t, &staticData{records: sampleRecords()})
	require.NoError(t, h.ctrl.Refresh(context.Background()))

	err := h.ctrl.Hover("nope")
	require.ErrorIs(t, err, render.ErrUnknownMarker)
	err = h.ctrl.Leave("nope")
	require.ErrorIs(t, err, render.ErrUnknownMarker)
}

func TestController_RebuildDropsStaleHover(t *testing.T) {
	h := newHarness(t, &staticData{records: sampleRecords()})
	require.NoError(t, h.ctrl.Refresh(context.Background()))
	m := h.view.Snapshot().Markers[0]

	require.NoError(t, h.ctrl.Hover(m.ID))
	require.NoError(t, h.ctrl.Refresh(context.Background()))
	h.clock.Advance(render.DefaultPopupWindow)
	time.Sleep(5 * time.Millisecond)

	assert.Nil(t, h.view.Snapshot().Popup)
	require.ErrorIs(t, h.ctrl.Hover(m.ID), render.ErrUnknownMarker)
}

func TestController_Defaults(t *testing.T) {
	ctrl := render.New(&staticData{}, filterstate.New(domain.YearRange{Min: 1990, Max: 2004}, domain.DefaultBuckets()),
		mapview.New(), mapview.New(), slog.Default(), observability.NewMetricsForTesting(), render.Options{})
	defer ctrl.Stop()

	require.NoError(t, ctrl.Refresh(context.Background()))
	require.NoError(t, ctrl.CheckReadiness(context.Background()))
	require.ErrorIs(t, ctrl.Hover("x"), render.ErrUnknownMarker)
}

func TestController_SnapshotsNeverShowPartialRun(t *testing.T) {
	records := make([]domain.EarthquakeRecord, 0, 2000)
	for i := range 2000 {
		records = append(records, domain.EarthquakeRecord{
			State:     []string{"California", "Nevada", "Alaska"}[i%3],
			Magnitude: 2 + float64(i%80)/10,
			Latitude:  30 + float64(i%20),
			Longitude: -120 + float64(i%30),
			Year:      1990 + i%15,
		})
	}
	h := newHarness(t, &staticData{records: records})

	stop := make(chan struct{})
	var (
		wg    sync.WaitGroup
		torn  int
		polls int
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			snap := h.view.Snapshot()
			polls++
			if len(snap.Markers) != snap.Summary.Count {
				torn++
			}
		}
	}()

	selections := [][]string{{"2_3"}, {"2_3", "3_4", "4_5", "5_6", "6_7", "7_10"}, {"7_10"}, {"4_5", "5_6"}}
	for i := range 12 {
		_, err := h.store.SetBuckets(selections[i%len(selections)])
		require.NoError(t, err)
		require.NoError(t, h.ctrl.Refresh(context.Background()))
	}
	close(stop)
	wg.Wait()

	assert.Positive(t, polls)
	assert.Zero(t, torn, "every snapshot pairs the marker layer with its own summary")

	final := h.view.Snapshot()
	assert.Len(t, final.Markers, final.Summary.Count)
}

func TestController_OneVersionStepPerRun(t *testing.T) {
	h := newHarness(t, &staticData{records: sampleRecords()})
	require.NoError(t, h.ctrl.Refresh(context.Background()))
	before := h.view.Snapshot().Version

	h.store.SetLocation("NV")
	require.NoError(t, h.ctrl.Refresh(context.Background()))

	after := h.view.Snapshot()
	assert.Equal(t, before+1, after.Version)
	assert.Len(t, after.Markers, 3)
}
