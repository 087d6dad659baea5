package dataset

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-map-service/internal/observability"
)

const sample = `[
	{"state":"CA","magnitude":4.2,"longitude":-120.1,"latitude":36.5,"year":1999},
	{"state":"NV","magnitude":2.5,"longitude":-116.3,"latitude":38.8,"year":2001},
	{"state":"TX","magnitude":3.1,"longitude":-101.2,"latitude":31.4}
]`

type countingSource struct {
	calls atomic.Int32
	data  []byte
	err   error
	gate  chan struct{}
}

func (s *countingSource) Fetch(ctx context.Context) ([]byte, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	return s.data, s.err
}

func newTestCache(src Source) (*Cache, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	return NewCache(src, slog.New(slog.NewTextHandler(io.Discard, nil)), m), m
}

func loaded(c *Cache) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dataset != nil
}

func metricValue(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	if out.Counter != nil {
		return out.GetCounter().GetValue()
	}
	return out.GetGauge().GetValue()
}

func TestCache_LoadsOnce(t *testing.T) {
	src := &countingSource{data: []byte(sample)}
	c, m := newTestCache(src)

	ds, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
	assert.True(t, loaded(c))

	_, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.calls.Load())

	assert.InDelta(t, 1, metricValue(t, m.DatasetLoads.WithLabelValues("success")), 0)
	assert.InDelta(t, 2, metricValue(t, m.DatasetRecords), 0)
	assert.InDelta(t, 1, metricValue(t, m.MalformedRecords), 0)
}

func TestCache_ConcurrentCallersShareFetch(t *testing.T) {
	src := &countingSource{data: []byte(sample), gate: make(chan struct{})}
	c, _ := newTestCache(src)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ds, err := c.Get(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 2, ds.Len())
		}()
	}
	require.Eventually(t, func() bool { return src.calls.Load() >= 1 }, time.Second, time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
}

func TestCache_FailureLeavesCacheUnloaded(t *testing.T) {
	src := &countingSource{err: ErrNoData}
	c, m := newTestCache(src)

	ds, err := c.Get(context.Background())
	require.ErrorIs(t, err, ErrNoData)
	assert.Zero(t, ds.Len())
	assert.False(t, loaded(c))
	assert.InDelta(t, 1, metricValue(t, m.DatasetLoads.WithLabelValues("error")), 0)

	src.err = nil
	src.data = []byte(sample)
	ds, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestCache_DecodeError(t *testing.T) {
	c, _ := newTestCache(&countingSource{data: []byte(`{"not":"an array"}`)})

	_, err := c.Get(context.Background())
	require.Error(t, err)
	assert.False(t, loaded(c))
}

func TestCache_Invalidate(t *testing.T) {
	src := &countingSource{data: []byte(sample)}
	c, m := newTestCache(src)

	_, err := c.Get(context.Background())
	require.NoError(t, err)

	c.Invalidate()
	assert.False(t, loaded(c))
	assert.InDelta(t, 0, metricValue(t, m.DatasetRecords), 0)

	_, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestCache_InvalidateDuringFetchDoesNotRepopulate(t *testing.T) {
	src := &countingSource{data: []byte(sample), gate: make(chan struct{})}
	c, _ := newTestCache(src)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Get(context.Background())
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)

	c.Invalidate()
	close(src.gate)
	<-done

	assert.False(t, loaded(c), "stale fetch must not repopulate an invalidated cache")
}

func TestCache_CanceledCallerDoesNotFailSharedFetch(t *testing.T) {
	src := &countingSource{data: []byte(sample), gate: make(chan struct{})}
	c, _ := newTestCache(src)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		ds  int
		err error
	}
	second := make(chan result, 1)
	go func() {
		ds, err := c.Get(context.Background())
		second <- result{ds.Len(), err}
	}()
	time.Sleep(20 * time.Millisecond) // let the second caller join the flight

	cancel()
	select {
	case err := <-firstErr:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("canceled caller did not return while the fetch was blocked")
	}

	close(src.gate)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, 2, got.ds)
	assert.Equal(t, int32(1), src.calls.Load())
	assert.True(t, loaded(c))
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "earthquake_data.json")
	src := NewFileSource(path)
	assert.Equal(t, "earthquake_data.json", src.Name())

	_, err := src.Fetch(context.Background())
	require.ErrorIs(t, err, ErrNoData)

	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	data, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, sample, string(data))

	require.NoError(t, src.Remove())
	require.ErrorIs(t, src.Remove(), ErrNoData)
}

func TestFileSource_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFileSource("unused.json").Fetch(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/earthquake_data.json":
			_, _ = w.Write([]byte(sample))
		case "/broken":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	data, err := NewHTTPSource(srv.URL+"/earthquake_data.json", time.Second).Fetch(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, sample, string(data))

	_, err = NewHTTPSource(srv.URL+"/missing.json", time.Second).Fetch(context.Background())
	require.ErrorIs(t, err, ErrNoData)

	_, err = NewHTTPSource(srv.URL+"/broken", time.Second).Fetch(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoData))
	assert.Contains(t, err.Error(), "status 500")
}
