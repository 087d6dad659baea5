// Package dataset loads the generated earthquake dataset once per session and
// serves it to every pipeline run until invalidated.
package dataset

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/quake-map-service/internal/domain"
	"github.com/couchcryptid/quake-map-service/internal/observability"
)

const flightKey = "dataset"

// Cache holds the full, unfiltered dataset. Concurrent callers share a single
// in-flight fetch; later callers get the cached value without refetching.
type Cache struct {
	source  Source
	logger  *slog.Logger
	metrics *observability.Metrics
	group   singleflight.Group

	mu      sync.RWMutex
	dataset *domain.Dataset
	gen     uint64
}

// NewCache creates an empty (unloaded) cache in front of source.
func NewCache(source Source, logger *slog.Logger, metrics *observability.Metrics) *Cache {
	return &Cache{source: source, logger: logger, metrics: metrics}
}

// Get returns the cached dataset, fetching it on first use. A failed fetch is
// logged and yields an empty dataset together with the error; the cache stays
// unloaded so a later Get fetches again.
//
// The shared fetch does not inherit any caller's cancellation: a caller whose
// ctx ends returns early while the others still get the result.
func (c *Cache) Get(ctx context.Context) (domain.Dataset, error) {
	c.mu.RLock()
	if c.dataset != nil {
		ds := *c.dataset
		c.mu.RUnlock()
		return ds, nil
	}
	gen := c.gen
	c.mu.RUnlock()

	flight := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey, func() (any, error) {
		return c.load(flight, gen)
	})
	select {
	case <-ctx.Done():
		return domain.Dataset{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.Dataset{}, res.Err
		}
		return res.Val.(domain.Dataset), nil
	}
}

// Invalidate drops the cached dataset. An in-flight fetch started before the
// call will not repopulate the cache.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.dataset = nil
	c.gen++
	c.mu.Unlock()

	c.group.Forget(flightKey)
	c.metrics.DatasetRecords.Set(0)
	c.logger.Info("dataset cache invalidated")
}

func (c *Cache) load(ctx context.Context, gen uint64) (domain.Dataset, error) {
	data, err := c.source.Fetch(ctx)
	if err != nil {
		c.metrics.DatasetLoads.WithLabelValues("error").Inc()
		c.logger.Warn("dataset fetch failed", "error", err)
		return domain.Dataset{}, err
	}

	result, err := domain.DecodeRecords(data)
	if err != nil {
		c.metrics.DatasetLoads.WithLabelValues("error").Inc()
		c.logger.Warn("dataset decode failed", "error", err)
		return domain.Dataset{}, err
	}
	if result.Skipped > 0 {
		c.metrics.MalformedRecords.Add(float64(result.Skipped))
		c.logger.Warn("skipped malformed records", "skipped", result.Skipped)
	}

	ds := domain.Dataset{Records: result.Records, LoadedAt: domain.Now()}

	c.mu.Lock()
	if c.gen == gen {
		c.dataset = &ds
	}
	c.mu.Unlock()

	c.metrics.DatasetLoads.WithLabelValues("success").Inc()
	c.metrics.DatasetRecords.Set(float64(ds.Len()))
	c.logger.Info("dataset loaded", "records", ds.Len())
	return ds, nil
}
