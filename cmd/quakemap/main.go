// Command quakemap serves the earthquake map: the browser client, the
// dataset generation endpoint and the server-side filter and render session.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	httpadapter "github.com/couchcryptid/quake-map-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/quake-map-service/internal/adapter/kafka"
	"github.com/couchcryptid/quake-map-service/internal/adapter/mapbox"
	"github.com/couchcryptid/quake-map-service/internal/adapter/mapview"
	"github.com/couchcryptid/quake-map-service/internal/algorithm"
	"github.com/couchcryptid/quake-map-service/internal/config"
	"github.com/couchcryptid/quake-map-service/internal/dataset"
	"github.com/couchcryptid/quake-map-service/internal/domain"
	"github.com/couchcryptid/quake-map-service/internal/filterstate"
	"github.com/couchcryptid/quake-map-service/internal/observability"
	"github.com/couchcryptid/quake-map-service/internal/render"
	"github.com/couchcryptid/quake-map-service/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	if err := run(cfg, logger, metrics); err != nil {
		logger.Error("service stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	runner := newRunner(cfg, logger, metrics)

	file := dataset.NewFileSource(cfg.DataFile)
	var source dataset.Source = file
	if cfg.DataURL != "" {
		source = dataset.NewHTTPSource(cfg.DataURL, cfg.DataTimeout)
		logger.Info("dataset loaded over http", "url", cfg.DataURL, "timeout", cfg.DataTimeout)
	}
	cache := dataset.NewCache(source, logger, metrics)
	store := filterstate.New(domain.YearRange{Min: cfg.YearMin, Max: cfg.YearMax}, domain.DefaultBuckets())
	view := mapview.New()
	ctrl := render.New(cache, store, view, view, logger, metrics, render.Options{
		RedrawWindow: cfg.RedrawDebounce,
		PopupWindow:  cfg.PopupDebounce,
	})
	store.Subscribe(ctrl.Request)
	defer ctrl.Stop()

	// Run event publishing is feature-flagged via KAFKA_BROKERS.
	var publisher httpadapter.RunPublisher
	if cfg.RunEventsEnabled() {
		p := kafkaadapter.NewPublisher(cfg, logger, metrics)
		defer func() {
			if err := p.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}()
		publisher = p
		logger.Info("run events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaRunTopic)
	}

	var static fs.FS = web.Static()
	if cfg.StaticDir != "" {
		static = os.DirFS(cfg.StaticDir)
	}

	srv := httpadapter.NewServer(httpadapter.Options{
		Addr:        cfg.HTTPAddr,
		CORSOrigins: cfg.CORSOrigins,
		ExecuteRate: cfg.ExecuteRate,
		Static:      static,
	}, httpadapter.Deps{
		Filters:   store,
		Renderer:  ctrl,
		View:      view,
		Dataset:   cache,
		DataFile:  file,
		Runner:    runner,
		Publisher: publisher,
		Ready:     ctrl,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// Initial render; readiness flips once it completes, loaded or not.
	g.Go(func() error {
		if err := ctrl.Refresh(gctx); err != nil {
			logger.Warn("no dataset at startup, map is empty until one is generated", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	err := g.Wait()
	logger.Info("shutdown complete")
	return err
}

// newRunner selects the dataset generator. Missing states are resolved via
// Mapbox when MAPBOX_ENABLED / MAPBOX_TOKEN allow it.
func newRunner(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) algorithm.Runner {
	var inner algorithm.Runner
	switch cfg.AlgorithmMode {
	case config.ModeExec:
		inner = algorithm.NewExecRunner(cfg.ExecutableDir, cfg.ExecuteTimeout, logger)
		logger.Info("algorithms run as executables", "dir", cfg.ExecutableDir, "timeout", cfg.ExecuteTimeout)
	default:
		var resolver algorithm.StateResolver
		if cfg.MapboxEnabled {
			client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
			resolver = mapbox.NewCachedResolver(client, cfg.MapboxCacheSize, metrics)
			metrics.GeocodeEnabled.Set(1)
			logger.Info("mapbox state lookup enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
		} else {
			logger.Info("mapbox state lookup disabled")
		}
		inner = algorithm.NewNativeRunner(cfg.SourceCSV, cfg.DataFile, resolver, nil, logger)
		logger.Info("algorithms run natively", "source", cfg.SourceCSV, "output", cfg.DataFile)
	}
	return algorithm.NewInstrumentedRunner(inner, nil, logger, metrics)
}
