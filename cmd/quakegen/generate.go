package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/quake-map-service/internal/adapter/mapbox"
	"github.com/couchcryptid/quake-map-service/internal/algorithm"
	"github.com/couchcryptid/quake-map-service/internal/observability"
)

// Defaults match the map service's SOURCE_CSV and DATA_FILE, and the same
// variables override them, so a generator started by the service writes
// where the service reads.
const (
	defaultSource = "earthquake_data.csv"
	defaultOutput = "public/earthquake_data.json"
)

func newAlgorithmCmd(name string, logger func() *slog.Logger) *cobra.Command {
	var (
		source      string
		out         string
		mapboxToken string
	)

	cmd := &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("Generate the dataset with the %s algorithm", algorithm.DisplayName(name)),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logger()
			var resolver algorithm.StateResolver
			if mapboxToken != "" {
				metrics := observability.NewMetrics()
				resolver = mapbox.NewCachedResolver(mapbox.NewClient(mapboxToken, 5*time.Second, log, metrics), 1000, metrics)
			}

			runner := algorithm.NewNativeRunner(source, out, resolver, nil, log)
			res, err := runner.Run(ctx, name)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, res.Runtime)
			fmt.Fprintf(w, "Successfully wrote filtered earthquake data to %s\n", runner.OutputPath())
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", sharedcfg.EnvOrDefault("SOURCE_CSV", defaultSource), "source CSV path")
	cmd.Flags().StringVar(&out, "out", sharedcfg.EnvOrDefault("DATA_FILE", defaultOutput), "output dataset path")
	cmd.Flags().StringVar(&mapboxToken, "mapbox-token", os.Getenv("MAPBOX_TOKEN"), "resolve missing states via Mapbox reverse geocoding")
	return cmd
}
