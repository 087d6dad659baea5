// Command quakegen builds the earthquake dataset from the source CSV. Each
// algorithm is a subcommand that prints the same two lines the map service
// expects from its generator executables.
//
// Invoked under a generator name, quakegen runs that algorithm, so symlinks
// in EXECUTABLE_DIR serve ALGORITHM_MODE=exec:
//
//	for a in Ordered Unordered Map Unmap; do ln -s quakegen Earthquake$a; done
//
// The service starts generators in EXECUTABLE_DIR with its own environment,
// so SOURCE_CSV and DATA_FILE (relative to that directory) apply to both.
//
// Usage:
//
//	quakegen ordered --source earthquake_data.csv --out public/earthquake_data.json
//	quakegen mock --rows 500 --seed 7 --out earthquake_data.csv
package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/quake-map-service/internal/algorithm"
)

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "quakegen",
		Short:         "Generate earthquake map datasets",
		Long:          "Filters the earthquake source CSV to US earthquakes of magnitude 2 or more and writes the map dataset, grouped by state.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log progress to stderr")

	logger := func() *slog.Logger {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	}

	for _, name := range algorithm.Names() {
		root.AddCommand(newAlgorithmCmd(name, logger))
	}
	root.AddCommand(newMockCmd())
	return root
}

// invocationArgs prepends the algorithm subcommand when the binary runs under
// a generator name such as EarthquakeOrdered.
func invocationArgs(argv0 string, args []string, goos string) []string {
	base := filepath.Base(argv0)
	for _, name := range algorithm.Names() {
		if base == algorithm.ExecutableName(name, goos) {
			return append([]string{name}, args...)
		}
	}
	return args
}

func main() {
	root := newRootCmd(os.Stdout, os.Stderr)
	root.SetArgs(invocationArgs(os.Args[0], os.Args[1:], runtime.GOOS))
	if err := root.Execute(); err != nil {
		root.PrintErrln("Error:", err)
		os.Exit(1)
	}
}
