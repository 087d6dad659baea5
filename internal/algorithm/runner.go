// Package algorithm regenerates the earthquake dataset. A Runner turns an
// algorithm identifier into a new dataset file and reports a user-facing
// message and runtime line.
package algorithm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/jonboulle/clockwork"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/couchcryptid/quake-map-service/internal/observability"
)

var (
	// ErrInvalidName is returned for identifiers that are not lowercase letters.
	ErrInvalidName = errors.New("invalid algorithm name")

	// ErrUnknownAlgorithm is returned when no implementation exists for a valid name.
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
)

var namePattern = regexp.MustCompile(`^[a-z]+$`)

// Result is what the client shows after a successful run.
type Result struct {
	Message string `json:"message"`
	Runtime string `json:"runtime"`
}

// Runner executes a named algorithm.
type Runner interface {
	Run(ctx context.Context, name string) (Result, error)
}

// ValidateName checks that name is a non-empty run of lowercase ASCII letters.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// DisplayName capitalizes an algorithm identifier: "unmap" becomes "Unmap".
func DisplayName(name string) string {
	return cases.Title(language.English).String(name)
}

// SuccessMessage is the notification text for a completed run.
func SuccessMessage(name string) string {
	return DisplayName(name) + " Map Population Successful!"
}

// RuntimeLine formats a duration in milliseconds the way the generators print it.
func RuntimeLine(ms int64) string {
	return fmt.Sprintf("Time taken to populate the map: %d milliseconds", ms)
}

// InstrumentedRunner records run counts and durations for another Runner.
type InstrumentedRunner struct {
	inner   Runner
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewInstrumentedRunner wraps inner with metrics and logging.
func NewInstrumentedRunner(inner Runner, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *InstrumentedRunner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &InstrumentedRunner{inner: inner, clock: clock, logger: logger, metrics: metrics}
}

func (r *InstrumentedRunner) Run(ctx context.Context, name string) (Result, error) {
	start := r.clock.Now()
	res, err := r.inner.Run(ctx, name)
	elapsed := r.clock.Since(start)

	label := name
	if errors.Is(err, ErrInvalidName) {
		label = "invalid"
	}
	if err != nil {
		r.metrics.AlgorithmRuns.WithLabelValues(label, "error").Inc()
		r.logger.Error("algorithm run failed", "algorithm", name, "error", err)
		return Result{}, err
	}

	r.metrics.AlgorithmRuns.WithLabelValues(label, "success").Inc()
	r.metrics.AlgorithmDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	r.logger.Info("algorithm run completed", "algorithm", name, "runtime", res.Runtime, "duration", elapsed)
	return res, nil
}
