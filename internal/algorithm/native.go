package algorithm

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-map-service/internal/domain"
)

const (
	minMagnitude  = 2.0
	earthquakeTag = "earthquake"
)

// usStates are the only regions kept in a generated dataset.
var usStates = map[string]bool{
	"Alabama": true, "Alaska": true, "Arizona": true, "Arkansas": true, "California": true,
	"Colorado": true, "Connecticut": true, "Delaware": true, "Florida": true, "Georgia": true,
	"Hawaii": true, "Idaho": true, "Illinois": true, "Indiana": true, "Iowa": true,
	"Kansas": true, "Kentucky": true, "Louisiana": true, "Maine": true, "Maryland": true,
	"Massachusetts": true, "Michigan": true, "Minnesota": true, "Mississippi": true, "Missouri": true,
	"Montana": true, "Nebraska": true, "Nevada": true, "New Hampshire": true, "New Jersey": true,
	"New Mexico": true, "New York": true, "North Carolina": true, "North Dakota": true, "Ohio": true,
	"Oklahoma": true, "Oregon": true, "Pennsylvania": true, "Rhode Island": true, "South Carolina": true,
	"South Dakota": true, "Tennessee": true, "Texas": true, "Utah": true, "Vermont": true,
	"Virginia": true, "Washington": true, "West Virginia": true, "Wisconsin": true, "Wyoming": true,
}

// IsUSState reports whether name is one of the 50 US states.
func IsUSState(name string) bool {
	return usStates[name]
}

// Grouping orders the per-state groups of a generated dataset.
type Grouping int

const (
	// GroupSorted emits groups in ascending state-name order.
	GroupSorted Grouping = iota
	// GroupFirstSeen emits groups in the order their state first appears.
	GroupFirstSeen
)

// Algorithms maps each supported identifier to its grouping.
var Algorithms = map[string]Grouping{
	"ordered":   GroupSorted,
	"map":       GroupSorted,
	"unordered": GroupFirstSeen,
	"unmap":     GroupFirstSeen,
}

// Names returns the supported identifiers in sorted order.
func Names() []string {
	names := make([]string, 0, len(Algorithms))
	for name := range Algorithms {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// StateResolver fills in a missing state from coordinates.
type StateResolver interface {
	ResolveState(ctx context.Context, lat, lon float64) (string, error)
}

// Row is one parsed line of the source CSV.
type Row struct {
	State     string
	Magnitude float64
	DataType  string
	Longitude float64
	Latitude  float64
	Year      int
}

// Record converts the row to a dataset record.
func (r Row) Record() domain.EarthquakeRecord {
	return domain.EarthquakeRecord{
		State:     r.State,
		Magnitude: r.Magnitude,
		Longitude: r.Longitude,
		Latitude:  r.Latitude,
		Year:      r.Year,
	}
}

// Keep reports whether a row belongs in the generated dataset.
func (r Row) Keep() bool {
	if r.Magnitude < minMagnitude || r.DataType != earthquakeTag {
		return false
	}
	if !IsUSState(r.State) {
		return false
	}
	return r.State != "Georgia" || r.Latitude <= 40
}

var errShortRow = errors.New("row has fewer than 6 columns")

// ReadRows parses the source CSV, skipping the header. Rows that fail to parse
// are skipped and counted.
func ReadRows(r io.Reader) (rows []Row, skipped int, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("read header: %w", err)
	}

	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, skipped, nil
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				skipped++
				continue
			}
			return nil, skipped, fmt.Errorf("read csv: %w", err)
		}
		row, err := parseRow(fields)
		if err != nil {
			skipped++
			continue
		}
		rows = append(rows, row)
	}
}

func parseRow(fields []string) (Row, error) {
	if len(fields) < 6 {
		return Row{}, errShortRow
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	mag, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Row{}, fmt.Errorf("magnitude: %w", err)
	}
	lon, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return Row{}, fmt.Errorf("longitude: %w", err)
	}
	lat, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return Row{}, fmt.Errorf("latitude: %w", err)
	}
	if len(fields[5]) < 4 {
		return Row{}, fmt.Errorf("date %q has no year", fields[5])
	}
	year, err := strconv.Atoi(fields[5][:4])
	if err != nil {
		return Row{}, fmt.Errorf("year: %w", err)
	}

	return Row{
		State:     fields[0],
		Magnitude: mag,
		DataType:  fields[2],
		Longitude: lon,
		Latitude:  lat,
		Year:      year,
	}, nil
}

// GroupByState groups records by state. Records keep their input order within
// a group; groups are ordered by g.
func GroupByState(records []domain.EarthquakeRecord, g Grouping) []domain.EarthquakeRecord {
	index := make(map[string]int)
	var states []string
	var groups [][]domain.EarthquakeRecord
	for _, rec := range records {
		i, ok := index[rec.State]
		if !ok {
			i = len(groups)
			index[rec.State] = i
			states = append(states, rec.State)
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], rec)
	}

	order := make([]int, len(groups))
	for i := range order {
		order[i] = i
	}
	if g == GroupSorted {
		slices.SortFunc(order, func(a, b int) int { return strings.Compare(states[a], states[b]) })
	}

	out := make([]domain.EarthquakeRecord, 0, len(records))
	for _, i := range order {
		out = append(out, groups[i]...)
	}
	return out
}

// NativeRunner generates the dataset in-process from the source CSV.
type NativeRunner struct {
	sourcePath string
	outPath    string
	resolver   StateResolver
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewNativeRunner creates a runner reading sourcePath and writing outPath.
// resolver may be nil.
func NewNativeRunner(sourcePath, outPath string, resolver StateResolver, clock clockwork.Clock, logger *slog.Logger) *NativeRunner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &NativeRunner{
		sourcePath: sourcePath,
		outPath:    outPath,
		resolver:   resolver,
		clock:      clock,
		logger:     logger,
	}
}

// OutputPath returns the generated dataset path.
func (r *NativeRunner) OutputPath() string {
	return r.outPath
}

func (r *NativeRunner) Run(ctx context.Context, name string) (Result, error) {
	if err := ValidateName(name); err != nil {
		return Result{}, err
	}
	grouping, ok := Algorithms[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, name)
	}

	start := r.clock.Now()

	f, err := os.Open(r.sourcePath)
	if err != nil {
		return Result{}, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	rows, skipped, err := ReadRows(f)
	if err != nil {
		return Result{}, err
	}
	if skipped > 0 {
		r.logger.Warn("skipped unparseable rows", "algorithm", name, "skipped", skipped)
	}

	kept := make([]domain.EarthquakeRecord, 0, len(rows))
	for _, row := range rows {
		if row.State == "" && r.resolver != nil {
			row.State = r.resolve(ctx, row)
		}
		if row.Keep() {
			kept = append(kept, row.Record())
		}
	}

	if err := writeAtomic(r.outPath, GroupByState(kept, grouping)); err != nil {
		return Result{}, err
	}

	elapsed := r.clock.Since(start)
	r.logger.Info("dataset generated", "algorithm", name, "rows", len(rows), "records", len(kept), "path", r.outPath)
	return Result{
		Message: SuccessMessage(name),
		Runtime: RuntimeLine(elapsed.Milliseconds()),
	}, nil
}

func (r *NativeRunner) resolve(ctx context.Context, row Row) string {
	state, err := r.resolver.ResolveState(ctx, row.Latitude, row.Longitude)
	if err != nil {
		r.logger.Warn("state lookup failed", "error", err, "lat", row.Latitude, "lon", row.Longitude)
		return ""
	}
	return state
}

// writeAtomic writes records as a JSON array via a temp file and rename.
func writeAtomic(path string, records []domain.EarthquakeRecord) error {
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".earthquake_data-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close dataset: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename dataset: %w", err)
	}
	return nil
}
