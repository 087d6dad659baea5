package domain

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

var (
	// ErrInvalidYearRange is returned when a year range is inverted or escapes the slider bounds.
	ErrInvalidYearRange = errors.New("invalid year range")

	// ErrUnknownBucket is returned for a magnitude bucket ID outside the configured set.
	ErrUnknownBucket = errors.New("unknown magnitude bucket")
)

// YearRange is an inclusive range of years.
type YearRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether year lies within the range, both ends inclusive.
func (r YearRange) Contains(year int) bool {
	return year >= r.Min && year <= r.Max
}

// Within reports whether r lies inside bounds.
func (r YearRange) Within(bounds YearRange) bool {
	return r.Min >= bounds.Min && r.Max <= bounds.Max
}

// Validate checks that the range is ordered and inside the slider bounds.
func (r YearRange) Validate(bounds YearRange) error {
	if r.Min > r.Max {
		return fmt.Errorf("%w: min %d is after max %d", ErrInvalidYearRange, r.Min, r.Max)
	}
	if !r.Within(bounds) {
		return fmt.Errorf("%w: %d-%d outside %d-%d", ErrInvalidYearRange, r.Min, r.Max, bounds.Min, bounds.Max)
	}
	return nil
}

// Label renders the range the way the slider caption shows it.
func (r YearRange) Label() string {
	if r.Min == r.Max {
		return fmt.Sprintf("Selected Year: %d", r.Min)
	}
	return fmt.Sprintf("Selected Range: %d - %d", r.Min, r.Max)
}

// MagnitudeBucket is a magnitude interval used as a filter predicate.
// The interval is [Min, Max) unless MaxInclusive closes it at the top.
type MagnitudeBucket struct {
	ID           string  `json:"id"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	MaxInclusive bool    `json:"max_inclusive,omitempty"`
}

// Contains reports whether magnitude falls inside the bucket.
func (b MagnitudeBucket) Contains(magnitude float64) bool {
	if magnitude < b.Min {
		return false
	}
	if b.MaxInclusive {
		return magnitude <= b.Max
	}
	return magnitude < b.Max
}

// DefaultBuckets returns the legend buckets in display order.
func DefaultBuckets() []MagnitudeBucket {
	return []MagnitudeBucket{
		{ID: "2_3", Min: 2, Max: 3},
		{ID: "3_4", Min: 3, Max: 4},
		{ID: "4_5", Min: 4, Max: 5},
		{ID: "5_6", Min: 5, Max: 6},
		{ID: "6_7", Min: 6, Max: 7},
		{ID: "7_10", Min: 7, Max: 10, MaxInclusive: true},
	}
}

// FilterState is the current selection of the map controls.
type FilterState struct {
	YearRange     YearRange         `json:"year_range"`
	Buckets       []MagnitudeBucket `json:"buckets"`
	LocationQuery string            `json:"location_query,omitempty"`
}

// Clone returns a deep copy so snapshots never alias the holder's slices.
func (s FilterState) Clone() FilterState {
	out := s
	out.Buckets = append([]MagnitudeBucket(nil), s.Buckets...)
	return out
}

// BucketIDs lists the selected bucket IDs in selection order.
func (s FilterState) BucketIDs() []string {
	ids := make([]string, len(s.Buckets))
	for i, b := range s.Buckets {
		ids[i] = b.ID
	}
	return ids
}

// matchesMagnitude reports whether magnitude falls in any selected bucket.
func (s FilterState) matchesMagnitude(magnitude float64) bool {
	for _, b := range s.Buckets {
		if b.Contains(magnitude) {
			return true
		}
	}
	return false
}

// NormalizeLocation trims and case-folds a state name or location query.
func NormalizeLocation(s string) string {
	return normalize(cases.Fold(), s)
}

// normalize reuses a caller-owned Caser; Casers are stateful and must not be
// shared between goroutines.
func normalize(fold cases.Caser, s string) string {
	return fold.String(strings.TrimSpace(s))
}

// Filter returns the records that pass every predicate of state, preserving
// input order. The input slice is never modified.
func Filter(records []EarthquakeRecord, state FilterState) []EarthquakeRecord {
	out := make([]EarthquakeRecord, 0, len(records))
	if len(state.Buckets) == 0 {
		return out
	}

	fold := cases.Fold()
	query := normalize(fold, state.LocationQuery)
	for _, rec := range records {
		if !state.YearRange.Contains(rec.Year) {
			continue
		}
		if !state.matchesMagnitude(rec.Magnitude) {
			continue
		}
		if query != "" && normalize(fold, rec.State) != query {
			continue
		}
		out = append(out, rec)
	}
	return out
}
