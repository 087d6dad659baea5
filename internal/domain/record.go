package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// EarthquakeRecord is a single earthquake as served to the map view.
// Records are value objects: equal fields do not imply the same event.
type EarthquakeRecord struct {
	State     string  `json:"state"`
	Magnitude float64 `json:"magnitude"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Year      int     `json:"year"`
}

// Position returns the record's map coordinates.
func (r EarthquakeRecord) Position() Position {
	return Position{Lat: r.Latitude, Lng: r.Longitude}
}

// Position represents a WGS-84 latitude/longitude coordinate pair.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Dataset is the ordered, unfiltered set of records loaded for one session.
// It is replaced wholesale on reload and never mutated in place.
type Dataset struct {
	Records  []EarthquakeRecord
	LoadedAt time.Time
}

// Len returns the number of records in the dataset.
func (d Dataset) Len() int {
	return len(d.Records)
}

// rawRecord mirrors EarthquakeRecord with pointer fields so missing values
// can be told apart from zero values.
type rawRecord struct {
	State     *string  `json:"state"`
	Magnitude *float64 `json:"magnitude"`
	Longitude *float64 `json:"longitude"`
	Latitude  *float64 `json:"latitude"`
	Year      *int     `json:"year"`
}

var errMalformedRecord = errors.New("malformed record")

// DecodeResult is the outcome of decoding a dataset document.
type DecodeResult struct {
	Records []EarthquakeRecord
	Skipped int // records dropped for missing or non-finite fields
}

// DecodeRecords parses a JSON array of records. Records with a missing or
// non-finite magnitude, latitude, or longitude, or a missing year, are skipped
// and counted rather than propagated as zero values. A missing state decodes as
// the empty string.
func DecodeRecords(data []byte) (DecodeResult, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return DecodeResult{}, fmt.Errorf("decode dataset: %w", err)
	}

	result := DecodeResult{Records: make([]EarthquakeRecord, 0, len(raws))}
	for _, raw := range raws {
		rec, err := decodeRecord(raw)
		if err != nil {
			result.Skipped++
			continue
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

func decodeRecord(raw json.RawMessage) (EarthquakeRecord, error) {
	var r rawRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return EarthquakeRecord{}, fmt.Errorf("%w: %w", errMalformedRecord, err)
	}
	if r.Magnitude == nil || r.Latitude == nil || r.Longitude == nil || r.Year == nil {
		return EarthquakeRecord{}, errMalformedRecord
	}
	if !isFinite(*r.Magnitude) || !isFinite(*r.Latitude) || !isFinite(*r.Longitude) {
		return EarthquakeRecord{}, errMalformedRecord
	}

	rec := EarthquakeRecord{
		Magnitude: *r.Magnitude,
		Latitude:  *r.Latitude,
		Longitude: *r.Longitude,
		Year:      *r.Year,
	}
	if r.State != nil {
		rec.State = *r.State
	}
	return rec, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// RunEvent describes a completed dataset generation run.
type RunEvent struct {
	Algorithm   string    `json:"algorithm"`
	Message     string    `json:"message"`
	Runtime     string    `json:"runtime"`
	Records     int       `json:"records"`
	GeneratedAt time.Time `json:"generated_at"`
}
