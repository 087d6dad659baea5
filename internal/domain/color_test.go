package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryFor(t *testing.T) {
	tests := []struct {
		magnitude float64
		category  Category
		color     string
	}{
		{2.0, CategoryLow1, "blue"},
		{2.99, CategoryLow1, "blue"},
		{3.0, CategoryLow2, "purple"},
		{4.5, CategoryMid1, "green"},
		{5.0, CategoryMid2, "yellow"},
		{6.9, CategoryHigh1, "orange"},
		{7.0, CategoryHigh2, "red"},
		{9.5, CategoryHigh2, "red"},
	}

	for _, tt := range tests {
		got := CategoryFor(tt.magnitude)
		assert.Equal(t, tt.category, got.Category, "magnitude %v", tt.magnitude)
		assert.Equal(t, tt.color, got.Color, "magnitude %v", tt.magnitude)
	}
}

// Generated datasets never hold magnitudes below 2. Anything that slips in
// through a hand-made file takes the legend's catch-all color.
func TestCategoryFor_BelowLowestBand(t *testing.T) {
	for _, m := range []float64{1.99, 1.5, 0, -1} {
		got := CategoryFor(m)
		assert.Equal(t, MarkerStyle{Category: CategoryHigh2, Color: "red"}, got, "magnitude %v", m)
	}
}

func TestPopupFor(t *testing.T) {
	popup := PopupFor(EarthquakeRecord{State: "Nevada", Magnitude: 4.25, Year: 1999, Latitude: 39, Longitude: -119})

	assert.Equal(t, PopupContent{State: "Nevada", Magnitude: 4.25, Year: 1999}, popup)
	assert.Equal(t, "Nevada - Magnitude 4.25 - Year 1999", popup.Title())
}

func TestDecodeRecords(t *testing.T) {
	data := []byte(`[
		{"state":"California","magnitude":5.2,"longitude":-118,"latitude":34,"year":1994},
		{"state":"Nevada","longitude":-119,"latitude":39,"year":1990},
		{"magnitude":3.1,"longitude":-100,"latitude":40,"year":2001},
		{"state":"Texas","magnitude":"big","longitude":-100,"latitude":31,"year":2001},
		{"state":"Utah","magnitude":3.3,"longitude":-111,"latitude":40}
	]`)

	result, err := DecodeRecords(data)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Skipped)
	require.Len(t, result.Records, 2)
	assert.Equal(t, EarthquakeRecord{State: "California", Magnitude: 5.2, Longitude: -118, Latitude: 34, Year: 1994}, result.Records[0])
	assert.Empty(t, result.Records[1].State)
}

func TestDecodeRecords_NotAnArray(t *testing.T) {
	_, err := DecodeRecords([]byte(`{"state":"x"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode dataset")
}

func TestSetClock(t *testing.T) {
	frozen := time.Date(2004, time.June, 1, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(frozen))
	t.Cleanup(func() { SetClock(nil) })

	assert.Equal(t, frozen, Now())
}
