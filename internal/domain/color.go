package domain

import (
	"math"
	"strconv"
)

// Category is the display class of a marker.
type Category string

const (
	CategoryLow1  Category = "low1"
	CategoryLow2  Category = "low2"
	CategoryMid1  Category = "mid1"
	CategoryMid2  Category = "mid2"
	CategoryHigh1 Category = "high1"
	CategoryHigh2 Category = "high2"
)

// colorBand maps a half-open magnitude interval to a category.
type colorBand struct {
	min, max float64
	category Category
	color    string
}

// colorBands is scanned in order and the last matching band wins.
var colorBands = []colorBand{
	{2, 3, CategoryLow1, "blue"},
	{3, 4, CategoryLow2, "purple"},
	{4, 5, CategoryMid1, "green"},
	{5, 6, CategoryMid2, "yellow"},
	{6, 7, CategoryHigh1, "orange"},
	{7, math.Inf(1), CategoryHigh2, "red"},
}

// MarkerStyle is the derived appearance of a marker.
type MarkerStyle struct {
	Category Category `json:"category"`
	Color    string   `json:"color"`
}

// CategoryFor returns the marker style for a magnitude. Magnitudes below the
// lowest band fall through to the top band, matching the legend's catch-all.
func CategoryFor(magnitude float64) MarkerStyle {
	style := MarkerStyle{Category: CategoryHigh2, Color: "red"}
	for _, band := range colorBands {
		if magnitude >= band.min && magnitude < band.max {
			style = MarkerStyle{Category: band.category, Color: band.color}
		}
	}
	return style
}

// PopupContent is what the info popup shows for a hovered marker.
type PopupContent struct {
	State     string  `json:"state"`
	Magnitude float64 `json:"magnitude"`
	Year      int     `json:"year"`
}

// PopupFor builds the popup content for a record.
func PopupFor(rec EarthquakeRecord) PopupContent {
	return PopupContent{State: rec.State, Magnitude: rec.Magnitude, Year: rec.Year}
}

// Title is the single-line marker tooltip.
func (p PopupContent) Title() string {
	return p.State + " - Magnitude " + strconv.FormatFloat(p.Magnitude, 'g', -1, 64) +
		" - Year " + strconv.Itoa(p.Year)
}
