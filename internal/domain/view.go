package domain

// MarkerHandle identifies a marker placed through a map adapter.
type MarkerHandle string

// Extent is the bounding box of a set of positions.
type Extent struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// Summary is the text and table content shown beside the map after a run.
type Summary struct {
	Count      int         `json:"count"`
	CountLabel string      `json:"count_label"`
	YearLabel  string      `json:"year_label"`
	Rankings   Rankings    `json:"rankings"`
	Extent     *Extent     `json:"extent"`
	Filters    FilterState `json:"filters"`
}
