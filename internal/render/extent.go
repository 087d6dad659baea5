package render

import (
	"github.com/twpayne/go-geom"

	"github.com/couchcryptid/quake-map-service/internal/domain"
)

// extentOf returns the bounding box of the records, or nil when empty.
func extentOf(records []domain.EarthquakeRecord) *domain.Extent {
	if len(records) == 0 {
		return nil
	}
	flat := make([]float64, 0, 2*len(records))
	for _, rec := range records {
		flat = append(flat, rec.Longitude, rec.Latitude)
	}
	b := geom.NewMultiPointFlat(geom.XY, flat).Bounds()
	return &domain.Extent{
		MinLng: b.Min(0),
		MinLat: b.Min(1),
		MaxLng: b.Max(0),
		MaxLat: b.Max(1),
	}
}
