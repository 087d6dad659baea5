// Package mapview is an in-memory map widget: a marker layer, a single info
// popup and the summary panel. The browser client polls its snapshot and draws
// exactly what it contains.
package mapview

import (
	"cmp"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/couchcryptid/quake-map-service/internal/domain"
)

// Marker is a placed marker as drawn by the client.
type Marker struct {
	ID       domain.MarkerHandle `json:"id"`
	Lat      float64             `json:"lat"`
	Lng      float64             `json:"lng"`
	Color    string              `json:"color"`
	Category domain.Category     `json:"category"`

	seq uint64
}

// Popup is the open info popup.
type Popup struct {
	Marker    domain.MarkerHandle `json:"marker"`
	Title     string              `json:"title"`
	State     string              `json:"state"`
	Magnitude float64             `json:"magnitude"`
	Year      int                 `json:"year"`
}

// Snapshot is a consistent copy of everything on screen. Version increases on
// every change so clients can skip redraws.
type Snapshot struct {
	Version uint64         `json:"version"`
	Markers []Marker       `json:"markers"`
	Popup   *Popup         `json:"popup"`
	Summary domain.Summary `json:"summary"`
}

// View implements the map adapter and summary view over in-memory state.
//
// Changes made between Begin and Commit are published together: Snapshot
// keeps returning the state captured by Begin until Commit, and the version
// moves once for the whole batch.
type View struct {
	mu      sync.RWMutex
	version uint64
	seq     uint64
	markers map[domain.MarkerHandle]Marker
	popup   *Popup
	summary domain.Summary

	batch  int       // open Begin calls
	frozen *Snapshot // published state while batch > 0
	dirty  bool      // a change happened inside the batch
}

// New creates an empty view.
func New() *View {
	return &View{
		markers: make(map[domain.MarkerHandle]Marker),
		summary: domain.Summary{
			Rankings: domain.Rankings{TopLow: []domain.RankingEntry{}, TopHigh: []domain.RankingEntry{}},
		},
	}
}

// CreateMarker places a marker and returns its handle.
func (v *View) CreateMarker(pos domain.Position, style domain.MarkerStyle) domain.MarkerHandle {
	h := domain.MarkerHandle(uuid.NewString())

	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	v.markers[h] = Marker{
		ID:       h,
		Lat:      pos.Lat,
		Lng:      pos.Lng,
		Color:    style.Color,
		Category: style.Category,
		seq:      v.seq,
	}
	v.changed()
	return h
}

// RemoveMarker removes a marker. Removing the marker the popup is bound to
// closes the popup. Unknown handles are ignored.
func (v *View) RemoveMarker(h domain.MarkerHandle) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.markers[h]; !ok {
		return
	}
	delete(v.markers, h)
	if v.popup != nil && v.popup.Marker == h {
		v.popup = nil
	}
	v.changed()
}

// ShowPopup opens the popup on h, replacing any open popup. It is a no-op
// when h is not placed.
func (v *View) ShowPopup(h domain.MarkerHandle, content domain.PopupContent) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.markers[h]; !ok {
		return
	}
	v.popup = &Popup{
		Marker:    h,
		Title:     content.Title(),
		State:     content.State,
		Magnitude: content.Magnitude,
		Year:      content.Year,
	}
	v.changed()
}

// HidePopup closes the popup if one is open.
func (v *View) HidePopup() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.popup == nil {
		return
	}
	v.popup = nil
	v.changed()
}

// ShowSummary replaces the summary panel.
func (v *View) ShowSummary(s domain.Summary) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.summary = s
	v.changed()
}

// Begin opens a batch. Calls nest; only the outermost Commit publishes.
func (v *View) Begin() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.batch == 0 {
		snap := v.snapshotLocked()
		v.frozen = &snap
		v.dirty = false
	}
	v.batch++
}

// Commit closes a batch opened by Begin.
func (v *View) Commit() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.batch == 0 {
		return
	}
	v.batch--
	if v.batch > 0 {
		return
	}
	v.frozen = nil
	if v.dirty {
		v.version++
		v.dirty = false
	}
}

func (v *View) changed() {
	if v.batch > 0 {
		v.dirty = true
		return
	}
	v.version++
}

// Snapshot returns the published view with markers in placement order.
func (v *View) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.frozen != nil {
		return v.frozen.clone()
	}
	return v.snapshotLocked()
}

func (v *View) snapshotLocked() Snapshot {
	markers := make([]Marker, 0, len(v.markers))
	for _, m := range v.markers {
		markers = append(markers, m)
	}
	slices.SortFunc(markers, func(a, b Marker) int { return cmp.Compare(a.seq, b.seq) })

	snap := Snapshot{
		Version: v.version,
		Markers: markers,
		Summary: v.summary,
	}
	if v.popup != nil {
		p := *v.popup
		snap.Popup = &p
	}
	snap.Summary.Filters = v.summary.Filters.Clone()
	return snap
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Markers = slices.Clone(s.Markers)
	if s.Popup != nil {
		p := *s.Popup
		out.Popup = &p
	}
	out.Summary.Filters = s.Summary.Filters.Clone()
	return out
}
