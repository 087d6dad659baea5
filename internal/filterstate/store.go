// Package filterstate holds the map controls' current selection.
package filterstate

import (
	"fmt"
	"slices"
	"sync"

	"github.com/couchcryptid/quake-map-service/internal/domain"
)

// Listener is notified with a snapshot after every successful mutation.
type Listener func(domain.FilterState)

// Store owns the current FilterState. It exposes one mutation entry point per
// control and performs no derived computation.
type Store struct {
	bounds  domain.YearRange
	catalog []domain.MagnitudeBucket

	mu        sync.Mutex
	state     domain.FilterState
	listeners []Listener
}

// New creates a Store with the full slider range and every catalog bucket selected.
func New(bounds domain.YearRange, catalog []domain.MagnitudeBucket) *Store {
	s := &Store{
		bounds:  bounds,
		catalog: slices.Clone(catalog),
	}
	s.state = s.defaults()
	return s
}

// Subscribe registers l for mutation notifications.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() domain.FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Bounds returns the slider's configured year bounds.
func (s *Store) Bounds() domain.YearRange {
	return s.bounds
}

// Catalog returns the configured magnitude buckets in display order.
func (s *Store) Catalog() []domain.MagnitudeBucket {
	return slices.Clone(s.catalog)
}

// SetYearRange handles a slider release.
func (s *Store) SetYearRange(r domain.YearRange) (domain.FilterState, error) {
	if err := r.Validate(s.bounds); err != nil {
		return domain.FilterState{}, err
	}
	return s.mutate(func(st *domain.FilterState) { st.YearRange = r }), nil
}

// SetBucket checks or unchecks a single magnitude checkbox.
func (s *Store) SetBucket(id string, checked bool) (domain.FilterState, error) {
	if _, ok := s.lookup(id); !ok {
		return domain.FilterState{}, fmt.Errorf("%w: %q", domain.ErrUnknownBucket, id)
	}
	return s.mutate(func(st *domain.FilterState) {
		selected := make(map[string]bool, len(st.Buckets)+1)
		for _, b := range st.Buckets {
			selected[b.ID] = true
		}
		selected[id] = checked
		st.Buckets = s.inCatalogOrder(selected)
	}), nil
}

// SetBuckets replaces the selection with exactly ids.
func (s *Store) SetBuckets(ids []string) (domain.FilterState, error) {
	selected := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.lookup(id); !ok {
			return domain.FilterState{}, fmt.Errorf("%w: %q", domain.ErrUnknownBucket, id)
		}
		selected[id] = true
	}
	return s.mutate(func(st *domain.FilterState) { st.Buckets = s.inCatalogOrder(selected) }), nil
}

// SelectAll handles the "select all" checkbox.
func (s *Store) SelectAll(checked bool) domain.FilterState {
	return s.mutate(func(st *domain.FilterState) {
		if checked {
			st.Buckets = slices.Clone(s.catalog)
			return
		}
		st.Buckets = []domain.MagnitudeBucket{}
	})
}

// Only handles an "only" button: select id and nothing else.
func (s *Store) Only(id string) (domain.FilterState, error) {
	b, ok := s.lookup(id)
	if !ok {
		return domain.FilterState{}, fmt.Errorf("%w: %q", domain.ErrUnknownBucket, id)
	}
	return s.mutate(func(st *domain.FilterState) { st.Buckets = []domain.MagnitudeBucket{b} }), nil
}

// SetLocation handles a search submit. An empty query clears the constraint.
func (s *Store) SetLocation(query string) domain.FilterState {
	return s.mutate(func(st *domain.FilterState) { st.LocationQuery = query })
}

// Reset restores every control to its default, as after a dataset regeneration.
func (s *Store) Reset() domain.FilterState {
	return s.mutate(func(st *domain.FilterState) { *st = s.defaults() })
}

func (s *Store) defaults() domain.FilterState {
	return domain.FilterState{
		YearRange: s.bounds,
		Buckets:   slices.Clone(s.catalog),
	}
}

func (s *Store) lookup(id string) (domain.MagnitudeBucket, bool) {
	for _, b := range s.catalog {
		if b.ID == id {
			return b, true
		}
	}
	return domain.MagnitudeBucket{}, false
}

func (s *Store) inCatalogOrder(selected map[string]bool) []domain.MagnitudeBucket {
	out := make([]domain.MagnitudeBucket, 0, len(selected))
	for _, b := range s.catalog {
		if selected[b.ID] {
			out = append(out, b)
		}
	}
	return out
}

// mutate applies fn under the lock, then notifies listeners outside it.
func (s *Store) mutate(fn func(*domain.FilterState)) domain.FilterState {
	s.mu.Lock()
	fn(&s.state)
	snap := s.state.Clone()
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap.Clone())
	}
	return snap
}
