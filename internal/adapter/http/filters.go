package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/couchcryptid/quake-map-service/internal/domain"
)

const maxBodyBytes = 1 << 16

// filtersResponse is the control panel state.
type filtersResponse struct {
	State     domain.FilterState       `json:"state"`
	YearLabel string                   `json:"year_label"`
	Bounds    domain.YearRange         `json:"bounds"`
	Catalog   []domain.MagnitudeBucket `json:"catalog"`
}

func (s *Server) filtersBody(st domain.FilterState) filtersResponse {
	return filtersResponse{
		State:     st,
		YearLabel: st.YearRange.Label(),
		Bounds:    s.deps.Filters.Bounds(),
		Catalog:   s.deps.Filters.Catalog(),
	}
}

// accepted reports a mutation; the redraw it triggers is debounced.
func (s *Server) accepted(w http.ResponseWriter, st domain.FilterState, err error) {
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.filtersBody(st))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func (s *Server) handleGetFilters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.filtersBody(s.deps.Filters.Snapshot()))
}

type yearsRequest struct {
	Min *int `json:"min"`
	Max *int `json:"max"`
}

func (s *Server) handleSetYears(w http.ResponseWriter, r *http.Request) {
	var req yearsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Min == nil || req.Max == nil {
		writeError(w, http.StatusBadRequest, errors.New("min and max are required"))
		return
	}
	st, err := s.deps.Filters.SetYearRange(domain.YearRange{Min: *req.Min, Max: *req.Max})
	s.accepted(w, st, err)
}

type bucketsRequest struct {
	Buckets []string `json:"buckets"`
}

func (s *Server) handleSetBuckets(w http.ResponseWriter, r *http.Request) {
	var req bucketsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	st, err := s.deps.Filters.SetBuckets(req.Buckets)
	s.accepted(w, st, err)
}

type checkedRequest struct {
	Checked *bool `json:"checked"`
}

func decodeChecked(w http.ResponseWriter, r *http.Request) (bool, bool) {
	var req checkedRequest
	if !decodeBody(w, r, &req) {
		return false, false
	}
	if req.Checked == nil {
		writeError(w, http.StatusBadRequest, errors.New("checked is required"))
		return false, false
	}
	return *req.Checked, true
}

func (s *Server) handleSelectAll(w http.ResponseWriter, r *http.Request) {
	checked, ok := decodeChecked(w, r)
	if !ok {
		return
	}
	s.accepted(w, s.deps.Filters.SelectAll(checked), nil)
}

func (s *Server) handleSetBucket(w http.ResponseWriter, r *http.Request) {
	checked, ok := decodeChecked(w, r)
	if !ok {
		return
	}
	st, err := s.deps.Filters.SetBucket(r.PathValue("id"), checked)
	s.accepted(w, st, err)
}

func (s *Server) handleOnly(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Filters.Only(r.PathValue("id"))
	s.accepted(w, st, err)
}

type locationRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleSetLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.accepted(w, s.deps.Filters.SetLocation(req.Query), nil)
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.accepted(w, s.deps.Filters.Reset(), nil)
}
