// Package station loads the existing station list from files, an HTTP feed or
// the stations table and converts it for the coverage model.
package station

import (
	"context"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/station-planner/internal/coverage"
	"github.com/sells-group/station-planner/internal/geomath"
)

// Record is one station as delivered by a station feed.
type Record struct {
	ID       int64    `json:"id"`
	Name     *string  `json:"name,omitempty"`
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
	Capacity *int     `json:"capacity,omitempty"`
	City     string   `json:"city,omitempty"`
}

// Source yields the current station list.
type Source interface {
	Stations(ctx context.Context) ([]Record, error)
}

// Validate checks that the record has usable coordinates and a
// non-negative capacity.
func (r Record) Validate() error {
	if r.Lat == nil || r.Lng == nil {
		return eris.Wrapf(geomath.ErrInvalidCoordinate, "station %d: missing coordinates", r.ID)
	}
	if err := r.Point().Validate(); err != nil {
		return eris.Wrapf(err, "station %d", r.ID)
	}
	if r.Capacity != nil && *r.Capacity < 0 {
		return eris.Errorf("station %d: negative capacity %d", r.ID, *r.Capacity)
	}
	return nil
}

// Point returns the record location. Missing coordinates become 0.
func (r Record) Point() geomath.GeoPoint {
	var p geomath.GeoPoint
	if r.Lat != nil {
		p.Lat = *r.Lat
	}
	if r.Lng != nil {
		p.Lng = *r.Lng
	}
	return p
}

// Existing converts the record for the coverage model.
func (r Record) Existing() coverage.ExistingStation {
	s := coverage.ExistingStation{
		ID:    strconv.FormatInt(r.ID, 10),
		Point: r.Point(),
	}
	if r.Name != nil {
		s.Name = *r.Name
	}
	if r.Capacity != nil {
		s.Capacity = *r.Capacity
		s.HasCapacity = true
	}
	return s
}

// ToExisting converts records in order.
func ToExisting(records []Record) []coverage.ExistingStation {
	out := make([]coverage.ExistingStation, len(records))
	for i, r := range records {
		out[i] = r.Existing()
	}
	return out
}

// Points returns the record locations in order.
func Points(records []Record) []geomath.GeoPoint {
	out := make([]geomath.GeoPoint, len(records))
	for i, r := range records {
		out[i] = r.Point()
	}
	return out
}

// Filter keeps the valid records and returns the validation errors of the
// rest.
func Filter(records []Record) ([]Record, []error) {
	valid := make([]Record, 0, len(records))
	var errs []error
	for _, r := range records {
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		valid = append(valid, r)
	}
	return valid, errs
}

// CityInfo is the stored center and bounds of a city.
type CityInfo struct {
	ID     int64             `json:"id"`
	Name   string            `json:"name"`
	Center *geomath.GeoPoint `json:"center,omitempty"`
	Bounds *geomath.BBox     `json:"bounds,omitempty"`
}
