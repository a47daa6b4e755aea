// Package geomath provides the geodesic primitives shared by the planning engine:
// great-circle distance, forward projection and bounding boxes on WGS84 lat/lng.
package geomath

import (
	"math"

	"github.com/rotisserie/eris"
)

// ErrInvalidCoordinate is returned when a latitude or longitude is out of range.
var ErrInvalidCoordinate = eris.New("geomath: invalid coordinate")

// GeoPoint is an immutable WGS84 coordinate in decimal degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NewGeoPoint returns a validated GeoPoint.
func NewGeoPoint(lat, lng float64) (GeoPoint, error) {
	p := GeoPoint{Lat: lat, Lng: lng}
	if err := p.Validate(); err != nil {
		return GeoPoint{}, err
	}
	return p, nil
}

// Validate checks -90 <= lat <= 90 and -180 <= lng <= 180.
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return eris.Wrapf(ErrInvalidCoordinate, "latitude %v out of range", p.Lat)
	}
	if math.IsNaN(p.Lng) || p.Lng < -180 || p.Lng > 180 {
		return eris.Wrapf(ErrInvalidCoordinate, "longitude %v out of range", p.Lng)
	}
	return nil
}

// ValidateAll returns the first validation error in points, annotated with its index.
func ValidateAll(points []GeoPoint) error {
	for i, p := range points {
		if err := p.Validate(); err != nil {
			return eris.Wrapf(err, "point %d", i)
		}
	}
	return nil
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }
