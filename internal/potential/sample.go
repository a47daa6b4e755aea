package potential

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/station-planner/internal/geomath"
)

// ErrTooManySamples is returned when a sampling grid exceeds its point limit.
var ErrTooManySamples = eris.New("potential: too many sample points")

// Sampling is a rectangular grid of sample points. The first point sits half
// a step inside the south-west corner.
type Sampling struct {
	Origin  geomath.GeoPoint   `json:"origin_center"`
	StepLat float64            `json:"step_lat"`
	StepLng float64            `json:"step_lng"`
	NX      int                `json:"nx"`
	NY      int                `json:"ny"`
	Points  []geomath.GeoPoint `json:"-"`
}

// Index returns the position of cell (ix, iy) in Points.
func (s Sampling) Index(ix, iy int) int { return iy*s.NX + ix }

// SampleGrid lays a grid of stepMeters spacing over box, row by row from the
// south. A box too small for a single step yields an empty grid. maxPoints of
// zero disables the limit.
func SampleGrid(box geomath.BBox, stepMeters float64, maxPoints int) (Sampling, error) {
	if !(stepMeters > 0) || math.IsInf(stepMeters, 1) {
		return Sampling{}, eris.Errorf("potential: sample step must be positive, got %v", stepMeters)
	}
	if err := box.Validate(); err != nil {
		return Sampling{}, eris.Wrap(err, "potential: sample bounds")
	}

	center := box.Center()
	s := Sampling{
		StepLat: stepMeters / geomath.MetersPerDegreeLat,
		StepLng: stepMeters / geomath.MetersPerDegreeLng(center.Lat),
	}
	s.Origin = geomath.GeoPoint{Lat: box.MinLat + s.StepLat/2, Lng: box.MinLng + s.StepLng/2}

	ny := math.Floor((box.MaxLat-s.Origin.Lat)/s.StepLat) + 1
	nx := math.Floor((box.MaxLng-s.Origin.Lng)/s.StepLng) + 1
	if nx <= 0 || ny <= 0 {
		return s, nil
	}
	if maxPoints > 0 && nx*ny > float64(maxPoints) {
		return Sampling{}, eris.Wrapf(ErrTooManySamples, "%.0f points, limit %d", nx*ny, maxPoints)
	}
	s.NX, s.NY = int(nx), int(ny)

	s.Points = make([]geomath.GeoPoint, 0, s.NX*s.NY)
	for iy := 0; iy < s.NY; iy++ {
		lat := s.Origin.Lat + float64(iy)*s.StepLat
		for ix := 0; ix < s.NX; ix++ {
			s.Points = append(s.Points, geomath.GeoPoint{Lat: lat, Lng: s.Origin.Lng + float64(ix)*s.StepLng})
		}
	}
	return s, nil
}
