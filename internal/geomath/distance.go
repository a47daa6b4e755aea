package geomath

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the mean Earth radius used for all spherical math.
const EarthRadiusMeters = 6371000.0

// Axis identifies the coordinate a k-d split or axis distance refers to.
type Axis int

const (
	AxisLat Axis = iota
	AxisLng
)

func (a Axis) String() string {
	if a == AxisLng {
		return "lng"
	}
	return "lat"
}

// Value returns the coordinate of p along the axis.
func (a Axis) Value(p GeoPoint) float64 {
	if a == AxisLng {
		return p.Lng
	}
	return p.Lat
}

// HaversineMeters returns the great-circle distance between a and b in meters.
func HaversineMeters(a, b GeoPoint) float64 {
	if a == b {
		return 0
	}
	return angleMeters(latLng(a).Distance(latLng(b)))
}

func latLng(p GeoPoint) s2.LatLng {
	return s2.LatLngFromDegrees(p.Lat, p.Lng)
}

func angleMeters(a s1.Angle) float64 {
	return a.Radians() * EarthRadiusMeters
}

// Destination projects origin by distanceMeters along the initial bearing
// (degrees clockwise from north) on the sphere.
func Destination(origin GeoPoint, distanceMeters, bearingDegrees float64) GeoPoint {
	delta := distanceMeters / EarthRadiusMeters
	theta := toRadians(bearingDegrees)
	phi1 := toRadians(origin.Lat)
	lambda1 := toRadians(origin.Lng)

	sinPhi2 := math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta)
	phi2 := math.Asin(clamp(sinPhi2, -1, 1))
	y := math.Sin(theta) * math.Sin(delta) * math.Cos(phi1)
	x := math.Cos(delta) - math.Sin(phi1)*sinPhi2
	lambda2 := lambda1 + math.Atan2(y, x)

	return GeoPoint{Lat: toDegrees(phi2), Lng: NormalizeLng(toDegrees(lambda2))}
}

// AxisDistanceMeters is a lower bound on the geodesic distance from p to any
// point on the far side of the splitting plane at value. For AxisLat that is
// the distance to the parallel at value. For AxisLng a path to the far side
// has to cross either the meridian at value or the antimeridian, so the
// smaller of the two meridian distances is returned.
func AxisDistanceMeters(p GeoPoint, axis Axis, value float64) float64 {
	if axis == AxisLat {
		return angleMeters(s1.Angle(math.Abs(p.Lat-value)) * s1.Degree)
	}
	return math.Min(meridianDistance(p, value), meridianDistance(p, 180))
}

var (
	northPole = s2.PointFromLatLng(s2.LatLngFromDegrees(90, 0))
	southPole = s2.PointFromLatLng(s2.LatLngFromDegrees(-90, 0))
)

// meridianDistance is the distance from p to the half great circle at lng,
// measured against its two pole-to-equator edges.
func meridianDistance(p GeoPoint, lng float64) float64 {
	x := s2.PointFromLatLng(latLng(p))
	eq := s2.PointFromLatLng(s2.LatLngFromDegrees(0, lng))
	north := s2.DistanceFromSegment(x, northPole, eq)
	south := s2.DistanceFromSegment(x, eq, southPole)
	if south < north {
		return angleMeters(south)
	}
	return angleMeters(north)
}

// NormalizeLng wraps a longitude into [-180, 180].
func NormalizeLng(lng float64) float64 {
	if lng >= -180 && lng <= 180 {
		return lng
	}
	lng = math.Mod(lng+180, 360)
	if lng < 0 {
		lng += 360
	}
	return lng - 180
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
