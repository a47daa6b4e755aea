package geomath

import "math"

// MetersPerDegreeLat is the local planar conversion for one degree of latitude.
const MetersPerDegreeLat = 111320.0

// MetersPerDegreeLng returns meters per degree of longitude at lat.
func MetersPerDegreeLng(lat float64) float64 {
	return MetersPerDegreeLat * math.Cos(toRadians(lat))
}

// BBox is a lat/lng bounding box.
type BBox struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// BoundsOf returns the bounding box of points. ok is false for an empty slice.
func BoundsOf(points []GeoPoint) (box BBox, ok bool) {
	if len(points) == 0 {
		return BBox{}, false
	}
	box = BBox{
		MinLat: math.MaxFloat64,
		MinLng: math.MaxFloat64,
		MaxLat: -math.MaxFloat64,
		MaxLng: -math.MaxFloat64,
	}
	for _, p := range points {
		box.MinLat = math.Min(box.MinLat, p.Lat)
		box.MaxLat = math.Max(box.MaxLat, p.Lat)
		box.MinLng = math.Min(box.MinLng, p.Lng)
		box.MaxLng = math.Max(box.MaxLng, p.Lng)
	}
	return box, true
}

// Center returns the midpoint of the box.
func (b BBox) Center() GeoPoint {
	return GeoPoint{Lat: (b.MinLat + b.MaxLat) / 2, Lng: (b.MinLng + b.MaxLng) / 2}
}

// Expand grows the box by paddingMeters on every side, converting meters to
// degrees at the box's center latitude.
func (b BBox) Expand(paddingMeters float64) BBox {
	center := b.Center()
	padLat := paddingMeters / MetersPerDegreeLat
	padLng := paddingMeters / MetersPerDegreeLng(center.Lat)
	return BBox{
		MinLat: b.MinLat - padLat,
		MinLng: b.MinLng - padLng,
		MaxLat: b.MaxLat + padLat,
		MaxLng: b.MaxLng + padLng,
	}
}

// Contains reports whether p lies inside the box, edges included.
func (b BBox) Contains(p GeoPoint) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// IsEmpty reports whether the box has zero or negative area.
func (b BBox) IsEmpty() bool {
	return !(b.MaxLat > b.MinLat) || !(b.MaxLng > b.MinLng)
}

// Validate checks both corners.
func (b BBox) Validate() error {
	if err := (GeoPoint{Lat: b.MinLat, Lng: b.MinLng}).Validate(); err != nil {
		return err
	}
	return GeoPoint{Lat: b.MaxLat, Lng: b.MaxLng}.Validate()
}
