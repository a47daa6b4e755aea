package main

import (
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/station-planner/internal/geomath"
)

// parseFloats splits s on commas into exactly n floats.
func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, eris.Errorf("expected %d comma-separated numbers, got %q", n, s)
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "parse %q", p)
		}
		out[i] = v
	}
	return out, nil
}

// parsePoint reads "lat,lng".
func parsePoint(s string) (geomath.GeoPoint, error) {
	v, err := parseFloats(s, 2)
	if err != nil {
		return geomath.GeoPoint{}, err
	}
	return geomath.NewGeoPoint(v[0], v[1])
}

// parsePoints reads "lat,lng;lat,lng". An empty string yields no points.
func parsePoints(s string) ([]geomath.GeoPoint, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var pts []geomath.GeoPoint
	for _, part := range strings.Split(s, ";") {
		p, err := parsePoint(part)
		if err != nil {
			return nil, err
		}
		pts = append(pts, p)
	}
	return pts, nil
}

// parseBBox reads "min_lat,min_lng,max_lat,max_lng".
func parseBBox(s string) (geomath.BBox, error) {
	v, err := parseFloats(s, 4)
	if err != nil {
		return geomath.BBox{}, err
	}
	b := geomath.BBox{MinLat: v[0], MinLng: v[1], MaxLat: v[2], MaxLng: v[3]}
	if err := b.Validate(); err != nil {
		return geomath.BBox{}, err
	}
	return b, nil
}

// writeJSONTo encodes v as indented JSON to path, or to w when path is empty.
func writeJSONTo(w io.Writer, path string, v any) error {
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "create %s", path)
		}
		defer f.Close() //nolint:errcheck
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encode json")
	}
	return nil
}
