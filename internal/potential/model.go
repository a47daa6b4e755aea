// Package potential computes the planning heatmap: gaussian hotspot layers
// combined under user weights plus a coverage-gap adjustment relative to
// candidate stations.
package potential

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/station-planner/internal/geomath"
	"github.com/sells-group/station-planner/internal/spatialindex"
)

// Coverage adjustment and output bounds.
const (
	GapSigmaMeters   = 650.0
	CloseSigmaMeters = 180.0
	ClosePenalty     = 0.6
	MaxIntensity     = 1.25
)

// Weights tune the layer mix and the coverage adjustment. The UI offers 0 to 1.5.
type Weights struct {
	Population float64 `json:"population" mapstructure:"population"`
	POI        float64 `json:"poi" mapstructure:"poi"`
	Transit    float64 `json:"transit" mapstructure:"transit"`
	Coverage   float64 `json:"coverage" mapstructure:"coverage"`
}

// DefaultWeights returns {1.0, 0.8, 0.9, 0.75}.
func DefaultWeights() Weights {
	return Weights{Population: 1.0, POI: 0.8, Transit: 0.9, Coverage: 0.75}
}

// Validate rejects negative or non-finite weights.
func (w Weights) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"population", w.Population},
		{"poi", w.POI},
		{"transit", w.Transit},
		{"coverage", w.Coverage},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 {
			return eris.Errorf("potential: weight %s must be a finite non-negative number, got %v", f.name, f.v)
		}
	}
	return nil
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// HeatPoint is one sample of the surface.
type HeatPoint struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Intensity float64 `json:"intensity"`
}

// Model evaluates the surface for a fixed set of layers.
type Model struct {
	Layers Layers
}

// NewModel returns a Model over layers.
func NewModel(layers Layers) *Model {
	return &Model{Layers: layers}
}

// ComputeHeatPoints evaluates the surface with DefaultLayers.
func ComputeHeatPoints(samples, candidates []geomath.GeoPoint, w Weights) []HeatPoint {
	return NewModel(DefaultLayers()).ComputeHeatPoints(samples, candidates, w)
}

// ComputeHeatPoints returns one HeatPoint per sample, in order. Intensities
// lie in [0, MaxIntensity].
func (m *Model) ComputeHeatPoints(samples, candidates []geomath.GeoPoint, w Weights) []HeatPoint {
	out := make([]HeatPoint, len(samples))
	if len(samples) == 0 {
		return out
	}

	wPop, wPOI, wTransit, wCov := sanitize(w.Population), sanitize(w.POI), sanitize(w.Transit), sanitize(w.Coverage)
	pop := normalize(layerValues(m.Layers.Population, samples))
	poi := normalize(layerValues(m.Layers.POI, samples))
	transit := normalize(layerValues(m.Layers.Transit, samples))
	sumW := wPop + wPOI + wTransit

	items := make([]spatialindex.Item, len(candidates))
	for i, c := range candidates {
		items[i] = spatialindex.Item{Point: c}
	}
	idx := spatialindex.New(items)

	for i, s := range samples {
		var combined float64
		if sumW > 0 {
			combined = (wPop*pop[i] + wPOI*poi[i] + wTransit*transit[i]) / sumW
		}
		adj := wCov
		if nearest, ok := idx.Nearest(s); ok {
			adj = CoverageAdjustment(nearest.DistanceMeters, wCov)
		}
		out[i] = HeatPoint{
			Lat:       s.Lat,
			Lng:       s.Lng,
			Intensity: clamp(combined+adj, 0, MaxIntensity),
		}
	}
	return out
}

// CoverageAdjustment is coverage·(gapBoost(d) − 0.6·closePenalty(d)) for the
// distance d to the nearest candidate.
func CoverageAdjustment(distanceMeters, coverageWeight float64) float64 {
	return coverageWeight * (GapBoost(distanceMeters) - ClosePenalty*ClosePenaltyAt(distanceMeters))
}

// GapBoost rises from 0 to 1 with distance from the nearest candidate.
func GapBoost(d float64) float64 {
	return 1 - gaussian(d, GapSigmaMeters)
}

// ClosePenaltyAt falls from 1 to 0 with distance from the nearest candidate.
func ClosePenaltyAt(d float64) float64 {
	return gaussian(d, CloseSigmaMeters)
}

func gaussian(d, sigma float64) float64 {
	return math.Exp(-(d * d) / (2 * sigma * sigma))
}

// layerValues sums gaussian hotspot influence at every sample.
func layerValues(l Layer, samples []geomath.GeoPoint) []float64 {
	vals := make([]float64, len(samples))
	if !(l.Sigma > 0) {
		return vals
	}
	for i, s := range samples {
		var v float64
		for _, h := range l.Hotspots {
			v += h.Weight * gaussian(geomath.HaversineMeters(s, h.Point), l.Sigma)
		}
		vals[i] = v
	}
	return vals
}

// normalize min-max scales vals into [0, 1] in place. A constant layer
// carries no spatial signal and becomes all zeros.
func normalize(vals []float64) []float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	for i, v := range vals {
		if !(span > 0) || math.IsInf(span, 0) {
			vals[i] = 0
			continue
		}
		vals[i] = (v - lo) / span
	}
	return vals
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
