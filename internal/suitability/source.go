package suitability

import (
	"context"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/station-planner/internal/geomath"
)

// MetricSource supplies the raw scoring inputs for a point.
type MetricSource interface {
	Metrics(ctx context.Context, p geomath.GeoPoint) (RawMetricInput, error)
}

// MetricSourceFunc adapts a function to MetricSource.
type MetricSourceFunc func(ctx context.Context, p geomath.GeoPoint) (RawMetricInput, error)

// Metrics implements MetricSource.
func (f MetricSourceFunc) Metrics(ctx context.Context, p geomath.GeoPoint) (RawMetricInput, error) {
	return f(ctx, p)
}

// SimulatedSource fills the inputs that have no real data feed with smooth
// deterministic functions of the coordinates. These are placeholders, not
// calibrated models. Coverage, POI and transit come from the optional
// collaborators when set and fall back to simulation otherwise.
type SimulatedSource struct {
	Coverage func(geomath.GeoPoint) float64
	POI      func(context.Context, geomath.GeoPoint) (int, error)
	Transit  func(context.Context, geomath.GeoPoint) (float64, error)
}

// Metrics implements MetricSource.
func (s SimulatedSource) Metrics(ctx context.Context, p geomath.GeoPoint) (RawMetricInput, error) {
	if err := p.Validate(); err != nil {
		return RawMetricInput{}, err
	}

	in := RawMetricInput{
		PopulationDensity: SimulatedDensity(p),
		NearbyUtilization: SimulatedUtilization(p),
		CongestionLevel:   SimulatedCongestion(p),
	}

	if s.Coverage != nil {
		in.CoverageRatio = clamp01(s.Coverage(p))
	} else {
		in.CoverageRatio = clamp01(0.5 + 0.45*math.Sin(p.Lng*60))
	}

	if s.POI != nil {
		n, err := s.POI(ctx, p)
		if err != nil {
			return RawMetricInput{}, eris.Wrap(err, "suitability: poi count")
		}
		in.POICount = float64(n)
	} else {
		in.POICount = math.Round(20 + 15*math.Cos(p.Lat*90))
	}

	if s.Transit != nil {
		d, err := s.Transit(ctx, p)
		if err != nil {
			return RawMetricInput{}, eris.Wrap(err, "suitability: transit distance")
		}
		in.TransitProximityMeters = d
	} else {
		in.TransitProximityMeters = 600 + 500*math.Sin(p.Lat*35+p.Lng*25)
	}
	return in, nil
}

// SimulatedDensity is a placeholder population density in [1000, 13000] /km².
func SimulatedDensity(p geomath.GeoPoint) float64 {
	return 7000 + 6000*math.Sin(p.Lat*40)*math.Cos(p.Lng*40)
}

// SimulatedUtilization is a placeholder utilization percentage in [15, 85].
func SimulatedUtilization(p geomath.GeoPoint) float64 {
	return 50 + 35*math.Sin(p.Lat*55+p.Lng*30)
}

// SimulatedCongestion is a placeholder congestion level in [0.1, 0.9].
func SimulatedCongestion(p geomath.GeoPoint) float64 {
	return 0.5 + 0.4*math.Cos(p.Lat*70-p.Lng*45)
}
