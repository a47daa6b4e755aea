package suitability

import (
	"math"

	"golang.org/x/text/message"
)

// RawMetricInput holds the six scoring inputs for one point.
type RawMetricInput struct {
	CoverageRatio          float64 `json:"coverage_ratio"`
	PopulationDensity      float64 `json:"population_density"`
	NearbyUtilization      float64 `json:"nearby_utilization"`
	CongestionLevel        float64 `json:"congestion_level"`
	POICount               float64 `json:"poi_count"`
	TransitProximityMeters float64 `json:"transit_proximity_meters"`
}

// Factor keys.
const (
	FactorCoverage    = "coverage"
	FactorPopulation  = "population_density"
	FactorUtilization = "nearby_utilization"
	FactorCongestion  = "congestion"
	FactorPOI         = "poi_count"
	FactorTransit     = "transit_proximity"
)

// Normalization references.
const (
	PopulationDensityRef = 15000.0
	UtilizationRef       = 100.0
	POICountRef          = 40.0
	TransitDistanceRef   = 1200.0
)

// Factor is one weighted scoring dimension.
type Factor struct {
	Key    string
	Label  string
	Weight float64
	// Value extracts the raw input.
	Value func(RawMetricInput) float64
	// Normalize maps the raw value into [0, 1]; results are clamped again.
	Normalize func(float64) float64
	// Format renders the raw value for display.
	Format func(p *message.Printer, raw float64) string
}

// DefaultFactors returns the six standard factors. Weights sum to 1.
func DefaultFactors() []Factor {
	return []Factor{
		{
			Key: FactorCoverage, Label: "Coverage ratio", Weight: 0.25,
			Value:     func(in RawMetricInput) float64 { return in.CoverageRatio },
			Normalize: clamp01,
			Format:    formatPercent,
		},
		{
			Key: FactorPopulation, Label: "Population density", Weight: 0.20,
			Value:     func(in RawMetricInput) float64 { return in.PopulationDensity },
			Normalize: func(v float64) float64 { return clamp01(v / PopulationDensityRef) },
			Format: func(p *message.Printer, v float64) string {
				return p.Sprintf("%d /km²", int64(math.Round(v)))
			},
		},
		{
			Key: FactorUtilization, Label: "Nearby utilization", Weight: 0.20,
			Value:     func(in RawMetricInput) float64 { return in.NearbyUtilization },
			Normalize: func(v float64) float64 { return clamp01(v / UtilizationRef) },
			Format: func(p *message.Printer, v float64) string {
				return p.Sprintf("%d %%", int64(math.Round(v)))
			},
		},
		{
			Key: FactorCongestion, Label: "Congestion level", Weight: 0.10,
			Value:     func(in RawMetricInput) float64 { return in.CongestionLevel },
			Normalize: func(v float64) float64 { return 1 - clamp01(v) },
			Format:    formatPercent,
		},
		{
			Key: FactorPOI, Label: "Points of interest", Weight: 0.15,
			Value:     func(in RawMetricInput) float64 { return in.POICount },
			Normalize: func(v float64) float64 { return clamp01(v / POICountRef) },
			Format: func(p *message.Printer, v float64) string {
				return p.Sprintf("%d", int64(math.Round(v)))
			},
		},
		{
			Key: FactorTransit, Label: "Transit proximity", Weight: 0.10,
			Value:     func(in RawMetricInput) float64 { return in.TransitProximityMeters },
			Normalize: func(v float64) float64 { return 1 - clamp01(v/TransitDistanceRef) },
			Format: func(p *message.Printer, v float64) string {
				return p.Sprintf("%d m", int64(math.Round(v)))
			},
		},
	}
}

func formatPercent(p *message.Printer, v float64) string {
	return p.Sprintf("%d %%", int64(math.Round(v*100)))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
