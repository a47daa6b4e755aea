package suitability

import (
	"math"

	"github.com/sells-group/station-planner/internal/geomath"
)

// Location score references and weights.
const (
	LocationStationRef    = 2000.0
	LocationPopulationRef = 10000.0
	LocationPOIRadius     = 500.0

	locationStationWeight    = 0.4
	locationPopulationWeight = 0.3
	locationCoverageWeight   = 0.2
	locationProximityWeight  = 0.1
)

// LocationInput describes one point for the composite location score.
type LocationInput struct {
	Point geomath.GeoPoint
	// NearestStationMeters must be finite; callers reject an empty network.
	NearestStationMeters float64
	Population           int
	POIs                 []geomath.GeoPoint
}

// LocationScore is the weighted blend of station access, population and POI
// reach around a point. Component scores lie in [0, 1].
type LocationScore struct {
	NearestStationMeters float64  `json:"nearest_station_distance_m"`
	StationAccess        float64  `json:"station_access_score"`
	Population           float64  `json:"population_score"`
	POICoverageRatio     float64  `json:"poi_coverage_ratio"`
	POIWithinRadius      int      `json:"poi_within_radius"`
	NearestPOIMeters     *float64 `json:"nearest_poi_distance_m,omitempty"`
	POIProximity         float64  `json:"poi_proximity_score"`
	Composite            float64  `json:"composite_score"`
}

// ScoreLocation computes the composite location score:
//
//	0.4·(1 − n(station, 2000)) + 0.3·n(population, 10000)
//	+ 0.2·share of POIs within 500 m + 0.1·(1 − n(nearest POI, 1000))
//
// where n clamps to [0, 1]. Without POIs both POI terms are zero.
func ScoreLocation(in LocationInput) LocationScore {
	within := 0
	nearestPOI := math.Inf(1)
	for _, poi := range in.POIs {
		d := geomath.HaversineMeters(in.Point, poi)
		if d <= LocationPOIRadius {
			within++
		}
		nearestPOI = min(nearestPOI, d)
	}

	out := LocationScore{
		NearestStationMeters: math.Round(in.NearestStationMeters*10) / 10,
		StationAccess:        1 - normalize(in.NearestStationMeters, LocationStationRef),
		Population:           normalize(float64(in.Population), LocationPopulationRef),
		POIWithinRadius:      within,
		POIProximity:         1 - normalize(nearestPOI, 2*LocationPOIRadius),
	}
	if len(in.POIs) > 0 {
		out.POICoverageRatio = float64(within) / float64(len(in.POIs))
		d := math.Round(nearestPOI*10) / 10
		out.NearestPOIMeters = &d
	}
	out.Composite = out.StationAccess*locationStationWeight +
		out.Population*locationPopulationWeight +
		out.POICoverageRatio*locationCoverageWeight +
		out.POIProximity*locationProximityWeight

	out.StationAccess = round4(out.StationAccess)
	out.Population = round4(out.Population)
	out.POICoverageRatio = round4(out.POICoverageRatio)
	out.POIProximity = round4(out.POIProximity)
	out.Composite = round4(out.Composite)
	return out
}

// normalize maps v from [0, ref] onto [0, 1], clamping outside values.
func normalize(v, ref float64) float64 {
	return clamp01(v / ref)
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
