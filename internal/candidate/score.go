// Package candidate compares proposed station sites. It holds the
// proposal-level score, the context-based location evaluation, proposal
// ranking and the city-wide planning grid precompute.
package candidate

import "math"

// Score weights and caps.
const (
	SchoolWeight          = 2.0
	UniversityWeight      = 3.0
	ShopWeight            = 0.5
	BusStopWeight         = 0.5
	RailStationWeight     = 1.5
	MaxDistanceBonus      = 20.0
	MaxCoveragePenalty    = 30.0
	CoveragePenaltyFactor = 3.0
	CompressionOffset     = 60.0
)

// Counts are the context signals for one candidate point.
type Counts struct {
	Schools              int     `json:"schools"`
	Universities         int     `json:"universities"`
	Shops                int     `json:"shops"`
	BusStops             int     `json:"bus_stops"`
	RailStations         int     `json:"rail_stations"`
	StationsInRadius     int     `json:"stations_in_radius"`
	NearestStationMeters float64 `json:"nearest_station_meters"`
	HasNearestStation    bool    `json:"has_nearest_station"`
}

// Raw returns the uncompressed score: weighted amenities plus a distance
// bonus minus a penalty for stations already in the radius.
func (c Counts) Raw() float64 {
	weighted := float64(c.Schools)*SchoolWeight +
		float64(c.Universities)*UniversityWeight +
		float64(c.Shops)*ShopWeight +
		float64(c.BusStops)*BusStopWeight +
		float64(c.RailStations)*RailStationWeight

	var dist float64
	if c.HasNearestStation && c.NearestStationMeters > 0 {
		dist = c.NearestStationMeters
	}
	bonus := math.Min(MaxDistanceBonus, math.Round(dist/100))
	penalty := math.Min(MaxCoveragePenalty, float64(c.StationsInRadius)*CoveragePenaltyFactor)
	return weighted + bonus - penalty
}

// Score compresses Raw into [0, 100] via raw/(raw+60). Non-positive or
// non-finite raw totals score 0.
func Score(c Counts) int {
	raw := c.Raw()
	if math.IsNaN(raw) || math.IsInf(raw, 0) || raw <= 0 {
		return 0
	}
	n := math.Round(raw / (raw + CompressionOffset) * 100)
	return int(math.Max(0, math.Min(100, n)))
}
