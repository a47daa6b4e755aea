package candidate

import (
	"math"

	"github.com/sells-group/station-planner/internal/geomath"
)

// Context holds OpenStreetMap counts around a point.
type Context struct {
	BusStops      int            `json:"bus_stops"`
	TramStops     int            `json:"tram_stops"`
	RailStations  int            `json:"rail_stations"`
	SBahnStations int            `json:"sbahn_stations"`
	UBahnStations int            `json:"ubahn_stations"`
	Schools       int            `json:"schools"`
	Universities  int            `json:"universities"`
	Shops         int            `json:"shops"`
	POIsTotal     int            `json:"pois_total"`
	POIs          map[string]int `json:"pois,omitempty"`
}

// TransitTotal counts every rail-bound stop.
func (c Context) TransitTotal() int {
	return c.RailStations + c.SBahnStations + c.UBahnStations
}

// NearestStation identifies the closest existing station.
type NearestStation struct {
	ID    string           `json:"id"`
	Name  string           `json:"name,omitempty"`
	Point geomath.GeoPoint `json:"point"`
}

// Nearby describes existing stations around a point.
type Nearby struct {
	RadiusMeters          float64         `json:"radius_m"`
	StationsInRadius      int             `json:"stations_in_radius"`
	Nearest               *NearestStation `json:"nearest_station"`
	NearestDistanceMeters *float64        `json:"nearest_station_distance_m"`
	StationsTotal         int             `json:"stations_total"`
}

// CountsFrom merges OSM context and nearby stations into score inputs.
func CountsFrom(c Context, n Nearby) Counts {
	out := Counts{
		Schools:          c.Schools,
		Universities:     c.Universities,
		Shops:            c.Shops,
		BusStops:         c.BusStops,
		RailStations:     c.TransitTotal(),
		StationsInRadius: n.StationsInRadius,
	}
	if n.NearestDistanceMeters != nil {
		out.NearestStationMeters = *n.NearestDistanceMeters
		out.HasNearestStation = true
	}
	return out
}

// Components are the capped partial scores of an evaluation.
type Components struct {
	Transport      float64 `json:"transport"`
	Education      float64 `json:"education"`
	Shops          float64 `json:"shops"`
	POIs           float64 `json:"pois"`
	StationDensity float64 `json:"station_density"`
	Distance       float64 `json:"distance"`
}

// DemandDrivers group components for the build recommendation.
type DemandDrivers struct {
	TransportStrength float64 `json:"transport_strength"`
	EducationPresence float64 `json:"education_presence"`
	Amenities         float64 `json:"amenities"`
}

// BuildDecision is the build/no-build recommendation.
type BuildDecision struct {
	Score         float64       `json:"build_score"`
	Decision      string        `json:"decision"`
	Rationale     string        `json:"rationale"`
	DemandDrivers DemandDrivers `json:"demand_drivers"`
}

// Evaluation is the full location assessment.
type Evaluation struct {
	Score           float64       `json:"score"`
	Label           string        `json:"label"`
	RecommendedSize string        `json:"recommended_station_size"`
	Build           BuildDecision `json:"build_recommendation"`
	Components      Components    `json:"components"`
	CandidateScore  int           `json:"candidate_score"`
}

// Evaluate scores a location from its OSM context and nearby stations.
// Components are capped (transport 40, education 15, shops 10, POIs 10,
// station density 15, distance 10) and the total at 100.
func Evaluate(c Context, n Nearby) Evaluation {
	comp := Components{
		Transport:      math.Min(float64(c.BusStops+c.TramStops*2+c.TransitTotal()*3), 40),
		Education:      math.Min(float64(c.Schools*2+c.Universities*3), 15),
		Shops:          math.Min(float64(c.Shops)*0.5, 10),
		POIs:           math.Min(float64(c.POIsTotal)*0.2, 10),
		StationDensity: math.Min(float64(n.StationsInRadius*3), 15),
		Distance:       DistanceScore(n.NearestDistanceMeters),
	}
	total := math.Min(comp.Transport+comp.Education+comp.Shops+comp.POIs+comp.StationDensity+comp.Distance, 100)
	total = round1(total)

	comp = Components{
		Transport:      round1(comp.Transport),
		Education:      round1(comp.Education),
		Shops:          round1(comp.Shops),
		POIs:           round1(comp.POIs),
		StationDensity: round1(comp.StationDensity),
		Distance:       round1(comp.Distance),
	}

	return Evaluation{
		Score:           total,
		Label:           Label(total),
		RecommendedSize: SizeRecommendation(total),
		Build:           Decide(total, comp),
		Components:      comp,
		CandidateScore:  Score(CountsFrom(c, n)),
	}
}

// DistanceScore rewards proximity to the existing network: 10 within 200 m
// stepping down to 0 beyond 1200 m or with no station at all.
func DistanceScore(d *float64) float64 {
	if d == nil {
		return 0
	}
	switch {
	case *d <= 200:
		return 10
	case *d <= 400:
		return 8
	case *d <= 600:
		return 6
	case *d <= 800:
		return 4
	case *d <= 1200:
		return 2
	}
	return 0
}

// Label names an evaluation score.
func Label(score float64) string {
	switch {
	case score >= 80:
		return "very good"
	case score >= 60:
		return "good"
	case score >= 40:
		return "okay"
	case score >= 20:
		return "rather poor"
	}
	return "poor"
}

// SizeRecommendation suggests a station size for an evaluation score.
func SizeRecommendation(score float64) string {
	switch {
	case score >= 80:
		return "large station (high demand expected)"
	case score >= 60:
		return "medium station (solid base demand)"
	case score >= 40:
		return "small station (expand cautiously)"
	}
	return "micro station / pilot operation"
}

// Decide turns an evaluation score into a build recommendation.
func Decide(score float64, c Components) BuildDecision {
	d := BuildDecision{
		Score: score,
		DemandDrivers: DemandDrivers{
			TransportStrength: c.Transport + c.StationDensity,
			EducationPresence: c.Education,
			Amenities:         c.Shops + c.POIs,
		},
	}
	switch {
	case score >= 80:
		d.Decision = "build recommended"
		d.Rationale = "high demand from a strong transit hub, education and points of interest"
	case score >= 60:
		d.Decision = "build reasonable"
		d.Rationale = "good base demand, complemented by stations nearby"
	case score >= 40:
		d.Decision = "pilot first"
		d.Rationale = "average surroundings, start small"
	default:
		d.Decision = "do not prioritise"
		d.Rationale = "little transit, few points of interest or demand indicators"
	}
	return d
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
