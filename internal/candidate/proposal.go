package candidate

import (
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/station-planner/internal/geomath"
)

// Search radius bounds for evaluations and proposals.
const (
	MinRadiusMeters = 50
	MaxRadiusMeters = 5000
)

// ErrInvalidRadius is returned for a search radius outside 50–5000 m.
var ErrInvalidRadius = eris.New("candidate: radius out of range")

// ValidateRadius checks the 50–5000 m search radius bound.
func ValidateRadius(radius int) error {
	if radius < MinRadiusMeters || radius > MaxRadiusMeters {
		return eris.Wrapf(ErrInvalidRadius, "radius %d m not in [%d, %d]", radius, MinRadiusMeters, MaxRadiusMeters)
	}
	return nil
}

// Proposal is a saved candidate site.
type Proposal struct {
	ID                    string           `json:"id"`
	City                  string           `json:"city_name"`
	Point                 geomath.GeoPoint `json:"point"`
	RadiusMeters          int              `json:"radius"`
	Score                 int              `json:"score"`
	ScoreLabel            string           `json:"score_label"`
	StationsInRadius      *int             `json:"stations_in_radius,omitempty"`
	NearestStation        *string          `json:"nearest_station,omitempty"`
	NearestDistanceMeters *float64         `json:"nearest_distance_m,omitempty"`
	BusStops              int              `json:"bus_stops"`
	RailStations          int              `json:"railway_stations"`
	Schools               int              `json:"schools"`
	Universities          int              `json:"universities"`
	Shops                 int              `json:"shops"`
	IsBest                bool             `json:"is_best"`
	CreatedAt             time.Time        `json:"created_at"`
}

// Validate checks the fields required before a proposal is stored.
func (p Proposal) Validate() error {
	if strings.TrimSpace(p.City) == "" {
		return eris.New("candidate: proposal city is required")
	}
	if err := p.Point.Validate(); err != nil {
		return eris.Wrap(err, "candidate: proposal point")
	}
	if err := ValidateRadius(p.RadiusMeters); err != nil {
		return err
	}
	if p.Score < 0 || p.Score > 100 {
		return eris.Errorf("candidate: proposal score %d not in [0, 100]", p.Score)
	}
	return nil
}

// Counts rebuilds the score inputs recorded on the proposal.
func (p Proposal) Counts() Counts {
	c := Counts{
		Schools:      p.Schools,
		Universities: p.Universities,
		Shops:        p.Shops,
		BusStops:     p.BusStops,
		RailStations: p.RailStations,
	}
	if p.StationsInRadius != nil {
		c.StationsInRadius = *p.StationsInRadius
	}
	if p.NearestDistanceMeters != nil {
		c.NearestStationMeters = *p.NearestDistanceMeters
		c.HasNearestStation = true
	}
	return c
}

// NewProposal builds a proposal for point from its context and nearby
// stations, scored with Score.
func NewProposal(city string, point geomath.GeoPoint, radius int, c Context, n Nearby) Proposal {
	counts := CountsFrom(c, n)
	score := Score(counts)
	inRadius := n.StationsInRadius
	p := Proposal{
		City:                  city,
		Point:                 point,
		RadiusMeters:          radius,
		Score:                 score,
		ScoreLabel:            Label(float64(score)),
		StationsInRadius:      &inRadius,
		NearestDistanceMeters: n.NearestDistanceMeters,
		BusStops:              counts.BusStops,
		RailStations:          counts.RailStations,
		Schools:               counts.Schools,
		Universities:          counts.Universities,
		Shops:                 counts.Shops,
	}
	if n.Nearest != nil {
		name := n.Nearest.Name
		if name == "" {
			name = n.Nearest.ID
		}
		p.NearestStation = &name
	}
	return p
}

// Ranked is a proposal with its position in a comparison.
type Ranked struct {
	Proposal
	Rank int `json:"rank"`
	// ScoreGap is the distance to the leading score.
	ScoreGap int `json:"score_gap"`
}

// Rank orders proposals by score descending, then creation time, then ID.
// Ranks start at 1 and are unique.
func Rank(proposals []Proposal) []Ranked {
	sorted := append([]Proposal(nil), proposals...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	out := make([]Ranked, len(sorted))
	for i, p := range sorted {
		out[i] = Ranked{Proposal: p, Rank: i + 1, ScoreGap: sorted[0].Score - p.Score}
	}
	return out
}

// Best returns the top-ranked proposal per city.
func Best(proposals []Proposal) map[string]Proposal {
	best := make(map[string]Proposal)
	for _, r := range Rank(proposals) {
		key := strings.ToLower(r.City)
		if _, ok := best[key]; !ok {
			best[key] = r.Proposal
		}
	}
	return best
}
