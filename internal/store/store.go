// Package store persists planning proposals, coverage cells and precomputed
// planning grids.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/station-planner/internal/candidate"
)

// Proposal is a saved candidate site.
type Proposal = candidate.Proposal

// ErrNotFound is returned when a proposal id does not exist.
var ErrNotFound = eris.New("store: not found")

// ProposalFilter narrows ListProposals. City matches case-insensitively.
type ProposalFilter struct {
	City   string `json:"city,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for planning proposals.
type Store interface {
	CreateProposal(ctx context.Context, p Proposal) (*Proposal, error)
	GetProposal(ctx context.Context, id string) (*Proposal, error)
	ListProposals(ctx context.Context, filter ProposalFilter) ([]Proposal, error)
	// SetBest marks id as the best proposal of its city and clears the flag
	// on every other proposal of that city.
	SetBest(ctx context.Context, id string) (*Proposal, error)
	DeleteProposal(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

type scannable interface {
	Scan(dest ...any) error
}

// proposalColumns is the column order shared by every SELECT.
const proposalColumns = `id, city_name, lat, lng, radius_m, score, score_label, stations_in_radius,
	nearest_station, nearest_distance_m, bus_stops, railway_stations, schools, universities,
	shops, is_best, created_at`

func scanProposal(row scannable) (*Proposal, error) {
	var p Proposal
	err := row.Scan(
		&p.ID, &p.City, &p.Point.Lat, &p.Point.Lng, &p.RadiusMeters, &p.Score, &p.ScoreLabel,
		&p.StationsInRadius, &p.NearestStation, &p.NearestDistanceMeters,
		&p.BusStops, &p.RailStations, &p.Schools, &p.Universities, &p.Shops,
		&p.IsBest, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

func proposalArgs(p Proposal) []any {
	return []any{
		p.ID, p.City, p.Point.Lat, p.Point.Lng, p.RadiusMeters, p.Score, p.ScoreLabel,
		p.StationsInRadius, p.NearestStation, p.NearestDistanceMeters,
		p.BusStops, p.RailStations, p.Schools, p.Universities, p.Shops,
		p.IsBest, p.CreatedAt,
	}
}
