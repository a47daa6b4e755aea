// Package planner ties the engine packages together over an immutable
// station snapshot that is swapped wholesale on refresh.
package planner

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/station-planner/internal/coverage"
	"github.com/sells-group/station-planner/internal/geomath"
	"github.com/sells-group/station-planner/internal/hexgrid"
	"github.com/sells-group/station-planner/internal/spatialindex"
)

// Snapshot is the derived state of one station list. It is never mutated
// after BuildSnapshot returns.
type Snapshot struct {
	Version          uint64
	Stations         []coverage.ExistingStation
	Index            *spatialindex.Index
	Cells            []coverage.Cell
	Summary          coverage.Summary
	CellRadiusMeters float64
	BuiltAt          time.Time
}

// BuildSnapshot indexes stations and computes their hex coverage. The grid
// is seeded by the station locations.
func BuildSnapshot(stations []coverage.ExistingStation, b hexgrid.Builder, cellRadiusMeters float64) (*Snapshot, error) {
	points := make([]geomath.GeoPoint, len(stations))
	items := make([]spatialindex.Item, len(stations))
	for i, s := range stations {
		points[i] = s.Point
		items[i] = spatialindex.Item{ID: s.ID, Point: s.Point}
	}
	if err := geomath.ValidateAll(points); err != nil {
		return nil, eris.Wrap(err, "planner: validate stations")
	}

	hexes, err := b.Build(points, cellRadiusMeters)
	if err != nil {
		return nil, eris.Wrap(err, "planner: build hex grid")
	}
	cells := coverage.MarkGaps(hexes, stations)

	return &Snapshot{
		Stations:         append([]coverage.ExistingStation(nil), stations...),
		Index:            spatialindex.New(items),
		Cells:            cells,
		Summary:          coverage.Summarize(cells),
		CellRadiusMeters: cellRadiusMeters,
		BuiltAt:          time.Now().UTC(),
	}, nil
}

// Station returns the station behind an index neighbor.
func (s *Snapshot) Station(n spatialindex.Neighbor) coverage.ExistingStation {
	return s.Stations[n.Index]
}

// Points returns the station locations in order.
func (s *Snapshot) Points() []geomath.GeoPoint {
	out := make([]geomath.GeoPoint, len(s.Stations))
	for i, st := range s.Stations {
		out[i] = st.Point
	}
	return out
}
