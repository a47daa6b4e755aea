// Package coverage classifies hex cells as covered or uncovered by existing
// stations.
package coverage

import (
	"math"

	"github.com/sells-group/station-planner/internal/geomath"
	"github.com/sells-group/station-planner/internal/hexgrid"
)

// Coverage radius parameters.
const (
	BaseRadiusMeters    = 400.0
	MaxRadiusMeters     = 500.0
	RadiusGrowthMeters  = 100.0
	CapacityForMaxBonus = 20
)

// ExistingStation is a station as seen by the coverage model.
type ExistingStation struct {
	ID          string           `json:"id"`
	Name        string           `json:"name,omitempty"`
	Point       geomath.GeoPoint `json:"point"`
	Capacity    int              `json:"capacity,omitempty"`
	HasCapacity bool             `json:"has_capacity"`
}

// CoverageRadiusMeters is 400 m plus up to 100 m scaled by capacity, capped at 500 m.
// Stations without a known capacity get the baseline.
func (s ExistingStation) CoverageRadiusMeters() float64 {
	if !s.HasCapacity || s.Capacity <= 0 {
		return BaseRadiusMeters
	}
	c := min(s.Capacity, CapacityForMaxBonus)
	r := BaseRadiusMeters + float64(c)/float64(CapacityForMaxBonus)*RadiusGrowthMeters
	return math.Min(r, MaxRadiusMeters)
}

// Covers reports whether p lies within the station's coverage radius.
func (s ExistingStation) Covers(p geomath.GeoPoint) bool {
	return geomath.HaversineMeters(p, s.Point) <= s.CoverageRadiusMeters()
}

// Cell is a hex cell with its coverage flag.
type Cell struct {
	hexgrid.Cell
	Covered bool `json:"covered"`
}

// MarkGaps flags every cell whose center is inside some station's coverage
// radius. With no stations every cell is a gap.
func MarkGaps(cells []hexgrid.Cell, stations []ExistingStation) []Cell {
	out := make([]Cell, len(cells))
	for i, c := range cells {
		out[i] = Cell{Cell: c}
		for _, s := range stations {
			if s.Covers(c.Center) {
				out[i].Covered = true
				break
			}
		}
	}
	return out
}

// Summary counts covered cells and gaps.
type Summary struct {
	Total        int     `json:"total"`
	Covered      int     `json:"covered"`
	Gaps         int     `json:"gaps"`
	CoveredRatio float64 `json:"covered_ratio"`
}

// Summarize aggregates a marked grid.
func Summarize(cells []Cell) Summary {
	s := Summary{Total: len(cells)}
	for _, c := range cells {
		if c.Covered {
			s.Covered++
		}
	}
	s.Gaps = s.Total - s.Covered
	if s.Total > 0 {
		s.CoveredRatio = float64(s.Covered) / float64(s.Total)
	}
	return s
}

// Gaps returns only the uncovered cells, in grid order.
func Gaps(cells []Cell) []Cell {
	var out []Cell
	for _, c := range cells {
		if !c.Covered {
			out = append(out, c)
		}
	}
	return out
}

// RatioAround returns the covered share of cells whose centers lie within
// radiusMeters of p, or 0 when none do.
func RatioAround(p geomath.GeoPoint, cells []Cell, radiusMeters float64) float64 {
	var total, covered int
	for _, c := range cells {
		if geomath.HaversineMeters(p, c.Center) > radiusMeters {
			continue
		}
		total++
		if c.Covered {
			covered++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(covered) / float64(total)
}

// Flags returns the covered flags parallel to cells, for exporters.
func Flags(cells []Cell) []bool {
	out := make([]bool, len(cells))
	for i, c := range cells {
		out[i] = c.Covered
	}
	return out
}

// HexCells strips the coverage flags.
func HexCells(cells []Cell) []hexgrid.Cell {
	out := make([]hexgrid.Cell, len(cells))
	for i, c := range cells {
		out[i] = c.Cell
	}
	return out
}
