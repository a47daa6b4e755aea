// Package hexgrid tessellates the area around a set of seed points into a
// regular hexagonal grid.
package hexgrid

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/station-planner/internal/geomath"
)

// Default grid bounds.
const (
	DefaultMaxCells        = 50000
	DefaultMinRadiusMeters = 25.0
)

// MaxLatitude bounds the grid. Past it a degree of longitude shrinks toward
// zero and the column step diverges.
const MaxLatitude = 85.0

var (
	// ErrTooManyCells is returned when the projected grid exceeds Builder.MaxCells.
	ErrTooManyCells = eris.New("hexgrid: too many cells")
	// ErrRadiusTooSmall is returned when the cell radius is below Builder.MinRadiusMeters.
	ErrRadiusTooSmall = eris.New("hexgrid: cell radius too small")
	// ErrPolarSeed is returned when a seed lies beyond ±MaxLatitude.
	ErrPolarSeed = eris.New("hexgrid: seed beyond grid latitude limit")
)

// Cell is one hexagon. Polygon holds the six vertices at bearings 0, 60, ..., 300.
type Cell struct {
	ID      string              `json:"id"`
	Center  geomath.GeoPoint    `json:"center"`
	Polygon [6]geomath.GeoPoint `json:"polygon"`
	Row     int                 `json:"row"`
	Col     int                 `json:"col"`
}

// Builder generates hex grids within configured bounds. A zero MaxCells or
// MinRadiusMeters disables that check.
type Builder struct {
	MaxCells        int
	MinRadiusMeters float64
}

// DefaultBuilder returns a Builder with the default bounds.
func DefaultBuilder() Builder {
	return Builder{MaxCells: DefaultMaxCells, MinRadiusMeters: DefaultMinRadiusMeters}
}

// Build tessellates with DefaultBuilder.
func Build(seeds []geomath.GeoPoint, radiusMeters float64) ([]Cell, error) {
	return DefaultBuilder().Build(seeds, radiusMeters)
}

// stepEpsilon absorbs float error when a span is an exact multiple of a step.
const stepEpsilon = 1e-9

// layout is the resolved row/column geometry of a grid.
type layout struct {
	box       geomath.BBox
	latStep   float64
	lngStep   float64
	rowOffset float64
	rows      int
}

func (l layout) rowStart(row int) float64 {
	if row%2 == 1 {
		return l.box.MinLng + l.rowOffset
	}
	return l.box.MinLng
}

func (l layout) cols(row int) int {
	start := l.rowStart(row)
	if start > l.box.MaxLng {
		return 0
	}
	return int(math.Floor((l.box.MaxLng-start)/l.lngStep+stepEpsilon)) + 1
}

// Build returns the cells covering the seeds' bounding box expanded by
// 2·radiusMeters. Empty seeds, a non-positive or non-finite radius and a
// zero-area box yield an empty grid.
//
// The grid is planar in degrees and only defined up to ±MaxLatitude: a seed
// beyond it fails with ErrPolarSeed, and the expanded box is clipped there.
// Columns past the antimeridian wrap, so every center and vertex lies in
// [-180, 180].
func (b Builder) Build(seeds []geomath.GeoPoint, radiusMeters float64) ([]Cell, error) {
	if len(seeds) == 0 || !(radiusMeters > 0) || math.IsInf(radiusMeters, 1) {
		return []Cell{}, nil
	}
	if err := checkSeeds(seeds); err != nil {
		return nil, err
	}
	if b.MinRadiusMeters > 0 && radiusMeters < b.MinRadiusMeters {
		return nil, eris.Wrapf(ErrRadiusTooSmall, "radius %.1f m below minimum %.1f m", radiusMeters, b.MinRadiusMeters)
	}

	l, ok := newLayout(seeds, radiusMeters)
	if !ok {
		return []Cell{}, nil
	}

	total, err := b.count(l)
	if err != nil {
		return nil, err
	}

	cells := make([]Cell, 0, total)
	for row := 0; row < l.rows; row++ {
		lat := l.box.MinLat + float64(row)*l.latStep
		start := l.rowStart(row)
		for col, n := 0, l.cols(row); col < n; col++ {
			center := geomath.GeoPoint{Lat: lat, Lng: geomath.NormalizeLng(start + float64(col)*l.lngStep)}
			cells = append(cells, newCell(center, radiusMeters, row, col))
		}
	}
	return cells, nil
}

// CountCells returns how many cells Build would generate without building them.
func (b Builder) CountCells(seeds []geomath.GeoPoint, radiusMeters float64) (int, error) {
	if len(seeds) == 0 || !(radiusMeters > 0) || math.IsInf(radiusMeters, 1) {
		return 0, nil
	}
	if err := checkSeeds(seeds); err != nil {
		return 0, err
	}
	l, ok := newLayout(seeds, radiusMeters)
	if !ok {
		return 0, nil
	}
	return Builder{}.count(l)
}

func checkSeeds(seeds []geomath.GeoPoint) error {
	if err := geomath.ValidateAll(seeds); err != nil {
		return eris.Wrap(err, "hexgrid: validate seeds")
	}
	for i, p := range seeds {
		if math.Abs(p.Lat) > MaxLatitude {
			return eris.Wrapf(ErrPolarSeed, "seed %d at lat %.4f", i, p.Lat)
		}
	}
	return nil
}

func newLayout(seeds []geomath.GeoPoint, radiusMeters float64) (layout, bool) {
	bounds, _ := geomath.BoundsOf(seeds)
	box := bounds.Expand(2 * radiusMeters)
	box.MinLat = max(box.MinLat, -MaxLatitude)
	box.MaxLat = min(box.MaxLat, MaxLatitude)
	if box.IsEmpty() {
		return layout{}, false
	}

	centerLat := box.Center().Lat
	mLng := geomath.MetersPerDegreeLng(centerLat)
	if !(mLng > 0) {
		return layout{}, false
	}
	l := layout{
		box:       box,
		latStep:   math.Sqrt(3) * radiusMeters / geomath.MetersPerDegreeLat,
		lngStep:   1.5 * radiusMeters / mLng,
		rowOffset: radiusMeters / mLng,
	}
	rows := math.Floor((box.MaxLat-box.MinLat)/l.latStep+stepEpsilon) + 1
	if rows > math.MaxInt32 {
		rows = math.MaxInt32
	}
	l.rows = int(rows)
	return l, true
}

func (b Builder) count(l layout) (int, error) {
	// Estimate in float first so absurd boxes cannot overflow.
	est := float64(l.rows) * ((l.box.MaxLng-l.box.MinLng)/l.lngStep + 1)
	if b.MaxCells > 0 && est > 2*float64(b.MaxCells)+2 {
		return 0, eris.Wrapf(ErrTooManyCells, "about %.0f cells, limit %d", est, b.MaxCells)
	}

	total := 0
	for row := 0; row < l.rows; row++ {
		total += l.cols(row)
	}
	if b.MaxCells > 0 && total > b.MaxCells {
		return 0, eris.Wrapf(ErrTooManyCells, "%d cells, limit %d", total, b.MaxCells)
	}
	return total, nil
}

func newCell(center geomath.GeoPoint, radiusMeters float64, row, col int) Cell {
	c := Cell{Center: center, Row: row, Col: col}
	for i := range c.Polygon {
		c.Polygon[i] = geomath.Destination(center, radiusMeters, float64(i*60))
	}
	c.ID = CellID(row, c.Polygon[0])
	return c
}

// CellID derives a stable cell identity from its row and first vertex.
func CellID(row int, firstVertex geomath.GeoPoint) string {
	return fmt.Sprintf("hex-%d-%.5f-%.5f", row, firstVertex.Lat, firstVertex.Lng)
}

// Centers returns the cell centers in grid order.
func Centers(cells []Cell) []geomath.GeoPoint {
	out := make([]geomath.GeoPoint, len(cells))
	for i, c := range cells {
		out[i] = c.Center
	}
	return out
}
