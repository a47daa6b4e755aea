package candidate

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/station-planner/internal/geomath"
	"github.com/sells-group/station-planner/internal/potential"
	"github.com/sells-group/station-planner/internal/spatialindex"
)

// POIKind selects a class of OpenStreetMap features.
type POIKind string

// Feature classes used by the planning grid.
const (
	KindBusStops     POIKind = "bus_stops"
	KindRailStations POIKind = "rail_stations"
	KindSchools      POIKind = "schools"
	KindUniversities POIKind = "universities"
	KindShops        POIKind = "shops"
)

// GridKinds are fetched for every precompute run.
var GridKinds = []POIKind{KindSchools, KindUniversities, KindShops, KindBusStops, KindRailStations}

// POISource returns the locations of a feature class inside a box.
type POISource interface {
	PointsInBBox(ctx context.Context, kind POIKind, box geomath.BBox) ([]geomath.GeoPoint, error)
}

var (
	// ErrGridInvalid is returned when bounds and step produce no grid cells.
	ErrGridInvalid = eris.New("candidate: computed grid size invalid")
	// ErrNoBounds is returned when a city has neither bounds, stations nor a center.
	ErrNoBounds = eris.New("candidate: no bounds available")
)

// Request configures a planning grid run.
type Request struct {
	City         string
	Bounds       geomath.BBox
	StepMeters   int
	RadiusMeters int
	Stations     []geomath.GeoPoint
	// MaxPoints caps the grid size; zero means unlimited.
	MaxPoints int
}

// Bounds is the south-west / north-east box of a grid.
type Bounds struct {
	SWLat float64 `json:"sw_lat"`
	SWLng float64 `json:"sw_lng"`
	NELat float64 `json:"ne_lat"`
	NELng float64 `json:"ne_lng"`
}

// GridMeta describes a precomputed grid.
type GridMeta struct {
	CityName     string           `json:"city_name"`
	BBox         Bounds           `json:"bbox"`
	StepMeters   int              `json:"step_m"`
	RadiusMeters int              `json:"radius_m"`
	GeneratedAt  time.Time        `json:"generated_at"`
	PointsTotal  int              `json:"points_total"`
	OriginCenter geomath.GeoPoint `json:"origin_center"`
	StepLat      float64          `json:"step_lat"`
	StepLng      float64          `json:"step_lng"`
	NX           int              `json:"nx"`
	NY           int              `json:"ny"`
}

// GridPoint is one scored grid cell.
type GridPoint struct {
	IX    int     `json:"ix"`
	IY    int     `json:"iy"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Score int     `json:"score"`
}

// Grid is a precomputed city-wide planning surface.
type Grid struct {
	Meta   GridMeta    `json:"meta"`
	Points []GridPoint `json:"points"`
}

// Precompute scores every cell of a rectangular grid over req.Bounds. POIs
// are fetched once for the bounds padded by the radius, then counted per cell.
func Precompute(ctx context.Context, req Request, src POISource) (*Grid, error) {
	if req.StepMeters <= 0 || req.RadiusMeters <= 0 {
		return nil, eris.Wrapf(ErrGridInvalid, "step %d m, radius %d m", req.StepMeters, req.RadiusMeters)
	}
	if err := geomath.ValidateAll(req.Stations); err != nil {
		return nil, eris.Wrap(err, "candidate: validate stations")
	}

	sampling, err := potential.SampleGrid(req.Bounds, float64(req.StepMeters), req.MaxPoints)
	if err != nil {
		return nil, eris.Wrap(err, "candidate: sample grid")
	}
	if sampling.NX <= 0 || sampling.NY <= 0 {
		return nil, eris.Wrapf(ErrGridInvalid, "bounds %+v with step %d m", req.Bounds, req.StepMeters)
	}

	log := zap.L().With(
		zap.String("component", "precompute"),
		zap.String("city", req.City),
		zap.Int("nx", sampling.NX),
		zap.Int("ny", sampling.NY),
	)

	radius := float64(req.RadiusMeters)
	indexes, err := fetchIndexes(ctx, src, req.Bounds.Expand(radius))
	if err != nil {
		return nil, err
	}
	log.Debug("poi indexes built", zap.Int("kinds", len(indexes)))

	stations := make([]spatialindex.Item, len(req.Stations))
	for i, p := range req.Stations {
		stations[i] = spatialindex.Item{Point: p}
	}
	stationIdx := spatialindex.New(stations)

	grid := &Grid{
		Meta: GridMeta{
			CityName: req.City,
			BBox: Bounds{
				SWLat: req.Bounds.MinLat, SWLng: req.Bounds.MinLng,
				NELat: req.Bounds.MaxLat, NELng: req.Bounds.MaxLng,
			},
			StepMeters:   req.StepMeters,
			RadiusMeters: req.RadiusMeters,
			GeneratedAt:  time.Now().UTC(),
			OriginCenter: sampling.Origin,
			StepLat:      sampling.StepLat,
			StepLng:      sampling.StepLng,
			NX:           sampling.NX,
			NY:           sampling.NY,
		},
		Points: make([]GridPoint, 0, len(sampling.Points)),
	}

	for iy := 0; iy < sampling.NY; iy++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "candidate: precompute cancelled")
		}
		for ix := 0; ix < sampling.NX; ix++ {
			p := sampling.Points[sampling.Index(ix, iy)]
			c := Counts{
				Schools:          len(indexes[KindSchools].WithinRadius(p, radius)),
				Universities:     len(indexes[KindUniversities].WithinRadius(p, radius)),
				Shops:            len(indexes[KindShops].WithinRadius(p, radius)),
				BusStops:         len(indexes[KindBusStops].WithinRadius(p, radius)),
				RailStations:     len(indexes[KindRailStations].WithinRadius(p, radius)),
				StationsInRadius: len(stationIdx.WithinRadius(p, radius)),
			}
			if n, ok := stationIdx.Nearest(p); ok {
				c.NearestStationMeters = n.DistanceMeters
				c.HasNearestStation = true
			}
			grid.Points = append(grid.Points, GridPoint{
				IX:    ix,
				IY:    iy,
				Lat:   round6(p.Lat),
				Lng:   round6(p.Lng),
				Score: Score(c),
			})
		}
	}
	grid.Meta.PointsTotal = len(grid.Points)

	log.Info("planning grid computed", zap.Int("points", grid.Meta.PointsTotal))
	return grid, nil
}

// fetchIndexes loads every grid kind concurrently and indexes the results.
func fetchIndexes(ctx context.Context, src POISource, box geomath.BBox) (map[POIKind]*spatialindex.Index, error) {
	results := make([][]geomath.GeoPoint, len(GridKinds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(GridKinds))
	for i, kind := range GridKinds {
		g.Go(func() error {
			pts, err := src.PointsInBBox(gctx, kind, box)
			if err != nil {
				return eris.Wrapf(err, "candidate: fetch %s", kind)
			}
			results[i] = pts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[POIKind]*spatialindex.Index, len(GridKinds))
	for i, kind := range GridKinds {
		items := make([]spatialindex.Item, 0, len(results[i]))
		for _, p := range results[i] {
			if p.Validate() != nil {
				continue
			}
			items = append(items, spatialindex.Item{Point: p})
		}
		out[kind] = spatialindex.New(items)
	}
	return out, nil
}

// EnsureBounds resolves the grid bounds for a city. Explicit non-empty bounds
// win; otherwise the station extent is used (padded by 0.01° on a degenerate
// axis), then the city center ±0.05°.
func EnsureBounds(explicit *geomath.BBox, stations []geomath.GeoPoint, center *geomath.GeoPoint) (geomath.BBox, error) {
	if explicit != nil && !explicit.IsEmpty() {
		return *explicit, nil
	}
	if box, ok := geomath.BoundsOf(stations); ok {
		if box.MinLat == box.MaxLat {
			box.MinLat -= 0.01
			box.MaxLat += 0.01
		}
		if box.MinLng == box.MaxLng {
			box.MinLng -= 0.01
			box.MaxLng += 0.01
		}
		return box, nil
	}
	if center != nil {
		return geomath.BBox{
			MinLat: center.Lat - 0.05,
			MinLng: center.Lng - 0.05,
			MaxLat: center.Lat + 0.05,
			MaxLng: center.Lng + 0.05,
		}, nil
	}
	return geomath.BBox{}, ErrNoBounds
}

// Slugify lowercases letters and digits and replaces everything else with
// underscores, trimming them at both ends.
func Slugify(city string) string {
	var b strings.Builder
	for _, r := range city {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteByte('_')
	}
	return strings.Trim(b.String(), "_")
}

// FileName is the output name of a precomputed grid.
func FileName(city string, step, radius int) string {
	return fmt.Sprintf("planning_%s_step%d_r%d.json", Slugify(city), step, radius)
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
