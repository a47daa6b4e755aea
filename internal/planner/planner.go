package planner

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/station-planner/internal/candidate"
	"github.com/sells-group/station-planner/internal/coverage"
	"github.com/sells-group/station-planner/internal/geomath"
	"github.com/sells-group/station-planner/internal/hexgrid"
	"github.com/sells-group/station-planner/internal/potential"
	"github.com/sells-group/station-planner/internal/spatialindex"
	"github.com/sells-group/station-planner/internal/station"
	"github.com/sells-group/station-planner/internal/suitability"
)

var (
	// ErrNoContextSource is returned by operations that need OSM context
	// when none is configured.
	ErrNoContextSource = eris.New("planner: no context source configured")
	// ErrNoStations is returned when a refresh yields no valid station.
	ErrNoStations = eris.New("planner: station source returned no valid stations")
	// ErrNoPOISource is returned by grid precomputation without a POI source.
	ErrNoPOISource = eris.New("planner: no poi source configured")
	// ErrEmptyNetwork is returned by queries that need at least one station.
	ErrEmptyNetwork = eris.New("planner: no station data loaded")
	// ErrInvalidPopulation rejects a negative population.
	ErrInvalidPopulation = eris.New("planner: population must not be negative")
)

// ContextSource counts OSM features around a point.
type ContextSource interface {
	Context(ctx context.Context, p geomath.GeoPoint, radiusMeters int) (candidate.Context, error)
}

// Options configures a Planner. Zero values take defaults.
type Options struct {
	Builder hexgrid.Builder
	// CellRadiusMeters of the coverage grid. Default 250.
	CellRadiusMeters float64
	// CoverageRadiusMeters is the neighbourhood used for the coverage ratio
	// of a suitability query. Default 500.
	CoverageRadiusMeters float64
	Model                *potential.Model
	Scorer               *suitability.Scorer
	// Metrics overrides the suitability inputs. When nil, coverage comes from
	// the snapshot, POI and transit from POIs when set, the rest is simulated.
	Metrics suitability.MetricSource
	POIs    candidate.POISource
	Context ContextSource
	// MaxHeatSamples bounds heatmap requests. Default 20000.
	MaxHeatSamples int
	// OnRefresh runs after every snapshot swap.
	OnRefresh func(*Snapshot)
}

// Planner serves engine queries against the current snapshot.
type Planner struct {
	opts Options
	snap atomic.Pointer[Snapshot]
	// swapMu orders version assignment, store and OnRefresh across
	// concurrent loads. Readers never take it.
	swapMu  sync.Mutex
	version uint64
	log     *zap.Logger
}

// New returns a Planner holding an empty snapshot.
func New(opts Options) *Planner {
	if opts.Builder == (hexgrid.Builder{}) {
		opts.Builder = hexgrid.DefaultBuilder()
	}
	if opts.CellRadiusMeters <= 0 {
		opts.CellRadiusMeters = 250
	}
	if opts.CoverageRadiusMeters <= 0 {
		opts.CoverageRadiusMeters = 500
	}
	if opts.Model == nil {
		opts.Model = potential.NewModel(potential.DefaultLayers())
	}
	if opts.Scorer == nil {
		opts.Scorer = suitability.NewScorer()
	}
	if opts.MaxHeatSamples <= 0 {
		opts.MaxHeatSamples = 20000
	}

	p := &Planner{opts: opts, log: zap.L().With(zap.String("component", "planner"))}
	empty, _ := BuildSnapshot(nil, opts.Builder, opts.CellRadiusMeters)
	p.snap.Store(empty)
	return p
}

// Snapshot returns the current snapshot.
func (p *Planner) Snapshot() *Snapshot {
	return p.snap.Load()
}

// Load builds a snapshot from stations and swaps it in. On error the current
// snapshot stays.
func (p *Planner) Load(stations []coverage.ExistingStation) (*Snapshot, error) {
	s, err := BuildSnapshot(stations, p.opts.Builder, p.opts.CellRadiusMeters)
	if err != nil {
		return nil, err
	}
	p.swapMu.Lock()
	defer p.swapMu.Unlock()
	p.version++
	s.Version = p.version
	p.snap.Store(s)

	p.log.Info("snapshot refreshed",
		zap.Uint64("version", s.Version),
		zap.Int("stations", len(s.Stations)),
		zap.Int("cells", s.Summary.Total),
		zap.Int("gaps", s.Summary.Gaps),
	)
	if p.opts.OnRefresh != nil {
		p.opts.OnRefresh(s)
	}
	return s, nil
}

// Refresh loads the station list from src, drops invalid records and swaps
// in a new snapshot.
func (p *Planner) Refresh(ctx context.Context, src station.Source) (*Snapshot, error) {
	records, err := src.Stations(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "planner: load stations")
	}
	valid, errs := station.Filter(records)
	if len(errs) > 0 {
		p.log.Warn("dropped invalid stations", zap.Int("dropped", len(errs)), zap.Error(errors.Join(errs...)))
	}
	if len(valid) == 0 && len(records) > 0 {
		return nil, ErrNoStations
	}
	return p.Load(station.ToExisting(valid))
}

// StationNeighbor is a nearest-station result.
type StationNeighbor struct {
	Station        coverage.ExistingStation `json:"station"`
	DistanceMeters float64                  `json:"distance_m"`
}

// Nearest returns up to k stations closest to point.
func (p *Planner) Nearest(point geomath.GeoPoint, k int) ([]StationNeighbor, error) {
	if err := point.Validate(); err != nil {
		return nil, err
	}
	s := p.Snapshot()
	return neighbors(s, s.Index.KNearest(point, k)), nil
}

// Nearby lists existing stations around point and the nearest one overall.
func (p *Planner) Nearby(point geomath.GeoPoint, radiusMeters float64) (candidate.Nearby, error) {
	if err := point.Validate(); err != nil {
		return candidate.Nearby{}, err
	}
	s := p.Snapshot()
	out := candidate.Nearby{
		RadiusMeters:     radiusMeters,
		StationsInRadius: len(s.Index.WithinRadius(point, radiusMeters)),
		StationsTotal:    s.Index.Len(),
	}
	if n, ok := s.Index.Nearest(point); ok {
		st := s.Station(n)
		d := math.Round(n.DistanceMeters*10) / 10
		out.Nearest = &candidate.NearestStation{ID: st.ID, Name: st.Name, Point: st.Point}
		out.NearestDistanceMeters = &d
	}
	return out, nil
}

// HeatmapRequest describes one potential surface evaluation.
type HeatmapRequest struct {
	Bounds     geomath.BBox       `json:"bbox"`
	StepMeters float64            `json:"step_m"`
	Candidates []geomath.GeoPoint `json:"candidates"`
	Weights    potential.Weights  `json:"weights"`
	// IncludeExisting adds the snapshot stations to the candidates.
	IncludeExisting bool `json:"include_existing"`
}

// Heatmap samples req.Bounds and evaluates the potential surface.
func (p *Planner) Heatmap(req HeatmapRequest) ([]potential.HeatPoint, potential.Sampling, error) {
	if err := req.Weights.Validate(); err != nil {
		return nil, potential.Sampling{}, err
	}
	if err := geomath.ValidateAll(req.Candidates); err != nil {
		return nil, potential.Sampling{}, eris.Wrap(err, "planner: candidates")
	}
	sampling, err := potential.SampleGrid(req.Bounds, req.StepMeters, p.opts.MaxHeatSamples)
	if err != nil {
		return nil, potential.Sampling{}, err
	}

	candidates := req.Candidates
	if req.IncludeExisting {
		candidates = append(append([]geomath.GeoPoint(nil), candidates...), p.Snapshot().Points()...)
	}
	return p.opts.Model.ComputeHeatPoints(sampling.Points, candidates, req.Weights), sampling, nil
}

// Suitability scores point with the configured metric source.
func (p *Planner) Suitability(ctx context.Context, point geomath.GeoPoint) (suitability.RawMetricInput, suitability.ScoreResult, error) {
	if err := point.Validate(); err != nil {
		return suitability.RawMetricInput{}, suitability.ScoreResult{}, err
	}
	in, err := p.metricSource(p.Snapshot()).Metrics(ctx, point)
	if err != nil {
		return suitability.RawMetricInput{}, suitability.ScoreResult{}, eris.Wrap(err, "planner: metrics")
	}
	return in, p.opts.Scorer.Score(in), nil
}

// LocationRequest is a composite location score query. POIs are supplied by
// the caller.
type LocationRequest struct {
	Point      geomath.GeoPoint   `json:"point"`
	Population int                `json:"population"`
	POIs       []geomath.GeoPoint `json:"pois"`
}

// ScoreLocation rates req.Point by distance to the nearest station of the
// snapshot, population and the caller's POIs.
func (p *Planner) ScoreLocation(req LocationRequest) (suitability.LocationScore, error) {
	if err := req.Point.Validate(); err != nil {
		return suitability.LocationScore{}, err
	}
	if err := geomath.ValidateAll(req.POIs); err != nil {
		return suitability.LocationScore{}, eris.Wrap(err, "planner: pois")
	}
	if req.Population < 0 {
		return suitability.LocationScore{}, eris.Wrapf(ErrInvalidPopulation, "got %d", req.Population)
	}
	nearest, ok := p.Snapshot().Index.Nearest(req.Point)
	if !ok {
		return suitability.LocationScore{}, ErrEmptyNetwork
	}
	return suitability.ScoreLocation(suitability.LocationInput{
		Point:                req.Point,
		NearestStationMeters: nearest.DistanceMeters,
		Population:           req.Population,
		POIs:                 req.POIs,
	}), nil
}

// Score runs the suitability scorer on caller-supplied inputs.
func (p *Planner) Score(in suitability.RawMetricInput) suitability.ScoreResult {
	return p.opts.Scorer.Score(in)
}

func (p *Planner) metricSource(s *Snapshot) suitability.MetricSource {
	if p.opts.Metrics != nil {
		return p.opts.Metrics
	}
	src := suitability.SimulatedSource{
		Coverage: func(pt geomath.GeoPoint) float64 {
			return coverage.RatioAround(pt, s.Cells, p.opts.CoverageRadiusMeters)
		},
	}
	if p.opts.POIs != nil {
		src.POI = p.poiCount
		src.Transit = p.transitDistance
	}
	return src
}

// poiCount counts shops within the coverage radius.
func (p *Planner) poiCount(ctx context.Context, pt geomath.GeoPoint) (int, error) {
	r := p.opts.CoverageRadiusMeters
	pts, err := p.opts.POIs.PointsInBBox(ctx, candidate.KindShops, pointBox(pt, r))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, q := range pts {
		if geomath.HaversineMeters(pt, q) <= r {
			n++
		}
	}
	return n, nil
}

// transitDistance is the distance to the closest bus stop or rail station,
// or twice the transit reference when none is near.
func (p *Planner) transitDistance(ctx context.Context, pt geomath.GeoPoint) (float64, error) {
	far := 2 * suitability.TransitDistanceRef
	box := pointBox(pt, far)
	best := far
	for _, kind := range []candidate.POIKind{candidate.KindBusStops, candidate.KindRailStations} {
		pts, err := p.opts.POIs.PointsInBBox(ctx, kind, box)
		if err != nil {
			return 0, err
		}
		for _, q := range pts {
			best = math.Min(best, geomath.HaversineMeters(pt, q))
		}
	}
	return best, nil
}

func pointBox(p geomath.GeoPoint, meters float64) geomath.BBox {
	return geomath.BBox{MinLat: p.Lat, MinLng: p.Lng, MaxLat: p.Lat, MaxLng: p.Lng}.Expand(meters)
}

// Assessment is a location evaluation with its inputs.
type Assessment struct {
	Point        geomath.GeoPoint     `json:"point"`
	RadiusMeters int                  `json:"radius_m"`
	Context      candidate.Context    `json:"context"`
	Nearby       candidate.Nearby     `json:"nearby"`
	Evaluation   candidate.Evaluation `json:"evaluation"`
}

// Evaluate gathers the OSM context and nearby stations of point and
// evaluates it.
func (p *Planner) Evaluate(ctx context.Context, point geomath.GeoPoint, radiusMeters int) (*Assessment, error) {
	if err := point.Validate(); err != nil {
		return nil, err
	}
	if err := candidate.ValidateRadius(radiusMeters); err != nil {
		return nil, err
	}
	if p.opts.Context == nil {
		return nil, ErrNoContextSource
	}

	c, err := p.opts.Context.Context(ctx, point, radiusMeters)
	if err != nil {
		return nil, eris.Wrap(err, "planner: context")
	}
	n, err := p.Nearby(point, float64(radiusMeters))
	if err != nil {
		return nil, err
	}
	return &Assessment{
		Point:        point,
		RadiusMeters: radiusMeters,
		Context:      c,
		Nearby:       n,
		Evaluation:   candidate.Evaluate(c, n),
	}, nil
}

// Propose evaluates point and returns an unsaved proposal for city.
func (p *Planner) Propose(ctx context.Context, city string, point geomath.GeoPoint, radiusMeters int) (candidate.Proposal, error) {
	a, err := p.Evaluate(ctx, point, radiusMeters)
	if err != nil {
		return candidate.Proposal{}, err
	}
	return candidate.NewProposal(city, point, radiusMeters, a.Context, a.Nearby), nil
}

// Precompute scores a planning grid. Missing stations in req are taken from
// the current snapshot.
func (p *Planner) Precompute(ctx context.Context, req candidate.Request) (*candidate.Grid, error) {
	if p.opts.POIs == nil {
		return nil, ErrNoPOISource
	}
	if len(req.Stations) == 0 {
		req.Stations = p.Snapshot().Points()
	}
	return candidate.Precompute(ctx, req, p.opts.POIs)
}

// Coverage returns the snapshot cells and their summary.
func (p *Planner) Coverage() ([]coverage.Cell, coverage.Summary) {
	s := p.Snapshot()
	return s.Cells, s.Summary
}

func neighbors(s *Snapshot, ns []spatialindex.Neighbor) []StationNeighbor {
	out := make([]StationNeighbor, len(ns))
	for i, n := range ns {
		out[i] = StationNeighbor{Station: s.Station(n), DistanceMeters: n.DistanceMeters}
	}
	return out
}
