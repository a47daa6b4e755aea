// Package overpass counts and locates OpenStreetMap features around a
// point through the public Overpass API, failing over between mirrors.
package overpass

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	goverpass "github.com/serjvanilla/go-overpass"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/station-planner/internal/candidate"
	"github.com/sells-group/station-planner/internal/geomath"
	"github.com/sells-group/station-planner/internal/resilience"
)

// DefaultEndpoints are tried in order.
var DefaultEndpoints = []string{
	"https://overpass-api.de/api/interpreter",
	"https://overpass.kumi.systems/api/interpreter",
	"https://overpass.openstreetmap.ru/api/interpreter",
}

// ErrAllEndpointsFailed is returned when no mirror answered a query.
var ErrAllEndpointsFailed = eris.New("overpass: all endpoints failed")

// Config configures a Client. Zero values take defaults.
type Config struct {
	Endpoints []string
	// Timeout bounds one HTTP request. Default 45s.
	Timeout time.Duration
	// QueryTimeoutSeconds is sent as [timeout:N]. Default 25.
	QueryTimeoutSeconds int
	// Retry applies per endpoint. Default 3 attempts.
	Retry resilience.RetryConfig
	// RatePerSecond paces queries across all endpoints. Default 2.
	RatePerSecond float64
	// Concurrency bounds parallel queries of a context fetch. Default 4.
	Concurrency int
	// BreakerThreshold consecutive failures open an endpoint for BreakerCooldown.
	BreakerThreshold int
	BreakerCooldown  time.Duration
	HTTPClient       *http.Client
}

type endpoint struct {
	url     string
	api     *goverpass.Client
	breaker *resilience.CircuitBreaker
}

// Client queries Overpass mirrors.
type Client struct {
	cfg       Config
	endpoints []endpoint
	limiter   *rate.Limiter
	log       *zap.Logger
}

// New creates a Client.
func New(cfg Config) *Client {
	if len(cfg.Endpoints) == 0 {
		cfg.Endpoints = DefaultEndpoints
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.QueryTimeoutSeconds <= 0 {
		cfg.QueryTimeoutSeconds = 25
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 2
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Retry.ShouldRetry == nil {
		cfg.Retry.ShouldRetry = func(err error) bool {
			return !eris.Is(err, context.Canceled) && !eris.Is(err, context.DeadlineExceeded)
		}
	}
	if cfg.Retry.OnRetry == nil {
		cfg.Retry.OnRetry = resilience.RetryLogger("overpass", "query")
	}

	c := &Client{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Concurrency),
		log:     zap.L().With(zap.String("component", "overpass")),
	}
	for _, u := range cfg.Endpoints {
		api := goverpass.NewWithSettings(u, cfg.Concurrency, cfg.HTTPClient)
		c.endpoints = append(c.endpoints, endpoint{
			url:     u,
			api:     &api,
			breaker: resilience.NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
		})
	}
	return c
}

// query runs q against each endpoint in turn until one succeeds.
func (c *Client) query(ctx context.Context, q string) (goverpass.Result, error) {
	lastErr := error(ErrAllEndpointsFailed)
	for _, ep := range c.endpoints {
		if err := ep.breaker.Allow(); err != nil {
			c.log.Debug("endpoint skipped", zap.String("endpoint", ep.url), zap.Error(err))
			lastErr = err
			continue
		}

		res, err := resilience.DoVal(ctx, c.cfg.Retry, func(ctx context.Context) (goverpass.Result, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return goverpass.Result{}, eris.Wrap(err, "rate limiter wait")
			}
			return run(ctx, ep.api, q)
		})
		ep.breaker.Record(err)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return goverpass.Result{}, eris.Wrap(ctx.Err(), "overpass: query cancelled")
		}
		c.log.Warn("endpoint failed", zap.String("endpoint", ep.url), zap.Error(err))
		lastErr = err
	}
	return goverpass.Result{}, eris.Wrapf(ErrAllEndpointsFailed, "last error: %v", lastErr)
}

// run executes q and gives up waiting once ctx is done. The HTTP client
// timeout bounds the abandoned request.
func run(ctx context.Context, api *goverpass.Client, q string) (goverpass.Result, error) {
	type outcome struct {
		res goverpass.Result
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, err := api.Query(q)
		ch <- outcome{res, err}
	}()
	select {
	case <-ctx.Done():
		return goverpass.Result{}, ctx.Err()
	case o := <-ch:
		return o.res, o.err
	}
}

func elementCount(r goverpass.Result) int {
	return len(r.Nodes) + len(r.Ways) + len(r.Relations)
}

// Count returns the number of features of kind within radius of p.
func (c *Client) Count(ctx context.Context, kind candidate.POIKind, p geomath.GeoPoint, radiusMeters int) (int, error) {
	q, err := BuildQuery(kind, Around(p, radiusMeters), c.cfg.QueryTimeoutSeconds)
	if err != nil {
		return 0, err
	}
	res, err := c.query(ctx, q)
	if err != nil {
		return 0, eris.Wrapf(err, "overpass: count %s", kind)
	}
	return elementCount(res), nil
}

// PointsInBBox returns the node locations of kind inside box ordered by
// node id. It implements candidate.POISource.
func (c *Client) PointsInBBox(ctx context.Context, kind candidate.POIKind, box geomath.BBox) ([]geomath.GeoPoint, error) {
	q, err := BuildQuery(kind, InBBox(box), c.cfg.QueryTimeoutSeconds)
	if err != nil {
		return nil, err
	}
	res, err := c.query(ctx, q)
	if err != nil {
		return nil, eris.Wrapf(err, "overpass: points %s", kind)
	}

	ids := make([]int64, 0, len(res.Nodes))
	for id := range res.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]geomath.GeoPoint, 0, len(ids))
	for _, id := range ids {
		n := res.Nodes[id]
		out = append(out, geomath.GeoPoint{Lat: n.Lat, Lng: n.Lon})
	}
	return out, nil
}

// Context counts every context and POI kind around p concurrently.
func (c *Client) Context(ctx context.Context, p geomath.GeoPoint, radiusMeters int) (candidate.Context, error) {
	if err := p.Validate(); err != nil {
		return candidate.Context{}, eris.Wrap(err, "overpass: context point")
	}
	if err := candidate.ValidateRadius(radiusMeters); err != nil {
		return candidate.Context{}, err
	}

	kinds := append(append([]candidate.POIKind{}, ContextKinds...), POIKinds...)
	counts := make([]int, len(kinds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, kind := range kinds {
		g.Go(func() error {
			n, err := c.Count(gctx, kind, p, radiusMeters)
			if err != nil {
				return err
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return candidate.Context{}, err
	}

	byKind := make(map[candidate.POIKind]int, len(kinds))
	for i, kind := range kinds {
		byKind[kind] = counts[i]
	}

	out := candidate.Context{
		BusStops:      byKind[candidate.KindBusStops],
		TramStops:     byKind[KindTramStops],
		RailStations:  byKind[candidate.KindRailStations],
		SBahnStations: byKind[KindSBahn],
		UBahnStations: byKind[KindUBahn],
		Schools:       byKind[candidate.KindSchools],
		Universities:  byKind[candidate.KindUniversities],
		Shops:         byKind[candidate.KindShops],
		POIs:          make(map[string]int, len(POIKinds)),
	}
	for _, k := range POIKinds {
		out.POIs[string(k)] = byKind[k]
		out.POIsTotal += byKind[k]
	}
	return out, nil
}
