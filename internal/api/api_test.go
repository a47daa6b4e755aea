package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/station-planner/internal/candidate"
	"github.com/sells-group/station-planner/internal/coverage"
	"github.com/sells-group/station-planner/internal/geomath"
	"github.com/sells-group/station-planner/internal/planner"
	"github.com/sells-group/station-planner/internal/store"
	"github.com/sells-group/station-planner/internal/suitability"
)

type stubContext struct {
	ctx candidate.Context
	err error
}

func (s stubContext) Context(context.Context, geomath.GeoPoint, int) (candidate.Context, error) {
	return s.ctx, s.err
}

var testStations = []coverage.ExistingStation{
	{ID: "1", Name: "Hauptbahnhof", Point: geomath.GeoPoint{Lat: 50.0010, Lng: 8.2590}},
	{ID: "2", Name: "Dom", Point: geomath.GeoPoint{Lat: 49.9995, Lng: 8.2740}},
	{ID: "3", Name: "Uni", Point: geomath.GeoPoint{Lat: 49.9925, Lng: 8.2410}},
}

type testEnv struct {
	srv     *httptest.Server
	planner *planner.Planner
	cache   *HeatmapCache
	store   store.Store
}

func newTestEnv(t *testing.T, withStore bool, ctxSrc planner.ContextSource) *testEnv {
	t.Helper()
	env := &testEnv{cache: NewHeatmapCache(16, time.Minute)}
	env.planner = planner.New(planner.Options{
		Context:   ctxSrc,
		OnRefresh: func(s *planner.Snapshot) { env.cache.Advance(s.Version) },
	})
	_, err := env.planner.Load(testStations)
	require.NoError(t, err)

	opts := Options{
		Planner: env.planner,
		Cache:   env.cache,
		Refresh: func(context.Context) (*planner.Snapshot, error) {
			return env.planner.Load(testStations[:2])
		},
	}
	if withStore {
		s, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
		require.NoError(t, err)
		require.NoError(t, s.Migrate(context.Background()))
		t.Cleanup(func() { s.Close() })
		env.store = s
		opts.Store = s
	}
	env.srv = httptest.NewServer(NewRouter(opts))
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, false, nil)
	resp, body := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[map[string]any](t, body)
	assert.Equal(t, "ok", got["status"])
	assert.EqualValues(t, 3, got["stations"])
}

func TestNearest(t *testing.T) {
	env := newTestEnv(t, false, nil)
	resp, body := env.do(t, http.MethodGet, "/api/v1/stations/nearest?lat=50.001&lng=8.259&k=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[struct {
		Stations []planner.StationNeighbor `json:"stations"`
	}](t, body)
	require.Len(t, got.Stations, 2)
	assert.Equal(t, "1", got.Stations[0].Station.ID)
}

func TestInvalidCoordinates(t *testing.T) {
	env := newTestEnv(t, false, nil)
	for _, path := range []string{
		"/api/v1/stations/nearest?lat=91&lng=8",
		"/api/v1/stations/nearest?lat=abc&lng=8",
		"/api/v1/planning/suitability?lat=50&lng=181",
		"/api/v1/planning/evaluate?lat=&lng=8",
		"/api/v1/planning/nearby-stations?lat=50",
	} {
		resp, body := env.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
		assert.Contains(t, decode[map[string]string](t, body)["error"], "coordinate", path)
	}
}

func TestCoverageGeoJSON(t *testing.T) {
	env := newTestEnv(t, false, nil)
	resp, body := env.do(t, http.MethodGet, "/api/v1/coverage", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/geo+json", resp.Header.Get("Content-Type"))

	fc := decode[struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}](t, body)
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Equal(t, strconv.Itoa(len(fc.Features)), resp.Header.Get("X-Coverage-Total"))

	_, gapsBody := env.do(t, http.MethodGet, "/api/v1/coverage?gaps_only=true", nil)
	gaps := decode[struct {
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}](t, gapsBody)
	for _, f := range gaps.Features {
		assert.Equal(t, false, f.Properties["covered"])
	}
}

func TestHeatmap_CachesUntilRefresh(t *testing.T) {
	env := newTestEnv(t, false, nil)
	body := map[string]any{
		"bbox":       map[string]float64{"min_lat": 49.99, "min_lng": 8.24, "max_lat": 50.01, "max_lng": 8.28},
		"step_m":     400,
		"candidates": []map[string]float64{{"lat": 50.0, "lng": 8.26}},
	}

	resp, first := env.do(t, http.MethodPost, "/api/v1/heatmap", body)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(first))
	assert.Equal(t, "miss", resp.Header.Get("X-Cache"))
	out := decode[heatmapResponse](t, first)
	assert.Len(t, out.Points, out.Grid.NX*out.Grid.NY)
	assert.Equal(t, uint64(1), out.SnapshotVersion)

	resp, second := env.do(t, http.MethodPost, "/api/v1/heatmap", body)
	assert.Equal(t, "hit", resp.Header.Get("X-Cache"))
	assert.JSONEq(t, string(first), string(second))

	resp, _ = env.do(t, http.MethodPost, "/api/v1/stations/refresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, env.cache.Stats().Entries)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/heatmap", body)
	assert.Equal(t, "miss", resp.Header.Get("X-Cache"))

	_, statsBody := env.do(t, http.MethodGet, "/api/v1/cache/stats", nil)
	stats := decode[CacheStats](t, statsBody)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
}

func TestHeatmap_BadRequests(t *testing.T) {
	env := newTestEnv(t, false, nil)
	cases := map[string]any{
		"unknown field": `{"bbox":{"min_lat":49.9,"min_lng":8.2,"max_lat":50,"max_lng":8.3},"step_m":500,"zoom":3}`,
		"negative weight": map[string]any{
			"bbox":    map[string]float64{"min_lat": 49.9, "min_lng": 8.2, "max_lat": 50, "max_lng": 8.3},
			"step_m":  500,
			"weights": map[string]float64{"population": -1},
		},
		"zero step": map[string]any{
			"bbox": map[string]float64{"min_lat": 49.9, "min_lng": 8.2, "max_lat": 50, "max_lng": 8.3},
		},
		"trailing data": `{"step_m":500} {}`,
	}
	for name, body := range cases {
		resp, raw := env.do(t, http.MethodPost, "/api/v1/heatmap", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, name)
		assert.NotEmpty(t, decode[map[string]string](t, raw)["error"], name)
	}
}

func TestScore(t *testing.T) {
	env := newTestEnv(t, false, nil)
	resp, body := env.do(t, http.MethodPost, "/api/v1/score", map[string]float64{
		"coverage_ratio":           0.1,
		"population_density":       11000,
		"nearby_utilization":       0.9,
		"congestion_level":         0.2,
		"poi_count":                35,
		"transit_proximity_meters": 150,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[map[string]any](t, body)
	assert.NotEmpty(t, got["band"])
	assert.Len(t, got["breakdown"], 6)
}

func TestScoring(t *testing.T) {
	env := newTestEnv(t, false, nil)
	resp, body := env.do(t, http.MethodPost, "/api/v1/scoring", map[string]any{
		"lat":        50.0010,
		"lng":        8.2590,
		"population": 5000,
		"pois":       []map[string]float64{{"lat": 50.0010, "lng": 8.2590}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	got := decode[suitability.LocationScore](t, body)
	assert.Zero(t, got.NearestStationMeters)
	assert.Equal(t, 1.0, got.StationAccess)
	assert.Equal(t, 0.5, got.Population)
	assert.Equal(t, 1.0, got.POICoverageRatio)
	assert.Equal(t, 1, got.POIWithinRadius)
	assert.InDelta(t, 0.85, got.Composite, 1e-9)
}

func TestScoring_BadRequests(t *testing.T) {
	env := newTestEnv(t, false, nil)
	tests := []struct {
		name string
		body any
	}{
		{"missing lng", `{"lat": 50}`},
		{"invalid lat", map[string]any{"lat": 95, "lng": 8}},
		{"invalid poi", map[string]any{"lat": 50, "lng": 8, "pois": []map[string]float64{{"lat": 50, "lng": 200}}}},
		{"negative population", map[string]any{"lat": 50, "lng": 8, "population": -1}},
		{"unknown field", `{"lat": 50, "lng": 8, "radius": 3}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPost, "/api/v1/scoring", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
		})
	}
}

func TestScoring_NoStations(t *testing.T) {
	srv := httptest.NewServer(NewRouter(Options{Planner: planner.New(planner.Options{})}))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/scoring", "application/json", bytes.NewReader([]byte(`{"lat": 50, "lng": 8.27}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Contains(t, got["error"], "no station data")
}

func TestSuitability(t *testing.T) {
	env := newTestEnv(t, false, nil)
	resp, body := env.do(t, http.MethodGet, "/api/v1/planning/suitability?lat=50.0&lng=8.26", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[map[string]map[string]any](t, body)
	assert.Contains(t, got["result"], "score")
	assert.Contains(t, got["input"], "coverage_ratio")
}

func TestEvaluate(t *testing.T) {
	env := newTestEnv(t, false, stubContext{ctx: candidate.Context{BusStops: 8, Schools: 2, Shops: 25}})
	resp, body := env.do(t, http.MethodGet, "/api/v1/planning/evaluate?lat=50.0&lng=8.26&radius=600", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	a := decode[planner.Assessment](t, body)
	assert.Equal(t, 600, a.RadiusMeters)
	assert.Equal(t, 8, a.Context.BusStops)
	assert.NotEmpty(t, a.Evaluation.Label)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/planning/evaluate?lat=50.0&lng=8.26&radius=9000", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEvaluate_SourceErrors(t *testing.T) {
	env := newTestEnv(t, false, nil)
	resp, _ := env.do(t, http.MethodGet, "/api/v1/planning/evaluate?lat=50.0&lng=8.26", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	env = newTestEnv(t, false, stubContext{err: eris.New("boom")})
	resp, _ = env.do(t, http.MethodGet, "/api/v1/planning/evaluate?lat=50.0&lng=8.26", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestNearbyStations(t *testing.T) {
	env := newTestEnv(t, false, nil)
	resp, body := env.do(t, http.MethodGet, "/api/v1/planning/nearby-stations?lat=50.001&lng=8.259&radius=1500", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	n := decode[candidate.Nearby](t, body)
	assert.Equal(t, 2, n.StationsInRadius)
	assert.Equal(t, 3, n.StationsTotal)
	require.NotNil(t, n.Nearest)
	assert.Equal(t, "1", n.Nearest.ID)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/planning/nearby-stations?lat=50&lng=8&radius=10", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProposals_Lifecycle(t *testing.T) {
	env := newTestEnv(t, true, stubContext{ctx: candidate.Context{BusStops: 4, Schools: 1, Shops: 10}})

	var ids []string
	for _, lng := range []float64{8.26, 8.25} {
		resp, body := env.do(t, http.MethodPost, "/api/v1/planning/proposals", map[string]any{
			"city_name": "Mainz", "lat": 50.0, "lng": lng, "radius": 500,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
		p := decode[candidate.Proposal](t, body)
		assert.NotEmpty(t, p.ID)
		ids = append(ids, p.ID)
	}

	resp, body := env.do(t, http.MethodGet, "/api/v1/planning/proposals?city=mainz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, decode[map[string]any](t, body)["count"])

	resp, body = env.do(t, http.MethodPost, "/api/v1/planning/proposals/"+ids[1]+"/set-best", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[candidate.Proposal](t, body).IsBest)

	resp, body = env.do(t, http.MethodGet, "/api/v1/planning/proposals/ranked?city=Mainz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ranked := decode[struct {
		Proposals []candidate.Ranked `json:"proposals"`
	}](t, body)
	require.Len(t, ranked.Proposals, 2)
	assert.Equal(t, 1, ranked.Proposals[0].Rank)

	resp, _ = env.do(t, http.MethodDelete, "/api/v1/planning/proposals/"+ids[0], nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/planning/proposals/"+ids[0], nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/planning/proposals/missing/set-best", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProposals_Validation(t *testing.T) {
	env := newTestEnv(t, true, stubContext{})
	resp, _ := env.do(t, http.MethodPost, "/api/v1/planning/proposals", map[string]any{"lat": 50.0, "lng": 8.26})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "missing city")

	resp, _ = env.do(t, http.MethodPost, "/api/v1/planning/proposals", map[string]any{"city_name": "Mainz", "lat": 95.0, "lng": 8.26})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "bad latitude")

	resp, _ = env.do(t, http.MethodGet, "/api/v1/planning/proposals?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProposals_NoStore(t *testing.T) {
	env := newTestEnv(t, false, nil)
	resp, _ := env.do(t, http.MethodGet, "/api/v1/planning/proposals", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
