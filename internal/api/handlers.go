package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/station-planner/internal/candidate"
	"github.com/sells-group/station-planner/internal/coverage"
	"github.com/sells-group/station-planner/internal/geomath"
	"github.com/sells-group/station-planner/internal/hexgrid"
	"github.com/sells-group/station-planner/internal/overpass"
	"github.com/sells-group/station-planner/internal/planner"
	"github.com/sells-group/station-planner/internal/potential"
	"github.com/sells-group/station-planner/internal/store"
	"github.com/sells-group/station-planner/internal/suitability"
)

// statusFor maps engine and store errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case eris.Is(err, geomath.ErrInvalidCoordinate),
		eris.Is(err, candidate.ErrInvalidRadius),
		eris.Is(err, potential.ErrTooManySamples),
		eris.Is(err, planner.ErrEmptyNetwork),
		eris.Is(err, planner.ErrInvalidPopulation):
		return http.StatusBadRequest
	case eris.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case eris.Is(err, planner.ErrNoContextSource),
		eris.Is(err, planner.ErrNoPOISource):
		return http.StatusServiceUnavailable
	case eris.Is(err, overpass.ErrAllEndpointsFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, r, status, err.Error())
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	snap := s.opts.Planner.Snapshot()
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":           "ok",
		"snapshot_version": snap.Version,
		"stations":         len(snap.Stations),
	})
}

func (s *Server) nearest(w http.ResponseWriter, r *http.Request) {
	p, err := queryPoint(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	k, err := queryInt(r, "k", 5)
	if err != nil || k < 1 || k > 100 {
		writeError(w, r, http.StatusBadRequest, "k must be between 1 and 100")
		return
	}
	ns, err := s.opts.Planner.Nearest(p, k)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"point": p, "stations": ns})
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	if s.opts.Refresh == nil {
		writeError(w, r, http.StatusServiceUnavailable, "no station source configured")
		return
	}
	snap, err := s.opts.Refresh(r.Context())
	if err != nil {
		zap.L().Warn("api: station refresh failed", zap.Error(err))
		writeError(w, r, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"snapshot_version": snap.Version,
		"stations":         len(snap.Stations),
		"coverage":         snap.Summary,
	})
}

func (s *Server) coverage(w http.ResponseWriter, r *http.Request) {
	cells, summary := s.opts.Planner.Coverage()
	if r.URL.Query().Get("gaps_only") == "true" {
		cells = coverage.Gaps(cells)
	}
	fc := hexgrid.FeatureCollection(coverage.HexCells(cells), func(i int) map[string]any {
		return map[string]any{"covered": cells[i].Covered}
	})
	body, err := json.Marshal(fc)
	if err != nil {
		s.fail(w, r, eris.Wrap(err, "api: encode coverage"))
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("X-Coverage-Total", strconv.Itoa(summary.Total))
	w.Header().Set("X-Coverage-Gaps", strconv.Itoa(summary.Gaps))
	_, _ = w.Write(body)
}

type heatmapBody struct {
	BBox            geomath.BBox       `json:"bbox"`
	StepMeters      float64            `json:"step_m"`
	Candidates      []geomath.GeoPoint `json:"candidates"`
	Weights         *potential.Weights `json:"weights"`
	IncludeExisting bool               `json:"include_existing"`
}

type heatmapResponse struct {
	SnapshotVersion uint64                `json:"snapshot_version"`
	Grid            potential.Sampling    `json:"grid"`
	Points          []potential.HeatPoint `json:"points"`
}

func (s *Server) heatmap(w http.ResponseWriter, r *http.Request) {
	var body heatmapBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req := planner.HeatmapRequest{
		Bounds:          body.BBox,
		StepMeters:      body.StepMeters,
		Candidates:      body.Candidates,
		Weights:         potential.DefaultWeights(),
		IncludeExisting: body.IncludeExisting,
	}
	if body.Weights != nil {
		req.Weights = *body.Weights
	}

	version := s.opts.Planner.Snapshot().Version
	canonical, err := json.Marshal(req)
	if err != nil {
		s.fail(w, r, eris.Wrap(err, "api: encode heatmap key"))
		return
	}
	if cached := s.opts.Cache.Get(version, canonical); cached != nil {
		w.Header().Set("X-Cache", "hit")
		writeRaw(w, http.StatusOK, cached)
		return
	}

	points, sampling, err := s.opts.Planner.Heatmap(req)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	out, err := json.Marshal(heatmapResponse{SnapshotVersion: version, Grid: sampling, Points: points})
	if err != nil {
		s.fail(w, r, eris.Wrap(err, "api: encode heatmap"))
		return
	}
	s.opts.Cache.Put(version, canonical, out)
	w.Header().Set("X-Cache", "miss")
	writeRaw(w, http.StatusOK, out)
}

func (s *Server) score(w http.ResponseWriter, r *http.Request) {
	var in suitability.RawMetricInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, s.opts.Planner.Score(in))
}

type scoringRequest struct {
	Lat        *float64           `json:"lat"`
	Lng        *float64           `json:"lng"`
	Population int                `json:"population"`
	POIs       []geomath.GeoPoint `json:"pois"`
}

func (s *Server) scoring(w http.ResponseWriter, r *http.Request) {
	var body scoringRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if body.Lat == nil || body.Lng == nil {
		writeError(w, r, http.StatusBadRequest, "lat and lng are required")
		return
	}
	res, err := s.opts.Planner.ScoreLocation(planner.LocationRequest{
		Point:      geomath.GeoPoint{Lat: *body.Lat, Lng: *body.Lng},
		Population: body.Population,
		POIs:       body.POIs,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) suitability(w http.ResponseWriter, r *http.Request) {
	p, err := queryPoint(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	in, res, err := s.opts.Planner.Suitability(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"point": p, "input": in, "result": res})
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	p, err := queryPoint(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	radius, err := queryInt(r, "radius", s.opts.DefaultRadiusMeters)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	a, err := s.opts.Planner.Evaluate(r.Context(), p, radius)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, a)
}

func (s *Server) nearbyStations(w http.ResponseWriter, r *http.Request) {
	p, err := queryPoint(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	radius, err := queryInt(r, "radius", s.opts.DefaultRadiusMeters)
	if err == nil {
		err = candidate.ValidateRadius(radius)
	}
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	n, err := s.opts.Planner.Nearby(p, float64(radius))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, n)
}

func (s *Server) requireStore(w http.ResponseWriter, r *http.Request) bool {
	if s.opts.Store == nil {
		writeError(w, r, http.StatusServiceUnavailable, "no proposal store configured")
		return false
	}
	return true
}

func (s *Server) proposalFilter(r *http.Request) (store.ProposalFilter, error) {
	f := store.ProposalFilter{City: strings.TrimSpace(r.URL.Query().Get("city"))}
	var err error
	if f.Limit, err = queryInt(r, "limit", 0); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(r, "offset", 0); err != nil {
		return f, err
	}
	if f.Limit < 0 || f.Offset < 0 {
		return f, eris.New("limit and offset must not be negative")
	}
	return f, nil
}

func (s *Server) listProposals(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	f, err := s.proposalFilter(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ps, err := s.opts.Store.ListProposals(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"proposals": ps, "count": len(ps)})
}

func (s *Server) rankedProposals(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	f, err := s.proposalFilter(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ps, err := s.opts.Store.ListProposals(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"proposals": candidate.Rank(ps)})
}

type createProposalBody struct {
	City         string  `json:"city_name"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	RadiusMeters int     `json:"radius"`
}

func (s *Server) createProposal(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	var body createProposalBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(body.City) == "" {
		writeError(w, r, http.StatusBadRequest, "city_name is required")
		return
	}
	if body.RadiusMeters == 0 {
		body.RadiusMeters = s.opts.DefaultRadiusMeters
	}
	p, err := geomath.NewGeoPoint(body.Lat, body.Lng)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	prop, err := s.opts.Planner.Propose(r.Context(), strings.TrimSpace(body.City), p, body.RadiusMeters)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	saved, err := s.opts.Store.CreateProposal(r.Context(), prop)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, saved)
}

func (s *Server) getProposal(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	p, err := s.opts.Store.GetProposal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

func (s *Server) deleteProposal(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	if err := s.opts.Store.DeleteProposal(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setBest(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	p, err := s.opts.Store.SetBest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

func (s *Server) cacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.opts.Cache.Stats())
}
