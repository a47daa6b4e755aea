// Package api serves the planning engine over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/station-planner/internal/planner"
	"github.com/sells-group/station-planner/internal/store"
)

// Options configures the router. Store and Refresh are optional; their
// routes answer 503 when unset.
type Options struct {
	Planner *planner.Planner
	Store   store.Store
	Cache   *HeatmapCache
	// Refresh reloads the station snapshot.
	Refresh        func(ctx context.Context) (*planner.Snapshot, error)
	CORSOrigins    []string
	RequestTimeout time.Duration
	// DefaultRadiusMeters applies when evaluate or nearby omit radius.
	DefaultRadiusMeters int
}

// Server holds the handler dependencies.
type Server struct {
	opts Options
}

// NewRouter wires the handlers with their dependencies.
func NewRouter(opts Options) http.Handler {
	if opts.Cache == nil {
		opts.Cache = NewHeatmapCache(0, 0)
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.DefaultRadiusMeters <= 0 {
		opts.DefaultRadiusMeters = 500
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	s := &Server{opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Cache"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stations/nearest", s.nearest)
		r.Post("/stations/refresh", s.refresh)
		r.Get("/coverage", s.coverage)
		r.Post("/heatmap", s.heatmap)
		r.Post("/score", s.score)
		r.Post("/scoring", s.scoring)
		r.Get("/cache/stats", s.cacheStats)

		r.Route("/planning", func(r chi.Router) {
			r.Get("/suitability", s.suitability)
			r.Get("/evaluate", s.evaluate)
			r.Get("/nearby-stations", s.nearbyStations)
			r.Get("/proposals", s.listProposals)
			r.Post("/proposals", s.createProposal)
			r.Get("/proposals/ranked", s.rankedProposals)
			r.Get("/proposals/{id}", s.getProposal)
			r.Delete("/proposals/{id}", s.deleteProposal)
			r.Post("/proposals/{id}/set-best", s.setBest)
		})
	})
	return r
}
