package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/station-planner/internal/db"
	"github.com/sells-group/station-planner/internal/hexgrid"
	"github.com/sells-group/station-planner/internal/overpass"
	"github.com/sells-group/station-planner/internal/planner"
	"github.com/sells-group/station-planner/internal/potential"
	"github.com/sells-group/station-planner/internal/resilience"
	"github.com/sells-group/station-planner/internal/station"
	"github.com/sells-group/station-planner/internal/store"
)

// initStore opens and migrates the configured proposal store.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.SQLitePath
		if dsn == "" {
			dsn = "station-planner.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store.database_url is required for the postgres driver (PLANNER_STORE_DATABASE_URL)")
		}
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// storeConfigured reports whether initStore has enough settings to connect.
func storeConfigured() bool {
	return cfg.Store.Driver != "postgres" || cfg.Store.DatabaseURL != ""
}

// postgresPool returns a pool for station and coverage tables. It reuses the
// pool of st when st is a postgres store; otherwise the returned closer owns
// a fresh pool.
func postgresPool(ctx context.Context, st store.Store) (db.Pool, func(), error) {
	if pg, ok := st.(*store.PostgresStore); ok {
		return pg.Pool(), func() {}, nil
	}
	if cfg.Store.DatabaseURL == "" {
		return nil, nil, eris.New("store.database_url is required for postgres stations and output")
	}
	pool, err := db.Connect(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	if err != nil {
		return nil, nil, eris.Wrap(err, "connect postgres")
	}
	return pool, pool.Close, nil
}

// stationSource builds the configured station source. st may be nil.
func stationSource(ctx context.Context, st store.Store) (station.Source, func(), error) {
	sc := cfg.Stations
	switch sc.Source {
	case "file":
		return station.FileSource{Path: sc.Path, City: sc.City, Strict: sc.Strict}, func() {}, nil
	case "http":
		return station.NewHTTPSource(sc.URL, station.HTTPOptions{
			UserAgent: sc.UserAgent,
			Retry:     resilience.FromSettings(cfg.Overpass.MaxAttempts, 0, 0),
		}), func() {}, nil
	case "postgres":
		pool, closer, err := postgresPool(ctx, st)
		if err != nil {
			return nil, nil, err
		}
		return station.PostgresSource{Pool: pool, City: sc.City}, closer, nil
	default:
		return nil, nil, eris.Errorf("unsupported station source: %s", sc.Source)
	}
}

// overpassConfig converts the overpass settings to a client config.
func overpassConfig() overpass.Config {
	oc := cfg.Overpass
	return overpass.Config{
		Endpoints:           oc.Endpoints,
		Timeout:             time.Duration(oc.TimeoutSecs) * time.Second,
		QueryTimeoutSeconds: oc.QueryTimeoutSecs,
		Retry:               resilience.FromSettings(oc.MaxAttempts, 0, 0),
		RatePerSecond:       oc.RatePerSecond,
		Concurrency:         oc.Concurrency,
		BreakerThreshold:    oc.BreakerThreshold,
		BreakerCooldown:     time.Duration(oc.BreakerCooldownSecs) * time.Second,
	}
}

// newPlanner builds a planner from config with the overpass client as its
// context and POI source.
func newPlanner(onRefresh func(*planner.Snapshot)) (*planner.Planner, error) {
	layers := potential.DefaultLayers()
	if cfg.Potential.LayersPath != "" {
		l, err := potential.LoadLayers(cfg.Potential.LayersPath)
		if err != nil {
			return nil, err
		}
		layers = l
		zap.L().Info("loaded hotspot layers", zap.String("path", cfg.Potential.LayersPath))
	}

	osm := overpass.New(overpassConfig())
	return planner.New(planner.Options{
		Builder: hexgrid.Builder{
			MaxCells:        cfg.Grid.MaxCells,
			MinRadiusMeters: cfg.Grid.MinRadiusMeters,
		},
		CellRadiusMeters:     cfg.Grid.CellRadiusMeters,
		CoverageRadiusMeters: cfg.Planning.CoverageRadiusMeters,
		Model:                potential.NewModel(layers),
		POIs:                 osm,
		Context:              osm,
		MaxHeatSamples:       cfg.Potential.MaxSamples,
		OnRefresh:            onRefresh,
	}), nil
}

// loadPlanner builds a planner and loads the configured stations into it.
func loadPlanner(ctx context.Context, st store.Store) (*planner.Planner, error) {
	p, err := newPlanner(nil)
	if err != nil {
		return nil, err
	}
	src, closeSrc, err := stationSource(ctx, st)
	if err != nil {
		return nil, err
	}
	defer closeSrc()

	if _, err := p.Refresh(ctx, src); err != nil {
		return nil, err
	}
	return p, nil
}
