package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/station-planner/internal/api"
	"github.com/sells-group/station-planner/internal/planner"
	"github.com/sells-group/station-planner/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the planning API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		log := zap.L().With(zap.String("command", "serve"))

		var st store.Store
		if storeConfigured() {
			s, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close() //nolint:errcheck
			st = s
		} else {
			log.Warn("no database configured, proposal routes disabled")
		}

		cache := api.NewHeatmapCache(cfg.Server.CacheSize, time.Duration(cfg.Server.CacheTTLSecs)*time.Second)
		p, err := newPlanner(func(s *planner.Snapshot) { cache.Advance(s.Version) })
		if err != nil {
			return err
		}

		src, closeSrc, err := stationSource(ctx, st)
		if err != nil {
			return err
		}
		defer closeSrc()

		refresh := func(ctx context.Context) (*planner.Snapshot, error) {
			return p.Refresh(ctx, src)
		}
		if _, err := refresh(ctx); err != nil {
			return eris.Wrap(err, "initial station load")
		}

		if cfg.Server.RefreshSecs > 0 {
			go refreshLoop(ctx, time.Duration(cfg.Server.RefreshSecs)*time.Second, refresh)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr: fmt.Sprintf(":%d", port),
			Handler: api.NewRouter(api.Options{
				Planner:             p,
				Store:               st,
				Cache:               cache,
				Refresh:             refresh,
				CORSOrigins:         cfg.Server.CORSOrigins,
				RequestTimeout:      time.Duration(cfg.Server.RequestTimeoutSecs) * time.Second,
				DefaultRadiusMeters: cfg.Planning.RadiusMeters,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			log.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		log.Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// refreshLoop reloads stations every interval until ctx ends. A failed
// refresh keeps the current snapshot.
func refreshLoop(ctx context.Context, interval time.Duration, refresh func(context.Context) (*planner.Snapshot, error)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := refresh(ctx); err != nil {
				zap.L().Warn("station refresh failed", zap.Error(err))
			}
		}
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
