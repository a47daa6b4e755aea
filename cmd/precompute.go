package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/station-planner/internal/candidate"
	"github.com/sells-group/station-planner/internal/geomath"
	"github.com/sells-group/station-planner/internal/station"
	"github.com/sells-group/station-planner/internal/store"
)

var precomputeCmd = &cobra.Command{
	Use:   "precompute",
	Short: "Score a city-wide planning grid",
	Long:  "Fetches OSM features once for the city bounds and scores every grid cell. Output is JSON, CSV, XLSX or the planning_grid tables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		f := cmd.Flags()
		if step, _ := f.GetInt("step"); step > 0 {
			cfg.Planning.StepMeters = step
		}
		if radius, _ := f.GetInt("radius"); radius > 0 {
			cfg.Planning.RadiusMeters = radius
		}
		if err := cfg.Validate("precompute"); err != nil {
			return err
		}

		bboxFlag, _ := f.GetString("bbox")
		format, _ := f.GetString("format")
		out, _ := f.GetString("out")
		city := cfg.Stations.City
		if city == "" {
			return eris.New("--city is required")
		}
		log := zap.L().With(zap.String("command", "precompute"), zap.String("city", city))

		var explicit *geomath.BBox
		if bboxFlag != "" {
			b, err := parseBBox(bboxFlag)
			if err != nil {
				return eris.Wrap(err, "--bbox")
			}
			explicit = &b
		}

		p, err := newPlanner(nil)
		if err != nil {
			return err
		}
		src, closeSrc, err := stationSource(ctx, nil)
		if err != nil {
			return err
		}
		defer closeSrc()
		if _, err := p.Refresh(ctx, src); err != nil {
			log.Warn("no stations loaded, bounds fall back to the city center", zap.Error(err))
		}

		stations := p.Snapshot().Points()
		box, err := candidate.EnsureBounds(explicit, stations, cityCenter(ctx, src, city))
		if err != nil {
			return err
		}

		grid, err := p.Precompute(ctx, candidate.Request{
			City:         city,
			Bounds:       box,
			StepMeters:   cfg.Planning.StepMeters,
			RadiusMeters: cfg.Planning.RadiusMeters,
			Stations:     stations,
			MaxPoints:    cfg.Planning.MaxGridPoints,
		})
		if err != nil {
			return err
		}
		log.Info("planning grid computed", zap.Int("points", grid.Meta.PointsTotal))

		if format == "postgres" {
			if cfg.Store.DatabaseURL == "" {
				return eris.New("postgres output requires store.database_url")
			}
			pool, closePool, err := postgresPool(ctx, nil)
			if err != nil {
				return err
			}
			defer closePool()
			n, err := store.NewCoverageWriter(pool).SaveGrid(ctx, grid)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %d grid points\n", n)
			return nil
		}

		if out == "" {
			name := strings.TrimSuffix(candidate.FileName(city, cfg.Planning.StepMeters, cfg.Planning.RadiusMeters), ".json")
			out = filepath.Join(cfg.Planning.OutputDir, name+"."+format)
		}
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return eris.Wrapf(err, "create %s", filepath.Dir(out))
		}
		fh, err := os.Create(out)
		if err != nil {
			return eris.Wrapf(err, "create %s", out)
		}
		defer fh.Close() //nolint:errcheck

		switch format {
		case "json":
			err = grid.WriteJSON(fh)
		case "csv":
			err = grid.WriteCSV(fh)
		case "xlsx":
			err = grid.WriteXLSX(fh)
		default:
			return eris.Errorf("unsupported format %q (want json, csv, xlsx or postgres)", format)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d grid points to %s\n", grid.Meta.PointsTotal, out)
		return nil
	},
}

// cityCenter looks up the stored center of city when stations come from
// postgres.
func cityCenter(ctx context.Context, src station.Source, city string) *geomath.GeoPoint {
	pg, ok := src.(station.PostgresSource)
	if !ok {
		return nil
	}
	info, err := pg.CityByName(ctx, city)
	if err != nil {
		zap.L().Debug("city lookup failed", zap.String("city", city), zap.Error(err))
		return nil
	}
	return info.Center
}

func init() {
	f := precomputeCmd.Flags()
	f.String("bbox", "", "min_lat,min_lng,max_lat,max_lng (default: station bounds)")
	f.Int("step", 0, "grid spacing in meters (default planning.step_m)")
	f.Int("radius", 0, "POI radius in meters (default planning.radius_m)")
	f.String("format", "json", "output format: json, csv, xlsx or postgres")
	f.String("out", "", "output path (default planning.output_dir/<name>)")
	rootCmd.AddCommand(precomputeCmd)
}
