package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/station-planner/internal/coverage"
	"github.com/sells-group/station-planner/internal/hexgrid"
	"github.com/sells-group/station-planner/internal/store"
)

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Build the coverage hex grid for the configured stations",
	Long:  "Loads stations, builds a hex grid around them and marks coverage gaps. Output is GeoJSON, a shapefile or the coverage_cells table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("grid"); err != nil {
			return err
		}

		f := cmd.Flags()
		format, _ := f.GetString("format")
		out, _ := f.GetString("out")
		gapsOnly, _ := f.GetBool("gaps-only")
		log := zap.L().With(zap.String("command", "grid"))

		p, err := loadPlanner(ctx, nil)
		if err != nil {
			return err
		}
		cells, summary := p.Coverage()
		if gapsOnly {
			cells = coverage.Gaps(cells)
		}
		log.Info("coverage grid built",
			zap.Int("cells", summary.Total),
			zap.Int("covered", summary.Covered),
			zap.Int("gaps", summary.Gaps),
		)

		switch format {
		case "geojson":
			return writeGeoJSON(cmd.OutOrStdout(), out, cells)
		case "shp":
			if out == "" {
				return eris.New("--out is required for shapefile output")
			}
			if err := hexgrid.WriteShapefile(out, coverage.HexCells(cells), coverage.Flags(cells)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d cells to %s\n", len(cells), out)
			return nil
		case "postgres":
			if !storeConfigured() || cfg.Store.Driver != "postgres" {
				return eris.New("postgres output requires store.driver=postgres and store.database_url")
			}
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			pool, closePool, err := postgresPool(ctx, st)
			if err != nil {
				return err
			}
			defer closePool()

			n, err := store.NewCoverageWriter(pool).SaveCoverage(ctx, cfg.Stations.City, cells)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %d cells\n", n)
			return nil
		default:
			return eris.Errorf("unsupported format %q (want geojson, shp or postgres)", format)
		}
	},
}

// writeGeoJSON writes cells as a feature collection to path, or to w when
// path is empty.
func writeGeoJSON(w io.Writer, path string, cells []coverage.Cell) error {
	fc := hexgrid.FeatureCollection(coverage.HexCells(cells), func(i int) map[string]any {
		return map[string]any{"covered": cells[i].Covered}
	})
	body, err := json.Marshal(fc)
	if err != nil {
		return eris.Wrap(err, "encode geojson")
	}
	if path == "" {
		_, err = w.Write(append(body, '\n'))
		return err
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return eris.Wrapf(err, "write %s", path)
	}
	return nil
}

func init() {
	f := gridCmd.Flags()
	f.String("format", "geojson", "output format: geojson, shp or postgres")
	f.String("out", "", "output path (stdout for geojson when empty)")
	f.Bool("gaps-only", false, "only emit uncovered cells")
	rootCmd.AddCommand(gridCmd)
}
