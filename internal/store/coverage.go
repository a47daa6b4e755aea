package store

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/station-planner/internal/candidate"
	"github.com/sells-group/station-planner/internal/coverage"
	"github.com/sells-group/station-planner/internal/db"
	"github.com/sells-group/station-planner/internal/hexgrid"
)

var coverageUpsert = db.UpsertConfig{
	Table:        "planning.coverage_cells",
	Columns:      []string{"city", "cell_id", "row_idx", "col_idx", "covered", "geom"},
	ConflictKeys: []string{"city", "cell_id"},
}

var gridColumns = []string{"city", "step_m", "radius_m", "ix", "iy", "lat", "lng", "score", "generated_at"}

// CoverageWriter writes hex coverage and planning grids to Postgres.
type CoverageWriter struct {
	pool db.Pool
}

// NewCoverageWriter returns a writer over pool.
func NewCoverageWriter(pool db.Pool) *CoverageWriter {
	return &CoverageWriter{pool: pool}
}

// SaveCoverage upserts the hex cells of city with their covered flag and
// EWKB polygon.
func (w *CoverageWriter) SaveCoverage(ctx context.Context, city string, cells []coverage.Cell) (int64, error) {
	rows := make([][]any, 0, len(cells))
	for _, c := range cells {
		g, err := hexgrid.EncodeEWKB(c.Cell)
		if err != nil {
			return 0, eris.Wrapf(err, "store: encode cell %s", c.ID)
		}
		rows = append(rows, []any{city, c.ID, c.Row, c.Col, c.Covered, g})
	}

	n, err := db.BulkUpsert(ctx, w.pool, coverageUpsert, rows)
	if err != nil {
		return 0, eris.Wrap(err, "store: save coverage")
	}
	zap.L().Info("coverage cells saved",
		zap.String("component", "store"),
		zap.String("city", city),
		zap.Int64("rows", n),
	)
	return n, nil
}

// SaveGrid replaces the stored points of a precomputed grid with the same
// city, step and radius, then COPYs the new points.
func (w *CoverageWriter) SaveGrid(ctx context.Context, grid *candidate.Grid) (int64, error) {
	if grid == nil {
		return 0, nil
	}
	m := grid.Meta
	if _, err := w.pool.Exec(ctx,
		`DELETE FROM planning.grid_scores WHERE city = $1 AND step_m = $2 AND radius_m = $3`,
		m.CityName, m.StepMeters, m.RadiusMeters,
	); err != nil {
		return 0, eris.Wrap(err, "store: clear grid")
	}

	rows := make([][]any, len(grid.Points))
	for i, p := range grid.Points {
		rows[i] = []any{m.CityName, m.StepMeters, m.RadiusMeters, p.IX, p.IY, p.Lat, p.Lng, p.Score, m.GeneratedAt}
	}
	n, err := db.CopyFrom(ctx, w.pool, "planning.grid_scores", gridColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "store: save grid")
	}
	return n, nil
}
