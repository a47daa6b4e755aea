package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/station-planner/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PreparedStatements lists queries to prepare on each new connection.
var PreparedStatements = map[string]string{
	"insert_proposal": `INSERT INTO planning.proposals (` + proposalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
	"get_proposal":    `SELECT ` + proposalColumns + ` FROM planning.proposals WHERE id = $1`,
	"clear_best":      `UPDATE planning.proposals SET is_best = false WHERE lower(city_name) = lower($1)`,
	"set_best":        `UPDATE planning.proposals SET is_best = true WHERE id = $1`,
	"delete_proposal": `DELETE FROM planning.proposals WHERE id = $1`,
}

// NewPostgres opens a pool for dsn and returns a PostgresStore that owns it.
func NewPostgres(ctx context.Context, dsn string, cc db.ConnectConfig) (*PostgresStore, error) {
	cc.Prepared = PreparedStatements
	pool, err := db.Connect(ctx, dsn, cc)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Close does not close it.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (station lists, coverage writes).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;
CREATE SCHEMA IF NOT EXISTS planning;

CREATE TABLE IF NOT EXISTS planning.proposals (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	city_name          TEXT NOT NULL,
	lat                DOUBLE PRECISION NOT NULL,
	lng                DOUBLE PRECISION NOT NULL,
	radius_m           INTEGER NOT NULL,
	score              INTEGER NOT NULL,
	score_label        TEXT NOT NULL DEFAULT '',
	stations_in_radius INTEGER,
	nearest_station    TEXT,
	nearest_distance_m DOUBLE PRECISION,
	bus_stops          INTEGER NOT NULL DEFAULT 0,
	railway_stations   INTEGER NOT NULL DEFAULT 0,
	schools            INTEGER NOT NULL DEFAULT 0,
	universities       INTEGER NOT NULL DEFAULT 0,
	shops              INTEGER NOT NULL DEFAULT 0,
	is_best            BOOLEAN NOT NULL DEFAULT false,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_proposals_city ON planning.proposals(lower(city_name));

CREATE TABLE IF NOT EXISTS planning.coverage_cells (
	city       TEXT NOT NULL,
	cell_id    TEXT NOT NULL,
	row_idx    INTEGER NOT NULL,
	col_idx    INTEGER NOT NULL,
	covered    BOOLEAN NOT NULL,
	geom       geometry(Polygon, 4326) NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (city, cell_id)
);

CREATE INDEX IF NOT EXISTS idx_coverage_cells_geom ON planning.coverage_cells USING GIST (geom);

CREATE TABLE IF NOT EXISTS planning.grid_scores (
	city         TEXT NOT NULL,
	step_m       INTEGER NOT NULL,
	radius_m     INTEGER NOT NULL,
	ix           INTEGER NOT NULL,
	iy           INTEGER NOT NULL,
	lat          DOUBLE PRECISION NOT NULL,
	lng          DOUBLE PRECISION NOT NULL,
	score        INTEGER NOT NULL,
	generated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (city, step_m, radius_m, ix, iy)
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateProposal(ctx context.Context, p Proposal) (*Proposal, error) {
	if err := p.Validate(); err != nil {
		return nil, eris.Wrap(err, "postgres: validate proposal")
	}
	p.ID = uuid.New().String()
	p.CreatedAt = time.Now().UTC()
	p.IsBest = false

	if _, err := s.pool.Exec(ctx, PreparedStatements["insert_proposal"], proposalArgs(p)...); err != nil {
		return nil, eris.Wrap(err, "postgres: insert proposal")
	}
	return &p, nil
}

func (s *PostgresStore) GetProposal(ctx context.Context, id string) (*Proposal, error) {
	p, err := scanProposal(s.pool.QueryRow(ctx, PreparedStatements["get_proposal"], id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: proposal %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get proposal %s", id)
	}
	return p, nil
}

func (s *PostgresStore) ListProposals(ctx context.Context, filter ProposalFilter) ([]Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM planning.proposals WHERE true`
	var args []any
	if filter.City != "" {
		args = append(args, filter.City)
		query += ` AND lower(city_name) = lower($1)`
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		if filter.City != "" {
			query += ` LIMIT $2 OFFSET $3`
		} else {
			query += ` LIMIT $1 OFFSET $2`
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list proposals")
	}
	defer rows.Close()

	var out []Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan proposal")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate proposals")
}

func (s *PostgresStore) SetBest(ctx context.Context, id string) (*Proposal, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	p, err := scanProposal(tx.QueryRow(ctx, PreparedStatements["get_proposal"]+` FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: proposal %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: lookup proposal %s", id)
	}

	if _, err := tx.Exec(ctx, PreparedStatements["clear_best"], p.City); err != nil {
		return nil, eris.Wrap(err, "postgres: clear best")
	}
	if _, err := tx.Exec(ctx, PreparedStatements["set_best"], id); err != nil {
		return nil, eris.Wrap(err, "postgres: set best")
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit tx")
	}
	p.IsBest = true
	return p, nil
}

func (s *PostgresStore) DeleteProposal(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, PreparedStatements["delete_proposal"], id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete proposal %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: proposal %s", id)
	}
	return nil
}
