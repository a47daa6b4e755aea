package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS planning_proposals (
	id                 TEXT PRIMARY KEY,
	city_name          TEXT NOT NULL,
	lat                REAL NOT NULL,
	lng                REAL NOT NULL,
	radius_m           INTEGER NOT NULL,
	score              INTEGER NOT NULL,
	score_label        TEXT NOT NULL DEFAULT '',
	stations_in_radius INTEGER,
	nearest_station    TEXT,
	nearest_distance_m REAL,
	bus_stops          INTEGER NOT NULL DEFAULT 0,
	railway_stations   INTEGER NOT NULL DEFAULT 0,
	schools            INTEGER NOT NULL DEFAULT 0,
	universities       INTEGER NOT NULL DEFAULT 0,
	shops              INTEGER NOT NULL DEFAULT 0,
	is_best            INTEGER NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_planning_proposals_city ON planning_proposals(lower(city_name));
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateProposal(ctx context.Context, p Proposal) (*Proposal, error) {
	if err := p.Validate(); err != nil {
		return nil, eris.Wrap(err, "sqlite: validate proposal")
	}
	p.ID = uuid.New().String()
	p.CreatedAt = time.Now().UTC()
	p.IsBest = false

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO planning_proposals (`+proposalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		proposalArgs(p)...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert proposal")
	}
	return &p, nil
}

func (s *SQLiteStore) GetProposal(ctx context.Context, id string) (*Proposal, error) {
	p, err := scanProposal(s.db.QueryRowContext(ctx,
		`SELECT `+proposalColumns+` FROM planning_proposals WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: proposal %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get proposal %s", id)
	}
	return p, nil
}

func (s *SQLiteStore) ListProposals(ctx context.Context, filter ProposalFilter) ([]Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM planning_proposals WHERE 1=1`
	var args []any
	if filter.City != "" {
		query += ` AND lower(city_name) = lower(?)`
		args = append(args, filter.City)
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list proposals")
	}
	defer rows.Close() //nolint:errcheck

	var out []Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan proposal")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate proposals")
}

func (s *SQLiteStore) SetBest(ctx context.Context, id string) (*Proposal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var city string
	err = tx.QueryRowContext(ctx, `SELECT city_name FROM planning_proposals WHERE id = ?`, id).Scan(&city)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: proposal %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: lookup proposal %s", id)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE planning_proposals SET is_best = 0 WHERE lower(city_name) = lower(?)`, city); err != nil {
		return nil, eris.Wrap(err, "sqlite: clear best")
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE planning_proposals SET is_best = 1 WHERE id = ?`, id); err != nil {
		return nil, eris.Wrap(err, "sqlite: set best")
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit tx")
	}
	return s.GetProposal(ctx, id)
}

func (s *SQLiteStore) DeleteProposal(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM planning_proposals WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete proposal %s", id)
	}
	return checkRowsAffected(res, id)
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "proposal %s", id)
	}
	return nil
}
