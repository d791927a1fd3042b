// Package audit persists reconcile-run history to Postgres so counter drift
// can be tracked across runs.
package audit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/stampbook-app/stampbook-backend/internal/reconcile"
)

// Schema creates the audit tables. Applied with CREATE IF NOT EXISTS at
// startup so the job can run against a fresh database.
const Schema = `
CREATE TABLE IF NOT EXISTS reconcile_runs (
    run_id        TEXT PRIMARY KEY,
    started_at    TIMESTAMPTZ NOT NULL,
    finished_at   TIMESTAMPTZ,
    users_scanned INTEGER NOT NULL DEFAULT 0,
    repaired      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS reconcile_discrepancies (
    id          BIGSERIAL PRIMARY KEY,
    run_id      TEXT NOT NULL REFERENCES reconcile_runs(run_id),
    user_id     TEXT NOT NULL,
    field       TEXT NOT NULL,
    stored      BIGINT NOT NULL,
    actual      BIGINT NOT NULL,
    delta       BIGINT NOT NULL,
    observed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_discrepancies_run ON reconcile_discrepancies(run_id);
CREATE INDEX IF NOT EXISTS idx_discrepancies_user ON reconcile_discrepancies(user_id);
`

// Connect opens the audit database and ensures the schema exists.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to audit database: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply audit schema: %w", err)
	}

	log.Println("Connected to audit database successfully")
	return db, nil
}

// Store implements reconcile.Reporter on Postgres.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// RunStarted inserts the run row.
func (s *Store) RunStarted(ctx context.Context, runID string, startedAt time.Time) error {
	query := `
		INSERT INTO reconcile_runs (run_id, started_at)
		VALUES ($1, $2)`

	_, err := s.db.ExecContext(ctx, query, runID, startedAt)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Discrepancy records one observed drift for the run.
func (s *Store) Discrepancy(ctx context.Context, runID string, d reconcile.Discrepancy) error {
	query := `
		INSERT INTO reconcile_discrepancies (run_id, user_id, field, stored, actual, delta)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, query, runID, d.UserID, d.Field, d.Stored, d.Actual, d.Delta())
	if err != nil {
		return fmt.Errorf("insert discrepancy: %w", err)
	}
	return nil
}

// RunFinished stamps the run row with its totals.
func (s *Store) RunFinished(ctx context.Context, runID string, usersScanned, repaired int) error {
	query := `
		UPDATE reconcile_runs
		SET finished_at = now(), users_scanned = $2, repaired = $3
		WHERE run_id = $1`

	result, err := s.db.ExecContext(ctx, query, runID, usersScanned, repaired)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}
