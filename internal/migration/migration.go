package migration

import (
	"context"

	"github.com/jmoiron/sqlx"

	"gocorr/internal/errors"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.1.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createRunsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create correlation_runs table")
	}

	if err := r.createStepsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create correlation_steps table")
	}

	if err := r.createTopEntriesTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create correlation_top_entries table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS correlation_runs (
			run_id UUID PRIMARY KEY,
			num_series INTEGER NOT NULL,
			size_series INTEGER NOT NULL,
			window_size INTEGER NOT NULL,
			timesteps INTEGER NOT NULL,
			top_k INTEGER NOT NULL,
			mode VARCHAR(32) NOT NULL,
			fingerprint VARCHAR(64) NOT NULL,
			params JSONB,
			started_at TIMESTAMP WITH TIME ZONE NOT NULL,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

// createStepsTable stores one row per timestep, so steps with an empty
// ranking keep their evaluated and degenerate counts.
func (r *MigrationRunner) createStepsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS correlation_steps (
			run_id UUID NOT NULL REFERENCES correlation_runs(run_id) ON DELETE CASCADE,
			timestep INTEGER NOT NULL,
			evaluated BIGINT NOT NULL,
			degenerate BIGINT NOT NULL,
			PRIMARY KEY (run_id, timestep)
		)
	`)
	return err
}

func (r *MigrationRunner) createTopEntriesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS correlation_top_entries (
			run_id UUID NOT NULL REFERENCES correlation_runs(run_id) ON DELETE CASCADE,
			timestep INTEGER NOT NULL,
			rank INTEGER NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			series_a INTEGER NOT NULL,
			series_b INTEGER NOT NULL,
			pair_index BIGINT NOT NULL,
			p_value DOUBLE PRECISION,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			PRIMARY KEY (run_id, timestep, rank)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_top_entries_pair ON correlation_top_entries(run_id, pair_index);
		CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON correlation_runs(fingerprint)
	`)
	return err
}
