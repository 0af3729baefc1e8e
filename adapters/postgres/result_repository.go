package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"gocorr/domain/core"
	"gocorr/domain/correlation"
	"gocorr/internal/errors"
	"gocorr/ports"
)

// resultRepository implements the ResultRepository interface
type resultRepository struct {
	db *sqlx.DB
}

// NewResultRepository creates a new result repository
func NewResultRepository(db *sqlx.DB) ports.ResultRepository {
	return &resultRepository{db: db}
}

// topEntryRow is the storage shape of one ranked pair
type topEntryRow struct {
	Value     float64         `db:"value"`
	SeriesA   int             `db:"series_a"`
	SeriesB   int             `db:"series_b"`
	PairIndex int64           `db:"pair_index"`
	PValue    sql.NullFloat64 `db:"p_value"`
}

// stepRow is the storage shape of one timestep's counts
type stepRow struct {
	Evaluated  int `db:"evaluated"`
	Degenerate int `db:"degenerate"`
}

// SaveRun stores the run header, every step and every ranked entry in one transaction
func (r *resultRepository) SaveRun(ctx context.Context, result *correlation.RunResult) error {
	paramsJSON, err := json.Marshal(result.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO correlation_runs (
		run_id, num_series, size_series, window_size, timesteps, top_k, mode,
		fingerprint, params, started_at, duration_ms
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
	)`,
		result.RunID.String(), result.NumSeries, result.SizeSeries, result.Params.Window,
		len(result.Steps), result.Params.TopK, string(result.Params.Mode),
		result.Fingerprint.String(), paramsJSON, result.StartedAt.Time(), result.Duration.Milliseconds(),
	)
	if err != nil {
		return errors.DatabaseError("failed to create run", err)
	}

	stepStmt, err := tx.PreparexContext(ctx, `INSERT INTO correlation_steps (
		run_id, timestep, evaluated, degenerate
	) VALUES (
		$1, $2, $3, $4
	)`)
	if err != nil {
		return errors.DatabaseError("failed to prepare step insert", err)
	}
	defer stepStmt.Close()

	entryStmt, err := tx.PreparexContext(ctx, `INSERT INTO correlation_top_entries (
		run_id, timestep, rank, value, series_a, series_b, pair_index, p_value, created_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, NOW()
	)`)
	if err != nil {
		return errors.DatabaseError("failed to prepare entry insert", err)
	}
	defer entryStmt.Close()

	for _, step := range result.Steps {
		if _, err := stepStmt.ExecContext(ctx,
			result.RunID.String(), step.Timestep, step.Evaluated, step.Degenerate,
		); err != nil {
			return errors.DatabaseError(fmt.Sprintf("failed to insert step t=%d", step.Timestep), err)
		}
		for rank, e := range step.Top {
			var pValue sql.NullFloat64
			if e.PValue != nil {
				pValue = sql.NullFloat64{Float64: *e.PValue, Valid: true}
			}
			if _, err := entryStmt.ExecContext(ctx,
				result.RunID.String(), step.Timestep, rank+1, e.Value, e.A, e.B, int64(e.Index), pValue,
			); err != nil {
				return errors.DatabaseError(fmt.Sprintf("failed to insert entry t=%d rank=%d", step.Timestep, rank+1), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("failed to commit run", err)
	}
	return nil
}

// GetStep returns one stored timestep with its ranked pairs in rank order
func (r *resultRepository) GetStep(ctx context.Context, runID core.RunID, timestep int) (*correlation.StepResult, error) {
	var counts stepRow
	err := r.db.GetContext(ctx, &counts, `SELECT evaluated, degenerate
	FROM correlation_steps
	WHERE run_id = $1 AND timestep = $2`, runID.String(), timestep)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound(fmt.Sprintf("run %s timestep %d", runID, timestep))
	}
	if err != nil {
		return nil, errors.DatabaseError("failed to query step", err)
	}

	query := `SELECT value, series_a, series_b, pair_index, p_value
	FROM correlation_top_entries
	WHERE run_id = $1 AND timestep = $2
	ORDER BY rank ASC`

	var rows []topEntryRow
	if err := r.db.SelectContext(ctx, &rows, query, runID.String(), timestep); err != nil {
		return nil, errors.DatabaseError("failed to query top entries", err)
	}

	entries := make([]correlation.TopEntry, len(rows))
	for i, row := range rows {
		entries[i] = correlation.TopEntry{
			Value: row.Value,
			A:     row.SeriesA,
			B:     row.SeriesB,
			Index: uint64(row.PairIndex),
		}
		if row.PValue.Valid {
			p := row.PValue.Float64
			entries[i].PValue = &p
		}
	}
	return &correlation.StepResult{
		Timestep:   timestep,
		Top:        entries,
		Evaluated:  counts.Evaluated,
		Degenerate: counts.Degenerate,
	}, nil
}

// ListTimesteps returns the timesteps stored for a run
func (r *resultRepository) ListTimesteps(ctx context.Context, runID core.RunID) ([]int, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM correlation_runs WHERE run_id = $1)`, runID.String()); err != nil {
		return nil, errors.DatabaseError("failed to look up run", err)
	}
	if !exists {
		return nil, errors.NotFound(fmt.Sprintf("run %s", runID))
	}

	var timesteps []int
	query := `SELECT timestep FROM correlation_steps WHERE run_id = $1 ORDER BY timestep ASC`
	if err := r.db.SelectContext(ctx, &timesteps, query, runID.String()); err != nil {
		return nil, errors.DatabaseError("failed to list timesteps", err)
	}
	return timesteps, nil
}
