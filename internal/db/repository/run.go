package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bricksync/internal/domain"
)

// DefaultListLimit caps ListRuns when no limit is given.
const DefaultListLimit = 50

var (
	_ domain.RunRecorder = (*RunRepo)(nil)
	_ domain.RunHistory  = (*RunRepo)(nil)
)

// RunRepo stores sync runs and their per-object results.
type RunRepo struct {
	db *sql.DB
}

// NewRunRepo creates a RunRepo over a migrated history database.
func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

// StartRun inserts a running run.
func (r *RunRepo) StartRun(ctx context.Context, id string, startedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_runs (id, started_at, status) VALUES (?, ?, ?)`,
		id, startedAt.UTC(), string(domain.RunRunning))
	if err != nil {
		return mapDBError(err, "run %s", id)
	}
	return nil
}

// RecordResult stores the result at position. Recording the same position
// twice keeps the latest result.
func (r *RunRepo) RecordResult(ctx context.Context, runID string, position int, res domain.SyncResult) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_results (run_id, position, source_name, target_name, status, action, error_detail, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, position) DO UPDATE SET
			source_name = excluded.source_name,
			target_name = excluded.target_name,
			status = excluded.status,
			action = excluded.action,
			error_detail = excluded.error_detail,
			duration_ms = excluded.duration_ms`,
		runID, position, res.SourceName, res.Target, string(res.Status), string(res.Action),
		res.ErrorDetail, res.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("record result %d of run %s: %w", position, runID, err)
	}
	return nil
}

// FinishRun stores the final status and counts of a run.
func (r *RunRepo) FinishRun(ctx context.Context, run domain.RunRecord) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sync_runs SET finished_at = ?, status = ?, converged = ?, skipped = ?, failed = ?
		WHERE id = ?`,
		nullTime(run.FinishedAt), string(run.Status), run.Converged, run.Skipped, run.Failed, run.ID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", run.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: %w", run.ID, err)
	}
	if n == 0 {
		return domain.ErrNotFound("run %s not found", run.ID)
	}
	return nil
}

const runColumns = `id, started_at, finished_at, status, converged, skipped, failed`

func scanRun(row interface{ Scan(...any) error }) (*domain.RunRecord, error) {
	var (
		run      domain.RunRecord
		finished sql.NullTime
		status   string
	)
	if err := row.Scan(&run.ID, &run.StartedAt, &finished, &status, &run.Converged, &run.Skipped, &run.Failed); err != nil {
		return nil, err
	}
	run.Status = domain.RunStatus(status)
	run.FinishedAt = timePtr(finished)
	return &run, nil
}

// ListRuns returns the most recent runs first.
func (r *RunRepo) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM sync_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var runs []domain.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun returns one run.
func (r *RunRepo) GetRun(ctx context.Context, id string) (*domain.RunRecord, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM sync_runs WHERE id = ?`, id))
	if err != nil {
		return nil, mapDBError(err, "run %s not found", id)
	}
	return run, nil
}

// ListResults returns the results of a run in position order.
func (r *RunRepo) ListResults(ctx context.Context, runID string) ([]domain.SyncResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT source_name, target_name, status, action, error_detail, duration_ms
		FROM sync_results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("list results of run %s: %w", runID, err)
	}
	defer rows.Close() //nolint:errcheck

	var results []domain.SyncResult
	for rows.Next() {
		var (
			res            domain.SyncResult
			status, action string
			ms             int64
		)
		if err := rows.Scan(&res.SourceName, &res.Target, &status, &action, &res.ErrorDetail, &ms); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		res.Status = domain.SyncStatus(status)
		res.Action = domain.Action(action)
		res.Duration = time.Duration(ms) * time.Millisecond
		results = append(results, res)
	}
	return results, rows.Err()
}
