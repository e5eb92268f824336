package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/roomcraft-ai/renderlog/internal/model"
)

// InsertRun inserts a new run rollup row with status RUNNING and zeroed
// counters. The run ID is caller-supplied so the rendering pipeline can
// correlate events before the row exists.
func (db *DB) InsertRun(ctx context.Context, run model.Run) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO runs
		     (id, shop_domain, request_id, status, success_count, fail_count, timeout_count,
		      telemetry_dropped, facts_hash, facts_snapshot, placement_config, pipeline_config,
		      started_at, created_at)
		 VALUES ($1, $2, $3, $4, 0, 0, 0, false, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.ShopDomain, run.RequestID, string(model.RunStatusRunning),
		run.FactsHash, run.FactsSnapshot, run.PlacementConfig, run.PipelineConfig,
		run.StartedAt, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: insert run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID, scoped to the given shop.
func (db *DB) GetRun(ctx context.Context, shopDomain, id string) (model.Run, error) {
	var r model.Run
	err := db.pool.QueryRow(ctx,
		`SELECT id, shop_domain, request_id, status, success_count, fail_count, timeout_count,
		        telemetry_dropped, facts_hash, facts_snapshot, placement_config, pipeline_config,
		        started_at, completed_at, duration_ms, created_at
		 FROM runs WHERE id = $1 AND shop_domain = $2`, id, shopDomain,
	).Scan(
		&r.ID, &r.ShopDomain, &r.RequestID, &r.Status, &r.SuccessCount, &r.FailCount, &r.TimeoutCount,
		&r.TelemetryDropped, &r.FactsHash, &r.FactsSnapshot, &r.PlacementConfig, &r.PipelineConfig,
		&r.StartedAt, &r.CompletedAt, &r.DurationMs, &r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Run{}, ErrNotFound
		}
		return model.Run{}, fmt.Errorf("storage: get run: %w", err)
	}
	return r, nil
}

// CompleteRun performs the single terminal transition for a run: status,
// counters, completion timestamp and duration are written together, guarded
// by status = 'running' so a second call cannot overwrite the first.
func (db *DB) CompleteRun(ctx context.Context, shopDomain, id string, status model.RunStatus, success, fail, timeout int, completedAt time.Time, durationMs int64) error {
	if !model.TerminalRunStatus(status) {
		return fmt.Errorf("storage: complete run %s: %q is not a terminal status", id, status)
	}
	tag, err := db.pool.Exec(ctx,
		`UPDATE runs
		 SET status = $1, success_count = $2, fail_count = $3, timeout_count = $4,
		     completed_at = $5, duration_ms = $6
		 WHERE id = $7 AND shop_domain = $8 AND status = 'running'`,
		string(status), success, fail, timeout, completedAt, durationMs, id, shopDomain,
	)
	if err != nil {
		return fmt.Errorf("storage: complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: run not found or already completed: %s", id)
	}
	return nil
}

// MarkTelemetryDropped sets telemetry_dropped on a run. The flag only ever
// goes from false to true; there is no write path that clears it.
func (db *DB) MarkTelemetryDropped(ctx context.Context, shopDomain, id string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE runs SET telemetry_dropped = true WHERE id = $1 AND shop_domain = $2`,
		id, shopDomain,
	)
	if err != nil {
		return fmt.Errorf("storage: mark telemetry dropped: %w", err)
	}
	return nil
}

// ListRunsParams narrows and pages a run list query. The cursor fields
// select rows strictly before (created_at, id) in descending order, which
// keeps previously-issued pages stable under concurrent inserts.
type ListRunsParams struct {
	Filters         model.RunFilters
	BeforeCreatedAt *time.Time
	BeforeID        *string
	Limit           int
}

// ListRuns returns runs in descending (created_at, id) order. Callers
// request one row beyond their page size to detect has_more without a
// count query.
func (db *DB) ListRuns(ctx context.Context, p ListRunsParams) ([]model.Run, error) {
	if p.Limit <= 0 {
		p.Limit = 50
	}

	q := `SELECT id, shop_domain, request_id, status, success_count, fail_count, timeout_count,
	             telemetry_dropped, facts_hash, facts_snapshot, placement_config, pipeline_config,
	             started_at, completed_at, duration_ms, created_at
	      FROM runs WHERE true`
	var args []any
	n := 1

	if p.Filters.ShopDomain != nil {
		q += fmt.Sprintf(" AND shop_domain = $%d", n)
		args = append(args, *p.Filters.ShopDomain)
		n++
	}
	if p.Filters.Status != nil {
		q += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, string(*p.Filters.Status))
		n++
	}
	if p.Filters.From != nil {
		q += fmt.Sprintf(" AND created_at >= $%d", n)
		args = append(args, *p.Filters.From)
		n++
	}
	if p.Filters.To != nil {
		q += fmt.Sprintf(" AND created_at <= $%d", n)
		args = append(args, *p.Filters.To)
		n++
	}
	if p.BeforeCreatedAt != nil && p.BeforeID != nil {
		q += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", n, n+1)
		args = append(args, *p.BeforeCreatedAt, *p.BeforeID)
		n += 2
	}

	q += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", n)
	args = append(args, p.Limit)

	rows, err := db.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list runs: %w", err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		if err := rows.Scan(
			&r.ID, &r.ShopDomain, &r.RequestID, &r.Status, &r.SuccessCount, &r.FailCount, &r.TimeoutCount,
			&r.TelemetryDropped, &r.FactsHash, &r.FactsSnapshot, &r.PlacementConfig, &r.PipelineConfig,
			&r.StartedAt, &r.CompletedAt, &r.DurationMs, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CountRuns returns the unpaginated total for the given filters. This is
// the deliberately separate, opt-in count query — list pages never pay
// for it.
func (db *DB) CountRuns(ctx context.Context, f model.RunFilters) (int, error) {
	q := `SELECT COUNT(*) FROM runs WHERE true`
	var args []any
	n := 1
	if f.ShopDomain != nil {
		q += fmt.Sprintf(" AND shop_domain = $%d", n)
		args = append(args, *f.ShopDomain)
		n++
	}
	if f.Status != nil {
		q += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, string(*f.Status))
		n++
	}
	if f.From != nil {
		q += fmt.Sprintf(" AND created_at >= $%d", n)
		args = append(args, *f.From)
		n++
	}
	if f.To != nil {
		q += fmt.Sprintf(" AND created_at <= $%d", n)
		args = append(args, *f.To)
	}

	var total int
	if err := db.pool.QueryRow(ctx, q, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("storage: count runs: %w", err)
	}
	return total, nil
}
