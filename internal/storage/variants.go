package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/roomcraft-ai/renderlog/internal/model"
)

// InsertVariantResult writes one variant outcome in a single insert.
// The unique index on (run_id, variant_id) rejects duplicate writes;
// those surface as ErrDuplicate and are a caller bug, not retried.
func (db *DB) InsertVariantResult(ctx context.Context, v model.VariantResult) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO variant_results
		     (id, run_id, shop_domain, variant_id, status, started_at, completed_at,
		      latency_ms, provider_latency_ms, upload_latency_ms,
		      artifact_id, output_hash, error_code, error_message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		v.ID, v.RunID, v.ShopDomain, v.VariantID, string(v.Status), v.StartedAt, v.CompletedAt,
		v.LatencyMs, v.ProviderLatencyMs, v.UploadLatencyMs,
		v.ArtifactID, v.OutputHash, v.ErrorCode, v.ErrorMessage, v.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("storage: variant result %s/%s: %w", v.RunID, v.VariantID, ErrDuplicate)
		}
		return fmt.Errorf("storage: insert variant result: %w", err)
	}
	return nil
}

// GetVariantResultsByRun returns all variant outcomes for a run, scoped by
// shop domain, ordered by variant identifier.
func (db *DB) GetVariantResultsByRun(ctx context.Context, shopDomain, runID string) ([]model.VariantResult, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, run_id, shop_domain, variant_id, status, started_at, completed_at,
		        latency_ms, provider_latency_ms, upload_latency_ms,
		        artifact_id, output_hash, error_code, error_message, created_at
		 FROM variant_results
		 WHERE shop_domain = $1 AND run_id = $2
		 ORDER BY variant_id ASC`, shopDomain, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: get variant results: %w", err)
	}
	defer rows.Close()

	var results []model.VariantResult
	for rows.Next() {
		var v model.VariantResult
		if err := rows.Scan(
			&v.ID, &v.RunID, &v.ShopDomain, &v.VariantID, &v.Status, &v.StartedAt, &v.CompletedAt,
			&v.LatencyMs, &v.ProviderLatencyMs, &v.UploadLatencyMs,
			&v.ArtifactID, &v.OutputHash, &v.ErrorCode, &v.ErrorMessage, &v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan variant result: %w", err)
		}
		results = append(results, v)
	}
	return results, rows.Err()
}
