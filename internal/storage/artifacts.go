package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/roomcraft-ai/renderlog/internal/model"
)

// InsertArtifact indexes a binary object. The object itself was already
// written to object storage (or existed there before); this row is only
// metadata and is never updated.
func (db *DB) InsertArtifact(ctx context.Context, a model.Artifact) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO artifacts
		     (id, shop_domain, request_id, run_id, variant_id, type, storage_key, content_type,
		      size_bytes, width, height, content_hash, retention_class, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		a.ID, a.ShopDomain, a.RequestID, a.RunID, a.VariantID, string(a.Type), a.StorageKey, a.ContentType,
		a.SizeBytes, a.Width, a.Height, a.ContentHash, string(a.Retention), a.ExpiresAt, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: insert artifact: %w", err)
	}
	return nil
}

// GetArtifact retrieves one artifact by ID, scoped to the given shop.
func (db *DB) GetArtifact(ctx context.Context, shopDomain string, id uuid.UUID) (model.Artifact, error) {
	var a model.Artifact
	err := db.pool.QueryRow(ctx,
		`SELECT id, shop_domain, request_id, run_id, variant_id, type, storage_key, content_type,
		        size_bytes, width, height, content_hash, retention_class, expires_at, created_at
		 FROM artifacts WHERE id = $1 AND shop_domain = $2`, id, shopDomain,
	).Scan(
		&a.ID, &a.ShopDomain, &a.RequestID, &a.RunID, &a.VariantID, &a.Type, &a.StorageKey, &a.ContentType,
		&a.SizeBytes, &a.Width, &a.Height, &a.ContentHash, &a.Retention, &a.ExpiresAt, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Artifact{}, ErrNotFound
		}
		return model.Artifact{}, fmt.Errorf("storage: get artifact: %w", err)
	}
	return a, nil
}

// GetArtifactsByRun returns all artifacts recorded for a run, scoped by
// shop domain, oldest first.
func (db *DB) GetArtifactsByRun(ctx context.Context, shopDomain, runID string) ([]model.Artifact, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, shop_domain, request_id, run_id, variant_id, type, storage_key, content_type,
		        size_bytes, width, height, content_hash, retention_class, expires_at, created_at
		 FROM artifacts
		 WHERE shop_domain = $1 AND run_id = $2
		 ORDER BY created_at ASC, id ASC`, shopDomain, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: get artifacts by run: %w", err)
	}
	defer rows.Close()

	var artifacts []model.Artifact
	for rows.Next() {
		var a model.Artifact
		if err := rows.Scan(
			&a.ID, &a.ShopDomain, &a.RequestID, &a.RunID, &a.VariantID, &a.Type, &a.StorageKey, &a.ContentType,
			&a.SizeBytes, &a.Width, &a.Height, &a.ContentHash, &a.Retention, &a.ExpiresAt, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}
