package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/roomcraft-ai/renderlog/internal/model"
)

// InsertEvent appends a single event to the log. The event's CreatedAt is
// assigned by the caller (the emitter stamps server time); the log itself
// is append-only and never updated.
func (db *DB) InsertEvent(ctx context.Context, e model.TelemetryEvent) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO telemetry_events
		     (id, shop_domain, request_id, run_id, variant_id, trace_id, span_id, parent_span_id,
		      source, type, severity, payload, schema_version, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		e.ID, e.ShopDomain, e.RequestID, e.RunID, e.VariantID, e.TraceID, e.SpanID, e.ParentSpanID,
		string(e.Source), e.Type, string(e.Severity), e.Payload, e.SchemaVersion, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: insert event: %w", err)
	}
	return nil
}

// GetEventsByRun retrieves events correlated to a run, scoped by shop
// domain, oldest first. limit <= 0 defaults to 10000; callers detect
// truncation by comparing the returned length to the limit.
func (db *DB) GetEventsByRun(ctx context.Context, shopDomain, runID string, limit int) ([]model.TelemetryEvent, error) {
	if limit <= 0 {
		limit = 10_000
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, shop_domain, request_id, run_id, variant_id, trace_id, span_id, parent_span_id,
		        source, type, severity, payload, schema_version, created_at
		 FROM telemetry_events
		 WHERE shop_domain = $1 AND run_id = $2
		 ORDER BY created_at ASC, id ASC
		 LIMIT $3`, shopDomain, runID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: get events by run: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetEventsByRequest retrieves events for a request id (runless flows:
// storefront, proxy, preparation), scoped by shop domain.
func (db *DB) GetEventsByRequest(ctx context.Context, shopDomain, requestID string, limit int) ([]model.TelemetryEvent, error) {
	if limit <= 0 {
		limit = 10_000
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, shop_domain, request_id, run_id, variant_id, trace_id, span_id, parent_span_id,
		        source, type, severity, payload, schema_version, created_at
		 FROM telemetry_events
		 WHERE shop_domain = $1 AND request_id = $2
		 ORDER BY created_at ASC, id ASC
		 LIMIT $3`, shopDomain, requestID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: get events by request: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]model.TelemetryEvent, error) {
	var events []model.TelemetryEvent
	for rows.Next() {
		var e model.TelemetryEvent
		if err := rows.Scan(
			&e.ID, &e.ShopDomain, &e.RequestID, &e.RunID, &e.VariantID, &e.TraceID, &e.SpanID, &e.ParentSpanID,
			&e.Source, &e.Type, &e.Severity, &e.Payload, &e.SchemaVersion, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
