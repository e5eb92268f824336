package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/roomcraft-ai/renderlog/internal/model"
)

// RunWindowCounts holds terminal run counts for one time window.
type RunWindowCounts struct {
	Total  int
	Failed int
}

// CountTerminalRuns counts runs that reached a terminal status since the
// cutoff, and how many of those failed. This is one of the two read-only
// cross-tenant aggregates (the other is shop stats); nothing else queries
// across shops.
func (db *DB) CountTerminalRuns(ctx context.Context, since time.Time) (RunWindowCounts, error) {
	var c RunWindowCounts
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'failed')
		 FROM runs
		 WHERE status != 'running' AND created_at >= $1`, since,
	).Scan(&c.Total, &c.Failed)
	if err != nil {
		return c, fmt.Errorf("storage: count terminal runs: %w", err)
	}
	return c, nil
}

// LatencySamples returns variant latencies recorded since the cutoff,
// sorted ascending, capped at limit rows. Window sizes are bounded and the
// health endpoint is queried rarely relative to writes, so sorted samples
// beat maintaining a streaming estimator.
func (db *DB) LatencySamples(ctx context.Context, since time.Time, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 50_000
	}
	rows, err := db.pool.Query(ctx,
		`SELECT latency_ms FROM variant_results
		 WHERE latency_ms IS NOT NULL AND created_at >= $1
		 ORDER BY latency_ms ASC
		 LIMIT $2`, since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: latency samples: %w", err)
	}
	defer rows.Close()

	var samples []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("storage: scan latency sample: %w", err)
		}
		samples = append(samples, v)
	}
	return samples, rows.Err()
}

const shopStatsQuery = `
	SELECT shop_domain,
	       COUNT(*),
	       COUNT(*) FILTER (WHERE status = 'complete'),
	       COUNT(*) FILTER (WHERE status = 'partial'),
	       COUNT(*) FILTER (WHERE status = 'failed'),
	       COUNT(*) FILTER (WHERE status = 'running'),
	       COUNT(*) FILTER (WHERE telemetry_dropped),
	       MAX(created_at)
	FROM runs`

// ListShopStats returns per-tenant run aggregates for every shop that has
// at least one run, ordered by most recent activity.
func (db *DB) ListShopStats(ctx context.Context) ([]model.ShopStats, error) {
	rows, err := db.pool.Query(ctx,
		shopStatsQuery+` GROUP BY shop_domain ORDER BY MAX(created_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("storage: list shop stats: %w", err)
	}
	defer rows.Close()

	var stats []model.ShopStats
	for rows.Next() {
		var s model.ShopStats
		if err := rows.Scan(
			&s.ShopDomain, &s.TotalRuns, &s.CompleteRuns, &s.PartialRuns,
			&s.FailedRuns, &s.RunningRuns, &s.DroppedRuns, &s.LastRunAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan shop stats: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// GetShopStats returns the aggregate for one shop.
func (db *DB) GetShopStats(ctx context.Context, shopDomain string) (model.ShopStats, error) {
	var s model.ShopStats
	err := db.pool.QueryRow(ctx,
		shopStatsQuery+` WHERE shop_domain = $1 GROUP BY shop_domain`, shopDomain,
	).Scan(
		&s.ShopDomain, &s.TotalRuns, &s.CompleteRuns, &s.PartialRuns,
		&s.FailedRuns, &s.RunningRuns, &s.DroppedRuns, &s.LastRunAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ShopStats{}, ErrNotFound
		}
		return model.ShopStats{}, fmt.Errorf("storage: get shop stats: %w", err)
	}
	return s, nil
}

// ErrorMessagesByShop returns raw variant error messages for a shop since
// the cutoff. Grouping happens in the query layer after normalization.
func (db *DB) ErrorMessagesByShop(ctx context.Context, shopDomain string, since time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10_000
	}
	rows, err := db.pool.Query(ctx,
		`SELECT error_message FROM variant_results
		 WHERE shop_domain = $1 AND error_message IS NOT NULL AND created_at >= $2
		 ORDER BY created_at DESC
		 LIMIT $3`, shopDomain, since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: error messages by shop: %w", err)
	}
	defer rows.Close()

	var msgs []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("storage: scan error message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
