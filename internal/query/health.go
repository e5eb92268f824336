package query

import (
	"context"
	"fmt"
	"time"

	"github.com/roomcraft-ai/renderlog/internal/model"
)

// Failure-rate thresholds. The two short windows drive the status: the 7d
// rate is reported for context but a week-old incident should not keep the
// pipeline marked unhealthy.
const (
	unhealthyRate1h  = 0.5
	unhealthyRate24h = 0.25
	degradedRate1h   = 0.2
	degradedRate24h  = 0.1

	latencySampleCap = 50_000
)

// Health computes pipeline health on demand from the rollup tables.
// Nothing is cached; the endpoint is for operators and dashboards, not
// hot paths.
func (s *Service) Health(ctx context.Context) (model.HealthStats, error) {
	now := time.Now().UTC()

	rate := func(since time.Time) (float64, error) {
		counts, err := s.store.CountTerminalRuns(ctx, since)
		if err != nil {
			return 0, err
		}
		if counts.Total == 0 {
			return 0, nil
		}
		return float64(counts.Failed) / float64(counts.Total), nil
	}

	rate1h, err := rate(now.Add(-1 * time.Hour))
	if err != nil {
		return model.HealthStats{}, fmt.Errorf("query: health 1h window: %w", err)
	}
	rate24h, err := rate(now.Add(-24 * time.Hour))
	if err != nil {
		return model.HealthStats{}, fmt.Errorf("query: health 24h window: %w", err)
	}
	rate7d, err := rate(now.Add(-7 * 24 * time.Hour))
	if err != nil {
		return model.HealthStats{}, fmt.Errorf("query: health 7d window: %w", err)
	}

	samples, err := s.store.LatencySamples(ctx, now.Add(-24*time.Hour), latencySampleCap)
	if err != nil {
		return model.HealthStats{}, fmt.Errorf("query: health latency samples: %w", err)
	}

	return model.HealthStats{
		Status:         healthStatus(rate1h, rate24h),
		FailureRate1h:  rate1h,
		FailureRate24h: rate24h,
		FailureRate7d:  rate7d,
		LatencyP50Ms:   percentile(samples, 0.50),
		LatencyP95Ms:   percentile(samples, 0.95),
		SampleCount:    len(samples),
	}, nil
}

func healthStatus(rate1h, rate24h float64) string {
	switch {
	case rate1h >= unhealthyRate1h || rate24h >= unhealthyRate24h:
		return "unhealthy"
	case rate1h >= degradedRate1h || rate24h >= degradedRate24h:
		return "degraded"
	default:
		return "healthy"
	}
}

// percentile indexes into an ascending-sorted sample set using the
// nearest-rank method. Zero samples yield zero.
func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
