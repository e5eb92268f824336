package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthStatusThresholds(t *testing.T) {
	tests := []struct {
		rate1h, rate24h float64
		want            string
	}{
		{0, 0, "healthy"},
		{0.19, 0.09, "healthy"},
		{0.2, 0, "degraded"},
		{0, 0.1, "degraded"},
		{0.49, 0.24, "degraded"},
		{0.5, 0, "unhealthy"},
		{0, 0.25, "unhealthy"},
		{1, 1, "unhealthy"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, healthStatus(tt.rate1h, tt.rate24h),
			"rate1h=%v rate24h=%v", tt.rate1h, tt.rate24h)
	}
}

func TestPercentile(t *testing.T) {
	assert.Equal(t, int64(0), percentile(nil, 0.5))

	samples := []int64{100, 200, 300, 400, 500, 600, 700, 800, 900, 1000}
	assert.Equal(t, int64(600), percentile(samples, 0.50))
	assert.Equal(t, int64(1000), percentile(samples, 0.95))
	assert.Equal(t, int64(100), percentile(samples, 0))

	single := []int64{42}
	assert.Equal(t, int64(42), percentile(single, 0.5))
	assert.Equal(t, int64(42), percentile(single, 0.95))
}

func TestHealthComputesRatesAndLatency(t *testing.T) {
	store := newFakeQueryStore()
	store.windowCounts = func(since time.Time) (int, int) {
		age := time.Since(since)
		switch {
		case age <= 2*time.Hour: // 1h window
			return 10, 3
		case age <= 48*time.Hour: // 24h window
			return 100, 5
		default: // 7d window
			return 1000, 10
		}
	}
	store.latencies = []int64{100, 200, 300, 400, 500, 600, 700, 800, 900, 1000}

	s := NewService(store, fakeSigner{})
	stats, err := s.Health(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "degraded", stats.Status) // 0.3 ≥ 0.2 on the 1h window
	assert.InDelta(t, 0.3, stats.FailureRate1h, 1e-9)
	assert.InDelta(t, 0.05, stats.FailureRate24h, 1e-9)
	assert.InDelta(t, 0.01, stats.FailureRate7d, 1e-9)
	assert.Equal(t, int64(600), stats.LatencyP50Ms)
	assert.Equal(t, int64(1000), stats.LatencyP95Ms)
	assert.Equal(t, 10, stats.SampleCount)
}
