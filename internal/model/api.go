package model

import (
	"time"
)

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// ListResponse is the envelope for cursor-paginated list endpoints.
// NextCursor is present only when HasMore is true. Total is filled only
// when the caller opted into the separately-costed count query.
type ListResponse struct {
	Data       any          `json:"data"`
	HasMore    bool         `json:"has_more"`
	NextCursor string       `json:"next_cursor,omitempty"`
	Total      *int         `json:"total,omitempty"`
	Limit      int          `json:"limit"`
	Meta       ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Stable error codes for the external API.
const (
	ErrCodeBadRequest    = "bad_request"
	ErrCodeUnauthorized  = "unauthorized"
	ErrCodeForbidden     = "forbidden"
	ErrCodeNotFound      = "not_found"
	ErrCodeRateLimited   = "rate_limited"
	ErrCodeInternalError = "internal_error"
)

// RunFilters narrows run list queries. All fields are optional.
type RunFilters struct {
	ShopDomain *string    `json:"shop_domain,omitempty"`
	Status     *RunStatus `json:"status,omitempty"`
	From       *time.Time `json:"from,omitempty"`
	To         *time.Time `json:"to,omitempty"`
}

// RunDetail is the full view of one run for detail endpoints. Snapshots are
// stripped from external responses by the redaction layer.
type RunDetail struct {
	Run       Run              `json:"run"`
	Variants  []VariantResult  `json:"variants"`
	Events    []TelemetryEvent `json:"events,omitempty"`
	Artifacts []ArtifactView   `json:"artifacts,omitempty"`
}

// ArtifactView is an artifact plus a per-request signed read URL.
// URL is empty when URL generation failed; consumers treat that as
// "image unavailable", not as an error.
type ArtifactView struct {
	Artifact
	URL string `json:"url,omitempty"`
}

// HealthStats is the on-demand health computation over the rollup tables.
type HealthStats struct {
	Status         string  `json:"status"` // healthy, degraded, unhealthy
	FailureRate1h  float64 `json:"failure_rate_1h"`
	FailureRate24h float64 `json:"failure_rate_24h"`
	FailureRate7d  float64 `json:"failure_rate_7d"`
	LatencyP50Ms   int64   `json:"latency_p50_ms"`
	LatencyP95Ms   int64   `json:"latency_p95_ms"`
	SampleCount    int     `json:"sample_count"`
}

// ShopStats is the per-tenant aggregate for the shops endpoints.
type ShopStats struct {
	ShopDomain   string       `json:"shop_domain"`
	TotalRuns    int          `json:"total_runs"`
	CompleteRuns int          `json:"complete_runs"`
	PartialRuns  int          `json:"partial_runs"`
	FailedRuns   int          `json:"failed_runs"`
	RunningRuns  int          `json:"running_runs"`
	DroppedRuns  int          `json:"dropped_runs"` // telemetry_dropped = true
	LastRunAt    *time.Time   `json:"last_run_at,omitempty"`
	TopErrors    []ErrorGroup `json:"top_errors,omitempty"`
}

// ErrorGroup is a normalized error message and how often it occurred.
// Messages are normalized (digits and UUIDs replaced) before counting so
// near-duplicates merge into one group.
type ErrorGroup struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}
