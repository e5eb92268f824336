// Package model defines the core domain types for renderlog.
//
// Types correspond directly to database tables and API payloads. Strong
// typing (UUIDs, time.Time, enums) is preferred; map[string]any appears
// only for genuinely open-ended event payloads, which are bounded and
// redacted by internal/payload.
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a rendering run rollup.
// RUNNING is the only non-terminal state; there is no transition back.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusPartial  RunStatus = "partial"
	RunStatusFailed   RunStatus = "failed"
)

// TerminalRunStatus reports whether s is one of the three terminal states.
func TerminalRunStatus(s RunStatus) bool {
	return s == RunStatusComplete || s == RunStatusPartial || s == RunStatusFailed
}

// Run is the rollup aggregate for one end-to-end multi-variant rendering
// attempt. It mirrors a subset of event-log information for dashboard reads;
// the event log stays authoritative. TelemetryDropped is the one visible
// signal that this mirror may have diverged — once set it is never cleared.
type Run struct {
	ID               string          `json:"id"`
	ShopDomain       string          `json:"shop_domain"`
	RequestID        string          `json:"request_id"`
	Status           RunStatus       `json:"status"`
	SuccessCount     int             `json:"success_count"`
	FailCount        int             `json:"fail_count"`
	TimeoutCount     int             `json:"timeout_count"`
	TelemetryDropped bool            `json:"telemetry_dropped"`
	FactsHash        *string         `json:"facts_hash,omitempty"`
	FactsSnapshot    json.RawMessage `json:"facts_snapshot,omitempty"`
	PlacementConfig  json.RawMessage `json:"placement_config,omitempty"`
	PipelineConfig   json.RawMessage `json:"pipeline_config,omitempty"`
	StartedAt        time.Time       `json:"started_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	DurationMs       *int64          `json:"duration_ms,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// VariantStatus is the terminal outcome of one variant within a run.
// There is no persisted "started" state; variant starts go to the event
// log only.
type VariantStatus string

const (
	VariantStatusSuccess VariantStatus = "success"
	VariantStatusFailed  VariantStatus = "failed"
	VariantStatusTimeout VariantStatus = "timeout"
)

// ValidVariantStatus reports whether s is a known variant outcome.
func ValidVariantStatus(s VariantStatus) bool {
	return s == VariantStatusSuccess || s == VariantStatusFailed || s == VariantStatusTimeout
}

// VariantIDs is the fixed set of variant identifiers produced per run.
var VariantIDs = []string{"V01", "V02", "V03", "V04", "V05", "V06", "V07", "V08"}

// VariantResult is the rollup row for one variant outcome, written in a
// single insert when the variant finishes. At most one row exists per
// (run_id, variant_id); duplicate writes are rejected as a caller bug.
type VariantResult struct {
	ID                uuid.UUID     `json:"id"`
	RunID             string        `json:"run_id"`
	ShopDomain        string        `json:"shop_domain"`
	VariantID         string        `json:"variant_id"`
	Status            VariantStatus `json:"status"`
	StartedAt         *time.Time    `json:"started_at,omitempty"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty"`
	LatencyMs         *int64        `json:"latency_ms,omitempty"`
	ProviderLatencyMs *int64        `json:"provider_latency_ms,omitempty"`
	UploadLatencyMs   *int64        `json:"upload_latency_ms,omitempty"`
	ArtifactID        *uuid.UUID    `json:"artifact_id,omitempty"`
	OutputHash        *string       `json:"output_hash,omitempty"`
	ErrorCode         *string       `json:"error_code,omitempty"`
	ErrorMessage      *string       `json:"error_message,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
}
