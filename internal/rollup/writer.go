// Package rollup maintains the fast-query aggregates (runs and variant
// results) that dashboards read instead of scanning the event log.
//
// Rollups are convenience views, not the source of truth. Each entry point
// returns a success boolean and never panics or raises; a failed write
// marks the parent run's telemetry_dropped flag so the divergence between
// rollup and log is itself observable.
package rollup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roomcraft-ai/renderlog/internal/besteffort"
	"github.com/roomcraft-ai/renderlog/internal/event"
	"github.com/roomcraft-ai/renderlog/internal/model"
)

// Store is the rollup write dependency. *storage.DB satisfies it.
type Store interface {
	InsertRun(ctx context.Context, run model.Run) error
	InsertVariantResult(ctx context.Context, v model.VariantResult) error
	CompleteRun(ctx context.Context, shopDomain, id string, status model.RunStatus, success, fail, timeout int, completedAt time.Time, durationMs int64) error
	MarkTelemetryDropped(ctx context.Context, shopDomain, id string) error
}

// Writer records run and variant outcomes.
type Writer struct {
	store   Store
	emitter *event.Emitter
	logger  *slog.Logger
}

// NewWriter creates a rollup writer. The emitter is used for the companion
// log events; its failures never affect the returned booleans.
func NewWriter(store Store, emitter *event.Emitter, logger *slog.Logger) *Writer {
	return &Writer{store: store, emitter: emitter, logger: logger}
}

// StartRunInput carries everything needed to open a run rollup.
type StartRunInput struct {
	RunID           string
	ShopDomain      string
	RequestID       string
	Facts           json.RawMessage
	PlacementConfig json.RawMessage
	PipelineConfig  json.RawMessage
}

// StartRun inserts the RUNNING row and emits run.created. Returns false
// when the row insert fails; the companion event is best-effort either way.
func (w *Writer) StartRun(ctx context.Context, in StartRunInput) bool {
	now := time.Now().UTC()
	run := model.Run{
		ID:              in.RunID,
		ShopDomain:      in.ShopDomain,
		RequestID:       in.RequestID,
		Status:          model.RunStatusRunning,
		FactsSnapshot:   in.Facts,
		PlacementConfig: in.PlacementConfig,
		PipelineConfig:  in.PipelineConfig,
		StartedAt:       now,
		CreatedAt:       now,
	}
	if len(in.Facts) > 0 {
		sum := sha256.Sum256(in.Facts)
		h := hex.EncodeToString(sum[:])
		run.FactsHash = &h
	}

	ok := besteffort.Do(ctx, w.logger, "rollup.start_run", func(ctx context.Context) error {
		return w.store.InsertRun(ctx, run)
	}, "run_id", in.RunID, "shop_domain", in.ShopDomain)

	base := w.runEvent(in.ShopDomain, in.RequestID, in.RunID)
	if !ok {
		w.emitter.EmitError(ctx, base, errRollupWrite("start_run"), map[string]any{"run_id": in.RunID})
		return false
	}
	base.Type = "run.created"
	w.emitter.Emit(ctx, base)
	return true
}

// RecordVariantStart emits the variant.started log event only. Starts are
// ephemeral and never get a rollup row, so there is nothing that can fail
// into telemetry_dropped here.
func (w *Writer) RecordVariantStart(ctx context.Context, shopDomain, requestID, runID, variantID string) {
	e := w.runEvent(shopDomain, requestID, runID)
	e.VariantID = &variantID
	e.Type = "variant.started"
	w.emitter.Emit(ctx, e)
}

// VariantResultInput carries one terminal variant outcome.
type VariantResultInput struct {
	RunID             string
	ShopDomain        string
	RequestID         string
	VariantID         string
	Status            model.VariantStatus
	StartedAt         *time.Time
	CompletedAt       *time.Time
	LatencyMs         *int64
	ProviderLatencyMs *int64
	UploadLatencyMs   *int64
	ArtifactID        *uuid.UUID
	OutputHash        *string
	ErrorCode         *string
	ErrorMessage      *string
}

// RecordVariantResult inserts the variant row and emits variant.completed.
// On insert failure it asynchronously marks the parent run's
// telemetry_dropped flag — a separate, independently-failing write whose
// own failure is merely logged.
func (w *Writer) RecordVariantResult(ctx context.Context, in VariantResultInput) bool {
	v := model.VariantResult{
		ID:                uuid.New(),
		RunID:             in.RunID,
		ShopDomain:        in.ShopDomain,
		VariantID:         in.VariantID,
		Status:            in.Status,
		StartedAt:         in.StartedAt,
		CompletedAt:       in.CompletedAt,
		LatencyMs:         in.LatencyMs,
		ProviderLatencyMs: in.ProviderLatencyMs,
		UploadLatencyMs:   in.UploadLatencyMs,
		ArtifactID:        in.ArtifactID,
		OutputHash:        in.OutputHash,
		ErrorCode:         in.ErrorCode,
		ErrorMessage:      in.ErrorMessage,
		CreatedAt:         time.Now().UTC(),
	}

	ok := besteffort.Do(ctx, w.logger, "rollup.variant_result", func(ctx context.Context) error {
		return w.store.InsertVariantResult(ctx, v)
	}, "run_id", in.RunID, "variant_id", in.VariantID)

	if !ok {
		w.markDropped(ctx, in.ShopDomain, in.RunID)
		return false
	}

	e := w.runEvent(in.ShopDomain, in.RequestID, in.RunID)
	e.VariantID = &in.VariantID
	e.Type = "variant.completed"
	e.Payload = map[string]any{"status": string(in.Status)}
	if in.LatencyMs != nil {
		e.Payload["latency_ms"] = *in.LatencyMs
	}
	w.emitter.Emit(ctx, e)
	return true
}

// CompleteRunInput carries the single terminal transition for a run.
// Counters are caller-supplied totals, set once — never incremented live.
type CompleteRunInput struct {
	RunID        string
	ShopDomain   string
	RequestID    string
	Status       model.RunStatus
	SuccessCount int
	FailCount    int
	TimeoutCount int
	DurationMs   int64
}

// CompleteRun transitions the run to its terminal status and emits
// run.completed. Failure marks telemetry_dropped like RecordVariantResult.
func (w *Writer) CompleteRun(ctx context.Context, in CompleteRunInput) bool {
	ok := besteffort.Do(ctx, w.logger, "rollup.complete_run", func(ctx context.Context) error {
		return w.store.CompleteRun(ctx, in.ShopDomain, in.RunID, in.Status,
			in.SuccessCount, in.FailCount, in.TimeoutCount, time.Now().UTC(), in.DurationMs)
	}, "run_id", in.RunID, "status", string(in.Status))

	if !ok {
		w.markDropped(ctx, in.ShopDomain, in.RunID)
		return false
	}

	e := w.runEvent(in.ShopDomain, in.RequestID, in.RunID)
	e.Type = "run.completed"
	e.Payload = map[string]any{
		"status":        string(in.Status),
		"success_count": in.SuccessCount,
		"fail_count":    in.FailCount,
		"timeout_count": in.TimeoutCount,
		"duration_ms":   in.DurationMs,
	}
	w.emitter.Emit(ctx, e)
	return true
}

// markDropped flags the run asynchronously. No retry: a failure here just
// means the gap stays invisible, which the log still records.
func (w *Writer) markDropped(ctx context.Context, shopDomain, runID string) {
	besteffort.Go(ctx, w.logger, "rollup.mark_dropped", func(ctx context.Context) error {
		return w.store.MarkTelemetryDropped(ctx, shopDomain, runID)
	}, "run_id", runID)
}

func (w *Writer) runEvent(shopDomain, requestID, runID string) model.TelemetryEvent {
	return model.TelemetryEvent{
		ShopDomain: shopDomain,
		RequestID:  requestID,
		RunID:      &runID,
		Source:     model.SourceRender,
	}
}

type errRollupWrite string

func (e errRollupWrite) Error() string { return "rollup write failed: " + string(e) }
