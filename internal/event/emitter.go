// Package event implements the telemetry event emitter.
//
// The emitter is the only writer to the append-only event log. Its contract
// is absolute: no call ever raises or blocks the caller past handing the
// write off. Persistence failures are logged to the operational log with
// the event's type and correlation ids, and the caller proceeds as if the
// write succeeded.
package event

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roomcraft-ai/renderlog/internal/besteffort"
	"github.com/roomcraft-ai/renderlog/internal/model"
	"github.com/roomcraft-ai/renderlog/internal/payload"
)

// Store is the event log write dependency. *storage.DB satisfies it.
type Store interface {
	InsertEvent(ctx context.Context, e model.TelemetryEvent) error
}

// Emitter writes telemetry events to the append-only log.
type Emitter struct {
	store  Store
	logger *slog.Logger
}

// New creates an Emitter. Both dependencies are required.
func New(store Store, logger *slog.Logger) *Emitter {
	return &Emitter{store: store, logger: logger}
}

// Emit records an event fire-and-forget: the write happens on a detached
// goroutine and the call returns immediately. Never raises.
func (em *Emitter) Emit(ctx context.Context, e model.TelemetryEvent) {
	prepared := em.prepare(e)
	besteffort.Go(ctx, em.logger, "event.emit", func(ctx context.Context) error {
		return em.store.InsertEvent(ctx, prepared)
	}, correlationFields(prepared)...)
}

// EmitAwaitable records an event and waits for the write, returning whether
// it persisted. For call sites that can tolerate the latency and want the
// boolean; it still never raises.
func (em *Emitter) EmitAwaitable(ctx context.Context, e model.TelemetryEvent) bool {
	prepared := em.prepare(e)
	return besteffort.Do(ctx, em.logger, "event.emit", func(ctx context.Context) error {
		return em.store.InsertEvent(ctx, prepared)
	}, correlationFields(prepared)...)
}

// EmitError normalizes an arbitrary error into a structured payload and
// emits it fire-and-forget at error severity with the reserved error type.
// extra entries are merged into the payload (normalized fields win).
func (em *Emitter) EmitError(ctx context.Context, base model.TelemetryEvent, err error, extra map[string]any) {
	p := make(map[string]any, len(extra)+4)
	for k, v := range extra {
		p[k] = v
	}
	for k, v := range NormalizeError(err) {
		p[k] = v
	}
	base.Type = model.EventTypeError
	base.Severity = model.SeverityError
	base.Payload = p
	em.Emit(ctx, base)
}

// prepare applies defaults, server identity and the payload size cap.
func (em *Emitter) prepare(e model.TelemetryEvent) model.TelemetryEvent {
	e.ID = uuid.New()
	e.CreatedAt = time.Now().UTC()
	if !model.ValidSeverity(e.Severity) {
		e.Severity = model.SeverityInfo
	}
	if e.SchemaVersion == 0 {
		e.SchemaVersion = model.CurrentSchemaVersion
	}
	if e.RequestID == "" {
		// Required for correlation. The event is still written — the log
		// never silently drops — but the gap is worth an operational note.
		em.logger.Warn("event missing request_id", "type", e.Type, "source", e.Source)
	}
	e.Payload = payload.Bound(e.Payload, model.MaxPayloadBytes)
	return e
}

func correlationFields(e model.TelemetryEvent) []any {
	fields := []any{"type", e.Type, "shop_domain", e.ShopDomain, "request_id", e.RequestID}
	if e.RunID != nil {
		fields = append(fields, "run_id", *e.RunID)
	}
	if e.VariantID != nil {
		fields = append(fields, "variant_id", *e.VariantID)
	}
	return fields
}
