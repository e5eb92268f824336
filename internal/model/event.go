package model

import (
	"time"

	"github.com/google/uuid"
)

// EventSource identifies where in the rendering stack an event originated.
type EventSource string

const (
	SourceStorefront  EventSource = "storefront"
	SourceProxy       EventSource = "proxy"
	SourceAdmin       EventSource = "admin"
	SourcePreparation EventSource = "preparation"
	SourcePrompt      EventSource = "prompt"
	SourceRender      EventSource = "render"
	SourceProvider    EventSource = "provider"
	SourceStorage     EventSource = "storage"
)

// Severity is the log level of an event.
type Severity string

const (
	SeverityDebug Severity = "debug"
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// EventTypeError is the reserved type for events produced by EmitError.
// All other types are free-form dotted names ("run.created", "provider.call").
const EventTypeError = "error"

// CurrentSchemaVersion is stamped on events whose input omits a version,
// so payload shapes can evolve without breaking old readers.
const CurrentSchemaVersion = 1

// MaxPayloadBytes is the cap on a serialized event payload. Payloads over
// the cap are replaced with a truncation summary, never dropped.
const MaxPayloadBytes = 10_000

// TelemetryEvent is one row in the append-only event log. The log is the
// source of truth; rollup tables are derived views. Never mutated.
type TelemetryEvent struct {
	ID            uuid.UUID      `json:"id"`
	ShopDomain    string         `json:"shop_domain"`
	RequestID     string         `json:"request_id"`
	RunID         *string        `json:"run_id,omitempty"`
	VariantID     *string        `json:"variant_id,omitempty"`
	TraceID       *string        `json:"trace_id,omitempty"`
	SpanID        *string        `json:"span_id,omitempty"`
	ParentSpanID  *string        `json:"parent_span_id,omitempty"`
	Source        EventSource    `json:"source"`
	Type          string         `json:"type"`
	Severity      Severity       `json:"severity"`
	Payload       map[string]any `json:"payload,omitempty"`
	SchemaVersion int            `json:"schema_version"`
	CreatedAt     time.Time      `json:"created_at"`
}

// ValidSource reports whether s is one of the enumerated event origins.
func ValidSource(s EventSource) bool {
	switch s {
	case SourceStorefront, SourceProxy, SourceAdmin, SourcePreparation,
		SourcePrompt, SourceRender, SourceProvider, SourceStorage:
		return true
	}
	return false
}

// ValidSeverity reports whether s is a known severity level.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityDebug, SeverityInfo, SeverityWarn, SeverityError:
		return true
	}
	return false
}
