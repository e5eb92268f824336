package renderlog

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Public write-side types. Standalone structs with no internal imports;
// conversion to internal model types happens in renderlog.go, the only
// file that sees both sides of the boundary.

// Severity levels for events.
const (
	SeverityDebug = "debug"
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)

// Event sources, naming the stage of the rendering stack that emitted.
const (
	SourceStorefront  = "storefront"
	SourceProxy       = "proxy"
	SourceAdmin       = "admin"
	SourcePreparation = "preparation"
	SourcePrompt      = "prompt"
	SourceRender      = "render"
	SourceProvider    = "provider"
	SourceStorage     = "storage"
)

// Run terminal statuses for CompleteRun.
const (
	RunComplete = "complete"
	RunPartial  = "partial"
	RunFailed   = "failed"
)

// Variant result statuses.
const (
	VariantSuccess = "success"
	VariantFailed  = "failed"
	VariantTimeout = "timeout"
)

// Artifact types.
const (
	ArtifactRoomImage            = "room_image"
	ArtifactPreparedProductImage = "prepared_product_image"
	ArtifactProviderRequest      = "provider_request"
	ArtifactProviderResponse     = "provider_response"
	ArtifactOutputImage          = "output_image"
	ArtifactDebugBundle          = "debug_bundle"
)

// Retention classes. Empty means standard.
const (
	RetentionShort     = "short"     // 7 days
	RetentionStandard  = "standard"  // 30 days
	RetentionLong      = "long"      // 90 days
	RetentionSensitive = "sensitive" // 30 days, hidden from the external view
)

// Event is a single telemetry event. Type is free-form dot-separated
// (e.g. "provider.request"); RequestID is required for correlation.
type Event struct {
	ShopDomain string
	RequestID  string
	RunID      *string
	VariantID  *string
	Type       string
	Severity   string // defaults to info
	Source     string
	Payload    map[string]any
}

// StartRun describes a new rendering run entering the log.
type StartRun struct {
	RunID      string
	ShopDomain string
	RequestID  string

	// Input snapshots, stored verbatim and hidden from the external view.
	Facts           json.RawMessage
	PlacementConfig json.RawMessage
	PipelineConfig  json.RawMessage
}

// VariantResult is the per-variant rollup row recorded when a variant
// reaches a terminal state.
type VariantResult struct {
	RunID      string
	ShopDomain string
	RequestID  string
	VariantID  string
	Status     string // VariantSuccess, VariantFailed or VariantTimeout

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

// CompleteRun transitions a run to its terminal status with final counters.
type CompleteRun struct {
	RunID        string
	ShopDomain   string
	RequestID    string
	Status       string // RunComplete, RunPartial or RunFailed
	SuccessCount int
	FailCount    int
	TimeoutCount int
	DurationMs   int64
}

// IndexExisting describes an object already written to storage elsewhere
// (e.g. by the upload path itself): indexed by key, no re-upload, no hash.
type IndexExisting struct {
	ShopDomain  string
	RequestID   string
	RunID       *string
	VariantID   *string
	Type        string
	ContentType string
	StorageKey  string
	SizeBytes   *int64
	Width       *int
	Height      *int
	Retention   string // defaults to standard
}

// Artifact describes a binary object to upload and index.
type Artifact struct {
	ShopDomain  string
	RequestID   string
	RunID       *string
	VariantID   *string
	Type        string
	ContentType string
	Data        []byte
	Width       *int
	Height      *int
	Retention   string // defaults to standard
}
