// Package renderlog is the public API for embedding the renderlog write
// side into a rendering pipeline.
//
// The rendering app constructs a Pipeline once at startup and calls the
// write-side operations at lifecycle points:
//
//	pipe, err := renderlog.New(
//	    renderlog.WithLogger(logger),
//	    renderlog.WithDatabaseURL(dsn),
//	)
//	if err != nil { ... }
//	defer pipe.Close()
//
//	pipe.StartRun(ctx, renderlog.StartRun{...})
//	pipe.Emit(ctx, renderlog.Event{...})
//
// Every write-side operation is best-effort: failures are logged, flagged
// where a rollup row exists to flag, and never propagated — telemetry must
// not break rendering. The read side (query API, redaction, signed URLs)
// is served by cmd/renderlog over the same Postgres data.
//
// The import graph enforces a strict no-cycle rule: renderlog (root)
// imports internal/*, but internal/* never imports the root. Public types
// (Event, StartRun, etc.) are standalone structs; conversion helpers live
// here because this is the only file that sees both sides of the boundary.
package renderlog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roomcraft-ai/renderlog/internal/artifact"
	"github.com/roomcraft-ai/renderlog/internal/config"
	"github.com/roomcraft-ai/renderlog/internal/event"
	"github.com/roomcraft-ai/renderlog/internal/model"
	"github.com/roomcraft-ai/renderlog/internal/rollup"
	"github.com/roomcraft-ai/renderlog/internal/signer"
	"github.com/roomcraft-ai/renderlog/internal/storage"
	"github.com/roomcraft-ai/renderlog/migrations"
)

// ProviderError carries provider context (name, HTTP status) through an
// error chain; EmitError surfaces its fields structurally. An alias, not a
// copy — errors.As must match by identity across the boundary.
type ProviderError = event.ProviderError

// ObjectStorage is the artifact byte-storage contract for custom backends.
type ObjectStorage interface {
	// Put stores data under key with the given content type, overwriting
	// any existing object.
	Put(ctx context.Context, key, contentType string, data []byte) error
	// Get returns the object bytes and content type for key.
	Get(ctx context.Context, key string) ([]byte, string, error)
}

// Pipeline is the embedded write side: event emitter, rollup writer and
// artifact store sharing one connection pool. Construct with New().
type Pipeline struct {
	db        *storage.DB
	emitter   *event.Emitter
	rollups   *rollup.Writer
	artifacts *artifact.Store
	logger    *slog.Logger
}

// New initialises a Pipeline. It connects to the database, runs the
// embedded migrations (unless WithoutMigrations), and wires the write-side
// components. It starts no goroutines of its own — individual operations
// spawn fire-and-forget writes as needed.
func New(opts ...Option) (*Pipeline, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Configuration comes from env vars; options override.
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.artifactDir != "" {
		cfg.ArtifactDir = o.artifactDir
	}
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	if o.signingKeyPath != "" {
		cfg.SigningKeyPath = o.signingKeyPath
	}

	db, err := storage.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	if !o.skipMigrations {
		if err := db.RunMigrations(context.Background(), migrations.FS); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}

	var urlSigner *signer.Signer
	if cfg.SigningKeyPath != "" {
		urlSigner, err = signer.Load(cfg.SigningKeyPath)
	} else {
		urlSigner, err = signer.Generate()
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("signer: %w", err)
	}

	objects := o.objectStorage
	if objects == nil {
		objects, err = artifact.NewFS(cfg.ArtifactDir)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("artifact storage: %w", err)
		}
	}

	emitter := event.New(db, logger)
	return &Pipeline{
		db:        db,
		emitter:   emitter,
		rollups:   rollup.NewWriter(db, emitter, logger),
		artifacts: artifact.NewStore(objects, db, urlSigner, cfg.BaseURL, logger),
		logger:    logger,
	}, nil
}

// Close releases the database pool. In-flight fire-and-forget writes race
// it; callers that care should stop emitting before closing.
func (p *Pipeline) Close() {
	p.db.Close()
}

// Emit records an event fire-and-forget. Never raises, never blocks past
// handing the write off.
func (p *Pipeline) Emit(ctx context.Context, e Event) {
	p.emitter.Emit(ctx, toModelEvent(e))
}

// EmitAwaitable records an event and waits for the write, returning
// whether it persisted. For call sites that can tolerate the latency and
// want the boolean; it still never raises.
func (p *Pipeline) EmitAwaitable(ctx context.Context, e Event) bool {
	return p.emitter.EmitAwaitable(ctx, toModelEvent(e))
}

// EmitError normalizes err into a structured payload and emits it at
// error severity. extra entries are merged in (normalized fields win).
func (p *Pipeline) EmitError(ctx context.Context, e Event, err error, extra map[string]any) {
	p.emitter.EmitError(ctx, toModelEvent(e), err, extra)
}

// StartRun inserts the run rollup row and emits run.created. Returns false
// when the row insert fails; rendering proceeds either way.
func (p *Pipeline) StartRun(ctx context.Context, in StartRun) bool {
	return p.rollups.StartRun(ctx, rollup.StartRunInput{
		RunID:           in.RunID,
		ShopDomain:      in.ShopDomain,
		RequestID:       in.RequestID,
		Facts:           in.Facts,
		PlacementConfig: in.PlacementConfig,
		PipelineConfig:  in.PipelineConfig,
	})
}

// RecordVariantStart emits variant.started. No rollup row is written until
// the variant reaches a terminal state.
func (p *Pipeline) RecordVariantStart(ctx context.Context, shopDomain, requestID, runID, variantID string) {
	p.rollups.RecordVariantStart(ctx, shopDomain, requestID, runID, variantID)
}

// RecordVariantResult inserts the variant rollup row and emits
// variant.completed. On failure the parent run is flagged as having
// dropped telemetry and false is returned.
func (p *Pipeline) RecordVariantResult(ctx context.Context, in VariantResult) bool {
	return p.rollups.RecordVariantResult(ctx, rollup.VariantResultInput{
		RunID:             in.RunID,
		ShopDomain:        in.ShopDomain,
		RequestID:         in.RequestID,
		VariantID:         in.VariantID,
		Status:            model.VariantStatus(in.Status),
		StartedAt:         in.StartedAt,
		CompletedAt:       in.CompletedAt,
		LatencyMs:         in.LatencyMs,
		ProviderLatencyMs: in.ProviderLatencyMs,
		UploadLatencyMs:   in.UploadLatencyMs,
		ArtifactID:        in.ArtifactID,
		OutputHash:        in.OutputHash,
		ErrorCode:         in.ErrorCode,
		ErrorMessage:      in.ErrorMessage,
	})
}

// CompleteRun transitions the run to its terminal status and emits
// run.completed. Failure flags dropped telemetry like RecordVariantResult.
func (p *Pipeline) CompleteRun(ctx context.Context, in CompleteRun) bool {
	return p.rollups.CompleteRun(ctx, rollup.CompleteRunInput{
		RunID:        in.RunID,
		ShopDomain:   in.ShopDomain,
		RequestID:    in.RequestID,
		Status:       model.RunStatus(in.Status),
		SuccessCount: in.SuccessCount,
		FailCount:    in.FailCount,
		TimeoutCount: in.TimeoutCount,
		DurationMs:   in.DurationMs,
	})
}

// StoreArtifact uploads the object, hashes it, and indexes it. Returns the
// new artifact ID, or nil on any failure.
func (p *Pipeline) StoreArtifact(ctx context.Context, in Artifact) *uuid.UUID {
	return p.artifacts.Store(ctx, artifact.StoreInput{
		ShopDomain:  in.ShopDomain,
		RequestID:   in.RequestID,
		RunID:       in.RunID,
		VariantID:   in.VariantID,
		Type:        model.ArtifactType(in.Type),
		ContentType: in.ContentType,
		Data:        in.Data,
		Width:       in.Width,
		Height:      in.Height,
		Retention:   model.RetentionClass(in.Retention),
	})
}

// IndexExistingArtifact indexes an object already written to storage under
// in.StorageKey, without re-uploading or hashing it. Returns the new
// artifact ID, or nil on failure.
func (p *Pipeline) IndexExistingArtifact(ctx context.Context, in IndexExisting) *uuid.UUID {
	return p.artifacts.IndexExisting(ctx, artifact.IndexExistingInput{
		ShopDomain:  in.ShopDomain,
		RequestID:   in.RequestID,
		RunID:       in.RunID,
		VariantID:   in.VariantID,
		Type:        model.ArtifactType(in.Type),
		ContentType: in.ContentType,
		StorageKey:  in.StorageKey,
		SizeBytes:   in.SizeBytes,
		Width:       in.Width,
		Height:      in.Height,
		Retention:   model.RetentionClass(in.Retention),
	})
}

// SignedArtifactURL mints a time-limited download URL for an artifact, or
// returns "" when the artifact is unknown or signing fails.
func (p *Pipeline) SignedArtifactURL(ctx context.Context, shopDomain string, id uuid.UUID, ttl time.Duration) string {
	return p.artifacts.SignedURL(ctx, shopDomain, id, ttl)
}

// toModelEvent converts a public Event to the internal model type. Lives
// here because this is the only file that imports both sides.
func toModelEvent(e Event) model.TelemetryEvent {
	return model.TelemetryEvent{
		ShopDomain: e.ShopDomain,
		RequestID:  e.RequestID,
		RunID:      e.RunID,
		VariantID:  e.VariantID,
		Source:     model.EventSource(e.Source),
		Type:       e.Type,
		Severity:   model.Severity(e.Severity),
		Payload:    e.Payload,
	}
}
