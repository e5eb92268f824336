// Package query is the read side of the pipeline: everything the HTTP API
// serves comes through here. The service has two views of the same data —
// the full internal view for operators and the redacted external view for
// partner-facing tokens — and the view is chosen per request, never
// configured globally.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roomcraft-ai/renderlog/internal/model"
	"github.com/roomcraft-ai/renderlog/internal/payload"
	"github.com/roomcraft-ai/renderlog/internal/storage"
)

// View selects how much a response reveals.
type View int

const (
	// ViewInternal returns everything: payloads, snapshots, all artifacts.
	ViewInternal View = iota
	// ViewExternal strips sensitive payload keys, omits snapshots, and
	// hides sensitive artifacts.
	ViewExternal
)

const (
	defaultLimit = 50
	maxLimit     = 200

	signedURLTTL   = time.Hour
	topErrorGroups = 5
	errorWindow    = 7 * 24 * time.Hour
	errorSampleCap = 5_000
)

// Store is the read dependency. *storage.DB satisfies it.
type Store interface {
	GetRun(ctx context.Context, shopDomain, id string) (model.Run, error)
	ListRuns(ctx context.Context, p storage.ListRunsParams) ([]model.Run, error)
	CountRuns(ctx context.Context, f model.RunFilters) (int, error)
	GetVariantResultsByRun(ctx context.Context, shopDomain, runID string) ([]model.VariantResult, error)
	GetEventsByRun(ctx context.Context, shopDomain, runID string, limit int) ([]model.TelemetryEvent, error)
	GetEventsByRequest(ctx context.Context, shopDomain, requestID string, limit int) ([]model.TelemetryEvent, error)
	GetArtifactsByRun(ctx context.Context, shopDomain, runID string) ([]model.Artifact, error)
	GetArtifact(ctx context.Context, shopDomain string, id uuid.UUID) (model.Artifact, error)
	CountTerminalRuns(ctx context.Context, since time.Time) (storage.RunWindowCounts, error)
	LatencySamples(ctx context.Context, since time.Time, limit int) ([]int64, error)
	ListShopStats(ctx context.Context) ([]model.ShopStats, error)
	GetShopStats(ctx context.Context, shopDomain string) (model.ShopStats, error)
	ErrorMessagesByShop(ctx context.Context, shopDomain string, since time.Time, limit int) ([]string, error)
}

// URLSigner mints time-limited artifact download URLs.
// *artifact.Store satisfies it.
type URLSigner interface {
	SignedURLForKey(key string, ttl time.Duration) string
}

// Service answers read queries with per-view redaction.
type Service struct {
	store  Store
	signer URLSigner
}

// NewService creates a query service.
func NewService(store Store, signer URLSigner) *Service {
	return &Service{store: store, signer: signer}
}

// RunPage is one page of the run list.
type RunPage struct {
	Runs       []model.Run
	HasMore    bool
	NextCursor string
	Total      *int
	Limit      int
}

// ListRuns pages through runs newest-first. cursor is the opaque position
// from a previous page, empty for the first. includeTotal runs a separate
// count query.
func (s *Service) ListRuns(ctx context.Context, filters model.RunFilters, cursor string, limit int, includeTotal bool, view View) (RunPage, error) {
	limit = clampLimit(limit)

	params := storage.ListRunsParams{Filters: filters, Limit: limit + 1}
	if cursor != "" {
		c, err := DecodeCursor(cursor)
		if err != nil {
			return RunPage{}, err
		}
		params.BeforeCreatedAt = &c.CreatedAt
		params.BeforeID = &c.ID
	}

	runs, err := s.store.ListRuns(ctx, params)
	if err != nil {
		return RunPage{}, fmt.Errorf("query: list runs: %w", err)
	}

	page := RunPage{Limit: limit}
	if len(runs) > limit {
		page.HasMore = true
		runs = runs[:limit]
	}
	if page.HasMore && len(runs) > 0 {
		last := runs[len(runs)-1]
		page.NextCursor = EncodeCursor(Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	if view == ViewExternal {
		runs = stripRunSnapshots(runs)
	}
	page.Runs = runs

	if includeTotal {
		total, err := s.store.CountRuns(ctx, filters)
		if err != nil {
			return RunPage{}, fmt.Errorf("query: count runs: %w", err)
		}
		page.Total = &total
	}
	return page, nil
}

// GetRunDetail returns one run with its variants, events and artifacts.
func (s *Service) GetRunDetail(ctx context.Context, shopDomain, runID string, view View) (model.RunDetail, error) {
	run, err := s.store.GetRun(ctx, shopDomain, runID)
	if err != nil {
		return model.RunDetail{}, err
	}

	variants, err := s.store.GetVariantResultsByRun(ctx, shopDomain, runID)
	if err != nil {
		return model.RunDetail{}, fmt.Errorf("query: run variants: %w", err)
	}
	events, err := s.GetRunEvents(ctx, shopDomain, runID, view)
	if err != nil {
		return model.RunDetail{}, err
	}
	artifacts, err := s.GetRunArtifacts(ctx, shopDomain, runID, view)
	if err != nil {
		return model.RunDetail{}, err
	}

	if view == ViewExternal {
		stripSnapshots(&run)
	}
	return model.RunDetail{Run: run, Variants: variants, Events: events, Artifacts: artifacts}, nil
}

// GetRun returns the run row alone, without its collections.
func (s *Service) GetRun(ctx context.Context, shopDomain, runID string, view View) (model.Run, error) {
	run, err := s.store.GetRun(ctx, shopDomain, runID)
	if err != nil {
		return model.Run{}, err
	}
	if view == ViewExternal {
		stripSnapshots(&run)
	}
	return run, nil
}

// GetRunEvents returns a run's events oldest-first, redacted per view.
func (s *Service) GetRunEvents(ctx context.Context, shopDomain, runID string, view View) ([]model.TelemetryEvent, error) {
	events, err := s.store.GetEventsByRun(ctx, shopDomain, runID, 0)
	if err != nil {
		return nil, fmt.Errorf("query: run events: %w", err)
	}
	if view == ViewExternal {
		events = redactEvents(events)
	}
	return events, nil
}

// GetRequestEvents returns events attached to a request id rather than a
// run (runless flows such as chat quick renders), redacted per view.
func (s *Service) GetRequestEvents(ctx context.Context, shopDomain, requestID string, view View) ([]model.TelemetryEvent, error) {
	events, err := s.store.GetEventsByRequest(ctx, shopDomain, requestID, 0)
	if err != nil {
		return nil, fmt.Errorf("query: request events: %w", err)
	}
	if view == ViewExternal {
		events = redactEvents(events)
	}
	return events, nil
}

// GetRunArtifacts returns a run's artifacts with signed URLs. The external
// view omits sensitive types and the sensitive retention class entirely.
func (s *Service) GetRunArtifacts(ctx context.Context, shopDomain, runID string, view View) ([]model.ArtifactView, error) {
	artifacts, err := s.store.GetArtifactsByRun(ctx, shopDomain, runID)
	if err != nil {
		return nil, fmt.Errorf("query: run artifacts: %w", err)
	}

	views := make([]model.ArtifactView, 0, len(artifacts))
	for _, a := range artifacts {
		if view == ViewExternal && !a.ExternallyVisible() {
			continue
		}
		views = append(views, s.artifactView(a))
	}
	return views, nil
}

// GetArtifact returns one artifact with a signed URL, or storage.ErrNotFound.
// Sensitive artifacts are not found in the external view rather than
// forbidden, so their existence is not revealed.
func (s *Service) GetArtifact(ctx context.Context, shopDomain string, id uuid.UUID, view View) (model.ArtifactView, error) {
	a, err := s.store.GetArtifact(ctx, shopDomain, id)
	if err != nil {
		return model.ArtifactView{}, err
	}
	if view == ViewExternal && !a.ExternallyVisible() {
		return model.ArtifactView{}, storage.ErrNotFound
	}
	return s.artifactView(a), nil
}

// ListShops returns per-shop aggregates, operator view only.
func (s *Service) ListShops(ctx context.Context) ([]model.ShopStats, error) {
	stats, err := s.store.ListShopStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("query: list shops: %w", err)
	}
	return stats, nil
}

// GetShop returns one shop's aggregate with its top error groups over the
// last week.
func (s *Service) GetShop(ctx context.Context, shopDomain string) (model.ShopStats, error) {
	stats, err := s.store.GetShopStats(ctx, shopDomain)
	if err != nil {
		return model.ShopStats{}, err
	}

	messages, err := s.store.ErrorMessagesByShop(ctx, shopDomain, time.Now().UTC().Add(-errorWindow), errorSampleCap)
	if err != nil {
		return model.ShopStats{}, fmt.Errorf("query: shop errors: %w", err)
	}
	stats.TopErrors = GroupErrors(messages, topErrorGroups)
	return stats, nil
}

func (s *Service) artifactView(a model.Artifact) model.ArtifactView {
	return model.ArtifactView{
		Artifact: a,
		URL:      s.signer.SignedURLForKey(a.StorageKey, signedURLTTL),
	}
}

// stripSnapshots removes the config blobs external callers never see.
// The facts hash stays: it lets partners confirm which product data a
// render used without seeing the data itself.
func stripSnapshots(r *model.Run) {
	r.FactsSnapshot = nil
	r.PlacementConfig = nil
	r.PipelineConfig = nil
}

// The external view works on copies. A Store may hand back shared backing
// data (a cache, the test fakes), and writing the narrow view through it
// would leak into every later internal read.

func stripRunSnapshots(runs []model.Run) []model.Run {
	out := make([]model.Run, len(runs))
	for i, r := range runs {
		stripSnapshots(&r)
		out[i] = r
	}
	return out
}

func redactEvents(events []model.TelemetryEvent) []model.TelemetryEvent {
	out := make([]model.TelemetryEvent, len(events))
	for i, e := range events {
		e.Payload, _ = payload.Redact(e.Payload)
		out[i] = e
	}
	return out
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
