package query

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roomcraft-ai/renderlog/internal/model"
)

// DebugBundle is the full unredacted export of one run, for operators
// reproducing a rendering problem offline.
type DebugBundle struct {
	Run        model.Run              `json:"run"`
	Variants   []model.VariantResult  `json:"variants"`
	Events     []model.TelemetryEvent `json:"events"`
	Artifacts  []model.ArtifactView   `json:"artifacts"`
	ExportedAt time.Time              `json:"exported_at"`
}

// ExportDebugBundle assembles the bundle. The run row is fetched first so
// a missing run fails fast; the three collections load concurrently.
func (s *Service) ExportDebugBundle(ctx context.Context, shopDomain, runID string) (DebugBundle, error) {
	run, err := s.store.GetRun(ctx, shopDomain, runID)
	if err != nil {
		return DebugBundle{}, err
	}

	bundle := DebugBundle{Run: run, ExportedAt: time.Now().UTC()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		variants, err := s.store.GetVariantResultsByRun(gctx, shopDomain, runID)
		if err != nil {
			return fmt.Errorf("bundle variants: %w", err)
		}
		bundle.Variants = variants
		return nil
	})
	g.Go(func() error {
		events, err := s.store.GetEventsByRun(gctx, shopDomain, runID, 0)
		if err != nil {
			return fmt.Errorf("bundle events: %w", err)
		}
		bundle.Events = events
		return nil
	})
	g.Go(func() error {
		artifacts, err := s.GetRunArtifacts(gctx, shopDomain, runID, ViewInternal)
		if err != nil {
			return fmt.Errorf("bundle artifacts: %w", err)
		}
		bundle.Artifacts = artifacts
		return nil
	})
	if err := g.Wait(); err != nil {
		return DebugBundle{}, fmt.Errorf("query: export %s: %w", runID, err)
	}
	return bundle, nil
}
