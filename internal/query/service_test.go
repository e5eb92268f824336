package query

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomcraft-ai/renderlog/internal/model"
	"github.com/roomcraft-ai/renderlog/internal/storage"
)

// fakeQueryStore serves canned data; list queries honor keyset cursors so
// pagination behaves like the real store.
type fakeQueryStore struct {
	runs      []model.Run // descending (created_at, id)
	variants  map[string][]model.VariantResult
	events    map[string][]model.TelemetryEvent
	artifacts map[string][]model.Artifact
	byID      map[uuid.UUID]model.Artifact

	requestEvents map[string][]model.TelemetryEvent

	shopStats    map[string]model.ShopStats
	errorMsgs    map[string][]string
	windowCounts func(since time.Time) (total, failed int)
	latencies    []int64
}

func newFakeQueryStore() *fakeQueryStore {
	return &fakeQueryStore{
		variants:  map[string][]model.VariantResult{},
		events:    map[string][]model.TelemetryEvent{},
		artifacts: map[string][]model.Artifact{},
		byID:      map[uuid.UUID]model.Artifact{},
		shopStats: map[string]model.ShopStats{},
		errorMsgs: map[string][]string{},

		requestEvents: map[string][]model.TelemetryEvent{},
	}
}

func (f *fakeQueryStore) GetRun(_ context.Context, shopDomain, id string) (model.Run, error) {
	for _, r := range f.runs {
		if r.ID == id && r.ShopDomain == shopDomain {
			return r, nil
		}
	}
	return model.Run{}, storage.ErrNotFound
}

func (f *fakeQueryStore) ListRuns(_ context.Context, p storage.ListRunsParams) ([]model.Run, error) {
	var out []model.Run
	for _, r := range f.runs {
		if p.BeforeCreatedAt != nil {
			if !r.CreatedAt.Before(*p.BeforeCreatedAt) && !(r.CreatedAt.Equal(*p.BeforeCreatedAt) && r.ID < *p.BeforeID) {
				continue
			}
		}
		if p.Filters.ShopDomain != nil && r.ShopDomain != *p.Filters.ShopDomain {
			continue
		}
		if p.Filters.Status != nil && r.Status != *p.Filters.Status {
			continue
		}
		out = append(out, r)
		if len(out) == p.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeQueryStore) CountRuns(_ context.Context, _ model.RunFilters) (int, error) {
	return len(f.runs), nil
}

func (f *fakeQueryStore) GetVariantResultsByRun(_ context.Context, _, runID string) ([]model.VariantResult, error) {
	return f.variants[runID], nil
}

func (f *fakeQueryStore) GetEventsByRun(_ context.Context, _, runID string, _ int) ([]model.TelemetryEvent, error) {
	return f.events[runID], nil
}

func (f *fakeQueryStore) GetEventsByRequest(_ context.Context, _, requestID string, _ int) ([]model.TelemetryEvent, error) {
	return f.requestEvents[requestID], nil
}

func (f *fakeQueryStore) GetArtifactsByRun(_ context.Context, _, runID string) ([]model.Artifact, error) {
	return f.artifacts[runID], nil
}

func (f *fakeQueryStore) GetArtifact(_ context.Context, shopDomain string, id uuid.UUID) (model.Artifact, error) {
	a, ok := f.byID[id]
	if !ok || a.ShopDomain != shopDomain {
		return model.Artifact{}, storage.ErrNotFound
	}
	return a, nil
}

func (f *fakeQueryStore) CountTerminalRuns(_ context.Context, since time.Time) (storage.RunWindowCounts, error) {
	if f.windowCounts == nil {
		return storage.RunWindowCounts{}, nil
	}
	total, failed := f.windowCounts(since)
	return storage.RunWindowCounts{Total: total, Failed: failed}, nil
}

func (f *fakeQueryStore) LatencySamples(_ context.Context, _ time.Time, _ int) ([]int64, error) {
	return f.latencies, nil
}

func (f *fakeQueryStore) ListShopStats(_ context.Context) ([]model.ShopStats, error) {
	var out []model.ShopStats
	for _, s := range f.shopStats {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeQueryStore) GetShopStats(_ context.Context, shopDomain string) (model.ShopStats, error) {
	s, ok := f.shopStats[shopDomain]
	if !ok {
		return model.ShopStats{}, storage.ErrNotFound
	}
	return s, nil
}

func (f *fakeQueryStore) ErrorMessagesByShop(_ context.Context, shopDomain string, _ time.Time, _ int) ([]string, error) {
	return f.errorMsgs[shopDomain], nil
}

type fakeSigner struct{}

func (fakeSigner) SignedURLForKey(key string, _ time.Duration) string {
	return "https://signed.example/" + key
}

func seedRuns(store *fakeQueryStore, n int) {
	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		// newest first: run-0 is the most recent
		store.runs = append(store.runs, model.Run{
			ID:              fmt.Sprintf("run-%03d", i),
			ShopDomain:      "demo.myshopify.com",
			RequestID:       fmt.Sprintf("req-%03d", i),
			Status:          model.RunStatusComplete,
			FactsSnapshot:   json.RawMessage(`{"title":"Desk"}`),
			PlacementConfig: json.RawMessage(`{"wall":"north"}`),
			PipelineConfig:  json.RawMessage(`{"steps":8}`),
			CreatedAt:       base.Add(-time.Duration(i) * time.Minute),
		})
	}
}

func TestListRunsPagination(t *testing.T) {
	store := newFakeQueryStore()
	seedRuns(store, 7)
	s := NewService(store, fakeSigner{})

	page1, err := s.ListRuns(context.Background(), model.RunFilters{}, "", 3, false, ViewInternal)
	require.NoError(t, err)
	require.Len(t, page1.Runs, 3)
	assert.True(t, page1.HasMore)
	assert.NotEmpty(t, page1.NextCursor)
	assert.Equal(t, "run-000", page1.Runs[0].ID)
	assert.Nil(t, page1.Total)

	page2, err := s.ListRuns(context.Background(), model.RunFilters{}, page1.NextCursor, 3, false, ViewInternal)
	require.NoError(t, err)
	require.Len(t, page2.Runs, 3)
	assert.True(t, page2.HasMore)
	assert.Equal(t, "run-003", page2.Runs[0].ID)

	page3, err := s.ListRuns(context.Background(), model.RunFilters{}, page2.NextCursor, 3, false, ViewInternal)
	require.NoError(t, err)
	require.Len(t, page3.Runs, 1)
	assert.False(t, page3.HasMore)
	assert.Empty(t, page3.NextCursor)

	// no overlap across pages
	seen := map[string]bool{}
	for _, p := range [][]model.Run{page1.Runs, page2.Runs, page3.Runs} {
		for _, r := range p {
			assert.False(t, seen[r.ID], "run %s returned twice", r.ID)
			seen[r.ID] = true
		}
	}
	assert.Len(t, seen, 7)
}

func TestListRunsCursorStableUnderNewInserts(t *testing.T) {
	store := newFakeQueryStore()
	seedRuns(store, 5)
	s := NewService(store, fakeSigner{})

	page1, err := s.ListRuns(context.Background(), model.RunFilters{}, "", 2, false, ViewInternal)
	require.NoError(t, err)

	// a run newer than everything arrives between page fetches
	newer := model.Run{
		ID:         "run-new",
		ShopDomain: "demo.myshopify.com",
		Status:     model.RunStatusRunning,
		CreatedAt:  time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC),
	}
	store.runs = append([]model.Run{newer}, store.runs...)

	page2, err := s.ListRuns(context.Background(), model.RunFilters{}, page1.NextCursor, 2, false, ViewInternal)
	require.NoError(t, err)
	for _, r := range page2.Runs {
		assert.NotEqual(t, "run-new", r.ID, "new insert must not leak into an old cursor's page")
		for _, p1 := range page1.Runs {
			assert.NotEqual(t, p1.ID, r.ID)
		}
	}
}

func TestListRunsIncludeTotal(t *testing.T) {
	store := newFakeQueryStore()
	seedRuns(store, 4)
	s := NewService(store, fakeSigner{})

	page, err := s.ListRuns(context.Background(), model.RunFilters{}, "", 10, true, ViewInternal)
	require.NoError(t, err)
	require.NotNil(t, page.Total)
	assert.Equal(t, 4, *page.Total)
}

func TestListRunsExternalStripsSnapshots(t *testing.T) {
	store := newFakeQueryStore()
	seedRuns(store, 1)
	s := NewService(store, fakeSigner{})

	page, err := s.ListRuns(context.Background(), model.RunFilters{}, "", 10, false, ViewExternal)
	require.NoError(t, err)
	require.Len(t, page.Runs, 1)
	assert.Nil(t, page.Runs[0].FactsSnapshot)
	assert.Nil(t, page.Runs[0].PlacementConfig)
	assert.Nil(t, page.Runs[0].PipelineConfig)
}

func TestListRunsRejectsBadCursor(t *testing.T) {
	s := NewService(newFakeQueryStore(), fakeSigner{})
	_, err := s.ListRuns(context.Background(), model.RunFilters{}, "garbage!!", 10, false, ViewInternal)
	assert.Error(t, err)
}

func TestGetRunDetailRedactsExternally(t *testing.T) {
	store := newFakeQueryStore()
	seedRuns(store, 1)
	runID := "run-000"
	store.events[runID] = []model.TelemetryEvent{{
		ID:         uuid.New(),
		ShopDomain: "demo.myshopify.com",
		RequestID:  "req-000",
		Type:       "provider.response",
		Payload: map[string]any{
			"prompt":     "render a walnut desk in a bright room",
			"latency_ms": 8200,
		},
	}}
	visible := model.Artifact{
		ID: uuid.New(), ShopDomain: "demo.myshopify.com",
		Type: model.ArtifactOutputImage, StorageKey: "demo/out.png",
		Retention: model.RetentionStandard,
	}
	sensitive := model.Artifact{
		ID: uuid.New(), ShopDomain: "demo.myshopify.com",
		Type: model.ArtifactRoomImage, StorageKey: "demo/room.jpg",
		Retention: model.RetentionSensitive,
	}
	store.artifacts[runID] = []model.Artifact{visible, sensitive}

	internal, err := NewService(store, fakeSigner{}).GetRunDetail(context.Background(), "demo.myshopify.com", runID, ViewInternal)
	require.NoError(t, err)
	assert.NotNil(t, internal.Run.FactsSnapshot)
	assert.Equal(t, "render a walnut desk in a bright room", internal.Events[0].Payload["prompt"])
	assert.Len(t, internal.Artifacts, 2)
	assert.Equal(t, "https://signed.example/demo/out.png", internal.Artifacts[0].URL)

	external, err := NewService(store, fakeSigner{}).GetRunDetail(context.Background(), "demo.myshopify.com", runID, ViewExternal)
	require.NoError(t, err)
	assert.Nil(t, external.Run.FactsSnapshot)
	assert.NotContains(t, external.Events[0].Payload, "prompt")
	assert.Equal(t, true, external.Events[0].Payload["__redacted"])
	require.Len(t, external.Artifacts, 1)
	assert.Equal(t, visible.ID, external.Artifacts[0].ID)
}

func TestExternalReadDoesNotMutateStoreData(t *testing.T) {
	store := newFakeQueryStore()
	seedRuns(store, 1)
	runID := "run-000"
	store.events[runID] = []model.TelemetryEvent{{
		ID:         uuid.New(),
		ShopDomain: "demo.myshopify.com",
		RequestID:  "req-000",
		Type:       "provider.request",
		Payload:    map[string]any{"prompt": "secret prompt", "latency_ms": 900},
	}}
	store.requestEvents["req-000"] = store.events[runID]
	s := NewService(store, fakeSigner{})

	// External reads first: they must redact a copy, not write the narrow
	// view back through the store's shared slice.
	_, err := s.GetRunEvents(context.Background(), "demo.myshopify.com", runID, ViewExternal)
	require.NoError(t, err)
	_, err = s.GetRequestEvents(context.Background(), "demo.myshopify.com", "req-000", ViewExternal)
	require.NoError(t, err)
	_, err = s.ListRuns(context.Background(), model.RunFilters{}, "", 10, false, ViewExternal)
	require.NoError(t, err)

	internal, err := s.GetRunEvents(context.Background(), "demo.myshopify.com", runID, ViewInternal)
	require.NoError(t, err)
	require.Len(t, internal, 1)
	assert.Equal(t, "secret prompt", internal[0].Payload["prompt"])
	assert.NotContains(t, internal[0].Payload, "__redacted")

	byRequest, err := s.GetRequestEvents(context.Background(), "demo.myshopify.com", "req-000", ViewInternal)
	require.NoError(t, err)
	require.Len(t, byRequest, 1)
	assert.Equal(t, "secret prompt", byRequest[0].Payload["prompt"])

	page, err := s.ListRuns(context.Background(), model.RunFilters{}, "", 10, false, ViewInternal)
	require.NoError(t, err)
	require.NotEmpty(t, page.Runs)
	assert.NotNil(t, page.Runs[0].FactsSnapshot)
}

func TestGetRequestEventsRedactsExternally(t *testing.T) {
	store := newFakeQueryStore()
	store.requestEvents["req-chat-7"] = []model.TelemetryEvent{{
		ID:         uuid.New(),
		ShopDomain: "demo.myshopify.com",
		RequestID:  "req-chat-7",
		Type:       "provider.response",
		Payload: map[string]any{
			"prompt":     "quick render, no run",
			"latency_ms": 1100,
		},
	}}
	s := NewService(store, fakeSigner{})

	internal, err := s.GetRequestEvents(context.Background(), "demo.myshopify.com", "req-chat-7", ViewInternal)
	require.NoError(t, err)
	require.Len(t, internal, 1)
	assert.Equal(t, "quick render, no run", internal[0].Payload["prompt"])

	external, err := s.GetRequestEvents(context.Background(), "demo.myshopify.com", "req-chat-7", ViewExternal)
	require.NoError(t, err)
	require.Len(t, external, 1)
	assert.NotContains(t, external[0].Payload, "prompt")

	// Unknown request ids are an empty list, not an error.
	none, err := s.GetRequestEvents(context.Background(), "demo.myshopify.com", "req-missing", ViewExternal)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetRunDetailNotFound(t *testing.T) {
	s := NewService(newFakeQueryStore(), fakeSigner{})
	_, err := s.GetRunDetail(context.Background(), "demo.myshopify.com", "missing", ViewInternal)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetRunDetailWrongShopNotFound(t *testing.T) {
	store := newFakeQueryStore()
	seedRuns(store, 1)
	s := NewService(store, fakeSigner{})
	_, err := s.GetRunDetail(context.Background(), "other.myshopify.com", "run-000", ViewInternal)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetArtifactSensitiveHiddenExternally(t *testing.T) {
	store := newFakeQueryStore()
	sensitive := model.Artifact{
		ID: uuid.New(), ShopDomain: "demo.myshopify.com",
		Type: model.ArtifactDebugBundle, StorageKey: "demo/bundle.zip",
		Retention: model.RetentionStandard,
	}
	store.byID[sensitive.ID] = sensitive
	s := NewService(store, fakeSigner{})

	got, err := s.GetArtifact(context.Background(), "demo.myshopify.com", sensitive.ID, ViewInternal)
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/demo/bundle.zip", got.URL)

	_, err = s.GetArtifact(context.Background(), "demo.myshopify.com", sensitive.ID, ViewExternal)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetShopAttachesTopErrors(t *testing.T) {
	store := newFakeQueryStore()
	store.shopStats["demo.myshopify.com"] = model.ShopStats{
		ShopDomain: "demo.myshopify.com",
		TotalRuns:  12,
	}
	store.errorMsgs["demo.myshopify.com"] = []string{
		"timeout after 30000ms",
		"timeout after 29000ms",
		"quota exceeded",
	}
	s := NewService(store, fakeSigner{})

	stats, err := s.GetShop(context.Background(), "demo.myshopify.com")
	require.NoError(t, err)
	require.Len(t, stats.TopErrors, 2)
	assert.Equal(t, model.ErrorGroup{Message: "timeout after #ms", Count: 2}, stats.TopErrors[0])
}

func TestExportDebugBundleIsUnredacted(t *testing.T) {
	store := newFakeQueryStore()
	seedRuns(store, 1)
	runID := "run-000"
	store.events[runID] = []model.TelemetryEvent{{
		ID:      uuid.New(),
		Type:    "provider.request",
		Payload: map[string]any{"prompt": "secret prompt"},
	}}
	store.variants[runID] = []model.VariantResult{{RunID: runID, VariantID: "v01", Status: model.VariantStatusSuccess}}

	bundle, err := NewService(store, fakeSigner{}).ExportDebugBundle(context.Background(), "demo.myshopify.com", runID)
	require.NoError(t, err)
	assert.NotNil(t, bundle.Run.FactsSnapshot)
	assert.Equal(t, "secret prompt", bundle.Events[0].Payload["prompt"])
	assert.Len(t, bundle.Variants, 1)
	assert.False(t, bundle.ExportedAt.IsZero())
}

func TestExportDebugBundleMissingRun(t *testing.T) {
	s := NewService(newFakeQueryStore(), fakeSigner{})
	_, err := s.ExportDebugBundle(context.Background(), "demo.myshopify.com", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
