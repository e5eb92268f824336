package rollup

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomcraft-ai/renderlog/internal/event"
	"github.com/roomcraft-ai/renderlog/internal/model"
)

type fakeRollupStore struct {
	mu sync.Mutex

	runs     []model.Run
	variants []model.VariantResult
	dropped  []string

	insertRunErr     error
	insertVariantErr error
	completeRunErr   error
	completeCalls    []model.RunStatus
	markDroppedErr   error
}

func (s *fakeRollupStore) InsertRun(_ context.Context, run model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertRunErr != nil {
		return s.insertRunErr
	}
	s.runs = append(s.runs, run)
	return nil
}

func (s *fakeRollupStore) InsertVariantResult(_ context.Context, v model.VariantResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertVariantErr != nil {
		return s.insertVariantErr
	}
	s.variants = append(s.variants, v)
	return nil
}

func (s *fakeRollupStore) CompleteRun(_ context.Context, _, _ string, status model.RunStatus, _, _, _ int, _ time.Time, _ int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completeRunErr != nil {
		return s.completeRunErr
	}
	s.completeCalls = append(s.completeCalls, status)
	return nil
}

func (s *fakeRollupStore) MarkTelemetryDropped(_ context.Context, _, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markDroppedErr != nil {
		return s.markDroppedErr
	}
	s.dropped = append(s.dropped, id)
	return nil
}

func (s *fakeRollupStore) droppedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.dropped...)
}

type fakeEventStore struct {
	mu     sync.Mutex
	events []model.TelemetryEvent
}

func (s *fakeEventStore) InsertEvent(_ context.Context, e model.TelemetryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *fakeEventStore) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func newWriter(store *fakeRollupStore, events *fakeEventStore) *Writer {
	logger := slog.New(slog.DiscardHandler)
	return NewWriter(store, event.New(events, logger), logger)
}

func TestStartRunHashesFacts(t *testing.T) {
	store := &fakeRollupStore{}
	events := &fakeEventStore{}
	w := newWriter(store, events)

	facts := json.RawMessage(`{"title":"Walnut Desk"}`)
	ok := w.StartRun(context.Background(), StartRunInput{
		RunID:      "run-1",
		ShopDomain: "demo.myshopify.com",
		RequestID:  "req-1",
		Facts:      facts,
	})
	require.True(t, ok)

	require.Len(t, store.runs, 1)
	run := store.runs[0]
	assert.Equal(t, model.RunStatusRunning, run.Status)
	require.NotNil(t, run.FactsHash)
	assert.Len(t, *run.FactsHash, 64)
	assert.False(t, run.TelemetryDropped)

	waitFor(t, func() bool { return len(events.types()) >= 1 })
	assert.Contains(t, events.types(), "run.created")
}

func TestStartRunWithoutFactsHasNoHash(t *testing.T) {
	store := &fakeRollupStore{}
	w := newWriter(store, &fakeEventStore{})

	require.True(t, w.StartRun(context.Background(), StartRunInput{
		RunID:      "run-2",
		ShopDomain: "demo.myshopify.com",
		RequestID:  "req-2",
	}))
	require.Len(t, store.runs, 1)
	assert.Nil(t, store.runs[0].FactsHash)
}

func TestStartRunFailureReturnsFalse(t *testing.T) {
	store := &fakeRollupStore{insertRunErr: errors.New("connection refused")}
	events := &fakeEventStore{}
	w := newWriter(store, events)

	ok := w.StartRun(context.Background(), StartRunInput{
		RunID:      "run-3",
		ShopDomain: "demo.myshopify.com",
		RequestID:  "req-3",
	})
	assert.False(t, ok)
	assert.Empty(t, store.droppedIDs())

	waitFor(t, func() bool { return len(events.types()) >= 1 })
	assert.Contains(t, events.types(), model.EventTypeError)
}

func TestRecordVariantStartEmitsOnly(t *testing.T) {
	store := &fakeRollupStore{}
	events := &fakeEventStore{}
	w := newWriter(store, events)

	w.RecordVariantStart(context.Background(), "demo.myshopify.com", "req-4", "run-4", "v03")

	waitFor(t, func() bool { return len(events.types()) >= 1 })
	assert.Contains(t, events.types(), "variant.started")
	assert.Empty(t, store.variants)
}

func TestRecordVariantResult(t *testing.T) {
	store := &fakeRollupStore{}
	events := &fakeEventStore{}
	w := newWriter(store, events)

	latency := int64(8200)
	ok := w.RecordVariantResult(context.Background(), VariantResultInput{
		RunID:      "run-5",
		ShopDomain: "demo.myshopify.com",
		RequestID:  "req-5",
		VariantID:  "v01",
		Status:     model.VariantStatusSuccess,
		LatencyMs:  &latency,
	})
	require.True(t, ok)

	require.Len(t, store.variants, 1)
	v := store.variants[0]
	assert.Equal(t, "v01", v.VariantID)
	assert.Equal(t, model.VariantStatusSuccess, v.Status)
	assert.NotEqual(t, "", v.ID.String())

	waitFor(t, func() bool { return len(events.types()) >= 1 })
	assert.Contains(t, events.types(), "variant.completed")
}

func TestRecordVariantResultFailureMarksDropped(t *testing.T) {
	store := &fakeRollupStore{insertVariantErr: errors.New("write timeout")}
	w := newWriter(store, &fakeEventStore{})

	ok := w.RecordVariantResult(context.Background(), VariantResultInput{
		RunID:      "run-6",
		ShopDomain: "demo.myshopify.com",
		RequestID:  "req-6",
		VariantID:  "v02",
		Status:     model.VariantStatusFailed,
	})
	assert.False(t, ok)

	waitFor(t, func() bool { return len(store.droppedIDs()) == 1 })
	assert.Equal(t, []string{"run-6"}, store.droppedIDs())
}

func TestCompleteRun(t *testing.T) {
	store := &fakeRollupStore{}
	events := &fakeEventStore{}
	w := newWriter(store, events)

	ok := w.CompleteRun(context.Background(), CompleteRunInput{
		RunID:        "run-7",
		ShopDomain:   "demo.myshopify.com",
		RequestID:    "req-7",
		Status:       model.RunStatusPartial,
		SuccessCount: 6,
		FailCount:    1,
		TimeoutCount: 1,
		DurationMs:   42_000,
	})
	require.True(t, ok)
	require.Len(t, store.completeCalls, 1)
	assert.Equal(t, model.RunStatusPartial, store.completeCalls[0])

	waitFor(t, func() bool { return len(events.types()) >= 1 })
	assert.Contains(t, events.types(), "run.completed")
}

func TestCompleteRunFailureMarksDropped(t *testing.T) {
	store := &fakeRollupStore{completeRunErr: errors.New("deadlock detected")}
	w := newWriter(store, &fakeEventStore{})

	ok := w.CompleteRun(context.Background(), CompleteRunInput{
		RunID:      "run-8",
		ShopDomain: "demo.myshopify.com",
		RequestID:  "req-8",
		Status:     model.RunStatusFailed,
	})
	assert.False(t, ok)
	waitFor(t, func() bool { return len(store.droppedIDs()) == 1 })
}

func TestMarkDroppedFailureDoesNotPanic(t *testing.T) {
	store := &fakeRollupStore{
		completeRunErr: errors.New("deadlock detected"),
		markDroppedErr: errors.New("still down"),
	}
	w := newWriter(store, &fakeEventStore{})

	assert.NotPanics(t, func() {
		w.CompleteRun(context.Background(), CompleteRunInput{
			RunID:      "run-9",
			ShopDomain: "demo.myshopify.com",
			RequestID:  "req-9",
			Status:     model.RunStatusFailed,
		})
	})
	// give the async mark a moment; it must fail silently
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, store.droppedIDs())
}
