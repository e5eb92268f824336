package renderlog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/roomcraft-ai/renderlog/internal/model"
)

// The write-side surface the rendering pipeline codes against. A removed
// or re-signed method breaks this assertion at compile time.
var _ interface {
	Emit(context.Context, Event)
	EmitAwaitable(context.Context, Event) bool
	EmitError(context.Context, Event, error, map[string]any)
	StartRun(context.Context, StartRun) bool
	RecordVariantStart(ctx context.Context, shopDomain, requestID, runID, variantID string)
	RecordVariantResult(context.Context, VariantResult) bool
	CompleteRun(context.Context, CompleteRun) bool
	StoreArtifact(context.Context, Artifact) *uuid.UUID
	IndexExistingArtifact(context.Context, IndexExisting) *uuid.UUID
	SignedArtifactURL(context.Context, string, uuid.UUID, time.Duration) string
	Close()
} = (*Pipeline)(nil)

func TestToModelEvent(t *testing.T) {
	runID := "run-1"
	variantID := "v01"
	e := toModelEvent(Event{
		ShopDomain: "demo.myshopify.com",
		RequestID:  "req-1",
		RunID:      &runID,
		VariantID:  &variantID,
		Type:       "provider.call",
		Severity:   SeverityWarn,
		Source:     SourceProvider,
		Payload:    map[string]any{"attempt": 2},
	})

	assert.Equal(t, "demo.myshopify.com", e.ShopDomain)
	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, &runID, e.RunID)
	assert.Equal(t, &variantID, e.VariantID)
	assert.Equal(t, model.SourceProvider, e.Source)
	assert.Equal(t, model.SeverityWarn, e.Severity)
	assert.Equal(t, "provider.call", e.Type)
}

// The public enum constants must stay in sync with the internal model:
// they cross the process boundary as strings.
func TestPublicConstantsMatchModel(t *testing.T) {
	assert.Equal(t, string(model.RunStatusComplete), RunComplete)
	assert.Equal(t, string(model.VariantStatusSuccess), VariantSuccess)
	assert.Equal(t, string(model.VariantStatusTimeout), VariantTimeout)
	assert.Equal(t, string(model.ArtifactOutputImage), ArtifactOutputImage)
	assert.Equal(t, string(model.RetentionSensitive), RetentionSensitive)
	assert.Equal(t, string(model.SourceRender), SourceRender)
}
