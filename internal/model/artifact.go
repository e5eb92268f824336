package model

import (
	"time"

	"github.com/google/uuid"
)

// ArtifactType classifies an indexed binary object.
type ArtifactType string

const (
	ArtifactRoomImage            ArtifactType = "room_image"
	ArtifactPreparedProductImage ArtifactType = "prepared_product_image"
	ArtifactProviderRequest      ArtifactType = "provider_request"
	ArtifactProviderResponse     ArtifactType = "provider_response"
	ArtifactOutputImage          ArtifactType = "output_image"
	ArtifactDebugBundle          ArtifactType = "debug_bundle"
)

// SensitiveArtifactTypes are never exposed through the external API without
// reveal mode, regardless of retention class.
var SensitiveArtifactTypes = map[ArtifactType]bool{
	ArtifactRoomImage:        true,
	ArtifactDebugBundle:      true,
	ArtifactProviderRequest:  true,
	ArtifactProviderResponse: true,
}

// RetentionClass names a fixed expiry policy, applied once at creation.
type RetentionClass string

const (
	RetentionShort    RetentionClass = "short"    // 7 days
	RetentionStandard RetentionClass = "standard" // 30 days
	RetentionLong     RetentionClass = "long"     // 90 days
	// RetentionSensitive keeps the standard 30-day expiry and additionally
	// excludes the artifact from default external exposure.
	RetentionSensitive RetentionClass = "sensitive"
)

// RetentionDuration maps a retention class to its expiry offset.
// Unknown classes fall back to the standard 30 days.
func RetentionDuration(c RetentionClass) time.Duration {
	switch c {
	case RetentionShort:
		return 7 * 24 * time.Hour
	case RetentionLong:
		return 90 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

// Artifact is the index record for a binary object in object storage.
// Created once, never mutated. ExpiresAt is advisory; the actual sweep
// that deletes expired objects runs outside this system.
type Artifact struct {
	ID          uuid.UUID      `json:"id"`
	ShopDomain  string         `json:"shop_domain"`
	RequestID   string         `json:"request_id"`
	RunID       *string        `json:"run_id,omitempty"`
	VariantID   *string        `json:"variant_id,omitempty"`
	Type        ArtifactType   `json:"type"`
	StorageKey  string         `json:"storage_key"`
	ContentType string         `json:"content_type"`
	SizeBytes   *int64         `json:"size_bytes,omitempty"`
	Width       *int           `json:"width,omitempty"`
	Height      *int           `json:"height,omitempty"`
	ContentHash *string        `json:"content_hash,omitempty"`
	Retention   RetentionClass `json:"retention_class"`
	ExpiresAt   time.Time      `json:"expires_at"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ExternallyVisible reports whether the artifact may appear in unrevealed
// external responses.
func (a Artifact) ExternallyVisible() bool {
	if a.Retention == RetentionSensitive {
		return false
	}
	return !SensitiveArtifactTypes[a.Type]
}
