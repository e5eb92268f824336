// Package artifact writes binary objects to object storage and indexes
// them for retention and query. Like every write path here it is
// best-effort: failures return nil/empty, never an error or panic, because
// losing an artifact must not fail the render that produced it.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/roomcraft-ai/renderlog/internal/besteffort"
	"github.com/roomcraft-ai/renderlog/internal/model"
	"github.com/roomcraft-ai/renderlog/internal/signer"
)

// ObjectStorage is the blob backend. FS implements it for local disk;
// production injects an S3/GCS-backed implementation.
type ObjectStorage interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, string, error)
}

// Index is the artifact metadata dependency. *storage.DB satisfies it.
type Index interface {
	InsertArtifact(ctx context.Context, a model.Artifact) error
	GetArtifact(ctx context.Context, shopDomain string, id uuid.UUID) (model.Artifact, error)
}

// Store uploads and indexes artifacts.
type Store struct {
	objects ObjectStorage
	index   Index
	signer  *signer.Signer
	baseURL string
	logger  *slog.Logger
}

// NewStore creates an artifact store. baseURL is the public prefix signed
// URLs are built on, without trailing slash.
func NewStore(objects ObjectStorage, index Index, sg *signer.Signer, baseURL string, logger *slog.Logger) *Store {
	return &Store{objects: objects, index: index, signer: sg, baseURL: baseURL, logger: logger}
}

// StoreInput describes one object to upload and index.
type StoreInput struct {
	ShopDomain  string
	RequestID   string
	RunID       *string
	VariantID   *string
	Type        model.ArtifactType
	ContentType string
	Data        []byte
	Width       *int
	Height      *int
	// Retention defaults to standard when empty.
	Retention model.RetentionClass
}

// Store uploads the object, computes its SHA-256, and indexes it.
// Returns the new artifact ID, or nil on any failure.
func (s *Store) Store(ctx context.Context, in StoreInput) *uuid.UUID {
	id := uuid.New()
	key := s.storageKey(in, id)

	ok := besteffort.Do(ctx, s.logger, "artifact.upload", func(ctx context.Context) error {
		return s.objects.Put(ctx, key, in.ContentType, in.Data)
	}, "storage_key", key, "shop_domain", in.ShopDomain)
	if !ok {
		return nil
	}

	sum := sha256.Sum256(in.Data)
	hash := hex.EncodeToString(sum[:])
	size := int64(len(in.Data))

	a := s.record(in, id, key)
	a.SizeBytes = &size
	a.ContentHash = &hash

	if !besteffort.Do(ctx, s.logger, "artifact.index", func(ctx context.Context) error {
		return s.index.InsertArtifact(ctx, a)
	}, "artifact_id", id.String()) {
		return nil
	}
	return &id
}

// IndexExistingInput references an object some other component already
// wrote (e.g. the renderer uploading output images directly).
type IndexExistingInput struct {
	ShopDomain  string
	RequestID   string
	RunID       *string
	VariantID   *string
	Type        model.ArtifactType
	ContentType string
	StorageKey  string
	SizeBytes   *int64
	Width       *int
	Height      *int
	Retention   model.RetentionClass
}

// IndexExisting indexes a pre-written key without uploading or hashing.
// Returns the new artifact ID, or nil on failure.
func (s *Store) IndexExisting(ctx context.Context, in IndexExistingInput) *uuid.UUID {
	id := uuid.New()
	a := s.record(StoreInput{
		ShopDomain:  in.ShopDomain,
		RequestID:   in.RequestID,
		RunID:       in.RunID,
		VariantID:   in.VariantID,
		Type:        in.Type,
		ContentType: in.ContentType,
		Width:       in.Width,
		Height:      in.Height,
		Retention:   in.Retention,
	}, id, in.StorageKey)
	a.SizeBytes = in.SizeBytes

	if !besteffort.Do(ctx, s.logger, "artifact.index_existing", func(ctx context.Context) error {
		return s.index.InsertArtifact(ctx, a)
	}, "storage_key", in.StorageKey) {
		return nil
	}
	return &id
}

// SignedURL returns a time-limited download URL for an indexed artifact,
// or "" on any failure.
func (s *Store) SignedURL(ctx context.Context, shopDomain string, id uuid.UUID, ttl time.Duration) string {
	a, err := s.index.GetArtifact(ctx, shopDomain, id)
	if err != nil {
		s.logger.Warn("artifact: signed url lookup failed", "artifact_id", id.String(), "error", err)
		return ""
	}
	return s.SignedURLForKey(a.StorageKey, ttl)
}

// SignedURLForKey signs a raw storage key, or returns "" on failure.
func (s *Store) SignedURLForKey(key string, ttl time.Duration) string {
	token, err := s.signer.Sign(key, ttl)
	if err != nil {
		s.logger.Warn("artifact: sign url failed", "storage_key", key, "error", err)
		return ""
	}
	return s.baseURL + "/internal/artifacts/content?token=" + url.QueryEscape(token)
}

// Fetch reads an object by storage key, for the content route.
func (s *Store) Fetch(ctx context.Context, key string) ([]byte, string, error) {
	data, contentType, err := s.objects.Get(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("artifact: fetch %s: %w", key, err)
	}
	return data, contentType, nil
}

func (s *Store) record(in StoreInput, id uuid.UUID, key string) model.Artifact {
	retention := in.Retention
	if retention == "" {
		retention = model.RetentionStandard
	}
	now := time.Now().UTC()
	return model.Artifact{
		ID:          id,
		ShopDomain:  in.ShopDomain,
		RequestID:   in.RequestID,
		RunID:       in.RunID,
		VariantID:   in.VariantID,
		Type:        in.Type,
		StorageKey:  key,
		ContentType: in.ContentType,
		Width:       in.Width,
		Height:      in.Height,
		Retention:   retention,
		ExpiresAt:   now.Add(model.RetentionDuration(retention)),
		CreatedAt:   now,
	}
}

// storageKey scopes objects by shop and run (or request when no run),
// keeping keys listable per tenant and per render.
func (s *Store) storageKey(in StoreInput, id uuid.UUID) string {
	scope := in.RequestID
	if in.RunID != nil {
		scope = *in.RunID
	}
	key := in.ShopDomain + "/" + scope
	if in.VariantID != nil {
		key += "/" + *in.VariantID
	}
	return key + "/" + string(in.Type) + "-" + id.String() + extension(in.ContentType)
}

func extension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "application/json":
		return ".json"
	case "application/zip":
		return ".zip"
	default:
		return ".bin"
	}
}
