package renderlog

import (
	"log/slog"
)

// Option configures a Pipeline.
type Option func(*resolvedOptions)

// resolvedOptions holds all construction parameters after applying
// defaults. Unexported — callers use the With* functions.
type resolvedOptions struct {
	logger         *slog.Logger
	databaseURL    string
	artifactDir    string
	baseURL        string
	signingKeyPath string
	objectStorage  ObjectStorage
	skipMigrations bool
}

// WithLogger sets the structured logger for the Pipeline.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithDatabaseURL overrides the connection string from config (DATABASE_URL env var).
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithArtifactDir overrides the filesystem object storage root
// (RENDERLOG_ARTIFACT_DIR env var). Ignored when WithObjectStorage is set.
func WithArtifactDir(dir string) Option {
	return func(o *resolvedOptions) { o.artifactDir = dir }
}

// WithBaseURL overrides the public prefix for signed artifact URLs
// (RENDERLOG_BASE_URL env var).
func WithBaseURL(url string) Option {
	return func(o *resolvedOptions) { o.baseURL = url }
}

// WithSigningKeyPath overrides the Ed25519 signing key file
// (RENDERLOG_SIGNING_KEY env var). Without one, an ephemeral key is
// generated and signed URLs stop verifying across restarts.
func WithSigningKeyPath(path string) Option {
	return func(o *resolvedOptions) { o.signingKeyPath = path }
}

// WithObjectStorage replaces the filesystem object storage with a custom
// backend (e.g. an S3-compatible bucket).
func WithObjectStorage(s ObjectStorage) Option {
	return func(o *resolvedOptions) { o.objectStorage = s }
}

// WithoutMigrations skips the embedded migrations at construction. Set
// this when the serving binary owns the schema and the embedding app
// should never race it.
func WithoutMigrations() Option {
	return func(o *resolvedOptions) { o.skipMigrations = true }
}
