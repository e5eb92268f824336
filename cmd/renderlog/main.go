package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/roomcraft-ai/renderlog/internal/artifact"
	"github.com/roomcraft-ai/renderlog/internal/auth"
	"github.com/roomcraft-ai/renderlog/internal/config"
	"github.com/roomcraft-ai/renderlog/internal/query"
	"github.com/roomcraft-ai/renderlog/internal/ratelimit"
	"github.com/roomcraft-ai/renderlog/internal/server"
	"github.com/roomcraft-ai/renderlog/internal/signer"
	"github.com/roomcraft-ai/renderlog/internal/storage"
	"github.com/roomcraft-ai/renderlog/internal/telemetry"
	"github.com/roomcraft-ai/renderlog/migrations"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("RENDERLOG_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("renderlog starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// Connect to database.
	db, err := storage.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer db.Close()

	// Register connection pool OTEL metrics (after telemetry.Init).
	db.RegisterPoolMetrics()

	// RunMigrations tracks applied files in schema_migrations and skips
	// duplicates, so errors here indicate real failures.
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	// Signing key for artifact URLs. Without a configured key, signed URLs
	// stop working across restarts; fine for development, not production.
	var urlSigner *signer.Signer
	if cfg.SigningKeyPath != "" {
		urlSigner, err = signer.Load(cfg.SigningKeyPath)
		if err != nil {
			return fmt.Errorf("signer: %w", err)
		}
		logger.Info("artifact signing: key loaded", "path", cfg.SigningKeyPath)
	} else {
		urlSigner, err = signer.Generate()
		if err != nil {
			return fmt.Errorf("signer: %w", err)
		}
		logger.Warn("artifact signing: ephemeral key (set RENDERLOG_SIGNING_KEY for stable URLs)")
	}

	// Object storage for artifact bytes.
	objects, err := artifact.NewFS(cfg.ArtifactDir)
	if err != nil {
		return fmt.Errorf("artifact storage: %w", err)
	}
	artifacts := artifact.NewStore(objects, db, urlSigner, cfg.BaseURL, logger)

	// Token verification. No digests configured means no credential can
	// authenticate; the server still starts so /health stays reachable.
	if len(cfg.OperatorTokenDigests) == 0 && len(cfg.ExternalTokenDigests) == 0 {
		logger.Warn("auth: no token digests configured, all API requests will be rejected")
	}
	verifier := auth.NewVerifier(cfg.OperatorTokenDigests, cfg.ExternalTokenDigests, cfg.RevealTokenDigest)

	// Rate limiter: Redis-backed sliding window when REDIS_URL is set
	// (shared across replicas), in-process otherwise.
	var limiter *ratelimit.Limiter
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		limiter = ratelimit.NewRedis(redis.NewClient(opts), logger)
		logger.Info("rate limiting: redis")
	} else {
		limiter = ratelimit.NewMemory(logger)
		logger.Info("rate limiting: in-process memory")
	}
	defer limiter.Close()

	querySvc := query.NewService(db, artifacts)

	srv := server.New(server.ServerConfig{
		Query:          querySvc,
		Artifacts:      artifacts,
		Signer:         urlSigner,
		Verifier:       verifier,
		Logger:         logger,
		Limiter:        limiter,
		AllowedOrigins: cfg.AllowedOrigins,
		Port:           cfg.Port,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		Version:        version,
	})

	// Start HTTP server in background.
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("renderlog shutting down")

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	slog.Info("renderlog stopped")
	return nil
}
