package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/aaasdream/ai-studio-like/internal/batch"
	"github.com/aaasdream/ai-studio-like/internal/config"
	"github.com/aaasdream/ai-studio-like/internal/events"
	"github.com/aaasdream/ai-studio-like/internal/platform/gemini"
	"github.com/aaasdream/ai-studio-like/internal/platform/postgres"
	"github.com/aaasdream/ai-studio-like/internal/service"
)

// application holds the wired dependencies of the running server.
type application struct {
	config       *config.Config
	logger       *slog.Logger
	db           *sql.DB
	batchService service.BatchService
}

// newApplication connects the database, applies migrations, creates the
// Gemini client, and assembles the service layer.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	db, err := setupAppDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := postgres.RunMigrations(ctx, db, logger); err != nil {
		closeDatabase(db, logger)
		return nil, err
	}

	geminiClient, err := gemini.NewClient(ctx, logger, cfg.LLM)
	if err != nil {
		closeDatabase(db, logger)
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	sessionStore := postgres.NewPostgresSessionStore(db, logger)
	sessionRepo := service.NewSessionRepositoryAdapter(sessionStore, db)

	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(events.NewAuditLogHandler(logger))

	serviceCfg := service.BatchServiceConfig{
		Concurrency: cfg.Batch.Concurrency,
		Retry: batch.RetryPolicy{
			MaxRetries:  cfg.Batch.MaxRetries,
			BackoffBase: 2,
			BackoffUnit: cfg.Batch.BackoffUnit(),
		},
		InterDispatchDelay:    cfg.Batch.InterDispatchDelay(),
		WarmupDelay:           cfg.Batch.WarmupDelay(),
		CacheTTL:              cfg.LLM.CacheTTL(),
		AutoDeleteCache:       cfg.LLM.AutoDeleteCache,
		DefaultSystemPreamble: cfg.LLM.SystemPreamble,
	}

	batchService, err := service.NewBatchService(
		sessionRepo,
		geminiClient,
		geminiClient,
		emitter,
		serviceCfg,
		logger,
	)
	if err != nil {
		closeDatabase(db, logger)
		return nil, fmt.Errorf("failed to create batch service: %w", err)
	}

	return &application{
		config:       cfg,
		logger:       logger,
		db:           db,
		batchService: batchService,
	}, nil
}

// cleanup releases application resources. Safe to call once at shutdown.
func (app *application) cleanup() {
	closeDatabase(app.db, app.logger)
}

func closeDatabase(db *sql.DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		logger.Error("Failed to close database connection", "error", err)
	}
}
