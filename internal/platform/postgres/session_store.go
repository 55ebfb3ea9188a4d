package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aaasdream/ai-studio-like/internal/domain"
	"github.com/aaasdream/ai-studio-like/internal/platform/logger"
	"github.com/aaasdream/ai-studio-like/internal/store"
)

// PostgresSessionStore implements the store.SessionStore interface
// using a PostgreSQL database as the storage backend.
type PostgresSessionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSessionStore creates a new PostgreSQL implementation of the
// SessionStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresSessionStore(db store.DBTX, logger *slog.Logger) *PostgresSessionStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresSessionStore{
		db:     db,
		logger: logger.With(slog.String("component", "session_store")),
	}
}

// Ensure PostgresSessionStore implements store.SessionStore interface
var _ store.SessionStore = (*PostgresSessionStore)(nil)

// WithTx implements store.SessionStore.WithTx
// It returns a new store instance bound to the provided transaction.
func (s *PostgresSessionStore) WithTx(tx *sql.Tx) store.SessionStore {
	return &PostgresSessionStore{
		db:     tx,
		logger: s.logger,
	}
}

// Save implements store.SessionStore.Save
// It upserts the session row and fully replaces its items. The item set
// of a session is fixed at creation, so replacing the rows is equivalent
// to updating each item's mutable columns.
func (s *PostgresSessionStore) Save(ctx context.Context, session *domain.BatchSession) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := session.Validate(); err != nil {
		log.Warn("session validation failed during save",
			slog.String("error", err.Error()),
			slog.String("session_id", session.ID.String()))
		return err
	}

	sessionQuery := `
		INSERT INTO batch_sessions (id, name, cache_handle_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    cache_handle_id = EXCLUDED.cache_handle_id,
		    updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(
		ctx,
		sessionQuery,
		session.ID,
		session.Name,
		session.CacheHandleID,
		session.CreatedAt,
		time.Now().UTC(),
	)
	if err != nil {
		log.Error("failed to save session",
			slog.String("error", err.Error()),
			slog.String("session_id", session.ID.String()))
		return MapError(err)
	}

	deleteQuery := `DELETE FROM batch_items WHERE session_id = $1`
	if _, err := s.db.ExecContext(ctx, deleteQuery, session.ID); err != nil {
		log.Error("failed to clear session items",
			slog.String("error", err.Error()),
			slog.String("session_id", session.ID.String()))
		return MapError(err)
	}

	itemQuery := `
		INSERT INTO batch_items
			(id, session_id, position, source_name, prompt, answer,
			 status, error_message, prompt_tokens, output_tokens)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for position, item := range session.Items {
		var promptTokens, outputTokens sql.NullInt32
		if item.Usage != nil {
			promptTokens = sql.NullInt32{Int32: int32(item.Usage.PromptTokens), Valid: true}
			outputTokens = sql.NullInt32{Int32: int32(item.Usage.OutputTokens), Valid: true}
		}

		_, err := s.db.ExecContext(
			ctx,
			itemQuery,
			item.ID,
			session.ID,
			position,
			item.SourceName,
			item.Prompt,
			item.Answer,
			item.Status,
			item.ErrorMessage,
			promptTokens,
			outputTokens,
		)
		if err != nil {
			log.Error("failed to save session item",
				slog.String("error", err.Error()),
				slog.String("session_id", session.ID.String()),
				slog.String("item_id", item.ID.String()))
			return MapError(err)
		}
	}

	log.Debug("session saved",
		slog.String("session_id", session.ID.String()),
		slog.Int("item_count", len(session.Items)),
		slog.Int("completed_count", session.CompletedCount()))
	return nil
}

// GetByID implements store.SessionStore.GetByID
// Returns store.ErrSessionNotFound if the session does not exist.
func (s *PostgresSessionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.BatchSession, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, name, cache_handle_id, created_at
		FROM batch_sessions
		WHERE id = $1
	`
	session := &domain.BatchSession{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.Name,
		&session.CacheHandleID,
		&session.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("session not found", slog.String("session_id", id.String()))
			return nil, store.ErrSessionNotFound
		}
		log.Error("failed to get session",
			slog.String("error", err.Error()),
			slog.String("session_id", id.String()))
		return nil, MapError(err)
	}

	items, err := s.loadItems(ctx, id)
	if err != nil {
		log.Error("failed to load session items",
			slog.String("error", err.Error()),
			slog.String("session_id", id.String()))
		return nil, MapError(err)
	}
	session.Items = items

	return session, nil
}

// List implements store.SessionStore.List
// Sessions are returned newest first, each with its items loaded.
func (s *PostgresSessionStore) List(ctx context.Context) ([]*domain.BatchSession, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, name, cache_handle_id, created_at
		FROM batch_sessions
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		log.Error("failed to list sessions", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	sessions := make([]*domain.BatchSession, 0)
	for rows.Next() {
		session := &domain.BatchSession{}
		if err := rows.Scan(
			&session.ID,
			&session.Name,
			&session.CacheHandleID,
			&session.CreatedAt,
		); err != nil {
			return nil, MapError(err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	for _, session := range sessions {
		items, err := s.loadItems(ctx, session.ID)
		if err != nil {
			log.Error("failed to load session items",
				slog.String("error", err.Error()),
				slog.String("session_id", session.ID.String()))
			return nil, MapError(err)
		}
		session.Items = items
	}

	return sessions, nil
}

// Delete implements store.SessionStore.Delete
// Item rows are removed by the ON DELETE CASCADE constraint.
// Returns store.ErrSessionNotFound if the session does not exist.
func (s *PostgresSessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `DELETE FROM batch_sessions WHERE id = $1`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		log.Error("failed to delete session",
			slog.String("error", err.Error()),
			slog.String("session_id", id.String()))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if rowsAffected == 0 {
		log.Debug("session not found for delete", slog.String("session_id", id.String()))
		return store.ErrSessionNotFound
	}

	log.Info("session deleted", slog.String("session_id", id.String()))
	return nil
}

// loadItems reads a session's items in their original order.
func (s *PostgresSessionStore) loadItems(ctx context.Context, sessionID uuid.UUID) ([]*domain.BatchItem, error) {
	query := `
		SELECT id, source_name, prompt, answer, status, error_message,
		       prompt_tokens, output_tokens
		FROM batch_items
		WHERE session_id = $1
		ORDER BY position ASC
	`
	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := make([]*domain.BatchItem, 0)
	for rows.Next() {
		item := &domain.BatchItem{}
		var promptTokens, outputTokens sql.NullInt32
		if err := rows.Scan(
			&item.ID,
			&item.SourceName,
			&item.Prompt,
			&item.Answer,
			&item.Status,
			&item.ErrorMessage,
			&promptTokens,
			&outputTokens,
		); err != nil {
			return nil, err
		}
		if promptTokens.Valid || outputTokens.Valid {
			item.Usage = &domain.TokenUsage{
				PromptTokens: int(promptTokens.Int32),
				OutputTokens: int(outputTokens.Int32),
			}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}
