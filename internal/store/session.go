package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/aaasdream/ai-studio-like/internal/domain"
)

// DBTX is an interface that abstracts the database access layer.
// It is implemented by both *sql.DB and *sql.Tx, allowing store code
// to work with either a database connection or a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SessionStore defines the interface for batch session persistence.
// The engine saves the session after every item reaches a terminal state,
// so a crash mid-run loses at most the in-flight, non-terminal items.
type SessionStore interface {
	// Save persists the session and all of its items, creating or fully
	// replacing the stored state. Returns validation errors if the
	// session data is invalid.
	Save(ctx context.Context, session *domain.BatchSession) error

	// GetByID retrieves a session with its items by its unique ID.
	// Returns ErrSessionNotFound if the session does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BatchSession, error)

	// List retrieves all sessions with their items, newest first.
	// Returns an empty slice when no sessions exist.
	List(ctx context.Context) ([]*domain.BatchSession, error)

	// Delete removes a session and its items.
	// Returns ErrSessionNotFound if the session does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a new SessionStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) SessionStore
}
