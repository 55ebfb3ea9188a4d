package service

import (
	"context"
	"database/sql"

	"github.com/aaasdream/ai-studio-like/internal/store"
)

// SessionRepositoryAdapter adapts a store.SessionStore to the service
// SessionRepository interface, carrying the database handle needed for
// transaction management.
type SessionRepositoryAdapter struct {
	store.SessionStore
	db *sql.DB
}

// NewSessionRepositoryAdapter creates a new adapter that implements
// SessionRepository by delegating to a store.SessionStore implementation.
func NewSessionRepositoryAdapter(sessionStore store.SessionStore, db *sql.DB) *SessionRepositoryAdapter {
	return &SessionRepositoryAdapter{
		SessionStore: sessionStore,
		db:           db,
	}
}

// Transact implements SessionRepository.Transact using the shared
// transaction helper. fn receives a repository bound to the transaction.
func (a *SessionRepositoryAdapter) Transact(
	ctx context.Context,
	fn func(ctx context.Context, repo SessionRepository) error,
) error {
	return store.RunInTransaction(ctx, a.db, func(ctx context.Context, tx *sql.Tx) error {
		txAdapter := &SessionRepositoryAdapter{
			SessionStore: a.SessionStore.WithTx(tx),
			db:           a.db,
		}
		return fn(ctx, txAdapter)
	})
}

// Ensure SessionRepositoryAdapter implements SessionRepository
var _ SessionRepository = (*SessionRepositoryAdapter)(nil)
