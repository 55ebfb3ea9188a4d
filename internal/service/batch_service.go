package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aaasdream/ai-studio-like/internal/batch"
	"github.com/aaasdream/ai-studio-like/internal/domain"
	"github.com/aaasdream/ai-studio-like/internal/events"
	"github.com/aaasdream/ai-studio-like/internal/generation"
	"github.com/aaasdream/ai-studio-like/internal/redact"
)

// SessionRepository defines the repository interface for the service
// layer. It is aligned with store.SessionStore to keep transactional
// persistence behind a single abstraction.
type SessionRepository interface {
	// Save persists the session and all of its items
	Save(ctx context.Context, session *domain.BatchSession) error

	// GetByID retrieves a session by its unique ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BatchSession, error)

	// List retrieves all sessions, newest first
	List(ctx context.Context) ([]*domain.BatchSession, error)

	// Delete removes a session and its items
	Delete(ctx context.Context, id uuid.UUID) error

	// Transact runs fn against a transaction-bound repository, committing
	// if fn returns nil and rolling back otherwise
	Transact(ctx context.Context, fn func(ctx context.Context, repo SessionRepository) error) error
}

// RunOutcome classifies how a run ended.
type RunOutcome string

// Possible run outcomes
const (
	RunCompleted RunOutcome = "completed"
	RunAborted   RunOutcome = "aborted"
	RunFailed    RunOutcome = "failed"
)

// BatchServiceConfig carries the tunables a run needs. Values map from
// the application configuration in cmd/server.
type BatchServiceConfig struct {
	// Concurrency is the maximum number of in-flight generations.
	Concurrency int

	// Retry governs per-item retry counts and backoff delays.
	Retry batch.RetryPolicy

	// InterDispatchDelay is the pause before each dispatch.
	InterDispatchDelay time.Duration

	// WarmupDelay is the settling pause after cache creation.
	WarmupDelay time.Duration

	// CacheTTL is the requested lifetime of a created context cache.
	CacheTTL time.Duration

	// AutoDeleteCache controls whether a run that completes normally
	// deletes its cache. When false, the cache is kept attached to the
	// session so later runs can reuse it. Aborted and failed runs always
	// delete.
	AutoDeleteCache bool

	// DefaultSystemPreamble is used when a run request carries none.
	DefaultSystemPreamble string
}

// BatchService provides batch session operations.
type BatchService interface {
	// CreateSession creates and persists a new session whose items are
	// all pending.
	CreateSession(ctx context.Context, name string, specs []domain.ItemSpec) (*domain.BatchSession, error)

	// StartRun launches a run of the session's pending items against the
	// generation backend: it prepares a context cache over document,
	// schedules the items, tears the cache down, and persists progress
	// after every settled item. The run executes in the background;
	// StartRun returns once it is registered. Progress is observable
	// through GetSession and the emitted events.
	// Returns ErrRunInProgress if the session already has an active run
	// and ErrNothingToRun if no item is pending.
	StartRun(ctx context.Context, sessionID uuid.UUID, document, systemPreamble string) error

	// CancelRun requests cooperative cancellation of the session's
	// active run. Items already in flight finish and are recorded; no
	// new dispatches happen. Cancelling a session with no active run is
	// a no-op.
	CancelRun(ctx context.Context, sessionID uuid.UUID) error

	// GetSession retrieves a session by ID.
	GetSession(ctx context.Context, sessionID uuid.UUID) (*domain.BatchSession, error)

	// ListSessions retrieves all sessions, newest first.
	ListSessions(ctx context.Context) ([]*domain.BatchSession, error)

	// DeleteSession removes a session. A cache still attached to it is
	// deleted best-effort first. Returns ErrRunInProgress while a run is
	// active.
	DeleteSession(ctx context.Context, sessionID uuid.UUID) error

	// DeleteCache deletes the session's attached context cache without
	// running anything. Returns ErrNoCacheAttached if none is attached
	// and ErrRunInProgress while a run is active.
	DeleteCache(ctx context.Context, sessionID uuid.UUID) error
}

// batchServiceImpl implements the BatchService interface.
type batchServiceImpl struct {
	repo         SessionRepository
	caches       generation.CacheManager
	scheduler    *batch.Scheduler
	coordinator  *batch.Coordinator
	eventEmitter events.EventEmitter
	cfg          BatchServiceConfig
	logger       *slog.Logger

	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
}

// NewBatchService creates a new BatchService.
// It returns an error if any of the required dependencies are nil.
func NewBatchService(
	repo SessionRepository,
	generator generation.Generator,
	caches generation.CacheManager,
	eventEmitter events.EventEmitter,
	cfg BatchServiceConfig,
	logger *slog.Logger,
) (BatchService, error) {
	if repo == nil {
		return nil, &BatchServiceError{
			Operation: "create_service",
			Message:   "repo cannot be nil",
		}
	}
	if generator == nil {
		return nil, &BatchServiceError{
			Operation: "create_service",
			Message:   "generator cannot be nil",
		}
	}
	if caches == nil {
		return nil, &BatchServiceError{
			Operation: "create_service",
			Message:   "caches cannot be nil",
		}
	}
	if eventEmitter == nil {
		return nil, &BatchServiceError{
			Operation: "create_service",
			Message:   "eventEmitter cannot be nil",
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	scheduler, err := batch.NewScheduler(generator, logger)
	if err != nil {
		return nil, &BatchServiceError{
			Operation: "create_service",
			Message:   "failed to create scheduler",
			Err:       err,
		}
	}
	coordinator, err := batch.NewCoordinator(caches, cfg.WarmupDelay, logger)
	if err != nil {
		return nil, &BatchServiceError{
			Operation: "create_service",
			Message:   "failed to create coordinator",
			Err:       err,
		}
	}

	return &batchServiceImpl{
		repo:         repo,
		caches:       caches,
		scheduler:    scheduler,
		coordinator:  coordinator,
		eventEmitter: eventEmitter,
		cfg:          cfg,
		logger:       logger.With("component", "batch_service"),
		running:      make(map[uuid.UUID]context.CancelFunc),
	}, nil
}

// CreateSession creates a new session with all items pending and
// persists it transactionally.
func (s *batchServiceImpl) CreateSession(
	ctx context.Context,
	name string,
	specs []domain.ItemSpec,
) (*domain.BatchSession, error) {
	session, err := domain.NewBatchSession(name, specs)
	if err != nil {
		s.logger.Warn("failed to create session object",
			"error", err,
			"name", name)
		return nil, NewBatchServiceError("create_session", "invalid session data", err)
	}

	err = s.repo.Transact(ctx, func(ctx context.Context, repo SessionRepository) error {
		return repo.Save(ctx, session)
	})
	if err != nil {
		s.logger.Error("failed to persist new session",
			"error", err,
			"session_id", session.ID)
		return nil, NewBatchServiceError("create_session", "failed to save session", err)
	}

	s.logger.Info("session created",
		"session_id", session.ID,
		"name", session.Name,
		"item_count", session.TotalCount())
	return session, nil
}

// StartRun registers a run under the single-run-per-session guard and
// launches it in the background.
func (s *batchServiceImpl) StartRun(
	ctx context.Context,
	sessionID uuid.UUID,
	document, systemPreamble string,
) error {
	session, runCtx, cancel, err := s.beginRun(ctx, sessionID)
	if err != nil {
		return err
	}

	go func() {
		defer s.endRun(sessionID, cancel)
		s.executeRun(runCtx, session, document, systemPreamble)
	}()

	return nil
}

// executeRun drives a run end to end: cache prepare, scheduling,
// teardown, persistence. Progress is saved after every settled item, so
// an interrupted process loses at most the non-terminal items.
func (s *batchServiceImpl) executeRun(
	runCtx context.Context,
	session *domain.BatchSession,
	document, systemPreamble string,
) {
	sessionID := session.ID
	if systemPreamble == "" {
		systemPreamble = s.cfg.DefaultSystemPreamble
	}

	log := s.logger.With("session_id", sessionID)
	log.Info("starting run",
		"pending_count", len(session.PendingItems()),
		"total_count", session.TotalCount())

	var previous *domain.CacheHandle
	if session.CacheHandleID != "" {
		previous = &domain.CacheHandle{ID: session.CacheHandleID}
	}

	handle, err := s.coordinator.Prepare(runCtx, document, s.cfg.CacheTTL, systemPreamble, previous)
	if err != nil {
		outcome := RunFailed
		if errors.Is(err, context.Canceled) {
			outcome = RunAborted
		}
		// The residue reference stays attached: if its deletion failed the
		// resource may still exist, and a stale ID resolves to a tolerated
		// not-found on the next attempt.
		s.emitRunFinished(session, outcome)
		log.Error("cache preparation failed", "error", redact.Error(err))
		return
	}

	session.AttachCache(handle.ID)
	s.persistSession(runCtx, session, log)

	schedCfg := batch.SchedulerConfig{
		Concurrency:        s.cfg.Concurrency,
		Retry:              s.cfg.Retry,
		InterDispatchDelay: s.cfg.InterDispatchDelay,
	}

	runErr := s.scheduler.Run(runCtx, session, handle, schedCfg, func(ctx context.Context, item *domain.BatchItem) {
		s.persistSession(ctx, session, log)
		s.emitItemSettled(session, item)
	})

	outcome := RunCompleted
	reason := batch.TeardownCompleted
	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		outcome, reason = RunAborted, batch.TeardownAborted
	default:
		outcome, reason = RunFailed, batch.TeardownFailed
	}

	// A kept cache only makes sense after a clean finish; aborted and
	// failed runs always release theirs.
	keepCache := outcome == RunCompleted && !s.cfg.AutoDeleteCache
	if !keepCache {
		s.coordinator.Teardown(context.WithoutCancel(runCtx), handle, reason)
		session.DetachCache()
	}
	s.persistSession(context.WithoutCancel(runCtx), session, log)
	s.emitRunFinished(session, outcome)

	log.Info("run finished",
		"outcome", string(outcome),
		"completed_count", session.CompletedCount(),
		"total_count", session.TotalCount(),
		"cache_kept", keepCache)
}

// beginRun loads the session and registers the run under the
// single-run-per-session guard.
func (s *batchServiceImpl) beginRun(
	ctx context.Context,
	sessionID uuid.UUID,
) (*domain.BatchSession, context.Context, context.CancelFunc, error) {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, nil, nil, NewBatchServiceError("run", "failed to load session", err)
	}
	if len(session.PendingItems()) == 0 {
		return nil, nil, nil, ErrNothingToRun
	}

	// The run outlives the caller's request, so its context is detached
	// from the caller's cancellation. CancelRun is the only way to stop
	// it early.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, active := s.running[sessionID]; active {
		cancel()
		return nil, nil, nil, ErrRunInProgress
	}
	s.running[sessionID] = cancel

	return session, runCtx, cancel, nil
}

// endRun removes the run from the active set and releases its context.
func (s *batchServiceImpl) endRun(sessionID uuid.UUID, cancel context.CancelFunc) {
	s.mu.Lock()
	delete(s.running, sessionID)
	s.mu.Unlock()
	cancel()
}

// CancelRun requests cancellation of an active run. It is idempotent:
// cancelling a session that is not running succeeds without effect.
func (s *batchServiceImpl) CancelRun(ctx context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	cancel, active := s.running[sessionID]
	s.mu.Unlock()

	if active {
		s.logger.Info("cancellation requested", "session_id", sessionID)
		cancel()
		return nil
	}

	// Not running: still distinguish "nothing to cancel" from "no such
	// session" for the caller.
	if _, err := s.repo.GetByID(ctx, sessionID); err != nil {
		return NewBatchServiceError("cancel", "failed to load session", err)
	}
	s.logger.Debug("cancel requested for idle session", "session_id", sessionID)
	return nil
}

// GetSession retrieves a session by ID.
func (s *batchServiceImpl) GetSession(ctx context.Context, sessionID uuid.UUID) (*domain.BatchSession, error) {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, NewBatchServiceError("get_session", "failed to load session", err)
	}
	return session, nil
}

// ListSessions retrieves all sessions, newest first.
func (s *batchServiceImpl) ListSessions(ctx context.Context) ([]*domain.BatchSession, error) {
	sessions, err := s.repo.List(ctx)
	if err != nil {
		return nil, NewBatchServiceError("list_sessions", "failed to list sessions", err)
	}
	return sessions, nil
}

// DeleteSession removes a session and best-effort deletes any cache
// still attached to it.
func (s *batchServiceImpl) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	if s.isRunning(sessionID) {
		return ErrRunInProgress
	}

	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return NewBatchServiceError("delete_session", "failed to load session", err)
	}

	if session.CacheHandleID != "" {
		if err := s.caches.DeleteCache(ctx, session.CacheHandleID); err != nil &&
			!errors.Is(err, generation.ErrCacheNotFound) {
			s.logger.Warn("failed to delete cache during session delete",
				"session_id", sessionID,
				"cache_id", session.CacheHandleID,
				"error", redact.Error(err))
		}
	}

	if err := s.repo.Delete(ctx, sessionID); err != nil {
		return NewBatchServiceError("delete_session", "failed to delete session", err)
	}

	s.logger.Info("session deleted", "session_id", sessionID)
	return nil
}

// DeleteCache deletes the session's attached cache on demand and clears
// the reference.
func (s *batchServiceImpl) DeleteCache(ctx context.Context, sessionID uuid.UUID) error {
	if s.isRunning(sessionID) {
		return ErrRunInProgress
	}

	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return NewBatchServiceError("delete_cache", "failed to load session", err)
	}
	if session.CacheHandleID == "" {
		return ErrNoCacheAttached
	}

	cacheID := session.CacheHandleID
	if err := s.caches.DeleteCache(ctx, cacheID); err != nil &&
		!errors.Is(err, generation.ErrCacheNotFound) {
		return NewBatchServiceError("delete_cache", "failed to delete context cache", err)
	}

	session.DetachCache()
	err = s.repo.Transact(ctx, func(ctx context.Context, repo SessionRepository) error {
		return repo.Save(ctx, session)
	})
	if err != nil {
		return NewBatchServiceError("delete_cache", "failed to save session", err)
	}

	s.logger.Info("context cache deleted on request",
		"session_id", sessionID,
		"cache_id", cacheID)
	return nil
}

func (s *batchServiceImpl) isRunning(sessionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, active := s.running[sessionID]
	return active
}

// persistSession saves the session in a transaction. Persistence
// failures do not stop a run; the state is retried at the next settle.
func (s *batchServiceImpl) persistSession(ctx context.Context, session *domain.BatchSession, log *slog.Logger) {
	err := s.repo.Transact(ctx, func(ctx context.Context, repo SessionRepository) error {
		return repo.Save(ctx, session)
	})
	if err != nil {
		log.Error("failed to persist session state", "error", err)
	}
}

// emitItemSettled publishes an item-settled event. Emission failures are
// logged only.
func (s *batchServiceImpl) emitItemSettled(session *domain.BatchSession, item *domain.BatchItem) {
	event, err := events.NewBatchEvent(events.EventItemSettled, session.ID, events.ItemSettledPayload{
		ItemID:       item.ID,
		SourceName:   item.SourceName,
		Status:       string(item.Status),
		ErrorMessage: item.ErrorMessage,
	})
	if err != nil {
		s.logger.Error("failed to build item settled event", "error", err)
		return
	}
	if err := s.eventEmitter.EmitEvent(context.Background(), event); err != nil {
		s.logger.Error("failed to emit item settled event", "error", err)
	}
}

// emitRunFinished publishes a run-finished event.
func (s *batchServiceImpl) emitRunFinished(session *domain.BatchSession, outcome RunOutcome) {
	event, err := events.NewBatchEvent(events.EventRunFinished, session.ID, events.RunFinishedPayload{
		Outcome:        string(outcome),
		CompletedCount: session.CompletedCount(),
		TotalCount:     session.TotalCount(),
	})
	if err != nil {
		s.logger.Error("failed to build run finished event", "error", err)
		return
	}
	if err := s.eventEmitter.EmitEvent(context.Background(), event); err != nil {
		s.logger.Error("failed to emit run finished event", "error", err)
	}
}
