package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aaasdream/ai-studio-like/internal/domain"
	"github.com/aaasdream/ai-studio-like/internal/generation"
)

// TeardownReason records why a cache handle is being released.
type TeardownReason string

// Possible teardown reasons
const (
	TeardownCompleted TeardownReason = "completed"
	TeardownAborted   TeardownReason = "aborted"
	TeardownFailed    TeardownReason = "failed"
)

// ErrNilCacheManager is returned when constructing a Coordinator without
// a cache manager.
var ErrNilCacheManager = errors.New("cache manager cannot be nil")

// Coordinator owns the lifecycle of the single context cache a batch run
// depends on. It guarantees at most one active handle per run, enforces
// the warm-up delay before the handle is handed out, and releases every
// successfully created handle exactly once.
//
// The cache is billed per unit time while active, so the coordinator
// creates as late as possible and deletes as early as possible once no
// request will reference the handle again.
type Coordinator struct {
	caches      generation.CacheManager
	warmupDelay time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	released map[string]bool
}

// NewCoordinator creates a Coordinator with the given warm-up delay.
func NewCoordinator(caches generation.CacheManager, warmupDelay time.Duration, logger *slog.Logger) (*Coordinator, error) {
	if caches == nil {
		return nil, ErrNilCacheManager
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	return &Coordinator{
		caches:      caches,
		warmupDelay: warmupDelay,
		logger:      logger.With("component", "cache_coordinator"),
		released:    make(map[string]bool),
	}, nil
}

// Prepare sets up the context cache for a run: it best-effort deletes any
// residue handle from an earlier run, creates a fresh cache from the
// document, and waits out the warm-up delay so the scheduler never
// dispatches against a cache the remote side has not finished settling.
//
// A creation failure is fatal to the run; the caller must not start the
// scheduler. If ctx is cancelled during warm-up, the fresh cache is
// deleted and the context error returned, so no orphaned paid resource
// survives.
func (c *Coordinator) Prepare(
	ctx context.Context,
	document string,
	ttl time.Duration,
	systemPreamble string,
	previous *domain.CacheHandle,
) (*domain.CacheHandle, error) {
	if previous != nil && previous.ID != "" {
		// Residue from an improperly terminated run. Deletion failures are
		// logged only; the resource may already have expired server-side.
		if err := c.caches.DeleteCache(ctx, previous.ID); err != nil && !errors.Is(err, generation.ErrCacheNotFound) {
			c.logger.Warn("failed to delete residue cache", "cache_id", previous.ID, "error", err)
		} else {
			c.logger.Info("deleted residue cache from earlier run", "cache_id", previous.ID)
		}
	}

	handle, err := c.caches.CreateCache(ctx, document, ttl, systemPreamble)
	if err != nil {
		return nil, fmt.Errorf("failed to create context cache: %w", err)
	}

	c.logger.Info("context cache created",
		"cache_id", handle.ID,
		"token_count", handle.TokenCount,
		"expires_at", handle.ExpiresAt())

	// A freshly created cache may not be immediately consistent remotely.
	timer := time.NewTimer(c.warmupDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		c.logger.Info("cancelled during cache warm-up", "cache_id", handle.ID)
		c.Teardown(context.WithoutCancel(ctx), handle, TeardownAborted)
		return nil, ctx.Err()
	}

	return handle, nil
}

// Teardown deletes the handle's remote resource. It is idempotent per
// handle: the first call wins, later ones log and return. Deletion
// failures are swallowed after logging, since the most common cause is
// the cache having already expired; local bookkeeping still treats the
// handle as released.
func (c *Coordinator) Teardown(ctx context.Context, handle *domain.CacheHandle, reason TeardownReason) {
	if handle == nil || handle.ID == "" {
		return
	}

	c.mu.Lock()
	if c.released[handle.ID] {
		c.mu.Unlock()
		c.logger.Warn("duplicate teardown ignored", "cache_id", handle.ID, "reason", reason)
		return
	}
	c.released[handle.ID] = true
	c.mu.Unlock()

	if err := c.caches.DeleteCache(ctx, handle.ID); err != nil {
		if errors.Is(err, generation.ErrCacheNotFound) {
			c.logger.Debug("cache already gone", "cache_id", handle.ID, "reason", reason)
			return
		}
		c.logger.Warn("failed to delete context cache",
			"cache_id", handle.ID, "reason", reason, "error", err)
		return
	}

	c.logger.Info("context cache deleted", "cache_id", handle.ID, "reason", reason)
}
