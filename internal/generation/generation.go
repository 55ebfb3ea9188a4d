package generation

import (
	"context"
	"time"

	"github.com/aaasdream/ai-studio-like/internal/domain"
)

// Answer is the result of one successful generate call.
type Answer struct {
	// Text is the generated answer body.
	Text string

	// Usage carries the token counts the remote service reported.
	Usage domain.TokenUsage
}

// Generator issues a single generate-content call against the remote
// service. Implementations may be slow and may fail transiently; retry
// decisions belong to the caller, not the implementation.
type Generator interface {
	// GenerateAnswer answers one prompt. If cacheID is non-empty the call
	// references the server-side context cache with that resource name.
	//
	// Errors wrap one of the sentinel errors in this package so callers
	// can distinguish transient failures from permanent ones.
	GenerateAnswer(ctx context.Context, prompt string, cacheID string) (*Answer, error)
}

// CacheManager creates and deletes the server-side context cache.
// Neither operation is guaranteed idempotent by the remote service.
type CacheManager interface {
	// CreateCache uploads content as a cached context with the given TTL.
	// systemPreamble, when non-empty, is stored alongside the content as
	// the system instruction. Fails with ErrCacheContentTooSmall if the
	// content is below the provider-defined minimum size.
	CreateCache(ctx context.Context, content string, ttl time.Duration, systemPreamble string) (*domain.CacheHandle, error)

	// DeleteCache removes the cached context with the given resource name.
	// Returns an error wrapping ErrCacheNotFound if the resource is gone
	// already; callers treat that as a non-fatal outcome.
	DeleteCache(ctx context.Context, handleID string) error
}
