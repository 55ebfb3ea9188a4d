package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/aaasdream/ai-studio-like/internal/domain"
)

// MockCacheManager implements generation.CacheManager for testing
type MockCacheManager struct {
	// CreateCacheFn allows test cases to mock the CreateCache behavior
	CreateCacheFn func(ctx context.Context, content string, ttl time.Duration, systemPreamble string) (*domain.CacheHandle, error)

	// DeleteCacheFn allows test cases to mock the DeleteCache behavior
	DeleteCacheFn func(ctx context.Context, handleID string) error

	// Default response values
	Handle    *domain.CacheHandle
	CreateErr error
	DeleteErr error

	// Call tracking for verification
	mu         sync.Mutex
	creates    int
	deletes    []string
	lastCreate time.Time
}

// CreateCache implements the generation.CacheManager interface
func (m *MockCacheManager) CreateCache(
	ctx context.Context,
	content string,
	ttl time.Duration,
	systemPreamble string,
) (*domain.CacheHandle, error) {
	m.mu.Lock()
	m.creates++
	m.lastCreate = time.Now()
	m.mu.Unlock()

	if m.CreateCacheFn != nil {
		return m.CreateCacheFn(ctx, content, ttl, systemPreamble)
	}
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if m.Handle != nil {
		return m.Handle, nil
	}
	return &domain.CacheHandle{
		ID:        "cachedContents/mock-cache",
		CreatedAt: time.Now().UTC(),
		TTL:       ttl,
	}, nil
}

// DeleteCache implements the generation.CacheManager interface
func (m *MockCacheManager) DeleteCache(ctx context.Context, handleID string) error {
	m.mu.Lock()
	m.deletes = append(m.deletes, handleID)
	m.mu.Unlock()

	if m.DeleteCacheFn != nil {
		return m.DeleteCacheFn(ctx, handleID)
	}
	return m.DeleteErr
}

// CreateCount returns how many times CreateCache was called.
func (m *MockCacheManager) CreateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates
}

// Deletes returns the handle IDs passed to DeleteCache, in call order.
func (m *MockCacheManager) Deletes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.deletes))
	copy(out, m.deletes)
	return out
}

// LastCreateTime returns when CreateCache was last called.
func (m *MockCacheManager) LastCreateTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCreate
}
