package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaasdream/ai-studio-like/internal/domain"
	"github.com/aaasdream/ai-studio-like/internal/generation"
	"github.com/aaasdream/ai-studio-like/internal/mocks"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func newTestSession(t *testing.T, n int) *domain.BatchSession {
	t.Helper()
	specs := make([]domain.ItemSpec, 0, n)
	for i := 0; i < n; i++ {
		specs = append(specs, domain.ItemSpec{
			SourceName: fmt.Sprintf("doc-%d.md", i),
			Prompt:     fmt.Sprintf("question %d", i),
		})
	}
	session, err := domain.NewBatchSession("test session", specs)
	require.NoError(t, err)
	return session
}

// fastConfig keeps test runs quick: no smoothing delay, tiny backoff.
func fastConfig(concurrency, maxRetries int) SchedulerConfig {
	return SchedulerConfig{
		Concurrency: concurrency,
		Retry: RetryPolicy{
			MaxRetries:  maxRetries,
			BackoffBase: 2,
			BackoffUnit: time.Millisecond,
		},
		InterDispatchDelay: 0,
	}
}

func TestNewScheduler(t *testing.T) {
	t.Parallel()

	_, err := NewScheduler(nil, testLogger())
	assert.ErrorIs(t, err, ErrNilGenerator)

	_, err = NewScheduler(&mocks.MockGenerator{}, nil)
	assert.ErrorIs(t, err, ErrNilLogger)

	s, err := NewScheduler(&mocks.MockGenerator{}, testLogger())
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestScheduler_Run_Validation(t *testing.T) {
	t.Parallel()

	s, err := NewScheduler(&mocks.MockGenerator{}, testLogger())
	require.NoError(t, err)

	err = s.Run(context.Background(), nil, nil, fastConfig(3, 0), nil)
	assert.ErrorIs(t, err, ErrNilSession)

	err = s.Run(context.Background(), newTestSession(t, 1), nil, fastConfig(0, 0), nil)
	assert.ErrorIs(t, err, ErrInvalidConcurrency)
}

func TestScheduler_Run_AllItemsSucceed(t *testing.T) {
	t.Parallel()

	generator := mocks.NewMockGeneratorWithAnswer("the answer")
	s, err := NewScheduler(generator, testLogger())
	require.NoError(t, err)

	session := newTestSession(t, 10)
	handle := &domain.CacheHandle{ID: "cachedContents/test"}

	var settled []*domain.BatchItem
	err = s.Run(context.Background(), session, handle, fastConfig(3, 2),
		func(ctx context.Context, item *domain.BatchItem) {
			settled = append(settled, item)
		})
	require.NoError(t, err)

	assert.True(t, session.IsFinished())
	assert.Equal(t, 10, session.CompletedCount())
	assert.Len(t, settled, 10, "observer fires once per item")
	assert.Equal(t, 10, generator.CallCount())

	for _, item := range session.Items {
		assert.Equal(t, domain.ItemStatusSuccess, item.Status)
		assert.Equal(t, "the answer", item.Answer)
	}

	// Every call carried the run's cache handle
	for _, cacheID := range generator.Calls.CacheIDs {
		assert.Equal(t, "cachedContents/test", cacheID)
	}
}

func TestScheduler_Run_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	generator := &mocks.MockGenerator{
		GenerateAnswerFn: func(ctx context.Context, prompt, cacheID string) (*generation.Answer, error) {
			time.Sleep(10 * time.Millisecond)
			return &generation.Answer{Text: "ok"}, nil
		},
	}
	s, err := NewScheduler(generator, testLogger())
	require.NoError(t, err)

	session := newTestSession(t, 12)
	err = s.Run(context.Background(), session, nil, fastConfig(3, 0), nil)
	require.NoError(t, err)

	assert.True(t, session.IsFinished())
	assert.LessOrEqual(t, generator.MaxObservedInFlight(), 3,
		"in-flight calls must never exceed the configured bound")
}

func TestScheduler_Run_RetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	attempts := map[string]int{}
	generator := &mocks.MockGenerator{
		GenerateAnswerFn: func(ctx context.Context, prompt, cacheID string) (*generation.Answer, error) {
			mu.Lock()
			attempts[prompt]++
			n := attempts[prompt]
			mu.Unlock()
			if n < 3 {
				return nil, fmt.Errorf("%w: 503", generation.ErrTransientFailure)
			}
			return &generation.Answer{Text: "recovered"}, nil
		},
	}
	s, err := NewScheduler(generator, testLogger())
	require.NoError(t, err)

	session := newTestSession(t, 2)
	err = s.Run(context.Background(), session, nil, fastConfig(2, 5), nil)
	require.NoError(t, err)

	assert.True(t, session.IsFinished())
	for _, item := range session.Items {
		assert.Equal(t, domain.ItemStatusSuccess, item.Status)
		assert.Equal(t, "recovered", item.Answer)
	}
	// Two failures then one success, per item
	assert.Equal(t, 6, generator.CallCount())
}

func TestScheduler_Run_ExhaustsRetriesAndFails(t *testing.T) {
	t.Parallel()

	generator := mocks.NewMockGeneratorWithError(
		fmt.Errorf("%w: quota", generation.ErrTransientFailure))
	s, err := NewScheduler(generator, testLogger())
	require.NoError(t, err)

	session := newTestSession(t, 1)
	var settled []*domain.BatchItem
	err = s.Run(context.Background(), session, nil, fastConfig(1, 5),
		func(ctx context.Context, item *domain.BatchItem) {
			settled = append(settled, item)
		})
	require.NoError(t, err, "an exhausted item settles the run normally")

	item := session.Items[0]
	assert.Equal(t, domain.ItemStatusError, item.Status)
	assert.Contains(t, item.ErrorMessage, "quota")
	assert.Len(t, settled, 1)

	// Initial attempt plus five retries
	assert.Equal(t, 6, generator.CallCount())
}

func TestScheduler_Run_PermanentErrorDoesNotRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{"content blocked", generation.ErrContentBlocked},
		{"invalid response", generation.ErrInvalidResponse},
		{"generation failed", generation.ErrGenerationFailed},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			generator := mocks.NewMockGeneratorWithError(fmt.Errorf("%w: nope", tc.err))
			s, err := NewScheduler(generator, testLogger())
			require.NoError(t, err)

			session := newTestSession(t, 1)
			err = s.Run(context.Background(), session, nil, fastConfig(1, 5), nil)
			require.NoError(t, err)

			assert.Equal(t, domain.ItemStatusError, session.Items[0].Status)
			assert.Equal(t, 1, generator.CallCount(), "permanent errors settle immediately")
		})
	}
}

func TestScheduler_Run_EmptyAnswerIsPermanentFailure(t *testing.T) {
	t.Parallel()

	generator := &mocks.MockGenerator{Answer: &generation.Answer{Text: ""}}
	s, err := NewScheduler(generator, testLogger())
	require.NoError(t, err)

	session := newTestSession(t, 1)
	err = s.Run(context.Background(), session, nil, fastConfig(1, 5), nil)
	require.NoError(t, err)

	assert.Equal(t, domain.ItemStatusError, session.Items[0].Status)
	assert.Equal(t, 1, generator.CallCount())
}

func TestScheduler_Run_CancellationStopsNewDispatches(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	release := make(chan struct{})
	started := make(chan struct{}, 16)
	generator := &mocks.MockGenerator{
		GenerateAnswerFn: func(ctx context.Context, prompt, cacheID string) (*generation.Answer, error) {
			started <- struct{}{}
			<-release
			return &generation.Answer{Text: "late but recorded"}, nil
		},
	}
	s, err := NewScheduler(generator, testLogger())
	require.NoError(t, err)

	session := newTestSession(t, 5)

	runErr := make(chan error, 1)
	go func() {
		runErr <- s.Run(ctx, session, nil, fastConfig(2, 0), nil)
	}()

	// Wait for the first two dispatches to be in flight, then cancel.
	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for dispatches")
		}
	}
	cancel()
	close(release)

	select {
	case err := <-runErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for run to stop")
	}

	// The two in-flight items finished and were recorded; the other three
	// were never dispatched.
	assert.Equal(t, 2, session.CompletedCount())
	assert.Equal(t, 2, generator.CallCount())
	for _, item := range session.PendingItems() {
		assert.Equal(t, domain.ItemStatusPending, item.Status,
			"undispatched items stay pending for a later run")
	}
}

func TestScheduler_Run_ResetsStaleLoadingItems(t *testing.T) {
	t.Parallel()

	session := newTestSession(t, 3)
	// Simulate residue from an interrupted run
	require.NoError(t, session.Items[1].MarkLoading())

	generator := mocks.NewMockGeneratorWithAnswer("ok")
	s, err := NewScheduler(generator, testLogger())
	require.NoError(t, err)

	err = s.Run(context.Background(), session, nil, fastConfig(2, 0), nil)
	require.NoError(t, err)

	assert.True(t, session.IsFinished())
	assert.Equal(t, 3, generator.CallCount())
}

func TestScheduler_Run_SkipsTerminalItems(t *testing.T) {
	t.Parallel()

	session := newTestSession(t, 3)
	require.NoError(t, session.Items[0].MarkLoading())
	require.NoError(t, session.Items[0].MarkSuccess("already done", nil))

	generator := mocks.NewMockGeneratorWithAnswer("fresh")
	s, err := NewScheduler(generator, testLogger())
	require.NoError(t, err)

	err = s.Run(context.Background(), session, nil, fastConfig(2, 0), nil)
	require.NoError(t, err)

	assert.True(t, session.IsFinished())
	assert.Equal(t, 2, generator.CallCount(), "settled items are not re-dispatched")
	assert.Equal(t, "already done", session.Items[0].Answer)
}

func TestScheduler_Run_ObserverSeesTerminalState(t *testing.T) {
	t.Parallel()

	generator := mocks.NewMockGeneratorWithAnswer("answer")
	s, err := NewScheduler(generator, testLogger())
	require.NoError(t, err)

	session := newTestSession(t, 4)
	err = s.Run(context.Background(), session, nil, fastConfig(2, 0),
		func(ctx context.Context, item *domain.BatchItem) {
			assert.True(t, item.IsTerminal(),
				"observer must only see settled items")
		})
	require.NoError(t, err)
	assert.True(t, session.IsFinished())
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	assert.False(t, isRetryable(generation.ErrContentBlocked))
	assert.False(t, isRetryable(fmt.Errorf("wrapped: %w", generation.ErrInvalidResponse)))
	assert.False(t, isRetryable(generation.ErrGenerationFailed))

	assert.True(t, isRetryable(generation.ErrTransientFailure))
	assert.True(t, isRetryable(errors.New("some unknown transport error")))
}
