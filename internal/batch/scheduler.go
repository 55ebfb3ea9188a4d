package batch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aaasdream/ai-studio-like/internal/domain"
	"github.com/aaasdream/ai-studio-like/internal/generation"
)

// Common errors returned by the Scheduler
var (
	ErrNilSession         = errors.New("session cannot be nil")
	ErrNilGenerator       = errors.New("generator cannot be nil")
	ErrNilLogger          = errors.New("logger cannot be nil")
	ErrInvalidConcurrency = errors.New("concurrency must be a positive integer")
)

// SchedulerConfig holds the per-run knobs of the scheduler.
type SchedulerConfig struct {
	// Concurrency bounds the number of simultaneous remote calls.
	// The caller is responsible for keeping it low enough (1-5) to avoid
	// remote rate-limiting; overload responses are retried like any other
	// transient failure.
	Concurrency int

	// Retry decides whether and when a failed item gets another attempt.
	Retry RetryPolicy

	// InterDispatchDelay is a fixed delay applied inside each execution
	// before the remote call, smoothing bursty load.
	InterDispatchDelay time.Duration
}

// DefaultSchedulerConfig returns a SchedulerConfig with the recommended
// defaults: 3 concurrent calls, default retry policy, 1s smoothing delay.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Concurrency:        3,
		Retry:              DefaultRetryPolicy(),
		InterDispatchDelay: time.Second,
	}
}

// ItemObserver is invoked on the scheduling goroutine each time an item
// reaches a terminal status, before the next dispatch decision. Observers
// see the session in a consistent state.
type ItemObserver func(ctx context.Context, item *domain.BatchItem)

// Scheduler drives every non-terminal item of a session to a terminal
// state using a bounded pool of concurrent remote calls. It is the single
// writer for item state; no other component mutates items during a run.
type Scheduler struct {
	generator generation.Generator
	logger    *slog.Logger
}

// NewScheduler creates a Scheduler backed by the given generator.
func NewScheduler(generator generation.Generator, logger *slog.Logger) (*Scheduler, error) {
	if generator == nil {
		return nil, ErrNilGenerator
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	return &Scheduler{
		generator: generator,
		logger:    logger.With("component", "batch_scheduler"),
	}, nil
}

// retryTicket is the internal scheduling record for one item: the item
// plus the count of prior failed tries. Discarded once the item settles.
type retryTicket struct {
	item    *domain.BatchItem
	attempt int
}

// execResult carries the outcome of one execution back to the scheduling
// goroutine.
type execResult struct {
	ticket *retryTicket
	answer *generation.Answer
	err    error
}

// Run processes the session's non-terminal items until the queue is
// drained or cancellation is observed, mutating the session in place.
// Dispatch order is FIFO; retried tickets return to the back of the queue
// after a backoff delay, so a failing item never blocks others.
//
// Cancellation (via ctx) is cooperative: it is checked before each new
// dispatch only. Executions already in flight finish naturally and their
// results are still recorded. Run returns ctx.Err() when cancellation cut
// the run short, nil when the queue fully drained.
//
// Run is not re-entrant: a session must not be run twice concurrently.
func (s *Scheduler) Run(
	ctx context.Context,
	session *domain.BatchSession,
	handle *domain.CacheHandle,
	cfg SchedulerConfig,
	onSettled ItemObserver,
) error {
	if session == nil {
		return ErrNilSession
	}
	if cfg.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	cacheID := ""
	if handle != nil {
		cacheID = handle.ID
	}

	logger := s.logger.With("session_id", session.ID.String())

	// Seed the FIFO queue from all non-terminal items. An item left in
	// loading is residue from an interrupted run; reset it so it can be
	// dispatched again.
	var queue []*retryTicket
	for _, item := range session.PendingItems() {
		if item.Status == domain.ItemStatusLoading {
			if err := item.ResetPending(); err != nil {
				logger.Error("failed to reset stale loading item",
					"item_id", item.ID.String(), "error", err)
				continue
			}
		}
		queue = append(queue, &retryTicket{item: item})
	}

	logger.Info("starting batch run",
		"queued", len(queue),
		"total", session.TotalCount(),
		"concurrency", cfg.Concurrency,
		"cache_attached", cacheID != "")

	results := make(chan execResult)
	requeue := make(chan *retryTicket)

	inFlight := 0
	backingOff := 0
	cancelled := false
	done := ctx.Done()

	for {
		// Fill free slots while work is eligible and we are not cancelled.
		for !cancelled && inFlight < cfg.Concurrency && len(queue) > 0 {
			select {
			case <-done:
				cancelled = true
				done = nil
				logger.Info("cancellation observed before dispatch", "in_flight", inFlight)
				continue
			default:
			}

			tk := queue[0]
			queue = queue[1:]
			if err := tk.item.MarkLoading(); err != nil {
				logger.Error("skipping undispatchable item",
					"item_id", tk.item.ID.String(), "error", err)
				continue
			}
			inFlight++
			go s.execute(ctx, tk, cacheID, cfg.InterDispatchDelay, results)
		}

		if inFlight == 0 && backingOff == 0 && (cancelled || len(queue) == 0) {
			break
		}

		select {
		case res := <-results:
			inFlight--
			s.settle(ctx, res, cfg, &backingOff, requeue, onSettled, logger)

		case tk := <-requeue:
			// Backoff elapsed (or was cut short by cancellation); the
			// ticket rejoins the back of the queue.
			backingOff--
			queue = append(queue, tk)

		case <-done:
			cancelled = true
			done = nil
			logger.Info("cancellation observed, waiting for in-flight work",
				"in_flight", inFlight, "backing_off", backingOff)
		}
	}

	logger.Info("batch run finished",
		"completed", session.CompletedCount(),
		"total", session.TotalCount(),
		"cancelled", cancelled)

	if cancelled {
		return ctx.Err()
	}
	return nil
}

// settle records one execution outcome on the scheduling goroutine. It
// either settles the item (success or permanent/exhausted error) or
// schedules a retry ticket for re-queueing after backoff.
func (s *Scheduler) settle(
	ctx context.Context,
	res execResult,
	cfg SchedulerConfig,
	backingOff *int,
	requeue chan<- *retryTicket,
	onSettled ItemObserver,
	logger *slog.Logger,
) {
	tk := res.ticket
	itemLogger := logger.With("item_id", tk.item.ID.String(), "attempt", tk.attempt+1)

	err := res.err
	if err == nil && (res.answer == nil || res.answer.Text == "") {
		err = generation.ErrInvalidResponse
	}

	if err == nil {
		usage := res.answer.Usage
		if markErr := tk.item.MarkSuccess(res.answer.Text, &usage); markErr != nil {
			itemLogger.Error("failed to record success", "error", markErr)
			return
		}
		itemLogger.Info("item succeeded",
			"prompt_tokens", usage.PromptTokens,
			"output_tokens", usage.OutputTokens)
		if onSettled != nil {
			onSettled(ctx, tk.item)
		}
		return
	}

	if isRetryable(err) && cfg.Retry.ShouldRetry(tk.attempt) {
		if resetErr := tk.item.ResetPending(); resetErr != nil {
			itemLogger.Error("failed to re-queue item", "error", resetErr)
			return
		}
		delay := cfg.Retry.Backoff(tk.attempt)
		itemLogger.Warn("item failed, retrying after backoff",
			"error", err, "backoff", delay)

		next := &retryTicket{item: tk.item, attempt: tk.attempt + 1}
		*backingOff++
		go func() {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				// No point finishing the backoff; the loop discards the
				// ticket without dispatching once cancelled.
			}
			requeue <- next
		}()
		return
	}

	if markErr := tk.item.MarkFailed(err.Error()); markErr != nil {
		itemLogger.Error("failed to record failure", "error", markErr)
		return
	}
	itemLogger.Error("item failed permanently", "error", err)
	if onSettled != nil {
		onSettled(ctx, tk.item)
	}
}

// execute performs one remote call and reports the outcome. The call
// deliberately survives run cancellation: in-flight work settles naturally
// and its result is still recorded.
func (s *Scheduler) execute(
	ctx context.Context,
	tk *retryTicket,
	cacheID string,
	smoothing time.Duration,
	results chan<- execResult,
) {
	if smoothing > 0 {
		time.Sleep(smoothing)
	}

	callCtx := context.WithoutCancel(ctx)
	answer, err := s.generator.GenerateAnswer(callCtx, tk.item.Prompt, cacheID)
	results <- execResult{ticket: tk, answer: answer, err: err}
}

// isRetryable reports whether another attempt could help. Unknown errors
// are assumed transient; only the explicitly permanent classes settle an
// item immediately.
func isRetryable(err error) bool {
	switch {
	case errors.Is(err, generation.ErrContentBlocked),
		errors.Is(err, generation.ErrInvalidResponse),
		errors.Is(err, generation.ErrGenerationFailed):
		return false
	default:
		return true
	}
}
