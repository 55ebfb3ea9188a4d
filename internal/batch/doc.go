// Package batch contains the batch execution engine: a bounded-concurrency
// scheduler that drives every item of a session to a terminal state with
// retry and backoff, and a coordinator that owns the lifecycle of the single
// shared context cache a run depends on. All item mutations are funneled
// through the scheduling goroutine, so observers always see consistent
// aggregate counts.
package batch
