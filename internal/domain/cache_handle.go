package domain

import "time"

// CacheHandle describes a provider-side context cache: a time-limited,
// billable resource holding a large prompt context. The handle is issued
// by the remote service and exclusively owned by the cache lifecycle
// coordinator for the duration of one run. It is immutable once issued,
// so concurrently executing tasks may share it without locking.
type CacheHandle struct {
	// ID is the opaque resource name issued by the remote service.
	ID string

	// CreatedAt is when the remote resource was created.
	CreatedAt time.Time

	// TTL is the requested lifetime of the resource.
	TTL time.Duration

	// TokenCount is the cached content size reported at creation time.
	TokenCount int32
}

// ExpiresAt returns when the remote resource lapses on its own.
func (h *CacheHandle) ExpiresAt() time.Time {
	return h.CreatedAt.Add(h.TTL)
}
