package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for BatchSession
var (
	ErrEmptySessionID   = errors.New("session ID cannot be empty")
	ErrEmptySessionName = errors.New("session name cannot be empty")
	ErrNoItems          = errors.New("session must contain at least one item")
)

// ItemSpec describes one prompt to include when building a session.
type ItemSpec struct {
	SourceName string `json:"source_name"`
	Prompt     string `json:"prompt"`
}

// BatchSession is one user-initiated batch run: an ordered set of
// question-items plus the cache handle the run attached, if any.
// Aggregate counts are always derived from the items, never stored.
type BatchSession struct {
	ID            uuid.UUID    `json:"id"`
	Name          string       `json:"name"`
	CreatedAt     time.Time    `json:"created_at"`
	Items         []*BatchItem `json:"items"`
	CacheHandleID string       `json:"cache_handle_id,omitempty"`
}

// NewBatchSession creates a session whose items are all pending.
// Returns an error if the name is empty, no specs are given, or any
// spec fails item validation.
func NewBatchSession(name string, specs []ItemSpec) (*BatchSession, error) {
	if name == "" {
		return nil, ErrEmptySessionName
	}
	if len(specs) == 0 {
		return nil, ErrNoItems
	}

	items := make([]*BatchItem, 0, len(specs))
	for _, spec := range specs {
		item, err := NewBatchItem(spec.SourceName, spec.Prompt)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return &BatchSession{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
		Items:     items,
	}, nil
}

// Validate checks the session and all of its items.
func (s *BatchSession) Validate() error {
	if s.ID == uuid.Nil {
		return ErrEmptySessionID
	}
	if s.Name == "" {
		return ErrEmptySessionName
	}
	if len(s.Items) == 0 {
		return ErrNoItems
	}
	for _, item := range s.Items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// TotalCount returns the number of items in the session.
func (s *BatchSession) TotalCount() int {
	return len(s.Items)
}

// CompletedCount returns the number of items in a terminal status.
func (s *BatchSession) CompletedCount() int {
	n := 0
	for _, item := range s.Items {
		if item.IsTerminal() {
			n++
		}
	}
	return n
}

// IsFinished reports whether every item has settled.
func (s *BatchSession) IsFinished() bool {
	return s.CompletedCount() == s.TotalCount()
}

// PendingItems returns the items that have not yet reached a terminal
// status, in session order.
func (s *BatchSession) PendingItems() []*BatchItem {
	var out []*BatchItem
	for _, item := range s.Items {
		if !item.IsTerminal() {
			out = append(out, item)
		}
	}
	return out
}

// AttachCache records the cache handle the current run is using.
func (s *BatchSession) AttachCache(handleID string) {
	s.CacheHandleID = handleID
}

// DetachCache clears the cache handle reference after the remote
// resource has been deleted.
func (s *BatchSession) DetachCache() {
	s.CacheHandleID = ""
}
