package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the batch engine.
const (
	// EventItemSettled is emitted each time an item reaches a terminal
	// state (success or error).
	EventItemSettled = "batch.item_settled"

	// EventRunFinished is emitted once per run, after teardown, whether
	// the run completed, aborted, or failed.
	EventRunFinished = "batch.run_finished"
)

// BatchEvent carries a batch lifecycle notification. The payload holds
// event-specific data serialized as JSON.
type BatchEvent struct {
	// ID is a unique identifier for this event.
	ID uuid.UUID `json:"id"`

	// Type is one of the Event* constants.
	Type string `json:"type"`

	// SessionID identifies the batch session the event belongs to.
	SessionID uuid.UUID `json:"session_id"`

	// Payload contains the event-specific data serialized as JSON.
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created.
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *BatchEvent) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewBatchEvent creates a BatchEvent of the given type for a session.
func NewBatchEvent(eventType string, sessionID uuid.UUID, payload interface{}) (*BatchEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &BatchEvent{
		ID:        uuid.New(),
		Type:      eventType,
		SessionID: sessionID,
		Payload:   payloadBytes,
		CreatedAt: time.Now(),
	}, nil
}

// ItemSettledPayload is the payload for EventItemSettled.
type ItemSettledPayload struct {
	ItemID       uuid.UUID `json:"item_id"`
	SourceName   string    `json:"source_name"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// RunFinishedPayload is the payload for EventRunFinished.
type RunFinishedPayload struct {
	Outcome        string `json:"outcome"`
	CompletedCount int    `json:"completed_count"`
	TotalCount     int    `json:"total_count"`
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *BatchEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of
// handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *BatchEvent) error
}
