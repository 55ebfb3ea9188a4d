package events

import (
	"context"
	"log/slog"
)

// AuditLogHandler writes every batch lifecycle event to the structured
// log, giving runs a durable audit trail of item settlements and run
// outcomes alongside the persisted session state.
type AuditLogHandler struct {
	logger *slog.Logger
}

// NewAuditLogHandler creates a handler that logs events to the given
// logger.
func NewAuditLogHandler(logger *slog.Logger) *AuditLogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogHandler{
		logger: logger.With("component", "audit_log_handler"),
	}
}

// HandleEvent implements the EventHandler interface. Payloads that fail
// to decode are logged in raw form; the handler never fails an emit.
func (h *AuditLogHandler) HandleEvent(ctx context.Context, event *BatchEvent) error {
	log := h.logger.With(
		"event_id", event.ID,
		"event_type", event.Type,
		"session_id", event.SessionID,
	)

	switch event.Type {
	case EventItemSettled:
		var payload ItemSettledPayload
		if err := event.UnmarshalPayload(&payload); err != nil {
			log.Warn("audit: undecodable item settled payload", "error", err)
			return nil
		}
		log.Info("audit: item settled",
			"item_id", payload.ItemID,
			"source_name", payload.SourceName,
			"status", payload.Status,
			"error_message", payload.ErrorMessage)

	case EventRunFinished:
		var payload RunFinishedPayload
		if err := event.UnmarshalPayload(&payload); err != nil {
			log.Warn("audit: undecodable run finished payload", "error", err)
			return nil
		}
		log.Info("audit: run finished",
			"outcome", payload.Outcome,
			"completed_count", payload.CompletedCount,
			"total_count", payload.TotalCount)

	default:
		log.Info("audit: event", "payload", string(event.Payload))
	}

	return nil
}
