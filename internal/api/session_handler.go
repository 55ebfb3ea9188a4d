package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aaasdream/ai-studio-like/internal/api/shared"
	"github.com/aaasdream/ai-studio-like/internal/domain"
	"github.com/aaasdream/ai-studio-like/internal/service"
)

// SessionHandler handles batch session HTTP requests.
type SessionHandler struct {
	batchService service.BatchService
	logger       *slog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(batchService service.BatchService, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{
		batchService: batchService,
		logger:       logger.With("component", "session_handler"),
	}
}

// CreateSession handles POST /api/sessions requests.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	specs := make([]domain.ItemSpec, 0, len(req.Items))
	for _, item := range req.Items {
		specs = append(specs, domain.ItemSpec{
			SourceName: item.SourceName,
			Prompt:     item.Prompt,
		})
	}

	session, err := h.batchService.CreateSession(r.Context(), req.Name, specs)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, toSessionResponse(session))
}

// ListSessions handles GET /api/sessions requests.
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.batchService.ListSessions(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	summaries := make([]SessionSummaryResponse, 0, len(sessions))
	for _, session := range sessions {
		summaries = append(summaries, toSessionSummaryResponse(session))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, summaries)
}

// GetSession handles GET /api/sessions/{id} requests.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionIDFromURL(w, r)
	if !ok {
		return
	}

	session, err := h.batchService.GetSession(r.Context(), sessionID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, toSessionResponse(session))
}

// DeleteSession handles DELETE /api/sessions/{id} requests.
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionIDFromURL(w, r)
	if !ok {
		return
	}

	if err := h.batchService.DeleteSession(r.Context(), sessionID); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusNoContent, nil)
}

// RunSession handles POST /api/sessions/{id}/run requests.
// The run executes in the background; the response is 202 Accepted with
// the session's current state. Progress is visible through GetSession.
func (h *SessionHandler) RunSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionIDFromURL(w, r)
	if !ok {
		return
	}

	var req RunSessionRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	if err := h.batchService.StartRun(r.Context(), sessionID, req.Document, req.SystemPreamble); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	h.logger.Info("run accepted",
		"session_id", sessionID,
		"trace_id", shared.GetTraceID(r.Context()))

	session, err := h.batchService.GetSession(r.Context(), sessionID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, toSessionResponse(session))
}

// CancelSessionRun handles POST /api/sessions/{id}/cancel requests.
// Cancellation is cooperative and idempotent: in-flight generations
// finish and are recorded, and cancelling an idle session succeeds.
func (h *SessionHandler) CancelSessionRun(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionIDFromURL(w, r)
	if !ok {
		return
	}

	if err := h.batchService.CancelRun(r.Context(), sessionID); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, map[string]string{
		"status": "cancellation requested",
	})
}

// DeleteSessionCache handles DELETE /api/sessions/{id}/cache requests.
func (h *SessionHandler) DeleteSessionCache(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionIDFromURL(w, r)
	if !ok {
		return
	}

	if err := h.batchService.DeleteCache(r.Context(), sessionID); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusNoContent, nil)
}

// sessionIDFromURL extracts and parses the {id} URL parameter. On
// failure it writes the error response and returns ok=false.
func (h *SessionHandler) sessionIDFromURL(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idParam := chi.URLParam(r, "id")
	sessionID, err := uuid.Parse(idParam)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid session ID")
		return uuid.Nil, false
	}
	return sessionID, true
}
