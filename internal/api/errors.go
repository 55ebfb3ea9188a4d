package api

import (
	"errors"
	"net/http"

	"github.com/aaasdream/ai-studio-like/internal/api/shared"
	"github.com/aaasdream/ai-studio-like/internal/service"
)

// respondWithServiceError maps service-layer errors to HTTP responses.
// Sentinel errors become their documented status codes; anything else is
// a 500 with the detail kept in the logs.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		shared.RespondWithError(w, r, http.StatusNotFound, "Session not found")
	case errors.Is(err, service.ErrNoCacheAttached):
		shared.RespondWithError(w, r, http.StatusNotFound, "No context cache attached to session")
	case errors.Is(err, service.ErrRunInProgress):
		shared.RespondWithError(w, r, http.StatusConflict, "A run is already in progress for this session")
	case errors.Is(err, service.ErrNothingToRun):
		shared.RespondWithError(w, r, http.StatusConflict, "Session has no pending items to run")
	default:
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"An internal error occurred", err)
	}
}
