package api

import (
	"time"

	"github.com/aaasdream/ai-studio-like/internal/domain"
)

// ItemSpecRequest describes one prompt in a session creation request.
type ItemSpecRequest struct {
	SourceName string `json:"source_name" validate:"required,min=1"`
	Prompt     string `json:"prompt"      validate:"required,min=1"`
}

// CreateSessionRequest represents the request body for creating a session.
type CreateSessionRequest struct {
	Name  string            `json:"name"  validate:"required,min=1,max=200"`
	Items []ItemSpecRequest `json:"items" validate:"required,min=1,dive"`
}

// RunSessionRequest represents the request body for starting a run.
// Document is the shared context the run's cache is built from.
type RunSessionRequest struct {
	Document       string `json:"document" validate:"required,min=1"`
	SystemPreamble string `json:"system_preamble"`
}

// TokenUsageResponse reports the token counts of a settled item.
type TokenUsageResponse struct {
	PromptTokens int `json:"prompt_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ItemResponse represents one item of a session.
type ItemResponse struct {
	ID           string              `json:"id"`
	SourceName   string              `json:"source_name"`
	Prompt       string              `json:"prompt"`
	Answer       string              `json:"answer,omitempty"`
	Status       string              `json:"status"`
	ErrorMessage string              `json:"error_message,omitempty"`
	TokenUsage   *TokenUsageResponse `json:"token_usage,omitempty"`
}

// SessionResponse represents the response data for a session.
// CompletedCount and IsFinished are derived from item states.
type SessionResponse struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	CreatedAt      time.Time      `json:"created_at"`
	Items          []ItemResponse `json:"items"`
	CompletedCount int            `json:"completed_count"`
	TotalCount     int            `json:"total_count"`
	IsFinished     bool           `json:"is_finished"`
	CacheHandleID  string         `json:"cache_handle_id,omitempty"`
}

// SessionSummaryResponse is the compact form used by list responses.
type SessionSummaryResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
	CompletedCount int       `json:"completed_count"`
	TotalCount     int       `json:"total_count"`
	IsFinished     bool      `json:"is_finished"`
	CacheHandleID  string    `json:"cache_handle_id,omitempty"`
}

// toSessionResponse converts a domain session to its API representation.
func toSessionResponse(session *domain.BatchSession) SessionResponse {
	items := make([]ItemResponse, 0, len(session.Items))
	for _, item := range session.Items {
		resp := ItemResponse{
			ID:           item.ID.String(),
			SourceName:   item.SourceName,
			Prompt:       item.Prompt,
			Answer:       item.Answer,
			Status:       string(item.Status),
			ErrorMessage: item.ErrorMessage,
		}
		if item.Usage != nil {
			resp.TokenUsage = &TokenUsageResponse{
				PromptTokens: item.Usage.PromptTokens,
				OutputTokens: item.Usage.OutputTokens,
			}
		}
		items = append(items, resp)
	}

	return SessionResponse{
		ID:             session.ID.String(),
		Name:           session.Name,
		CreatedAt:      session.CreatedAt,
		Items:          items,
		CompletedCount: session.CompletedCount(),
		TotalCount:     session.TotalCount(),
		IsFinished:     session.IsFinished(),
		CacheHandleID:  session.CacheHandleID,
	}
}

// toSessionSummaryResponse converts a domain session to its list form.
func toSessionSummaryResponse(session *domain.BatchSession) SessionSummaryResponse {
	return SessionSummaryResponse{
		ID:             session.ID.String(),
		Name:           session.Name,
		CreatedAt:      session.CreatedAt,
		CompletedCount: session.CompletedCount(),
		TotalCount:     session.TotalCount(),
		IsFinished:     session.IsFinished(),
		CacheHandleID:  session.CacheHandleID,
	}
}
