package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ItemStatus represents the processing state of a batch item
type ItemStatus string

// Possible item status values
const (
	ItemStatusPending ItemStatus = "pending"
	ItemStatusLoading ItemStatus = "loading"
	ItemStatusSuccess ItemStatus = "success"
	ItemStatusError   ItemStatus = "error"
)

// Common validation errors for BatchItem
var (
	ErrEmptyItemID        = errors.New("batch item ID cannot be empty")
	ErrEmptyItemPrompt    = errors.New("batch item prompt cannot be empty")
	ErrInvalidItemStatus  = errors.New("invalid batch item status")
	ErrEmptyAnswer        = errors.New("answer cannot be empty on success")
	ErrEmptyErrorMessage  = errors.New("error message cannot be empty on failure")
	ErrInvalidTransition  = errors.New("invalid batch item status transition")
	ErrItemAlreadySettled = errors.New("batch item already reached a terminal status")
)

// TokenUsage records the token counts reported by the remote service for
// one successful generate call. It feeds the cost accounting layer.
type TokenUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// BatchItem is one question/prompt paired with its eventual answer.
// The prompt is immutable after creation; answer, status and error message
// are driven exclusively by the scheduler.
type BatchItem struct {
	ID           uuid.UUID   `json:"id"`
	SourceName   string      `json:"source_name"`
	Prompt       string      `json:"prompt"`
	Answer       string      `json:"answer"`
	Status       ItemStatus  `json:"status"`
	ErrorMessage string      `json:"error_message"`
	Usage        *TokenUsage `json:"token_usage,omitempty"`
}

// NewBatchItem creates a pending BatchItem for the given prompt.
// Returns an error if validation fails.
func NewBatchItem(sourceName, prompt string) (*BatchItem, error) {
	item := &BatchItem{
		ID:         uuid.New(),
		SourceName: sourceName,
		Prompt:     prompt,
		Status:     ItemStatusPending,
	}

	if err := item.Validate(); err != nil {
		return nil, err
	}

	return item, nil
}

// Validate checks that the item's fields are consistent with its status.
func (i *BatchItem) Validate() error {
	if i.ID == uuid.Nil {
		return ErrEmptyItemID
	}

	if strings.TrimSpace(i.Prompt) == "" {
		return ErrEmptyItemPrompt
	}

	switch i.Status {
	case ItemStatusPending, ItemStatusLoading:
		if i.Answer != "" || i.ErrorMessage != "" {
			return ErrInvalidItemStatus
		}
	case ItemStatusSuccess:
		if i.Answer == "" {
			return ErrEmptyAnswer
		}
		if i.ErrorMessage != "" {
			return ErrInvalidItemStatus
		}
	case ItemStatusError:
		if i.ErrorMessage == "" {
			return ErrEmptyErrorMessage
		}
		if i.Answer != "" {
			return ErrInvalidItemStatus
		}
	default:
		return ErrInvalidItemStatus
	}

	return nil
}

// IsTerminal reports whether the item has settled into success or error.
func (i *BatchItem) IsTerminal() bool {
	return i.Status == ItemStatusSuccess || i.Status == ItemStatusError
}

// MarkLoading transitions the item from pending to loading at dispatch time.
func (i *BatchItem) MarkLoading() error {
	if i.IsTerminal() {
		return ErrItemAlreadySettled
	}
	if i.Status != ItemStatusPending {
		return ErrInvalidTransition
	}
	i.Status = ItemStatusLoading
	return nil
}

// MarkSuccess settles the item with the remote answer and its token usage.
// The item is immutable afterwards.
func (i *BatchItem) MarkSuccess(answer string, usage *TokenUsage) error {
	if i.IsTerminal() {
		return ErrItemAlreadySettled
	}
	if i.Status != ItemStatusLoading {
		return ErrInvalidTransition
	}
	if answer == "" {
		return ErrEmptyAnswer
	}
	i.Answer = answer
	i.Usage = usage
	i.Status = ItemStatusSuccess
	return nil
}

// MarkFailed settles the item with the last failure's message.
func (i *BatchItem) MarkFailed(message string) error {
	if i.IsTerminal() {
		return ErrItemAlreadySettled
	}
	if i.Status != ItemStatusLoading {
		return ErrInvalidTransition
	}
	if message == "" {
		return ErrEmptyErrorMessage
	}
	i.ErrorMessage = message
	i.Status = ItemStatusError
	return nil
}

// ResetPending returns a loading item to pending so it can be re-queued
// for another attempt. Terminal items cannot be reset.
func (i *BatchItem) ResetPending() error {
	if i.IsTerminal() {
		return ErrItemAlreadySettled
	}
	if i.Status != ItemStatusLoading {
		return ErrInvalidTransition
	}
	i.Status = ItemStatusPending
	return nil
}
