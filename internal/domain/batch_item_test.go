package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestNewBatchItem(t *testing.T) {
	t.Parallel()

	item, err := NewBatchItem("chapter-1.md", "Summarize chapter one.")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if item.ID == uuid.Nil {
		t.Error("Expected non-nil UUID, got nil UUID")
	}
	if item.SourceName != "chapter-1.md" {
		t.Errorf("Expected source name chapter-1.md, got %s", item.SourceName)
	}
	if item.Status != ItemStatusPending {
		t.Errorf("Expected status %s, got %s", ItemStatusPending, item.Status)
	}
	if item.Answer != "" {
		t.Errorf("Expected empty answer, got %q", item.Answer)
	}

	// Invalid inputs
	if _, err := NewBatchItem("source", ""); !errors.Is(err, ErrEmptyItemPrompt) {
		t.Errorf("Expected ErrEmptyItemPrompt, got %v", err)
	}
	if _, err := NewBatchItem("source", "   "); !errors.Is(err, ErrEmptyItemPrompt) {
		t.Errorf("Expected ErrEmptyItemPrompt for whitespace prompt, got %v", err)
	}
}

func TestBatchItemLifecycleTransitions(t *testing.T) {
	t.Parallel()

	item, err := NewBatchItem("doc.md", "What is this about?")
	if err != nil {
		t.Fatalf("Failed to create item: %v", err)
	}

	// pending -> loading
	if err := item.MarkLoading(); err != nil {
		t.Fatalf("Expected no error marking loading, got %v", err)
	}
	if item.Status != ItemStatusLoading {
		t.Errorf("Expected status %s, got %s", ItemStatusLoading, item.Status)
	}

	// loading -> loading is invalid
	if err := item.MarkLoading(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}

	// loading -> success
	usage := &TokenUsage{PromptTokens: 120, OutputTokens: 45}
	if err := item.MarkSuccess("The answer.", usage); err != nil {
		t.Fatalf("Expected no error marking success, got %v", err)
	}
	if item.Status != ItemStatusSuccess {
		t.Errorf("Expected status %s, got %s", ItemStatusSuccess, item.Status)
	}
	if item.Answer != "The answer." {
		t.Errorf("Expected answer to be recorded, got %q", item.Answer)
	}
	if item.Usage == nil || item.Usage.PromptTokens != 120 {
		t.Errorf("Expected usage to be recorded, got %+v", item.Usage)
	}
	if !item.IsTerminal() {
		t.Error("Expected success to be terminal")
	}

	// Terminal items are immutable
	if err := item.MarkFailed("boom"); !errors.Is(err, ErrItemAlreadySettled) {
		t.Errorf("Expected ErrItemAlreadySettled, got %v", err)
	}
	if err := item.MarkSuccess("again", nil); !errors.Is(err, ErrItemAlreadySettled) {
		t.Errorf("Expected ErrItemAlreadySettled, got %v", err)
	}
}

func TestBatchItemMarkFailed(t *testing.T) {
	t.Parallel()

	item, _ := NewBatchItem("doc.md", "prompt")
	if err := item.MarkLoading(); err != nil {
		t.Fatalf("MarkLoading failed: %v", err)
	}

	if err := item.MarkFailed("rate limited"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if item.Status != ItemStatusError {
		t.Errorf("Expected status %s, got %s", ItemStatusError, item.Status)
	}
	if item.ErrorMessage != "rate limited" {
		t.Errorf("Expected error message to be recorded, got %q", item.ErrorMessage)
	}
	if !item.IsTerminal() {
		t.Error("Expected error to be terminal")
	}
}

func TestBatchItemResetPending(t *testing.T) {
	t.Parallel()

	item, _ := NewBatchItem("doc.md", "prompt")
	if err := item.MarkLoading(); err != nil {
		t.Fatalf("MarkLoading failed: %v", err)
	}

	// loading -> pending (retry path)
	if err := item.ResetPending(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if item.Status != ItemStatusPending {
		t.Errorf("Expected status %s, got %s", ItemStatusPending, item.Status)
	}

	// pending -> pending is invalid
	if err := item.ResetPending(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}

	// The reset item can be dispatched again
	if err := item.MarkLoading(); err != nil {
		t.Fatalf("Expected reset item to accept loading, got %v", err)
	}
}

func TestBatchItemMarkSuccessRequiresAnswer(t *testing.T) {
	t.Parallel()

	item, _ := NewBatchItem("doc.md", "prompt")
	if err := item.MarkLoading(); err != nil {
		t.Fatalf("MarkLoading failed: %v", err)
	}

	if err := item.MarkSuccess("", nil); !errors.Is(err, ErrEmptyAnswer) {
		t.Errorf("Expected ErrEmptyAnswer, got %v", err)
	}
	if item.Status != ItemStatusLoading {
		t.Errorf("Expected item to remain loading, got %s", item.Status)
	}
}

func TestBatchItemValidate(t *testing.T) {
	t.Parallel()

	valid := BatchItem{
		ID:         uuid.New(),
		SourceName: "doc.md",
		Prompt:     "prompt",
		Status:     ItemStatusPending,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Expected valid item, got %v", err)
	}

	// Success without an answer is inconsistent
	inconsistent := valid
	inconsistent.Status = ItemStatusSuccess
	if err := inconsistent.Validate(); err == nil {
		t.Error("Expected validation error for success without answer")
	}

	// Unknown status
	unknown := valid
	unknown.Status = ItemStatus("bogus")
	if err := unknown.Validate(); err == nil {
		t.Error("Expected validation error for unknown status")
	}
}
