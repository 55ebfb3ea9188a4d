package mocks

import (
	"context"
	"sync"

	"github.com/aaasdream/ai-studio-like/internal/generation"
)

// MockGenerator implements generation.Generator for testing
type MockGenerator struct {
	// GenerateAnswerFn allows test cases to mock the GenerateAnswer behavior
	GenerateAnswerFn func(ctx context.Context, prompt string, cacheID string) (*generation.Answer, error)

	// Default response values
	Answer *generation.Answer
	Err    error

	// Call tracking for verification
	Calls struct {
		// mu protects the call tracking state for concurrent test cases
		mu sync.Mutex

		// Count tracks how many times GenerateAnswer was called
		Count int

		// Prompts contains all prompts passed to GenerateAnswer calls
		Prompts []string

		// CacheIDs contains all cache IDs passed to GenerateAnswer calls
		CacheIDs []string

		// InFlight is the number of calls currently executing
		InFlight int

		// MaxInFlight is the highest number of simultaneous calls observed
		MaxInFlight int
	}
}

// GenerateAnswer implements the generation.Generator interface
func (m *MockGenerator) GenerateAnswer(
	ctx context.Context,
	prompt string,
	cacheID string,
) (*generation.Answer, error) {
	m.Calls.mu.Lock()
	m.Calls.Count++
	m.Calls.Prompts = append(m.Calls.Prompts, prompt)
	m.Calls.CacheIDs = append(m.Calls.CacheIDs, cacheID)
	m.Calls.InFlight++
	if m.Calls.InFlight > m.Calls.MaxInFlight {
		m.Calls.MaxInFlight = m.Calls.InFlight
	}
	m.Calls.mu.Unlock()

	defer func() {
		m.Calls.mu.Lock()
		m.Calls.InFlight--
		m.Calls.mu.Unlock()
	}()

	if m.GenerateAnswerFn != nil {
		return m.GenerateAnswerFn(ctx, prompt, cacheID)
	}

	if m.Err != nil {
		return nil, m.Err
	}
	if m.Answer != nil {
		return m.Answer, nil
	}
	return &generation.Answer{Text: "mock answer"}, nil
}

// CallCount returns how many times GenerateAnswer was called.
func (m *MockGenerator) CallCount() int {
	m.Calls.mu.Lock()
	defer m.Calls.mu.Unlock()
	return m.Calls.Count
}

// MaxObservedInFlight returns the highest number of simultaneous calls seen.
func (m *MockGenerator) MaxObservedInFlight() int {
	m.Calls.mu.Lock()
	defer m.Calls.mu.Unlock()
	return m.Calls.MaxInFlight
}

// NewMockGeneratorWithAnswer creates a MockGenerator that returns the given text
func NewMockGeneratorWithAnswer(text string) *MockGenerator {
	return &MockGenerator{
		Answer: &generation.Answer{Text: text},
	}
}

// NewMockGeneratorWithError creates a MockGenerator that always fails
func NewMockGeneratorWithError(err error) *MockGenerator {
	return &MockGenerator{
		Err: err,
	}
}
