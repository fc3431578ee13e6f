package mock

import (
	"context"
	"sync"

	"github.com/drorzp/justel-pipeline/ai"
)

// MockGenerator is a test double for ai.Generator.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	// If nil, the user prompt is echoed back.
	GenerateFunc func(ctx context.Context, prompt ai.Prompt) (string, error)

	model string

	mu        sync.Mutex
	callCount int
	prompts   []ai.Prompt
}

// NewMockGenerator creates a mock generator reporting the given model name.
func NewMockGenerator(model string) *MockGenerator {
	return &MockGenerator{model: model}
}

// WithGenerateFunc sets GenerateFunc and returns the mock for chaining.
func (m *MockGenerator) WithGenerateFunc(fn func(ctx context.Context, prompt ai.Prompt) (string, error)) *MockGenerator {
	m.GenerateFunc = fn
	return m
}

// Model returns the configured model name.
func (m *MockGenerator) Model() string {
	return m.model
}

// Generate records the prompt and returns the injected or default result.
func (m *MockGenerator) Generate(ctx context.Context, prompt ai.Prompt) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.prompts = append(m.prompts, prompt)
	fn := m.GenerateFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt)
	}
	return prompt.User, nil
}

// CallCount returns the number of Generate calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Prompts returns every prompt received, in call order.
func (m *MockGenerator) Prompts() []ai.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ai.Prompt(nil), m.prompts...)
}

// Reset clears the call count and custom functions.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.prompts = nil
	m.GenerateFunc = nil
}
