// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package mock

import "github.com/drorzp/justel-pipeline/ai"

// MockProvider is a test double for ai.AIProvider.
// It aggregates a mock embedder and mock generators.
type MockProvider struct {
	embedder *MockEmbedder
	small    *MockGenerator
	large    *MockGenerator
}

// NewMockProvider creates a new mock provider with default mock services.
//
// Returns ai.AIProvider interface for consistency with production constructors.
// Use GetMockEmbedder()/GetMockSmall()/GetMockLarge() to access concrete types
// for test assertions.
func NewMockProvider() ai.AIProvider {
	return &MockProvider{
		embedder: NewMockEmbedder(),
		small:    NewMockGenerator("mock-small"),
		large:    NewMockGenerator("mock-large"),
	}
}

// NewMockProviderWithServices creates a mock provider with custom mock services.
// A nil large generator means no large backend is configured.
func NewMockProviderWithServices(embedder *MockEmbedder, small, large *MockGenerator) ai.AIProvider {
	return &MockProvider{
		embedder: embedder,
		small:    small,
		large:    large,
	}
}

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// Small returns the mock small generator.
func (p *MockProvider) Small() ai.Generator {
	return p.small
}

// Large returns the mock large generator, or nil.
func (p *MockProvider) Large() ai.Generator {
	if p.large == nil {
		return nil
	}
	return p.large
}

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockSmall returns the underlying small generator for test assertions.
func (p *MockProvider) GetMockSmall() *MockGenerator {
	return p.small
}

// GetMockLarge returns the underlying large generator for test assertions.
func (p *MockProvider) GetMockLarge() *MockGenerator {
	return p.large
}
