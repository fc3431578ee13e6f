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


// Package ai provides abstractions for the language model services used by
// the pipeline.
//
// Two capabilities are modelled: text generation, used to repair article
// markup and to clean law titles, and text embedding, used to feed the
// vector store. The rest of the module depends only on the interfaces in
// this package.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible chat and embedding APIs
//   - ai/anthropic: Anthropic messages API, used as the large backend
//   - ai/mock: Test doubles for unit testing without external services
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewGenerator,
// anthropic.NewGenerator) return INTERFACE types. Mock constructors return
// CONCRETE types so tests can inject behavior and read call counts.
//
//	provider, err := openai.NewProvider(config)  // returns ai.AIProvider
//	gen := mock.NewMockGenerator("small")         // returns *mock.MockGenerator
//	gen.WithGenerateFunc(...)
//
// # Usage Example
//
//	config := ai.NewConfig(
//	    ai.WithSmallModel("gpt-4o-mini"),
//	    ai.WithLargeProvider(ai.ProviderAnthropic),
//	    ai.WithLargeModel("claude-sonnet-4-5"),
//	)
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	text, err := provider.Small().Generate(ctx, ai.Prompt{System: sys, User: markup})
package ai
