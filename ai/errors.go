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


package ai

import "errors"

var (
	// ErrEmptyResponse is returned when a model answers without any choice.
	ErrEmptyResponse = errors.New("model returned an empty response")

	// ErrOutputTruncated is returned when a model stops because it ran out
	// of completion tokens. The partial text is never returned.
	ErrOutputTruncated = errors.New("model output truncated at max tokens")

	// ErrNoLargeBackend is returned when a large generator is requested but
	// none is configured.
	ErrNoLargeBackend = errors.New("no large backend configured")
)
