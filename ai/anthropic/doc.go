// Package anthropic implements ai.Generator on top of the Anthropic
// messages API through langchaingo. It serves as the large backend for
// articles whose estimated size exceeds the small backend's input limit.
package anthropic
