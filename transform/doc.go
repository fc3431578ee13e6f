// Package transform repairs article markup with a language model.
//
// A Router decides per article whether a repair is needed at all
// (ShouldTransform), estimates the token cost of the call, picks the small
// or the large backend with a pure routing function, invokes it with
// retries, and validates the structural contract of the answer before
// reporting a Result. The Router never writes to storage.
//
// The state machine of one Transform call is:
//
//	Init -> Skipped
//	Init -> Routed -> Invoking -> Validated(success | failure)
//	Invoking -> Retryable -> Invoking
//	Invoking -> NonRetryable -> FallbackInvoking -> Validated | Failed
//
// TitleCleaner uses the same backends to turn raw law titles into short
// display titles.
package transform
