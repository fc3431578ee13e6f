// Package retry runs operations that may fail transiently, sleeping
// between attempts according to a Backoff policy.
package retry
