package transform

import (
	"context"
	"errors"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/drorzp/justel-pipeline/ai"
	"github.com/tmc/langchaingo/llms"
)

// OutcomeKind classifies the result of one backend call.
type OutcomeKind int

const (
	// OutcomeOk means the call returned text.
	OutcomeOk OutcomeKind = iota
	// OutcomeRetryable means the same call may succeed if repeated.
	OutcomeRetryable
	// OutcomeNonRetryable means repeating the call will not help.
	OutcomeNonRetryable
	// OutcomeCapacity means the backend cannot take the request at all:
	// the estimate exceeds every ceiling or the provider quota is spent.
	OutcomeCapacity
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOk:
		return "ok"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeNonRetryable:
		return "non_retryable"
	case OutcomeCapacity:
		return "capacity"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of one backend call.
type Outcome struct {
	Kind OutcomeKind
	Text string
	Err  error
}

// NewOutcome classifies a backend answer.
func NewOutcome(text string, err error) Outcome {
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyOutput
	}
	return Outcome{Kind: Classify(err), Text: text, Err: err}
}

var statusCodePattern = regexp.MustCompile(`status code:? (\d{3})`)

// Classify maps a backend error onto an OutcomeKind. Timeouts, HTTP 408,
// 429 and 5xx answers and transport failures are retryable; everything else
// is not.
func Classify(err error) OutcomeKind {
	if err == nil {
		return OutcomeOk
	}

	switch {
	case errors.Is(err, context.Canceled):
		return OutcomeNonRetryable
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeRetryable
	case errors.Is(err, ErrCapacityExceeded):
		return OutcomeCapacity
	case llms.IsQuotaExceededError(err), isQuotaMessage(err.Error()):
		return OutcomeCapacity
	case llms.IsRateLimitError(err), llms.IsTimeoutError(err):
		return OutcomeRetryable
	case errors.Is(err, ai.ErrOutputTruncated):
		// The same budget truncates again; only another backend helps.
		return OutcomeNonRetryable
	case errors.Is(err, ErrEmptyOutput), errors.Is(err, ai.ErrEmptyResponse):
		return OutcomeRetryable
	case errors.Is(err, io.ErrUnexpectedEOF):
		return OutcomeRetryable
	}

	var llmErr *llms.Error
	if errors.As(err, &llmErr) && llmErr.Code == llms.ErrCodeProviderUnavailable {
		return OutcomeRetryable
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return OutcomeRetryable
	}

	if m := statusCodePattern.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		if code == 408 || code == 429 || code >= 500 {
			return OutcomeRetryable
		}
	}

	return OutcomeNonRetryable
}

func isQuotaMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "insufficient_quota") || strings.Contains(msg, "quota exceeded")
}
