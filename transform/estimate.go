package transform

import (
	"math"
	"strings"
)

// Token model. Word counts are turned into token counts with fixed
// multipliers; French legal text tokenizes worse than English prose.
const (
	markupTokensPerWord  = 1.6
	rawTokensPerWord     = 1.4
	complexityFactor     = 1.15
	promptOverheadTokens = 600
	outputRatio          = 1.8
)

// Default routing limits.
const (
	DefaultSmallInputLimit    = 12000
	DefaultSmallOutputCeiling = 16384
	DefaultLargeOutputCeiling = 64000
)

// Estimate is the predicted token cost of one repair call.
type Estimate struct {
	InputTokens  int
	OutputTokens int
}

// EstimateTokens predicts the token cost of repairing markup whose plain
// text projection is raw.
func EstimateTokens(markup, raw string) Estimate {
	words := float64(len(strings.Fields(markup)))*markupTokensPerWord +
		float64(len(strings.Fields(raw)))*rawTokensPerWord
	input := int(math.Ceil(words*complexityFactor)) + promptOverheadTokens
	output := int(math.Ceil(float64(input) * outputRatio))
	return Estimate{InputTokens: input, OutputTokens: output}
}

// Limits bound what each backend may be asked to do.
type Limits struct {
	// SmallInputLimit is the largest input estimate the small backend takes.
	SmallInputLimit int
	// SmallOutputCeiling caps max_tokens on small backend calls.
	SmallOutputCeiling int
	// LargeOutputCeiling is the largest output estimate the large backend takes.
	LargeOutputCeiling int
}

// DefaultLimits returns the default routing limits.
func DefaultLimits() Limits {
	return Limits{
		SmallInputLimit:    DefaultSmallInputLimit,
		SmallOutputCeiling: DefaultSmallOutputCeiling,
		LargeOutputCeiling: DefaultLargeOutputCeiling,
	}
}

func (l Limits) validate() error {
	if l.SmallInputLimit <= 0 || l.SmallOutputCeiling <= 0 || l.LargeOutputCeiling <= 0 {
		return ErrInvalidLimits
	}
	return nil
}

// Backend names one of the two generation backends.
type Backend int

const (
	// BackendSmall is the fast, cheap backend.
	BackendSmall Backend = iota
	// BackendLarge is the large-context backend.
	BackendLarge
)

func (b Backend) String() string {
	switch b {
	case BackendSmall:
		return "small"
	case BackendLarge:
		return "large"
	default:
		return "unknown"
	}
}

// Route picks the backend for an estimate. It never truncates: the small
// backend only takes estimates within both its input limit and its output
// ceiling, and when the estimate fits neither backend it returns a
// *CapacityError.
func Route(est Estimate, limits Limits, hasLarge bool) (Backend, error) {
	if est.InputTokens <= limits.SmallInputLimit && est.OutputTokens <= limits.SmallOutputCeiling {
		return BackendSmall, nil
	}
	if hasLarge && est.OutputTokens <= limits.LargeOutputCeiling {
		return BackendLarge, nil
	}
	return BackendSmall, &CapacityError{Estimate: est, Limits: limits, HasLarge: hasLarge}
}

// maxTokensFor sizes the completion budget for a call: the output estimate
// plus a quarter of headroom, capped at the backend's ceiling.
func maxTokensFor(b Backend, est Estimate, limits Limits) int {
	budget := est.OutputTokens + est.OutputTokens/4
	ceiling := limits.SmallOutputCeiling
	if b == BackendLarge {
		ceiling = limits.LargeOutputCeiling
	}
	return min(budget, ceiling)
}
