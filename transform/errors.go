package transform

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrGeneratorRequired is returned when no small backend is provided.
	ErrGeneratorRequired = errors.New("small backend generator required")

	// ErrCapacityExceeded is returned when an article is too large for every
	// configured backend.
	ErrCapacityExceeded = errors.New("exceeds capacity")

	// ErrEmptyOutput is returned when a backend answers with blank text.
	ErrEmptyOutput = errors.New("backend returned empty output")

	// ErrInvalidLimits is returned when routing limits are not positive.
	ErrInvalidLimits = errors.New("routing limits must be positive")

	// ErrTitleCountMismatch is returned when a title batch comes back with
	// the wrong number of lines.
	ErrTitleCountMismatch = errors.New("title count mismatch")
)

// CapacityError reports an estimate that no backend can serve without
// truncation.
type CapacityError struct {
	Estimate Estimate
	Limits   Limits
	HasLarge bool
}

func (e *CapacityError) Error() string {
	if !e.HasLarge {
		return fmt.Sprintf("%s: estimated %d input / %d output tokens over small limits %d / %d and no large backend configured",
			ErrCapacityExceeded, e.Estimate.InputTokens, e.Estimate.OutputTokens,
			e.Limits.SmallInputLimit, e.Limits.SmallOutputCeiling)
	}
	return fmt.Sprintf("%s: estimated %d output tokens over large ceiling %d",
		ErrCapacityExceeded, e.Estimate.OutputTokens, e.Limits.LargeOutputCeiling)
}

func (e *CapacityError) Unwrap() error {
	return ErrCapacityExceeded
}

// ValidationError lists the structural checks a backend answer violated.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}
