package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/drorzp/justel-pipeline/ai"
	"github.com/drorzp/justel-pipeline/metrics"
	"github.com/drorzp/justel-pipeline/retry"
	"golang.org/x/time/rate"
)

// Router defaults.
const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = time.Second
	DefaultCallTimeout = 30 * time.Second
	DefaultTemperature = 0.1
)

// Router repairs article markup with a small backend and, when configured,
// a large-context backend. It is safe for concurrent use.
type Router struct {
	small       ai.Generator
	large       ai.Generator
	limits      Limits
	maxAttempts int
	retryDelay  time.Duration
	callTimeout time.Duration
	temperature float64
	limiter     *rate.Limiter
	metrics     *metrics.PipelineMetrics
	logger      *slog.Logger
}

// Option configures a Router.
type Option func(*Router) error

// WithLarge sets the large-context backend. Without it, articles over the
// small input limit fail with a capacity error.
func WithLarge(gen ai.Generator) Option {
	return func(r *Router) error {
		r.large = gen
		return nil
	}
}

// WithLimits overrides the routing limits.
func WithLimits(limits Limits) Option {
	return func(r *Router) error {
		if err := limits.validate(); err != nil {
			return err
		}
		r.limits = limits
		return nil
	}
}

// WithMaxAttempts sets how many times one backend is tried.
// Default is 3.
func WithMaxAttempts(n int) Option {
	return func(r *Router) error {
		if n < 1 {
			return retry.ErrInvalidMaxAttempts
		}
		r.maxAttempts = n
		return nil
	}
}

// WithRetryDelay sets the base of the linear backoff between attempts.
// Default is one second.
func WithRetryDelay(d time.Duration) Option {
	return func(r *Router) error {
		if d < 0 {
			d = 0
		}
		r.retryDelay = d
		return nil
	}
}

// WithCallTimeout bounds each backend call.
// Default is 30 seconds.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Router) error {
		if d <= 0 {
			d = DefaultCallTimeout
		}
		r.callTimeout = d
		return nil
	}
}

// WithTemperature sets the sampling temperature sent with each prompt.
func WithTemperature(t float64) Option {
	return func(r *Router) error {
		r.temperature = t
		return nil
	}
}

// WithLimiter gates every backend call on a shared rate limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(r *Router) error {
		r.limiter = l
		return nil
	}
}

// WithMetrics records per-backend call counts and latencies.
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(r *Router) error {
		r.metrics = m
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRouter creates a router around the small backend.
func NewRouter(small ai.Generator, opts ...Option) (*Router, error) {
	if small == nil {
		return nil, ErrGeneratorRequired
	}

	r := &Router{
		small:       small,
		limits:      DefaultLimits(),
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  DefaultRetryDelay,
		callTimeout: DefaultCallTimeout,
		temperature: DefaultTemperature,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "transform")
	return r, nil
}

// HasLarge reports whether a large backend is configured.
func (r *Router) HasLarge() bool {
	return r.large != nil
}

// Transform repairs one article. It never returns an error: every terminal
// state is reported in the Result. Only StatusSuccess carries text.
func (r *Router) Transform(ctx context.Context, req Request) Result {
	logger := r.logger.With("document", req.DocumentNumber, "article", req.ArticleNumber)

	if !ShouldTransform(req.CurrentMarkup) {
		r.metrics.RecordTransform(metrics.StatusSkipped)
		return Result{Status: StatusSkipped, Reason: "no structural markers"}
	}

	est := EstimateTokens(req.CurrentMarkup, req.RawText)
	backend, err := Route(est, r.limits, r.large != nil)
	if err != nil {
		logger.Warn("article exceeds backend capacity",
			"inputTokens", est.InputTokens, "outputTokens", est.OutputTokens)
		r.metrics.RecordTransform(metrics.StatusCapacity)
		return Result{Status: StatusFailed, Estimate: est, Errors: []string{err.Error()}, Capacity: true}
	}

	text, err := r.invoke(ctx, backend, req, est)
	if err == nil {
		return r.success(backend, est, text)
	}
	firstErr := err

	if backend == BackendSmall && r.large != nil && Classify(err) != OutcomeCapacity && ctx.Err() == nil {
		if est.OutputTokens > r.limits.LargeOutputCeiling {
			capErr := &CapacityError{Estimate: est, Limits: r.limits, HasLarge: true}
			r.metrics.RecordTransform(metrics.StatusCapacity)
			return Result{
				Status:   StatusFailed,
				Estimate: est,
				Errors:   []string{r.describe(BackendSmall, firstErr), capErr.Error()},
				Capacity: true,
			}
		}

		logger.Info("falling back to large backend", "error", firstErr)
		text, err = r.invoke(ctx, BackendLarge, req, est)
		if err == nil {
			return r.success(BackendLarge, est, text)
		}
		r.metrics.RecordTransform(metrics.StatusFailed)
		logger.Warn("both backends failed", "small", firstErr, "large", err)
		return Result{
			Status:   StatusFailed,
			Backend:  BackendLarge,
			Estimate: est,
			Errors:   []string{r.describe(BackendSmall, firstErr), r.describe(BackendLarge, err)},
		}
	}

	return r.failure(backend, est, err)
}

func (r *Router) success(backend Backend, est Estimate, text string) Result {
	r.metrics.RecordTransform(metrics.StatusSuccess)
	return Result{
		Status:          StatusSuccess,
		TransformedText: text,
		ModelUsed:       r.generator(backend).Model(),
		Backend:         backend,
		Estimate:        est,
	}
}

func (r *Router) failure(backend Backend, est Estimate, err error) Result {
	res := Result{
		Backend:  backend,
		Estimate: est,
		Capacity: Classify(err) == OutcomeCapacity,
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		res.Status = StatusValidationFailed
		res.ModelUsed = r.generator(backend).Model()
		res.Errors = append([]string(nil), verr.Violations...)
		r.metrics.RecordTransform(metrics.StatusInvalid)
		return res
	}
	res.Status = StatusFailed
	res.Errors = []string{r.describe(backend, err)}
	if res.Capacity {
		r.metrics.RecordTransform(metrics.StatusCapacity)
	} else {
		r.metrics.RecordTransform(metrics.StatusFailed)
	}
	return res
}

func (r *Router) describe(backend Backend, err error) string {
	return fmt.Sprintf("%s backend (%s): %v", backend, r.generator(backend).Model(), err)
}

func (r *Router) generator(b Backend) ai.Generator {
	if b == BackendLarge && r.large != nil {
		return r.large
	}
	return r.small
}

// invoke calls one backend with retries and returns validated markup.
// Validation failures, capacity and non-retryable errors end the attempts
// early.
func (r *Router) invoke(ctx context.Context, backend Backend, req Request, est Estimate) (string, error) {
	gen := r.generator(backend)
	prompt := ai.Prompt{
		System:      repairSystemPrompt,
		User:        repairUserPrompt(req),
		Temperature: r.temperature,
		MaxTokens:   maxTokensFor(backend, est, r.limits),
	}

	var text string
	err := retry.Do(ctx, func(attempt int) error {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return retry.Permanent(err)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		start := time.Now()
		out, err := gen.Generate(callCtx, prompt)
		cancel()

		outcome := NewOutcome(out, err)
		r.metrics.RecordBackendCall(backend.String(), outcome.Kind.String(), time.Since(start).Seconds())

		switch outcome.Kind {
		case OutcomeOk:
			candidate := stripCodeFences(outcome.Text)
			if violations := Validate(req.CurrentMarkup, candidate, req.ArticleNumber); len(violations) > 0 {
				return retry.Permanent(&ValidationError{Violations: violations})
			}
			text = candidate
			return nil
		case OutcomeRetryable:
			r.logger.Debug("backend call failed, retrying",
				"backend", backend, "attempt", attempt, "error", outcome.Err)
			return outcome.Err
		default:
			return retry.Permanent(outcome.Err)
		}
	}, r.maxAttempts, retry.Linear(r.retryDelay))
	if err != nil {
		return "", err
	}
	return text, nil
}
