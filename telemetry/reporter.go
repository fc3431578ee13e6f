package telemetry

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"time"

	"github.com/getsentry/sentry-go"
)

// Config holds the Sentry settings.
type Config struct {
	DSN         string
	Environment string
	Release     string
	SampleRate  float64

	// Transport overrides the HTTP transport. Used by tests.
	Transport sentry.Transport
}

// Reporter sends errors to Sentry through its own hub.
// All methods are safe to call on a nil receiver.
type Reporter struct {
	hub    *sentry.Hub
	logger *slog.Logger
}

// New creates a Reporter. An empty DSN without a Transport override yields
// a nil Reporter, which drops events.
func New(cfg Config, logger *slog.Logger) (*Reporter, error) {
	if cfg.DSN == "" && cfg.Transport == nil {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	release := cfg.Release
	if release == "" {
		release = "justel-pipeline@dev"
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          release,
		SampleRate:       cfg.SampleRate,
		AttachStacktrace: false,
		ServerName:       "",
		Transport:        cfg.Transport,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return scrubEvent(event)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sentry initialization failed: %w", err)
	}

	return &Reporter{
		hub:    sentry.NewHub(client, sentry.NewScope()),
		logger: logger.With("component", "telemetry"),
	}, nil
}

// CaptureError reports err tagged with the failing component and any extra
// tags (archive key, record key, ...).
func (r *Reporter) CaptureError(err error, component string, tags map[string]string) {
	if r == nil || err == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetTags(tags)
		scope.SetFingerprint([]string{component, fmt.Sprintf("%T", err)})
		r.hub.CaptureException(err)
	})
	r.logger.Debug("error event sent", "component", component, "error_type", fmt.Sprintf("%T", err))
}

// Flush waits up to timeout for buffered events to be delivered.
func (r *Reporter) Flush(timeout time.Duration) bool {
	if r == nil {
		return true
	}
	return r.hub.Flush(timeout)
}

var credentialPattern = regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password)=([^&\s]+)`)

func scrubEvent(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Message = ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = ScrubMessage(event.Exception[i].Value)
	}
	return event
}

// ScrubMessage removes credentials from connection strings and query
// parameters embedded in msg.
func ScrubMessage(msg string) string {
	msg = credentialPattern.ReplaceAllString(msg, "$1=[REDACTED]")
	return urlPattern.ReplaceAllStringFunc(msg, func(raw string) string {
		u, err := url.Parse(raw)
		if err != nil || u.User == nil {
			return raw
		}
		u.User = url.User("[REDACTED]")
		return u.String()
	})
}

var urlPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://[^\s"']+`)
