package errors

import (
	"fmt"
	"sync"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/lifer/internal/privacy"
)

// Reporter receives every error built while it is installed.
type Reporter interface {
	Report(e *Error)
}

var (
	reporterMu sync.RWMutex
	reporter   Reporter
)

// SetReporter installs r. Nil disables reporting.
func SetReporter(r Reporter) {
	reporterMu.Lock()
	defer reporterMu.Unlock()
	reporter = r
	reportingEnabled.Store(r != nil)
}

func report(e *Error) {
	reporterMu.RLock()
	r := reporter
	reporterMu.RUnlock()
	if r != nil && e.MarkReported() {
		r.Report(e)
	}
}

// SentryReporter sends errors to Sentry with messages and string context scrubbed.
type SentryReporter struct{}

// Report implements Reporter.
func (SentryReporter) Report(e *Error) {
	// Client mistakes are not actionable server-side
	if e.Category == CategoryValidation || e.Category == CategoryNotFound {
		return
	}

	message := ScrubMessage(fmt.Sprintf("[%s] %s", e.Category, e.Err.Error()))
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", e.Component)
		scope.SetTag("category", string(e.Category))
		for key, value := range e.Fields() {
			if s, ok := value.(string); ok {
				value = ScrubMessage(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}
		scope.SetFingerprint([]string{e.Component, string(e.Category)})

		level := sentry.LevelError
		if e.Category == CategoryUpstreamClient || e.Category == CategoryFileParsing {
			level = sentry.LevelWarning
		}
		scope.SetLevel(level)

		event := sentry.NewEvent()
		event.Level = level
		event.Message = message
		event.Exception = []sentry.Exception{{
			Type:  fmt.Sprintf("%s/%s", e.Component, e.Category),
			Value: message,
		}}
		sentry.CaptureEvent(event)
	})
}

// InitSentry starts the Sentry SDK and installs a SentryReporter.
// An empty DSN does nothing.
func InitSentry(dsn, release string) error {
	if dsn == "" {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          "lifer@" + release,
		AttachStacktrace: true,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			event.Message = ScrubMessage(event.Message)
			return event
		},
	})
	if err != nil {
		return New(err).
			Component("telemetry").
			Category(CategoryConfiguration).
			Build()
	}
	SetReporter(SentryReporter{})
	return nil
}

// ScrubMessage removes URL query strings and credential-looking values.
func ScrubMessage(message string) string {
	return privacy.ScrubMessage(message)
}
