// Package errors wraps errors with a category, the component that raised
// them and structured context, and forwards them to optional error reporting.
//
// It re-exports the standard library helpers so callers need a single import.
package errors

import (
	"fmt"
	"maps"
	"runtime"
	"strings"
	"sync/atomic"
	"time"
)

// ErrorCategory groups errors for status mapping and reporting.
type ErrorCategory string

const (
	CategoryGeneric       ErrorCategory = "generic"
	CategoryValidation    ErrorCategory = "validation"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryNotFound      ErrorCategory = "not-found"
	CategoryFileIO        ErrorCategory = "file-io"
	CategoryFileParsing   ErrorCategory = "file-parsing"
	CategoryDatabase      ErrorCategory = "database"
	CategoryNetwork       ErrorCategory = "network"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryCancellation  ErrorCategory = "cancellation"

	// Observation API failures
	CategoryUpstreamClient ErrorCategory = "upstream-client" // 4xx
	CategoryUpstreamServer ErrorCategory = "upstream-server" // 5xx or open circuit
	CategorySchema         ErrorCategory = "schema-validation"
)

// ComponentUnknown is reported when no component was set and the caller
// is outside this module's internal packages.
const ComponentUnknown = "unknown"

// Error is an error annotated with category, component and context.
type Error struct {
	Err       error
	Category  ErrorCategory
	Component string
	Context   map[string]any
	Timestamp time.Time

	reported atomic.Bool
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by category and otherwise defers to the wrapped error.
func (e *Error) Is(target error) bool {
	if other, ok := target.(*Error); ok {
		return e.Category == other.Category
	}
	return Is(e.Err, target)
}

// Fields returns a copy of the context map.
func (e *Error) Fields() map[string]any {
	if e.Context == nil {
		return nil
	}
	return maps.Clone(e.Context)
}

// MarkReported records that the error reached a reporter.
// It returns false when it already had.
func (e *Error) MarkReported() bool {
	return e.reported.CompareAndSwap(false, true)
}

// Builder assembles an *Error.
type Builder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New starts an error around err.
func New(err error) *Builder {
	return &Builder{err: err}
}

// Newf starts an error from a format string. %w wraps as in fmt.Errorf.
func Newf(format string, args ...any) *Builder {
	return New(fmt.Errorf(format, args...))
}

// Component names the package or subsystem that raised the error.
func (b *Builder) Component(component string) *Builder {
	b.component = component
	return b
}

// Category sets the error category.
func (b *Builder) Category(category ErrorCategory) *Builder {
	b.category = category
	return b
}

// Context attaches a key/value pair.
func (b *Builder) Context(key string, value any) *Builder {
	if b.context == nil {
		b.context = make(map[string]any, 4)
	}
	b.context[key] = value
	return b
}

// NetworkContext records the endpoint scheme and the timeout in effect.
// The URL itself is not kept.
func (b *Builder) NetworkContext(url string, timeout time.Duration) *Builder {
	if scheme, _, ok := strings.Cut(url, "://"); ok {
		b.Context("scheme", strings.ToLower(scheme))
	}
	if timeout > 0 {
		b.Context("timeout_ms", timeout.Milliseconds())
	}
	return b
}

// Build returns the error and hands it to the active reporter, if any.
func (b *Builder) Build() *Error {
	e := &Error{
		Err:       b.err,
		Category:  b.category,
		Component: b.component,
		Context:   b.context,
		Timestamp: time.Now(),
	}
	if e.Category == "" {
		e.Category = inferCategory(b.err)
	}
	if e.Component == "" {
		e.Component = callerComponent(2)
	}

	if reportingEnabled.Load() {
		report(e)
	}
	return e
}

var reportingEnabled atomic.Bool

const modulePrefix = "github.com/tphakala/lifer/internal/"

// callerComponent names the internal package of the function skip frames up.
func callerComponent(skip int) string {
	pc, _, _, ok := runtime.Caller(skip)
	if !ok {
		return ComponentUnknown
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return ComponentUnknown
	}
	_, rest, found := strings.Cut(fn.Name(), modulePrefix)
	if !found {
		return ComponentUnknown
	}
	pkg, _, _ := strings.Cut(rest, ".")
	if i := strings.IndexByte(pkg, '/'); i >= 0 {
		pkg = pkg[:i]
	}
	return pkg
}

// inferCategory keeps the category of a wrapped *Error, otherwise guesses
// from the message.
func inferCategory(err error) ErrorCategory {
	if err == nil {
		return CategoryGeneric
	}
	var inner *Error
	if As(err, &inner) && inner.Category != "" {
		return inner.Category
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "timeout"):
		return CategoryTimeout
	case strings.Contains(msg, "context canceled"):
		return CategoryCancellation
	case strings.Contains(msg, "connection"):
		return CategoryNetwork
	}
	return CategoryGeneric
}

// IsCategory reports whether err wraps an *Error of the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var e *Error
	return As(err, &e) && e.Category == category
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return IsCategory(err, CategoryNotFound)
}

// ContextValue looks key up on the outermost *Error in err's chain.
func ContextValue(err error, key string) (any, bool) {
	var e *Error
	if !As(err, &e) || e.Context == nil {
		return nil, false
	}
	v, ok := e.Context[key]
	return v, ok
}
