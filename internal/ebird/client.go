package ebird

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tphakala/lifer/internal/errors"
	"github.com/tphakala/lifer/internal/logger"
	"github.com/tphakala/lifer/internal/observability/metrics"
)

const (
	headerAPIToken = "X-eBirdApiToken"

	// maxResponseBytes bounds a single response body; the full taxonomy is ~20MB.
	maxResponseBytes = 64 << 20

	// responsePreviewLen is how much of an undecodable body is logged.
	responsePreviewLen = 500

	breakerName = "ebird-api"

	// breakerHalfOpenRequests is how many calls a half-open breaker lets
	// through; it covers the concurrent feeds of one aggregation.
	breakerHalfOpenRequests = 4
)

// GetLogger returns the module logger for the eBird client.
func GetLogger() logger.Logger {
	return logger.Global().Module("ebird")
}

// Client provides methods for interacting with the eBird API
type Client struct {
	config      Config
	httpClient  *http.Client
	limiter     *rate.Limiter
	breakersMu  sync.Mutex
	breakers    map[string]*gobreaker.CircuitBreaker[any]
	validate    *validator.Validate
	metrics     *metrics.EBirdMetrics
	firstCallMu sync.Once
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMetrics attaches Prometheus metrics to the client.
func WithMetrics(m *metrics.EBirdMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a new eBird API client
func NewClient(config Config, opts ...Option) (*Client, error) {
	if config.APIKey == "" {
		return nil, errors.Newf("eBird API key is required").
			Category(errors.CategoryConfiguration).
			Component("ebird").
			Build()
	}

	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.Retries < 0 {
		config.Retries = 0
	}
	if config.RetryDelay < 0 {
		config.RetryDelay = 0
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if config.BreakerThreshold == 0 {
		config.BreakerThreshold = defaults.BreakerThreshold
	}
	if config.BreakerTimeout <= 0 {
		config.BreakerTimeout = defaults.BreakerTimeout
	}

	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Component("ebird").
			Context("base_url", config.BaseURL).
			Build()
	}

	burst := max(1, int(config.RequestsPerSecond))

	c := &Client{
		config:     config,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		breakers:   make(map[string]*gobreaker.CircuitBreaker[any]),
	}
	for _, opt := range opts {
		opt(c)
	}

	GetLogger().Info("eBird client initialized",
		logger.String("base_url", config.BaseURL),
		logger.Duration("timeout", config.Timeout),
		logger.Int("retries", config.Retries),
		logger.Float64("requests_per_second", config.RequestsPerSecond),
		logger.Bool("api_key_configured", config.APIKey != ""))

	return c, nil
}

// breaker returns the circuit breaker guarding endpoint. Each endpoint
// trips on its own so failing checklist lookups cannot block the
// observation feeds.
func (c *Client) breaker(endpoint string) *gobreaker.CircuitBreaker[any] {
	c.breakersMu.Lock()
	defer c.breakersMu.Unlock()

	cb, ok := c.breakers[endpoint]
	if !ok {
		cb = c.newBreaker(endpoint)
		c.breakers[endpoint] = cb
	}
	return cb
}

func (c *Client) newBreaker(endpoint string) *gobreaker.CircuitBreaker[any] {
	threshold := c.config.BreakerThreshold
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        breakerName + ":" + endpoint,
		MaxRequests: breakerHalfOpenRequests,
		Timeout:     c.config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			GetLogger().Warn("eBird circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
			c.metrics.SetBreakerState(endpoint, breakerGauge(to))
		},
		// Only exhausted transient failures count against the upstream.
		IsSuccessful: func(err error) bool {
			return !IsRetryable(err)
		},
	})
}

func breakerGauge(s gobreaker.State) int {
	switch s {
	case gobreaker.StateOpen:
		return metrics.BreakerOpen
	case gobreaker.StateHalfOpen:
		return metrics.BreakerHalfOpen
	default:
		return metrics.BreakerClosed
	}
}

// Get fetches path with params and decodes the JSON body into out.
// out must be a pointer; nil skips decoding.
func (c *Client) Get(ctx context.Context, path string, params url.Values, out any) error {
	return c.get(ctx, path, path, params, out)
}

// get is Get with a fixed metrics label for templated paths.
func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values, out any) error {
	path = normalizePath(path)
	reqURL := c.buildURL(path, params)

	_, err := c.breaker(endpoint).Execute(func() (any, error) {
		return nil, c.doWithRetry(ctx, endpoint, path, reqURL, out)
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.metrics.RecordRequest(endpoint, metrics.OutcomeCircuitOpen, 0)
		return errors.Newf("eBird API unavailable for %s: %w", path, err).
			Category(errors.CategoryUpstreamServer).
			Component("ebird").
			Context(ctxPath, path).
			Context(ctxCircuitOpen, true).
			Build()
	}
	return err
}

func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}

// buildURL joins the base URL, path and encoded params.
func (c *Client) buildURL(path string, params url.Values) string {
	u := strings.TrimRight(c.config.BaseURL, "/") + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// doWithRetry runs attempts with exponential backoff until success, a
// non-retryable error, or exhaustion, in which case the last error is returned.
func (c *Client) doWithRetry(ctx context.Context, endpoint, path, reqURL string, out any) error {
	attempts := c.config.Retries + 1
	var lastErr error

	for attempt := range attempts {
		if attempt > 0 {
			delay := c.config.RetryDelay * time.Duration(1<<(attempt-1))
			c.metrics.RecordRetry(endpoint)
			GetLogger().Warn("eBird API request failed, retrying",
				logger.String("path", path),
				logger.Int("attempt", attempt+1),
				logger.Int("max_attempts", attempts),
				logger.Int64("delay_ms", delay.Milliseconds()),
				logger.Error(lastErr))

			if err := sleepContext(ctx, delay); err != nil {
				return c.canceledError(err, path)
			}
		}

		err := c.attempt(ctx, endpoint, path, reqURL, out)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
	}

	return lastErr
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// attempt performs a single request under its own timeout.
func (c *Client) attempt(ctx context.Context, endpoint, path, reqURL string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return c.canceledError(err, path)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return errors.Newf("failed to create HTTP request: %w", err).
			Category(errors.CategoryValidation).
			Component("ebird").
			Context(ctxPath, path).
			Build()
	}
	req.Header.Set(headerAPIToken, c.config.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportError(ctx, attemptCtx, err, endpoint, path, start)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return c.transportError(ctx, attemptCtx, err, endpoint, path, start)
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		c.metrics.RecordRequest(endpoint, metrics.OutcomeServerError, time.Since(start))
		return errors.Newf("eBird API server error (status %d) for %s", resp.StatusCode, path).
			Category(errors.CategoryUpstreamServer).
			Component("ebird").
			Context(ctxStatusCode, resp.StatusCode).
			Context(ctxPath, path).
			Build()
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		c.metrics.RecordRequest(endpoint, metrics.OutcomeClientError, time.Since(start))
		return c.clientError(resp.StatusCode, body, path)
	}

	if out != nil {
		if err := c.decode(body, out); err != nil {
			c.metrics.RecordRequest(endpoint, metrics.OutcomeSchemaError, time.Since(start))
			GetLogger().Error("eBird API response failed schema validation",
				logger.String("path", path),
				logger.Int("response_size", len(body)),
				logger.String("response_preview", preview(body)),
				logger.Error(err))
			return errors.Newf("invalid response for %s: %w", path, err).
				Category(errors.CategorySchema).
				Component("ebird").
				Context(ctxPath, path).
				Context(ctxSchema, schemaName(out)).
				Build()
		}
	}

	duration := time.Since(start)
	c.metrics.RecordRequest(endpoint, metrics.OutcomeSuccess, duration)

	c.firstCallMu.Do(func() {
		GetLogger().Info("eBird API authentication successful",
			logger.String("first_successful_request", path))
	})
	GetLogger().Debug("eBird API request successful",
		logger.String("path", path),
		logger.Int64("duration_ms", duration.Milliseconds()),
		logger.Int("response_size", len(body)))

	return nil
}

// transportError classifies a failure that produced no usable response.
func (c *Client) transportError(ctx, attemptCtx context.Context, err error, endpoint, path string, start time.Time) error {
	if ctx.Err() != nil {
		c.metrics.RecordRequest(endpoint, metrics.OutcomeCanceled, time.Since(start))
		return c.canceledError(err, path)
	}

	var netErr net.Error
	if attemptCtx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
		c.metrics.RecordRequest(endpoint, metrics.OutcomeTimeout, time.Since(start))
		return errors.Newf("timeout after %dms for %s", c.config.Timeout.Milliseconds(), path).
			Category(errors.CategoryTimeout).
			Component("ebird").
			Context(ctxPath, path).
			NetworkContext(c.config.BaseURL, c.config.Timeout).
			Build()
	}

	c.metrics.RecordRequest(endpoint, metrics.OutcomeNetworkError, time.Since(start))
	return errors.Newf("HTTP request failed for %s: %w", path, err).
		Category(errors.CategoryNetwork).
		Component("ebird").
		Context(ctxPath, path).
		NetworkContext(c.config.BaseURL, c.config.Timeout).
		Build()
}

func (c *Client) canceledError(err error, path string) error {
	return errors.Newf("eBird request for %s canceled: %w", path, err).
		Category(errors.CategoryCancellation).
		Component("ebird").
		Context(ctxPath, path).
		Build()
}

// clientError builds the error for a non-retryable 4xx response.
func (c *Client) clientError(status int, body []byte, path string) error {
	detail := strings.TrimSpace(string(body))
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil {
		switch {
		case apiErr.Detail != "":
			detail = apiErr.Detail
		case apiErr.Title != "":
			detail = apiErr.Title
		}
	}
	if len(detail) > responsePreviewLen {
		detail = detail[:responsePreviewLen]
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		GetLogger().Error("eBird API authentication failed",
			logger.Int("status_code", status),
			logger.String("path", path),
			logger.String("message", "Check your eBird API key in the configuration"))
	} else {
		GetLogger().Warn("eBird API error response",
			logger.Int("status_code", status),
			logger.String("path", path),
			logger.String("detail", detail))
	}

	return errors.Newf("eBird API error (status %d) for %s: %s", status, path, detail).
		Category(errors.CategoryUpstreamClient).
		Component("ebird").
		Context(ctxStatusCode, status).
		Context(ctxPath, path).
		Build()
}

// decode unmarshals body into out and validates the result against its struct tags.
func (c *Client) decode(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return err
	}
	return c.validateShape(out)
}

// validateShape validates a decoded struct, or each struct element of a decoded slice.
func (c *Client) validateShape(out any) error {
	v := reflect.ValueOf(out)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		return c.validate.Struct(v.Interface())
	case reflect.Slice, reflect.Array:
		for i := range v.Len() {
			elem := v.Index(i)
			for elem.Kind() == reflect.Pointer {
				if elem.IsNil() {
					return fmt.Errorf("element %d is null", i)
				}
				elem = elem.Elem()
			}
			if elem.Kind() != reflect.Struct {
				continue
			}
			if err := c.validate.Struct(elem.Interface()); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
	}
	return nil
}

// schemaName names the decoded shape for error context, e.g. "[]ebird.Observation".
func schemaName(out any) string {
	t := reflect.TypeOf(out)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return t.String()
}

func preview(body []byte) string {
	if len(body) > responsePreviewLen {
		return string(body[:responsePreviewLen]) + "..."
	}
	return string(body)
}
