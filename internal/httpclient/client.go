// Package httpclient builds the pooled HTTP client used for outbound API calls.
//
// The returned client has no overall timeout. Callers bound each request
// with a context deadline.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

const (
	defaultMaxIdleConns          = 100
	defaultMaxIdleConnsPerHost   = 10
	defaultIdleConnTimeout       = 90 * time.Second
	defaultTLSHandshakeTimeout   = 10 * time.Second
	defaultResponseHeaderTimeout = 10 * time.Second
	defaultExpectContinueTimeout = 1 * time.Second
	defaultDialTimeout           = 30 * time.Second
	defaultDialKeepAlive         = 30 * time.Second

	defaultUserAgent = "lifer"
)

// ResponseHook observes each completed round trip. resp is nil when err is set.
type ResponseHook func(req *http.Request, resp *http.Response, err error, elapsed time.Duration)

// Config tunes the client. Zero values fall back to defaults.
type Config struct {
	// UserAgent is set on requests that carry none
	UserAgent string

	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	IdleConnTimeout       time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration

	// OnResponse is called after every round trip, may be nil
	OnResponse ResponseHook
}

// UserAgent formats the product token sent upstream.
func UserAgent(version string) string {
	if version == "" {
		return defaultUserAgent
	}
	return defaultUserAgent + "/" + version
}

func (c *Config) withDefaults() Config {
	var out Config
	if c != nil {
		out = *c
	}
	if out.UserAgent == "" {
		out.UserAgent = defaultUserAgent
	}
	if out.MaxIdleConns == 0 {
		out.MaxIdleConns = defaultMaxIdleConns
	}
	if out.MaxIdleConnsPerHost == 0 {
		out.MaxIdleConnsPerHost = defaultMaxIdleConnsPerHost
	}
	if out.IdleConnTimeout == 0 {
		out.IdleConnTimeout = defaultIdleConnTimeout
	}
	if out.TLSHandshakeTimeout == 0 {
		out.TLSHandshakeTimeout = defaultTLSHandshakeTimeout
	}
	if out.ResponseHeaderTimeout == 0 {
		out.ResponseHeaderTimeout = defaultResponseHeaderTimeout
	}
	return out
}

// New returns an HTTP client with a tuned transport. A nil cfg uses defaults
// and the caller's config is never modified.
func New(cfg *Config) *http.Client {
	c := cfg.withDefaults()

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   defaultDialTimeout,
			KeepAlive: defaultDialKeepAlive,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          c.MaxIdleConns,
		MaxIdleConnsPerHost:   c.MaxIdleConnsPerHost,
		IdleConnTimeout:       c.IdleConnTimeout,
		TLSHandshakeTimeout:   c.TLSHandshakeTimeout,
		ResponseHeaderTimeout: c.ResponseHeaderTimeout,
		ExpectContinueTimeout: defaultExpectContinueTimeout,
	}

	return &http.Client{Transport: Wrap(transport, c.UserAgent, c.OnResponse)}
}

// Wrap decorates next with User-Agent injection and the response hook.
func Wrap(next http.RoundTripper, userAgent string, hook ResponseHook) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &roundTripper{next: next, userAgent: userAgent, hook: hook}
}

type roundTripper struct {
	next      http.RoundTripper
	userAgent string
	hook      ResponseHook
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if rt.userAgent != "" && req.Header.Get("User-Agent") == "" {
		// RoundTrippers must not modify the caller's request
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", rt.userAgent)
	}

	start := time.Now()
	resp, err := rt.next.RoundTrip(req)
	if rt.hook != nil {
		rt.hook(req, resp, err, time.Since(start))
	}
	return resp, err
}
