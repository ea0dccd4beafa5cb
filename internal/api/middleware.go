package api

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/tphakala/lifer/internal/logger"
)

// HeaderUserID carries the authenticated user id set by the fronting proxy.
const HeaderUserID = "X-User-ID"

// HeaderRateLimitRemaining reports the requests left for the client.
const HeaderRateLimitRemaining = "X-RateLimit-Remaining"

// IdentityResolver returns the user id for a request, or "" when anonymous.
type IdentityResolver func(c echo.Context) string

// HeaderIdentity trusts the X-User-ID header.
func HeaderIdentity(c echo.Context) string {
	return strings.TrimSpace(c.Request().Header.Get(HeaderUserID))
}

// staleLimiterAge is how long an idle client keeps its bucket.
const staleLimiterAge = 10 * time.Minute

// RateLimiter implements per-IP token buckets. Idle buckets are swept
// during Allow, so no background goroutine is needed.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rateLimiterEntry
	rate      rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// rateLimiterEntry wraps a rate limiter with last access time
type rateLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewRateLimiter allows reqsPerWindow requests per window for each client,
// refilling continuously.
func NewRateLimiter(reqsPerWindow int, window time.Duration) *RateLimiter {
	if reqsPerWindow < 1 {
		reqsPerWindow = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*rateLimiterEntry),
		rate:     rate.Every(window / time.Duration(reqsPerWindow)),
		burst:    reqsPerWindow,
		now:      time.Now,
	}
}

// Allow consumes one token for ip and reports whether the request may
// proceed and how many requests remain.
func (rl *RateLimiter) Allow(ip string) (allowed bool, remaining int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > staleLimiterAge {
		rl.sweep(now)
	}

	entry, exists := rl.limiters[ip]
	if !exists {
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[ip] = entry
	}
	entry.lastAccess = now

	allowed = entry.limiter.AllowN(now, 1)
	remaining = max(int(entry.limiter.TokensAt(now)), 0)
	return allowed, remaining
}

// sweep removes buckets that have been idle longer than staleLimiterAge.
func (rl *RateLimiter) sweep(now time.Time) {
	for ip, entry := range rl.limiters {
		if now.Sub(entry.lastAccess) > staleLimiterAge {
			delete(rl.limiters, ip)
		}
	}
	rl.lastSweep = now
}

// Len returns the number of tracked clients.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// rateLimitMiddleware rejects clients over their budget with 429.
func (s *Server) rateLimitMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			allowed, remaining := s.limiter.Allow(c.RealIP())
			c.Response().Header().Set(HeaderRateLimitRemaining, strconv.Itoa(remaining))
			if !allowed {
				s.httpMetrics.RecordRateLimited()
				return c.JSON(http.StatusTooManyRequests, &ErrorResponse{Error: "Rate limit exceeded"})
			}
			return next(c)
		}
	}
}

// metricsMiddleware records status and latency per route.
func (s *Server) metricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = statusForError(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			s.httpMetrics.RecordRequest(c.Request().Method, route, status, time.Since(start))
			return err
		}
	}
}

// NewRequestLogger creates a request logging middleware on the module logger.
func NewRequestLogger(log logger.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(_ echo.Context, v echomw.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", logger.Redact(v.URI)),
				logger.Int("status", v.Status),
				logger.String("ip", v.RemoteIP),
				logger.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, logger.Error(v.Error))
			}
			log.Info("request", fields...)
			return nil
		},
	})
}
