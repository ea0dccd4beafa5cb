// Package api provides the HTTP boundary of the service.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/lifer/internal/buildinfo"
	"github.com/tphakala/lifer/internal/conf"
	"github.com/tphakala/lifer/internal/ebird"
	"github.com/tphakala/lifer/internal/errors"
	"github.com/tphakala/lifer/internal/finder"
	"github.com/tphakala/lifer/internal/lifelist"
	"github.com/tphakala/lifer/internal/logger"
	"github.com/tphakala/lifer/internal/observability/metrics"
	"github.com/tphakala/lifer/internal/observation"
	"github.com/tphakala/lifer/internal/profile"
	"github.com/tphakala/lifer/internal/scoring"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Finder is the application service behind the routes. *finder.Service implements it.
type Finder interface {
	ScoredForUser(ctx context.Context, userID string, q observation.Query) ([]scoring.ScoredObservation, error)
	RecentNearby(ctx context.Context, q observation.Query) ([]ebird.Observation, bool, error)
	SpeciesSightings(ctx context.Context, speciesCode string, q observation.Query, extraSubIDs []string) (*observation.SpeciesSightings, error)
	Hotspots(ctx context.Context, q observation.Query) ([]ebird.Hotspot, error)
	RegionSpecies(ctx context.Context, regionCode string) ([]string, error)
	ImportCSV(raw []byte) (*lifelist.ParseResult, error)
	MergeImport(ctx context.Context, userID string, importType lifelist.ImportType, parsed *lifelist.ParseResult) (lifelist.ImportStats, error)
	LifeList(ctx context.Context, userID string, mode lifelist.SortMode, search string) (*finder.LifeListView, error)
	ImportSummary(ctx context.Context, userID string) (*lifelist.ImportSummary, error)
	SpeciesPhotos(ctx context.Context, speciesCode string, subIDs []string) ([]observation.Photo, error)
	Settings(ctx context.Context, userID string) (profile.Settings, error)
	UpdateSettings(ctx context.Context, userID string, update *profile.Update) (profile.Settings, error)
}

// Config holds the HTTP server configuration.
type Config struct {
	Listen          string
	RateLimit       int   // requests per minute per client IP
	MaxUploadBytes  int64 // life-list upload size limit
	TrustProxy      bool  // take the client IP from X-Forwarded-For
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Listen:          ":8080",
		RateLimit:       conf.DefaultRateLimit,
		MaxUploadBytes:  conf.DefaultMaxUploadMB << 20,
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// ConfigFromSettings creates a Config from application settings.
func ConfigFromSettings(settings *conf.Settings) Config {
	config := DefaultConfig()
	if settings == nil {
		return config
	}
	if settings.Server.Listen != "" {
		config.Listen = settings.Server.Listen
	}
	if settings.Server.RateLimit > 0 {
		config.RateLimit = settings.Server.RateLimit
	}
	if settings.Server.MaxUploadMB > 0 {
		config.MaxUploadBytes = int64(settings.Server.MaxUploadMB) << 20
	}
	config.TrustProxy = settings.Server.TrustProxy
	return config
}

// Server is the HTTP server.
type Server struct {
	echo     *echo.Echo
	config   Config
	finder   Finder
	identity IdentityResolver
	limiter  *RateLimiter
	build    *buildinfo.Context

	httpMetrics    *metrics.HTTPMetrics
	metricsHandler http.Handler
	logger         logger.Logger
}

// Option is a functional option for configuring the Server.
type Option func(*Server)

// WithIdentityResolver sets how requests are mapped to users.
func WithIdentityResolver(resolver IdentityResolver) Option {
	return func(s *Server) {
		if resolver != nil {
			s.identity = resolver
		}
	}
}

// WithHTTPMetrics records request counts and latencies.
func WithHTTPMetrics(m *metrics.HTTPMetrics) Option {
	return func(s *Server) {
		s.httpMetrics = m
	}
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

// WithBuildInfo reports version metadata on the health endpoint.
func WithBuildInfo(info *buildinfo.Context) Option {
	return func(s *Server) {
		s.build = info
	}
}

// WithRateLimiter replaces the per-IP limiter built from the config.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(s *Server) {
		s.limiter = rl
	}
}

// New creates a server and registers its routes.
func New(f Finder, config Config, opts ...Option) (*Server, error) {
	if f == nil {
		return nil, fmt.Errorf("api server requires a finder service")
	}
	if config.RateLimit <= 0 {
		config.RateLimit = conf.DefaultRateLimit
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = conf.DefaultMaxUploadMB << 20
	}

	s := &Server{
		config:   config,
		finder:   f,
		identity: HeaderIdentity,
		logger:   GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = NewRateLimiter(config.RateLimit, time.Minute)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	if config.TrustProxy {
		s.echo.IPExtractor = echo.ExtractIPFromXFFHeader()
	} else {
		s.echo.IPExtractor = echo.ExtractIPDirect()
	}

	s.echo.Use(echomw.Recover())
	s.echo.Use(s.metricsMiddleware())
	s.echo.Use(NewRequestLogger(s.logger))

	s.initRoutes()
	return s, nil
}

// initRoutes registers all endpoints.
func (s *Server) initRoutes() {
	s.echo.GET("/healthz", s.HealthCheck)
	if s.metricsHandler != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metricsHandler))
	}

	v1 := s.echo.Group("/api/v1", s.rateLimitMiddleware())

	birds := v1.Group("/birds")
	birds.GET("/scored", s.GetScored)
	birds.GET("/nearby", s.GetNearby)
	birds.GET("/species/:code", s.GetSpecies)
	birds.GET("/photos", s.GetPhotos)

	v1.GET("/settings", s.GetSettings)
	v1.PATCH("/settings", s.PatchSettings, echomw.BodyLimit(settingsBodyLimit))

	v1.GET("/hotspots", s.GetHotspots)
	v1.GET("/regions/:region/species", s.GetRegionSpecies)

	lists := v1.Group("/lifelist")
	lists.GET("", s.GetLifeList)
	lists.GET("/summary", s.GetImportSummary)
	// Leave room for multipart framing around the file part
	bodyLimit := fmt.Sprintf("%dK", (s.config.MaxUploadBytes>>10)+1024)
	lists.POST("/upload", s.UploadLifeList, echomw.BodyLimit(bodyLimit))
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully within the configured shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.echo,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		s.logger.Info("HTTP server listening", logger.String("address", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return <-errCh
}

// HealthCheck reports liveness.
func (s *Server) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":     "healthy",
		"version":    s.build.Version(),
		"build_date": s.build.BuildDate(),
		"timestamp":  time.Now().Format(time.RFC3339),
	})
}
