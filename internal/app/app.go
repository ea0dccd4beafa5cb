// Package app assembles the service graph shared by the CLI commands.
package app

import (
	"net/http"
	"slices"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/lifer/internal/buildinfo"
	"github.com/tphakala/lifer/internal/conf"
	"github.com/tphakala/lifer/internal/datastore"
	"github.com/tphakala/lifer/internal/ebird"
	"github.com/tphakala/lifer/internal/errors"
	"github.com/tphakala/lifer/internal/finder"
	"github.com/tphakala/lifer/internal/httpclient"
	"github.com/tphakala/lifer/internal/logger"
	"github.com/tphakala/lifer/internal/macaulay"
	"github.com/tphakala/lifer/internal/observability"
	"github.com/tphakala/lifer/internal/observation"
)

const sentryFlushTimeout = 2 * time.Second

// Context carries settings and build metadata from main into the commands.
type Context struct {
	Settings *conf.Settings
	Build    *buildinfo.Context

	// Options apply to every App built from this context.
	Options []Option
}

// NewContext creates a context with default settings. Commands replace
// Settings once the config file and flags have been read.
func NewContext(build *buildinfo.Context) *Context {
	settings, err := conf.DefaultSettings()
	if err != nil {
		settings = &conf.Settings{}
	}
	settings.Version = build.Version()
	settings.BuildDate = build.BuildDate()
	return &Context{Settings: settings, Build: build}
}

// App holds the constructed components.
type App struct {
	Settings   *conf.Settings
	Build      *buildinfo.Context
	Metrics    *observability.Metrics
	Client     *ebird.Client
	Photos     *macaulay.Client
	Aggregator *observation.Aggregator
	Store      *datastore.Store
	Finder     *finder.Service

	sentryEnabled bool
}

// Option customizes construction.
type Option func(*options)

type options struct {
	httpClient *http.Client
}

// WithHTTPClient sets the HTTP client used for eBird and Macaulay requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// EBirdConfig maps settings to the upstream client configuration.
func EBirdConfig(settings *conf.Settings) ebird.Config {
	return ebird.Config{
		APIKey:            settings.EBird.APIKey,
		BaseURL:           settings.EBird.BaseURL,
		Timeout:           settings.EBird.Timeout,
		Retries:           settings.EBird.Retries,
		RetryDelay:        settings.EBird.RetryDelay,
		RequestsPerSecond: settings.EBird.RequestsPerSecond,
		BreakerThreshold:  settings.EBird.Breaker.Threshold,
		BreakerTimeout:    settings.EBird.Breaker.OpenTimeout,
	}
}

// MacaulayConfig maps settings to the photo search client configuration.
func MacaulayConfig(settings *conf.Settings) macaulay.Config {
	return macaulay.Config{
		BaseURL:      settings.Macaulay.BaseURL,
		AssetBaseURL: settings.Macaulay.AssetBaseURL,
		Timeout:      settings.Macaulay.Timeout,
	}
}

// AggregatorConfig maps settings to the aggregation limits.
func AggregatorConfig(settings *conf.Settings) observation.Config {
	return observation.Config{
		MaxChecklistFetches:  settings.Aggregator.MaxChecklists,
		ChecklistConcurrency: settings.Aggregator.Concurrency,
		CacheMaxEntries:      settings.Cache.MaxEntries,
	}
}

// OpenStore opens the configured life-list backend.
func OpenStore(settings *conf.DatabaseSettings) (*datastore.Store, error) {
	switch settings.Type {
	case "", "sqlite":
		return datastore.Open(settings.Path)
	case "mysql":
		return datastore.OpenMySQL(datastore.MySQLConfig{
			Host:     settings.MySQL.Host,
			Port:     settings.MySQL.Port,
			Username: settings.MySQL.Username,
			Password: settings.MySQL.Password,
			Database: settings.MySQL.Database,
			Timeout:  settings.MySQL.Timeout,
		})
	default:
		return nil, errors.Newf("unsupported database type %q", settings.Type).
			Category(errors.CategoryConfiguration).
			Component("app").
			Build()
	}
}

// New builds every component from the context settings. The caller must Close the result.
func New(ctx *Context, opts ...Option) (*App, error) {
	if ctx == nil || ctx.Settings == nil {
		return nil, errors.Newf("application context has no settings").
			Category(errors.CategoryConfiguration).
			Component("app").
			Build()
	}
	var o options
	for _, opt := range slices.Concat(ctx.Options, opts) {
		opt(&o)
	}

	settings := ctx.Settings
	a := &App{Settings: settings, Build: ctx.Build}

	if settings.Telemetry.SentryDSN != "" {
		if err := errors.InitSentry(settings.Telemetry.SentryDSN, ctx.Build.Version()); err != nil {
			logger.Global().Module("app").Warn("error reporting disabled", logger.Error(err))
		} else {
			a.sentryEnabled = true
		}
	}

	var err error
	if a.Metrics, err = observability.NewMetrics(); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Component("app").
			Context("operation", "metrics").
			Build()
	}

	hc := o.httpClient
	if hc == nil {
		hc = httpclient.New(&httpclient.Config{
			UserAgent:  httpclient.UserAgent(ctx.Build.Version()),
			OnResponse: logUpstreamResponse,
		})
	}
	clientOpts := []ebird.Option{ebird.WithMetrics(a.Metrics.EBird), ebird.WithHTTPClient(hc)}
	if a.Client, err = ebird.NewClient(EBirdConfig(settings), clientOpts...); err != nil {
		return nil, err
	}

	aggOpts := []observation.Option{
		observation.WithMetrics(a.Metrics.Aggregator),
		observation.WithCacheMetrics(a.Metrics.Cache),
	}
	if settings.Macaulay.Enabled {
		if a.Photos, err = macaulay.NewClient(MacaulayConfig(settings), macaulay.WithHTTPClient(hc)); err != nil {
			return nil, err
		}
		aggOpts = append(aggOpts, observation.WithPhotoSource(a.Photos))
	}

	a.Aggregator, err = observation.NewAggregator(a.Client, AggregatorConfig(settings), aggOpts...)
	if err != nil {
		return nil, err
	}

	if a.Store, err = OpenStore(&settings.Database); err != nil {
		return nil, err
	}

	a.Finder, err = finder.New(a.Aggregator, a.Store,
		finder.WithScoreMetrics(a.Metrics.Aggregator),
		finder.WithLifeListMetrics(a.Metrics.LifeList))
	if err != nil {
		_ = a.Store.Close()
		return nil, err
	}

	return a, nil
}

func logUpstreamResponse(req *http.Request, resp *http.Response, err error, elapsed time.Duration) {
	log := logger.Global().Module("http")
	if err != nil {
		log.Debug("upstream request failed",
			logger.String("path", req.URL.Path),
			logger.Duration("elapsed", elapsed),
			logger.Error(err))
		return
	}
	log.Debug("upstream response",
		logger.String("path", req.URL.Path),
		logger.Int("status", resp.StatusCode),
		logger.Duration("elapsed", elapsed))
}

// Close releases the database and flushes pending error reports.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	if a.sentryEnabled {
		sentry.Flush(sentryFlushTimeout)
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// SetupLogging installs the global logger for settings. Debug mode lowers
// the default and console levels.
func SetupLogging(settings *conf.Settings) (*logger.CentralLogger, error) {
	cfg := settings.Logging
	if cfg.Console != nil {
		console := *cfg.Console
		cfg.Console = &console
	}
	if settings.Debug {
		cfg.DefaultLevel = "debug"
		if cfg.Console != nil {
			cfg.Console.Level = "debug"
		}
	}

	cl, err := logger.NewCentralLogger(&cfg)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Component("app").
			Context("operation", "logging").
			Build()
	}
	logger.SetGlobal(cl)
	return cl, nil
}

// Run builds the application, calls fn and closes the application afterwards.
func Run(ctx *Context, fn func(a *App) error) (err error) {
	a, err := New(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(a)
}
