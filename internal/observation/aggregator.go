// Package observation gathers nearby observations and checklist details from
// eBird, shielding the API behind in-process caches.
package observation

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/tphakala/lifer/internal/cache"
	"github.com/tphakala/lifer/internal/ebird"
	"github.com/tphakala/lifer/internal/errors"
	"github.com/tphakala/lifer/internal/logger"
	"github.com/tphakala/lifer/internal/macaulay"
	"github.com/tphakala/lifer/internal/observability/metrics"
)

// KmPerMile converts search radii from miles.
const KmPerMile = 1.609344

// Aggregation status labels.
const (
	statusSuccess = "success"
	statusFailed  = "failed"
)

// GetLogger returns the observation module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("observation")
}

// Client is the subset of the eBird API the aggregator needs.
type Client interface {
	RecentNearbyObservations(ctx context.Context, q ebird.GeoQuery) ([]ebird.Observation, error)
	RecentNearbyNotableObservations(ctx context.Context, q ebird.GeoQuery) ([]ebird.Observation, error)
	RecentNearbySpeciesObservations(ctx context.Context, speciesCode string, q ebird.GeoQuery) ([]ebird.Observation, error)
	Checklist(ctx context.Context, subID string) (*ebird.Checklist, error)
	Taxonomy(ctx context.Context, speciesCodes ...string) ([]ebird.Taxon, error)
	NearbyHotspots(ctx context.Context, q ebird.HotspotQuery) ([]ebird.Hotspot, error)
	RegionSpeciesList(ctx context.Context, regionCode string) ([]string, error)
}

// Config bounds the work done per aggregation.
type Config struct {
	MaxChecklistFetches  int `json:"max_checklist_fetches"`
	ChecklistConcurrency int `json:"checklist_concurrency"`
	CacheMaxEntries      int `json:"cache_max_entries"`
}

// DefaultConfig returns the default aggregation limits.
func DefaultConfig() Config {
	return Config{
		MaxChecklistFetches:  50,
		ChecklistConcurrency: 10,
		CacheMaxEntries:      cache.DefaultMaxEntries,
	}
}

// Query describes a nearby search as callers express it.
type Query struct {
	Lat          float64
	Lng          float64
	RadiusMiles  float64
	LookbackDays int
}

// geo converts q to clamped API parameters.
func (q Query) geo() (ebird.GeoQuery, error) {
	if err := ebird.ValidateCoordinates(q.Lat, q.Lng); err != nil {
		return ebird.GeoQuery{}, err
	}
	return ebird.GeoQuery{
		Lat:        q.Lat,
		Lng:        q.Lng,
		DistanceKm: ebird.ClampDistance(int(math.Round(q.RadiusMiles * KmPerMile))),
		BackDays:   ebird.ClampBack(q.LookbackDays),
	}, nil
}

// Result is the output of one aggregation.
type Result struct {
	Recent     []ebird.Observation
	Notable    []ebird.Observation
	Checklists map[string]*ebird.Checklist
	// CommentSpecies holds species codes with a non-blank comment on any fetched checklist.
	CommentSpecies map[string]struct{}
	// PhotoCounts sums photo media per species code across fetched checklists.
	PhotoCounts map[string]int
	DistanceKm  int
	BackDays    int
}

// Aggregator coordinates cache-checked eBird calls.
type Aggregator struct {
	client Client
	config Config

	observations *cache.TTL[[]ebird.Observation]
	checklists   *cache.TTL[*ebird.Checklist]
	taxonomy     *cache.TTL[[]ebird.Taxon]
	hotspots     *cache.TTL[[]ebird.Hotspot]
	regions      *cache.TTL[[]string]
	photos       *cache.TTL[[]macaulay.Asset]

	photoSource PhotoSource
	metrics     *metrics.AggregatorMetrics
	logger      logger.Logger
}

// Option configures an Aggregator.
type Option func(*options)

type options struct {
	metrics      *metrics.AggregatorMetrics
	cacheMetrics *metrics.CacheMetrics
	clock        cache.Clock
	photoSource  PhotoSource
}

// WithMetrics records aggregation metrics.
func WithMetrics(m *metrics.AggregatorMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithCacheMetrics exposes the aggregator's caches to m.
func WithCacheMetrics(m *metrics.CacheMetrics) Option {
	return func(o *options) { o.cacheMetrics = m }
}

// WithPhotoSource enables SpeciesPhotos lookups against src.
func WithPhotoSource(src PhotoSource) Option {
	return func(o *options) { o.photoSource = src }
}

// WithClock sets the time source of all caches.
func WithClock(clock cache.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// NewAggregator creates an aggregator. Non-positive limits fall back to defaults.
func NewAggregator(client Client, config Config, opts ...Option) (*Aggregator, error) {
	if client == nil {
		return nil, errors.Newf("observation aggregator requires an eBird client").
			Category(errors.CategoryConfiguration).
			Component("observation").
			Build()
	}

	defaults := DefaultConfig()
	if config.MaxChecklistFetches <= 0 {
		config.MaxChecklistFetches = defaults.MaxChecklistFetches
	}
	if config.ChecklistConcurrency <= 0 {
		config.ChecklistConcurrency = defaults.ChecklistConcurrency
	}
	if config.CacheMaxEntries <= 0 {
		config.CacheMaxEntries = defaults.CacheMaxEntries
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	var cacheOpts []cache.Option
	if o.clock != nil {
		cacheOpts = append(cacheOpts, cache.WithClock(o.clock))
	}

	a := &Aggregator{
		client:       client,
		config:       config,
		observations: cache.New[[]ebird.Observation](config.CacheMaxEntries, cacheOpts...),
		checklists:   cache.New[*ebird.Checklist](config.CacheMaxEntries, cacheOpts...),
		taxonomy:     cache.New[[]ebird.Taxon](config.CacheMaxEntries, cacheOpts...),
		hotspots:     cache.New[[]ebird.Hotspot](config.CacheMaxEntries, cacheOpts...),
		regions:      cache.New[[]string](config.CacheMaxEntries, cacheOpts...),
		photos:       cache.New[[]macaulay.Asset](config.CacheMaxEntries, cacheOpts...),
		photoSource:  o.photoSource,
		metrics:      o.metrics,
		logger:       GetLogger(),
	}

	if o.cacheMetrics != nil {
		o.cacheMetrics.Observe("observations", a.observations)
		o.cacheMetrics.Observe("checklists", a.checklists)
		o.cacheMetrics.Observe("taxonomy", a.taxonomy)
		o.cacheMetrics.Observe("hotspots", a.hotspots)
		o.cacheMetrics.Observe("regions", a.regions)
		o.cacheMetrics.Observe("photos", a.photos)
	}

	return a, nil
}

// cached returns the value under key, calling fetch and storing its result on a miss.
func cached[V any](ctx context.Context, c *cache.TTL[V], key string, ttl time.Duration,
	fetch func(context.Context) (V, error)) (value V, hit bool, err error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}
	v, err := fetch(ctx)
	if err != nil {
		return v, false, err
	}
	c.Set(key, v, ttl)
	return v, false, nil
}

// RecentNearby returns recent observations around q. hit reports whether
// the result came from the cache.
func (a *Aggregator) RecentNearby(ctx context.Context, q Query) (obs []ebird.Observation, hit bool, err error) {
	geo, err := q.geo()
	if err != nil {
		return nil, false, err
	}
	return cached(ctx, a.observations, cache.ObservationsKey(geo.Lat, geo.Lng, geo.DistanceKm, geo.BackDays),
		cache.ObservationsTTL, func(ctx context.Context) ([]ebird.Observation, error) {
			return a.client.RecentNearbyObservations(ctx, geo)
		})
}

// Aggregate fetches recent and notable observations concurrently, then the
// checklists behind them. A failed primary fetch fails the aggregation; a
// failed checklist fetch only leaves a gap in the result.
func (a *Aggregator) Aggregate(ctx context.Context, q Query) (*Result, error) {
	start := time.Now()

	result, err := a.aggregate(ctx, q)
	if err != nil {
		a.metrics.RecordAggregation(statusFailed, time.Since(start))
		return nil, err
	}

	a.metrics.RecordAggregation(statusSuccess, time.Since(start))
	a.logger.Debug("aggregation completed",
		logger.Int("recent", len(result.Recent)),
		logger.Int("notable", len(result.Notable)),
		logger.Int("checklists", len(result.Checklists)),
		logger.Duration("duration", time.Since(start)))
	return result, nil
}

func (a *Aggregator) aggregate(ctx context.Context, q Query) (*Result, error) {
	geo, err := q.geo()
	if err != nil {
		return nil, err
	}

	var recent, notable []ebird.Observation
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recent, _, err = cached(gctx, a.observations, cache.ObservationsKey(geo.Lat, geo.Lng, geo.DistanceKm, geo.BackDays),
			cache.ObservationsTTL, func(ctx context.Context) ([]ebird.Observation, error) {
				return a.client.RecentNearbyObservations(ctx, geo)
			})
		return err
	})
	g.Go(func() error {
		var err error
		notable, _, err = cached(gctx, a.observations, cache.NotableKey(geo.Lat, geo.Lng, geo.DistanceKm, geo.BackDays),
			cache.NotableTTL, func(ctx context.Context) ([]ebird.Observation, error) {
				return a.client.RecentNearbyNotableObservations(ctx, geo)
			})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	subIDs := submissionIDs(a.config.MaxChecklistFetches, notable, recent)
	checklists, err := a.fetchChecklists(ctx, subIDs)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Recent:         recent,
		Notable:        notable,
		Checklists:     checklists,
		CommentSpecies: make(map[string]struct{}),
		PhotoCounts:    make(map[string]int),
		DistanceKm:     geo.DistanceKm,
		BackDays:       geo.BackDays,
	}
	for _, cl := range checklists {
		for i := range cl.Entries {
			entry := &cl.Entries[i]
			if strings.TrimSpace(entry.Comments) != "" {
				result.CommentSpecies[entry.SpeciesCode] = struct{}{}
			}
			if n := entry.PhotoCount(); n > 0 {
				result.PhotoCounts[entry.SpeciesCode] += n
			}
		}
	}
	return result, nil
}

// submissionIDs returns distinct submission ids across feeds in first-seen
// order, at most limit of them.
func submissionIDs(limit int, feeds ...[]ebird.Observation) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, feed := range feeds {
		for i := range feed {
			id := feed[i].SubmissionID
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			if len(ids) >= limit {
				return ids
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// fetchChecklists loads checklist details with bounded concurrency. Failed
// fetches are logged and left out; the call returns once every fetch has
// finished. A canceled ctx fails the whole fan-out.
func (a *Aggregator) fetchChecklists(ctx context.Context, subIDs []string) (map[string]*ebird.Checklist, error) {
	out := make(map[string]*ebird.Checklist, len(subIDs))
	if len(subIDs) == 0 {
		return out, nil
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = semaphore.NewWeighted(int64(a.config.ChecklistConcurrency))
	)

	for _, id := range subIDs {
		if cl, ok := a.checklists.Get(cache.ChecklistKey(id)); ok {
			mu.Lock()
			out[id] = cl
			mu.Unlock()
			a.metrics.RecordChecklist(metrics.ChecklistCached)
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Go(func() {
			defer sem.Release(1)

			cl, err := a.client.Checklist(ctx, id)
			if err != nil {
				a.metrics.RecordChecklist(metrics.ChecklistFailed)
				a.logger.Debug("checklist fetch failed",
					logger.String("sub_id", id),
					logger.Error(err))
				return
			}
			a.checklists.Set(cache.ChecklistKey(id), cl, cache.ChecklistTTL)
			a.metrics.RecordChecklist(metrics.ChecklistFetched)

			mu.Lock()
			out[id] = cl
			mu.Unlock()
		})
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.Newf("checklist fetch canceled: %w", err).
			Category(errors.CategoryCancellation).
			Component("observation").
			Context("checklists", len(subIDs)).
			Build()
	}
	return out, nil
}
