// Package finder ties observation gathering, scoring and life-list storage
// together behind one service used by the HTTP API and the CLI.
package finder

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/lifer/internal/ebird"
	"github.com/tphakala/lifer/internal/errors"
	"github.com/tphakala/lifer/internal/lifelist"
	"github.com/tphakala/lifer/internal/logger"
	"github.com/tphakala/lifer/internal/observability/metrics"
	"github.com/tphakala/lifer/internal/observation"
	"github.com/tphakala/lifer/internal/profile"
	"github.com/tphakala/lifer/internal/scoring"
)

// DefaultLifeListCacheTTL is how long a loaded life list is reused.
const DefaultLifeListCacheTTL = 5 * time.Minute

// DefaultSettingsCacheTTL is how long loaded user settings are reused.
const DefaultSettingsCacheTTL = 10 * time.Minute

// GetLogger returns the finder module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("finder")
}

// Aggregator gathers observations. *observation.Aggregator implements it.
type Aggregator interface {
	Aggregate(ctx context.Context, q observation.Query) (*observation.Result, error)
	RecentNearby(ctx context.Context, q observation.Query) ([]ebird.Observation, bool, error)
	SpeciesSightings(ctx context.Context, speciesCode string, q observation.Query, extraSubIDs []string) (*observation.SpeciesSightings, error)
	Taxonomy(ctx context.Context, speciesCodes ...string) ([]ebird.Taxon, error)
	Hotspots(ctx context.Context, q observation.Query) ([]ebird.Hotspot, error)
	RegionSpecies(ctx context.Context, regionCode string) ([]string, error)
	SpeciesPhotos(ctx context.Context, speciesCode string, subIDs []string) ([]observation.Photo, error)
}

// LifeListStore persists life lists. *datastore.Store implements it.
type LifeListStore interface {
	LoadLifeList(ctx context.Context, userID string) ([]lifelist.Entry, error)
	SaveLifeList(ctx context.Context, userID string, entries []lifelist.Entry) error
	UpsertFirstSeen(ctx context.Context, userID string, entries []lifelist.Entry) error
	MergeLastSeen(ctx context.Context, userID string, entries []lifelist.Entry) error
	RecordImportStats(ctx context.Context, userID string, importType lifelist.ImportType, stats lifelist.ImportStats) error
	ImportSummary(ctx context.Context, userID string) (*lifelist.ImportSummary, error)
}

// SettingsStore persists user settings. *datastore.Store implements it.
type SettingsStore interface {
	LoadSettings(ctx context.Context, userID string) (profile.Settings, error)
	SaveSettings(ctx context.Context, userID string, update *profile.Update) (profile.Settings, error)
}

// Service is the application facade.
type Service struct {
	aggregator    Aggregator
	store         LifeListStore
	settingsStore SettingsStore

	lifeLists *cache.Cache
	settings  *cache.Cache
	now       func() time.Time

	scoreMetrics    *metrics.AggregatorMetrics
	lifeListMetrics *metrics.LifeListMetrics
	logger          logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithScoreMetrics records scoring pass sizes.
func WithScoreMetrics(m *metrics.AggregatorMetrics) Option {
	return func(s *Service) { s.scoreMetrics = m }
}

// WithLifeListMetrics records parse and merge outcomes.
func WithLifeListMetrics(m *metrics.LifeListMetrics) Option {
	return func(s *Service) { s.lifeListMetrics = m }
}

// WithClock sets the reference time used for recency scoring.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSettingsStore sets where user settings are kept. By default a
// LifeListStore that also implements SettingsStore is used.
func WithSettingsStore(store SettingsStore) Option {
	return func(s *Service) { s.settingsStore = store }
}

// WithLifeListCacheTTL sets how long loaded life lists are reused.
func WithLifeListCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.lifeLists = cache.New(ttl, 2*ttl)
	}
}

// New creates a service. store may be nil, in which case every user is
// treated as anonymous and imports cannot be saved.
func New(aggregator Aggregator, store LifeListStore, opts ...Option) (*Service, error) {
	if aggregator == nil {
		return nil, errors.Newf("finder requires an observation aggregator").
			Category(errors.CategoryConfiguration).
			Component("finder").
			Build()
	}

	s := &Service{
		aggregator: aggregator,
		store:      store,
		lifeLists:  cache.New(DefaultLifeListCacheTTL, 2*DefaultLifeListCacheTTL),
		settings:   cache.New(DefaultSettingsCacheTTL, 2*DefaultSettingsCacheTTL),
		now:        time.Now,
		logger:     GetLogger(),
	}
	if ss, ok := store.(SettingsStore); ok {
		s.settingsStore = ss
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AggregateAndScore gathers observations around q and ranks them against
// lifeList. A nil lifeList disables lifer scoring.
func (s *Service) AggregateAndScore(ctx context.Context, q observation.Query, lifeList []lifelist.Entry) ([]scoring.ScoredObservation, error) {
	result, err := s.aggregator.Aggregate(ctx, q)
	if err != nil {
		return nil, err
	}

	scored := scoring.Score(scoring.Input{
		Recent:         result.Recent,
		Notable:        result.Notable,
		LifeList:       lifeList,
		CommentSpecies: result.CommentSpecies,
		PhotoCounts:    result.PhotoCounts,
		UserLat:        q.Lat,
		UserLng:        q.Lng,
		LookbackDays:   result.BackDays,
		Now:            s.now(),
	})
	s.scoreMetrics.RecordScored(len(scored))
	return scored, nil
}

// ScoredForUser scores observations around q using the stored life list of
// userID. Anonymous users and users with an empty list get no lifer scoring.
func (s *Service) ScoredForUser(ctx context.Context, userID string, q observation.Query) ([]scoring.ScoredObservation, error) {
	var lifeList []lifelist.Entry
	if userID != "" && s.store != nil {
		entries, err := s.loadLifeList(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(entries) > 0 {
			lifeList = entries
		}
	}
	return s.AggregateAndScore(ctx, q, lifeList)
}

// RecentNearby returns recent observations around q and whether they were cached.
func (s *Service) RecentNearby(ctx context.Context, q observation.Query) ([]ebird.Observation, bool, error) {
	return s.aggregator.RecentNearby(ctx, q)
}

// SpeciesSightings lists recent checklists for one species around q.
func (s *Service) SpeciesSightings(ctx context.Context, speciesCode string, q observation.Query, extraSubIDs []string) (*observation.SpeciesSightings, error) {
	if speciesCode == "" {
		return nil, errors.Newf("species code is required").
			Category(errors.CategoryValidation).
			Component("finder").
			Build()
	}
	return s.aggregator.SpeciesSightings(ctx, speciesCode, q, extraSubIDs)
}

// Hotspots lists hotspots around q.
func (s *Service) Hotspots(ctx context.Context, q observation.Query) ([]ebird.Hotspot, error) {
	return s.aggregator.Hotspots(ctx, q)
}

// RegionSpecies lists the species codes recorded in a region.
func (s *Service) RegionSpecies(ctx context.Context, regionCode string) ([]string, error) {
	return s.aggregator.RegionSpecies(ctx, regionCode)
}

// SpeciesPhotos returns photos of one species from the given checklists.
func (s *Service) SpeciesPhotos(ctx context.Context, speciesCode string, subIDs []string) ([]observation.Photo, error) {
	if speciesCode == "" || len(subIDs) == 0 {
		return nil, errors.Newf("species code and submission ids are required").
			Category(errors.CategoryValidation).
			Component("finder").
			Build()
	}
	return s.aggregator.SpeciesPhotos(ctx, speciesCode, subIDs)
}
