package finder

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/lifer/internal/errors"
	"github.com/tphakala/lifer/internal/lifelist"
	"github.com/tphakala/lifer/internal/logger"
	"github.com/tphakala/lifer/internal/privacy"
)

// Parse and merge status labels.
const (
	statusSuccess = "success"
	statusFailed  = "failed"
)

// LifeListView is a sorted and filtered life list.
type LifeListView struct {
	Species    []lifelist.Entry `json:"species"`
	TotalCount int              `json:"totalCount"`
}

func (s *Service) requireStore() error {
	if s.store == nil {
		return errors.Newf("life list storage is not configured").
			Category(errors.CategoryConfiguration).
			Component("finder").
			Build()
	}
	return nil
}

// loadLifeList returns the user's stored list, reusing a recent load.
// Callers must not modify the returned slice.
func (s *Service) loadLifeList(ctx context.Context, userID string) ([]lifelist.Entry, error) {
	if cached, found := s.lifeLists.Get(userID); found {
		if entries, ok := cached.([]lifelist.Entry); ok {
			return entries, nil
		}
	}

	entries, err := s.store.LoadLifeList(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.lifeLists.Set(userID, entries, cache.DefaultExpiration)
	return entries, nil
}

// ImportCSV parses an uploaded export.
func (s *Service) ImportCSV(raw []byte) (*lifelist.ParseResult, error) {
	start := time.Now()
	result, err := lifelist.Parse(raw)
	if err != nil {
		s.lifeListMetrics.RecordParse("unknown", statusFailed, 0, 0, time.Since(start))
		return nil, err
	}
	s.lifeListMetrics.RecordParse(string(result.Format), statusSuccess, len(result.Entries), result.SkippedRows, time.Since(start))
	return result, nil
}

// MergeImport applies a parsed upload to the user's stored list and records
// the import. Species codes are filled from the taxonomy when it is available.
func (s *Service) MergeImport(ctx context.Context, userID string, importType lifelist.ImportType, parsed *lifelist.ParseResult) (lifelist.ImportStats, error) {
	if err := s.requireStore(); err != nil {
		return lifelist.ImportStats{}, err
	}
	if userID == "" {
		return lifelist.ImportStats{}, errors.Newf("user id is required").
			Category(errors.CategoryValidation).
			Component("finder").
			Build()
	}
	if parsed == nil {
		parsed = &lifelist.ParseResult{}
	}

	start := time.Now()
	stats, err := s.mergeImport(ctx, userID, importType, parsed)
	status := statusSuccess
	if err != nil {
		status = statusFailed
	}
	s.lifeListMetrics.RecordMerge(string(importType), status, time.Since(start))
	return stats, err
}

func (s *Service) mergeImport(ctx context.Context, userID string, importType lifelist.ImportType, parsed *lifelist.ParseResult) (lifelist.ImportStats, error) {
	entries := make([]lifelist.Entry, len(parsed.Entries))
	for i := range parsed.Entries {
		entries[i] = parsed.Entries[i].Clone()
	}

	if taxonomy, err := s.aggregator.Taxonomy(ctx); err != nil {
		s.logger.Warn("taxonomy unavailable, importing without species codes",
			logger.String("user", privacy.UserRef(userID)),
			logger.Error(err))
	} else {
		enriched := lifelist.EnrichSpeciesCodes(entries, taxonomy)
		s.logger.Debug("species codes enriched",
			logger.Int("enriched", enriched),
			logger.Int("species", len(entries)))
	}

	var err error
	switch importType {
	case lifelist.ImportFirstSeen:
		err = s.store.UpsertFirstSeen(ctx, userID, lifelist.AsFirstSeen(entries))
	case lifelist.ImportLastSeen:
		err = s.store.MergeLastSeen(ctx, userID, lifelist.AsLastSeen(entries))
	case lifelist.ImportReplace:
		err = s.store.SaveLifeList(ctx, userID, entries)
	default:
		err = errors.Newf("invalid import type %q", importType).
			Category(errors.CategoryValidation).
			Component("finder").
			Build()
	}
	// The stored list may have changed even when a later step fails
	s.lifeLists.Delete(userID)
	if err != nil {
		return lifelist.ImportStats{}, err
	}

	stats := parsed.Stats()
	if err := s.store.RecordImportStats(ctx, userID, importType, stats); err != nil {
		return lifelist.ImportStats{}, err
	}

	s.logger.Info("life list imported",
		logger.String("user", privacy.UserRef(userID)),
		logger.String("import_type", string(importType)),
		logger.Int("species", stats.SpeciesCount),
		logger.Int("total_observations", stats.TotalObservations),
		logger.Int("skipped_rows", stats.SkippedRows))
	return stats, nil
}

// LifeList returns the user's stored list filtered by search and sorted by mode.
func (s *Service) LifeList(ctx context.Context, userID string, mode lifelist.SortMode, search string) (*LifeListView, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	entries, err := s.loadLifeList(ctx, userID)
	if err != nil {
		return nil, err
	}

	species := lifelist.Filter(entries, search)
	lifelist.SortEntries(species, mode)
	return &LifeListView{Species: species, TotalCount: len(species)}, nil
}

// ImportSummary returns the user's import history summary.
func (s *Service) ImportSummary(ctx context.Context, userID string) (*lifelist.ImportSummary, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	return s.store.ImportSummary(ctx, userID)
}
