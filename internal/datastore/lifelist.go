package datastore

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tphakala/lifer/internal/errors"
	"github.com/tphakala/lifer/internal/lifelist"
	"github.com/tphakala/lifer/internal/logger"
	"github.com/tphakala/lifer/internal/privacy"
)

// InsertBatchSize bounds the rows per INSERT statement.
const InsertBatchSize = 500

// MaxUserIDLength matches the user_id column width.
const MaxUserIDLength = 128

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.Newf("user id is required").
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}
	if len(userID) > MaxUserIDLength {
		return errors.Newf("user id exceeds %d bytes", MaxUserIDLength).
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// LoadLifeList returns a user's life list in taxonomic order. A user
// without entries gets an empty slice.
func (s *Store) LoadLifeList(ctx context.Context, userID string) ([]lifelist.Entry, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return loadEntries(s.DB.WithContext(ctx), userID)
}

func loadEntries(db *gorm.DB, userID string) ([]lifelist.Entry, error) {
	var rows []LifeListEntry
	if err := db.Where("user_id = ?", userID).
		Order("taxonomic_order ASC, scientific_name ASC").
		Find(&rows).Error; err != nil {
		return nil, dbError(err, "load_life_list", "user_id", userID)
	}

	entries := make([]lifelist.Entry, len(rows))
	for i := range rows {
		entries[i] = rows[i].toEntry()
	}
	return entries, nil
}

// replaceEntries deletes the user's rows and inserts entries in batches.
func replaceEntries(tx *gorm.DB, userID string, entries []lifelist.Entry) error {
	if err := tx.Where("user_id = ?", userID).Delete(&LifeListEntry{}).Error; err != nil {
		return dbError(err, "delete_life_list", "user_id", userID)
	}
	if len(entries) == 0 {
		return nil
	}

	rows := make([]LifeListEntry, len(entries))
	for i := range entries {
		rows[i] = entryRow(uuid.NewString(), userID, &entries[i])
	}
	if err := tx.CreateInBatches(rows, InsertBatchSize).Error; err != nil {
		return dbError(err, "insert_life_list", "user_id", userID, "rows", len(rows))
	}
	return nil
}

// SaveLifeList replaces the user's whole life list in one transaction.
func (s *Store) SaveLifeList(ctx context.Context, userID string, entries []lifelist.Entry) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	start := time.Now()
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replaceEntries(tx, userID, entries)
	})
	if err != nil {
		return err
	}

	GetLogger().Debug("life list replaced",
		logger.String("user", privacy.UserRef(userID)),
		logger.Int("species", len(entries)),
		logger.Duration("duration", time.Since(start)))
	return nil
}

// mergeWith applies merge to the stored list inside one transaction.
func (s *Store) mergeWith(ctx context.Context, userID, operation string, incoming []lifelist.Entry,
	merge func(existing, incoming []lifelist.Entry) []lifelist.Entry) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	start := time.Now()

	var merged int
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := loadEntries(tx, userID)
		if err != nil {
			return err
		}
		result := merge(existing, incoming)
		merged = len(result)
		return replaceEntries(tx, userID, result)
	})
	if err != nil {
		return err
	}

	GetLogger().Debug("life list merged",
		logger.String("user", privacy.UserRef(userID)),
		logger.String("operation", operation),
		logger.Int("incoming", len(incoming)),
		logger.Int("species", merged),
		logger.Duration("duration", time.Since(start)))
	return nil
}

// UpsertFirstSeen merges entries as first sightings.
func (s *Store) UpsertFirstSeen(ctx context.Context, userID string, entries []lifelist.Entry) error {
	return s.mergeWith(ctx, userID, "first_seen", entries, lifelist.MergeFirstSeen)
}

// MergeLastSeen merges entries as last sightings.
func (s *Store) MergeLastSeen(ctx context.Context, userID string, entries []lifelist.Entry) error {
	return s.mergeWith(ctx, userID, "last_seen", entries, lifelist.MergeLastSeen)
}

// RecordImportStats appends an import to the user's history.
func (s *Store) RecordImportStats(ctx context.Context, userID string, importType lifelist.ImportType, stats lifelist.ImportStats) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	row := LifeListImport{
		ID:                uuid.NewString(),
		UserID:            userID,
		ImportType:        string(importType),
		SpeciesCount:      stats.SpeciesCount,
		TotalObservations: stats.TotalObservations,
		SkippedRows:       stats.SkippedRows,
		ImportedAt:        time.Now().UTC(),
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int64
		if err := tx.Model(&LifeListImport{}).
			Where("user_id = ?", userID).
			Select("COALESCE(MAX(import_seq), 0)").
			Scan(&last).Error; err != nil {
			return err
		}
		row.ImportSeq = last + 1
		return tx.Create(&row).Error
	})
	if err != nil {
		return dbError(err, "record_import", "user_id", userID)
	}
	return nil
}

// ImportSummary reports the stored species count and the latest import.
func (s *Store) ImportSummary(ctx context.Context, userID string) (*lifelist.ImportSummary, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)

	var species, imports int64
	if err := db.Model(&LifeListEntry{}).Where("user_id = ?", userID).Count(&species).Error; err != nil {
		return nil, dbError(err, "count_life_list", "user_id", userID)
	}
	if err := db.Model(&LifeListImport{}).Where("user_id = ?", userID).Count(&imports).Error; err != nil {
		return nil, dbError(err, "count_imports", "user_id", userID)
	}

	summary := &lifelist.ImportSummary{SpeciesCount: int(species), ImportCount: int(imports)}
	if imports == 0 {
		return summary, nil
	}

	var last LifeListImport
	if err := db.Where("user_id = ?", userID).Order("import_seq DESC, imported_at DESC").First(&last).Error; err != nil {
		return nil, dbError(err, "last_import", "user_id", userID)
	}
	summary.LastImport = &lifelist.ImportRecord{
		ImportType: lifelist.ImportType(last.ImportType),
		ImportStats: lifelist.ImportStats{
			SpeciesCount:      last.SpeciesCount,
			TotalObservations: last.TotalObservations,
			SkippedRows:       last.SkippedRows,
		},
		ImportedAt: last.ImportedAt,
	}
	return summary, nil
}
