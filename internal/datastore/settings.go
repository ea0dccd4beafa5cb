package datastore

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/lifer/internal/errors"
	"github.com/tphakala/lifer/internal/logger"
	"github.com/tphakala/lifer/internal/privacy"
	"github.com/tphakala/lifer/internal/profile"
)

// LoadSettings returns a user's saved settings, or the defaults when the
// user has never saved any.
func (s *Store) LoadSettings(ctx context.Context, userID string) (profile.Settings, error) {
	if err := requireUser(userID); err != nil {
		return profile.Settings{}, err
	}
	return loadSettings(s.DB.WithContext(ctx), userID)
}

func loadSettings(db *gorm.DB, userID string) (profile.Settings, error) {
	var row UserSettings
	err := db.Where("user_id = ?", userID).Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return profile.Defaults(), nil
	case err != nil:
		return profile.Settings{}, dbError(err, "load_settings", "user_id", userID)
	}
	return profile.Settings{Lat: row.Lat, Lng: row.Lng, RadiusMiles: row.RadiusMiles}, nil
}

// SaveSettings applies update to the user's settings and returns the
// stored result.
func (s *Store) SaveSettings(ctx context.Context, userID string, update *profile.Update) (profile.Settings, error) {
	if err := requireUser(userID); err != nil {
		return profile.Settings{}, err
	}
	if err := update.Validate(); err != nil {
		return profile.Settings{}, err
	}

	var saved profile.Settings
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := loadSettings(tx, userID)
		if err != nil {
			return err
		}
		saved = current.Apply(update)
		row := UserSettings{
			UserID:      userID,
			Lat:         saved.Lat,
			Lng:         saved.Lng,
			RadiusMiles: saved.RadiusMiles,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"lat", "lng", "radius_miles", "updated_at"}),
		}).Create(&row).Error
	})
	if err != nil {
		if errors.IsCategory(err, errors.CategoryDatabase) {
			return profile.Settings{}, err
		}
		return profile.Settings{}, dbError(err, "save_settings", "user_id", userID)
	}

	GetLogger().Debug("user settings saved",
		logger.String("user", privacy.UserRef(userID)),
		logger.Bool("has_location", saved.HasLocation()),
		logger.Float64("radius_miles", saved.RadiusMiles))
	return saved, nil
}
