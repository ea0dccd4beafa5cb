package finder

import (
	"context"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/lifer/internal/errors"
	"github.com/tphakala/lifer/internal/logger"
	"github.com/tphakala/lifer/internal/privacy"
	"github.com/tphakala/lifer/internal/profile"
)

func (s *Service) requireSettingsStore() error {
	if s.settingsStore == nil {
		return errors.Newf("settings storage is not configured").
			Category(errors.CategoryConfiguration).
			Component("finder").
			Build()
	}
	return nil
}

// Settings returns the user's saved settings, or the defaults.
func (s *Service) Settings(ctx context.Context, userID string) (profile.Settings, error) {
	if err := s.requireSettingsStore(); err != nil {
		return profile.Settings{}, err
	}
	if cached, found := s.settings.Get(userID); found {
		if settings, ok := cached.(profile.Settings); ok {
			return settings, nil
		}
	}

	settings, err := s.settingsStore.LoadSettings(ctx, userID)
	if err != nil {
		return profile.Settings{}, err
	}
	s.settings.Set(userID, settings, cache.DefaultExpiration)
	return settings, nil
}

// UpdateSettings applies a partial update and returns the stored settings.
func (s *Service) UpdateSettings(ctx context.Context, userID string, update *profile.Update) (profile.Settings, error) {
	if err := s.requireSettingsStore(); err != nil {
		return profile.Settings{}, err
	}
	if update == nil || update.IsEmpty() {
		return profile.Settings{}, errors.Newf("no settings to update").
			Category(errors.CategoryValidation).
			Component("finder").
			Build()
	}

	s.settings.Delete(userID)
	saved, err := s.settingsStore.SaveSettings(ctx, userID, update)
	if err != nil {
		return profile.Settings{}, err
	}
	s.settings.Set(userID, saved, cache.DefaultExpiration)

	s.logger.Info("user settings updated",
		logger.String("user", privacy.UserRef(userID)),
		logger.Bool("has_location", saved.HasLocation()),
		logger.Float64("radius_miles", saved.RadiusMiles))
	return saved, nil
}
