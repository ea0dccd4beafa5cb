package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/lifer/internal/profile"
)

const settingsBodyLimit = "4K"

// GetSettings handles GET /api/v1/settings.
func (s *Server) GetSettings(c echo.Context) error {
	userID, ok, err := s.requireUser(c)
	if !ok {
		return err
	}

	settings, err := s.finder.Settings(c.Request().Context(), userID)
	if err != nil {
		return s.HandleError(c, err, "Failed to load settings")
	}
	return c.JSON(http.StatusOK, settings)
}

// PatchSettings handles PATCH /api/v1/settings. Only the fields present
// in the JSON body change.
func (s *Server) PatchSettings(c echo.Context) error {
	userID, ok, err := s.requireUser(c)
	if !ok {
		return err
	}

	var update profile.Update
	if err := (&echo.DefaultBinder{}).BindBody(c, &update); err != nil {
		return s.badRequest(c, "Invalid settings", bindErrorDetail(err))
	}
	if update.IsEmpty() {
		return s.badRequest(c, "Invalid settings", "at least one of lat, lng, radiusMiles is required")
	}

	settings, err := s.finder.UpdateSettings(c.Request().Context(), userID, &update)
	if err != nil {
		return s.HandleError(c, err, "Failed to save settings")
	}
	return c.JSON(http.StatusOK, settings)
}
