package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/lifer/internal/observation"
)

// HeaderCache reports whether a response came from the observation cache.
const HeaderCache = "X-Cache"

// bindGeo reads and validates the location parameters, writing a 400 on failure.
func (s *Server) bindGeo(c echo.Context, defaultBack int) (*geoParams, bool, error) {
	if details := requireCoordinates(c); len(details) > 0 {
		return nil, false, s.badRequest(c, "Invalid parameters", details...)
	}
	params := newGeoParams(defaultBack)
	if details, ok := bindQuery(c, &params); !ok {
		return nil, false, s.badRequest(c, "Invalid parameters", details...)
	}
	return &params, true, nil
}

// GetScored handles GET /api/v1/birds/scored. Observations are ranked
// against the caller's life list when a user is identified.
func (s *Server) GetScored(c echo.Context) error {
	params, ok, err := s.bindGeo(c, DefaultBackDays)
	if !ok {
		return err
	}

	scored, err := s.finder.ScoredForUser(c.Request().Context(), s.identity(c), params.query())
	if err != nil {
		return s.HandleError(c, err, "Failed to score observations")
	}
	return c.JSON(http.StatusOK, scored)
}

// GetNearby handles GET /api/v1/birds/nearby.
func (s *Server) GetNearby(c echo.Context) error {
	params, ok, err := s.bindGeo(c, DefaultBackDays)
	if !ok {
		return err
	}

	observations, hit, err := s.finder.RecentNearby(c.Request().Context(), params.query())
	if err != nil {
		return s.HandleError(c, err, "Failed to fetch nearby observations")
	}
	if hit {
		c.Response().Header().Set(HeaderCache, "HIT")
	} else {
		c.Response().Header().Set(HeaderCache, "MISS")
	}
	return c.JSON(http.StatusOK, observations)
}

// GetPhotos handles GET /api/v1/birds/photos.
func (s *Server) GetPhotos(c echo.Context) error {
	var params photoParams
	if details, ok := bindQuery(c, &params); !ok {
		return s.badRequest(c, "subIds and speciesCode are required", details...)
	}
	subIDs := splitSubIDs(params.SubIDs)
	if len(subIDs) == 0 {
		return s.badRequest(c, "subIds and speciesCode are required", "subIds is required")
	}

	photos, err := s.finder.SpeciesPhotos(c.Request().Context(), strings.TrimSpace(params.SpeciesCode), subIDs)
	if err != nil {
		return s.HandleError(c, err, "Failed to fetch photos")
	}
	return c.JSON(http.StatusOK, &PhotosResponse{Photos: photos})
}

// PhotosResponse wraps the photos of a species.
type PhotosResponse struct {
	Photos []observation.Photo `json:"photos"`
}

// GetSpecies handles GET /api/v1/birds/species/:code.
func (s *Server) GetSpecies(c echo.Context) error {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		return s.badRequest(c, "Invalid parameters", "species code is required")
	}
	params, ok, err := s.bindGeo(c, DefaultSpeciesBackDays)
	if !ok {
		return err
	}
	var extra subIDParams
	if details, ok := bindQuery(c, &extra); !ok {
		return s.badRequest(c, "Invalid parameters", details...)
	}

	sightings, err := s.finder.SpeciesSightings(c.Request().Context(), code, params.query(), splitSubIDs(extra.SubIDs))
	if err != nil {
		return s.HandleError(c, err, "Failed to fetch species sightings")
	}
	return c.JSON(http.StatusOK, sightings)
}

// GetHotspots handles GET /api/v1/hotspots.
func (s *Server) GetHotspots(c echo.Context) error {
	params, ok, err := s.bindGeo(c, DefaultBackDays)
	if !ok {
		return err
	}

	hotspots, err := s.finder.Hotspots(c.Request().Context(), params.query())
	if err != nil {
		return s.HandleError(c, err, "Failed to fetch hotspots")
	}
	return c.JSON(http.StatusOK, hotspots)
}

// GetRegionSpecies handles GET /api/v1/regions/:region/species.
func (s *Server) GetRegionSpecies(c echo.Context) error {
	codes, err := s.finder.RegionSpecies(c.Request().Context(), strings.TrimSpace(c.Param("region")))
	if err != nil {
		return s.HandleError(c, err, "Failed to fetch region species")
	}
	return c.JSON(http.StatusOK, codes)
}
