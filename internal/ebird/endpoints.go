package ebird

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/tphakala/lifer/internal/errors"
)

// Endpoint paths. Templated forms are used as metric labels.
const (
	PathRecentObservations  = "/data/obs/geo/recent"
	PathNotableObservations = "/data/obs/geo/recent/notable"
	PathSpeciesObservations = "/data/obs/geo/recent/{speciesCode}"
	PathChecklist           = "/product/checklist/view/{subId}"
	PathTaxonomy            = "/ref/taxonomy/ebird"
	PathHotspots            = "/ref/hotspot/geo"
	PathRegionSpecies       = "/product/spplist/{regionCode}"
)

// Parameter limits enforced by the API.
const (
	MinDistanceKm = 1
	MaxDistanceKm = 50
	MinBackDays   = 1
	MaxBackDays   = 30
)

// GeoQuery selects observations around a point. Zero values leave a
// parameter unset so the API default applies.
type GeoQuery struct {
	Lat                float64
	Lng                float64
	DistanceKm         int
	BackDays           int
	MaxResults         int
	HotspotsOnly       bool
	IncludeProvisional bool
}

// HotspotQuery selects hotspots around a point.
type HotspotQuery struct {
	Lat        float64
	Lng        float64
	DistanceKm int
	BackDays   int
}

// ClampDistance limits km to the range the API accepts.
func ClampDistance(km int) int {
	return min(max(km, MinDistanceKm), MaxDistanceKm)
}

// ClampBack limits days to the range the API accepts.
func ClampBack(days int) int {
	return min(max(days, MinBackDays), MaxBackDays)
}

// ValidateCoordinates rejects latitudes outside [-90,90] and longitudes outside [-180,180].
func ValidateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return errors.Newf("invalid latitude %v: must be between -90 and 90", lat).
			Category(errors.CategoryValidation).
			Component("ebird").
			Context("lat", lat).
			Build()
	}
	if lng < -180 || lng > 180 {
		return errors.Newf("invalid longitude %v: must be between -180 and 180", lng).
			Category(errors.CategoryValidation).
			Component("ebird").
			Context("lng", lng).
			Build()
	}
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// values encodes the query, clamping distance and lookback when set.
func (q GeoQuery) values() (url.Values, error) {
	if err := ValidateCoordinates(q.Lat, q.Lng); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("lat", formatCoord(q.Lat))
	params.Set("lng", formatCoord(q.Lng))
	if q.DistanceKm != 0 {
		params.Set("dist", strconv.Itoa(ClampDistance(q.DistanceKm)))
	}
	if q.BackDays != 0 {
		params.Set("back", strconv.Itoa(ClampBack(q.BackDays)))
	}
	if q.MaxResults > 0 {
		params.Set("maxResults", strconv.Itoa(q.MaxResults))
	}
	if q.HotspotsOnly {
		params.Set("hotspot", "true")
	}
	if q.IncludeProvisional {
		params.Set("includeProvisional", "true")
	}
	return params, nil
}

func requireCode(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.Newf("%s is required", name).
			Category(errors.CategoryValidation).
			Component("ebird").
			Build()
	}
	return nil
}

// RecentNearbyObservations returns recent observations near a point.
func (c *Client) RecentNearbyObservations(ctx context.Context, q GeoQuery) ([]Observation, error) {
	params, err := q.values()
	if err != nil {
		return nil, err
	}
	var obs []Observation
	if err := c.get(ctx, PathRecentObservations, PathRecentObservations, params, &obs); err != nil {
		return nil, err
	}
	return obs, nil
}

// RecentNearbyNotableObservations returns recent notable observations near a point.
func (c *Client) RecentNearbyNotableObservations(ctx context.Context, q GeoQuery) ([]Observation, error) {
	params, err := q.values()
	if err != nil {
		return nil, err
	}
	var obs []Observation
	if err := c.get(ctx, PathNotableObservations, PathNotableObservations, params, &obs); err != nil {
		return nil, err
	}
	return obs, nil
}

// RecentNearbySpeciesObservations returns recent observations of one species near a point.
func (c *Client) RecentNearbySpeciesObservations(ctx context.Context, speciesCode string, q GeoQuery) ([]Observation, error) {
	if err := requireCode("species code", speciesCode); err != nil {
		return nil, err
	}
	params, err := q.values()
	if err != nil {
		return nil, err
	}
	path := "/data/obs/geo/recent/" + url.PathEscape(speciesCode)
	var obs []Observation
	if err := c.get(ctx, PathSpeciesObservations, path, params, &obs); err != nil {
		return nil, err
	}
	return obs, nil
}

// Checklist returns the full checklist for a submission.
func (c *Client) Checklist(ctx context.Context, subID string) (*Checklist, error) {
	if err := requireCode("submission id", subID); err != nil {
		return nil, err
	}
	var cl Checklist
	path := "/product/checklist/view/" + url.PathEscape(subID)
	if err := c.get(ctx, PathChecklist, path, nil, &cl); err != nil {
		return nil, err
	}
	return &cl, nil
}

// Taxonomy returns the taxonomy, limited to speciesCodes when any are given.
func (c *Client) Taxonomy(ctx context.Context, speciesCodes ...string) ([]Taxon, error) {
	params := url.Values{}
	params.Set("fmt", "json")
	if len(speciesCodes) > 0 {
		params.Set("species", strings.Join(speciesCodes, ","))
	}
	var taxa []Taxon
	if err := c.get(ctx, PathTaxonomy, PathTaxonomy, params, &taxa); err != nil {
		return nil, err
	}
	return taxa, nil
}

// NearbyHotspots returns hotspots near a point.
func (c *Client) NearbyHotspots(ctx context.Context, q HotspotQuery) ([]Hotspot, error) {
	if err := ValidateCoordinates(q.Lat, q.Lng); err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("fmt", "json")
	params.Set("lat", formatCoord(q.Lat))
	params.Set("lng", formatCoord(q.Lng))
	if q.DistanceKm != 0 {
		params.Set("dist", strconv.Itoa(ClampDistance(q.DistanceKm)))
	}
	if q.BackDays != 0 {
		params.Set("back", strconv.Itoa(ClampBack(q.BackDays)))
	}
	var hotspots []Hotspot
	if err := c.get(ctx, PathHotspots, PathHotspots, params, &hotspots); err != nil {
		return nil, err
	}
	return hotspots, nil
}

// RegionSpeciesList returns the species codes ever reported in a region.
func (c *Client) RegionSpeciesList(ctx context.Context, regionCode string) ([]string, error) {
	if err := requireCode("region code", regionCode); err != nil {
		return nil, err
	}
	path := "/product/spplist/" + url.PathEscape(regionCode)
	var codes []string
	if err := c.get(ctx, PathRegionSpecies, path, nil, &codes); err != nil {
		return nil, err
	}
	return codes, nil
}
