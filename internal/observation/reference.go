package observation

import (
	"context"
	"strings"

	"github.com/tphakala/lifer/internal/cache"
	"github.com/tphakala/lifer/internal/ebird"
	"github.com/tphakala/lifer/internal/errors"
)

// Taxonomy returns taxonomy entries for the given species codes, or the
// full taxonomy when none are given.
func (a *Aggregator) Taxonomy(ctx context.Context, speciesCodes ...string) ([]ebird.Taxon, error) {
	taxa, _, err := cached(ctx, a.taxonomy, cache.TaxonomyKey(speciesCodes...), cache.TaxonomyTTL,
		func(ctx context.Context) ([]ebird.Taxon, error) {
			return a.client.Taxonomy(ctx, speciesCodes...)
		})
	return taxa, err
}

// Hotspots returns public hotspots around q. LookbackDays is ignored.
func (a *Aggregator) Hotspots(ctx context.Context, q Query) ([]ebird.Hotspot, error) {
	geo, err := q.geo()
	if err != nil {
		return nil, err
	}
	hq := ebird.HotspotQuery{Lat: geo.Lat, Lng: geo.Lng, DistanceKm: geo.DistanceKm}
	hotspots, _, err := cached(ctx, a.hotspots, cache.HotspotsKey(geo.Lat, geo.Lng, geo.DistanceKm), cache.HotspotsTTL,
		func(ctx context.Context) ([]ebird.Hotspot, error) {
			return a.client.NearbyHotspots(ctx, hq)
		})
	return hotspots, err
}

// RegionSpecies returns the species codes ever reported in a region.
func (a *Aggregator) RegionSpecies(ctx context.Context, regionCode string) ([]string, error) {
	regionCode = strings.TrimSpace(regionCode)
	if regionCode == "" {
		return nil, errors.Newf("region code is required").
			Category(errors.CategoryValidation).
			Component("observation").
			Build()
	}
	codes, _, err := cached(ctx, a.regions, cache.RegionSpeciesKey(regionCode), cache.RegionSpeciesTTL,
		func(ctx context.Context) ([]string, error) {
			return a.client.RegionSpeciesList(ctx, regionCode)
		})
	return codes, err
}
