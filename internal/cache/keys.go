package cache

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Expiry per query kind.
const (
	ObservationsTTL  = 30 * time.Minute
	NotableTTL       = 30 * time.Minute
	SpeciesTTL       = 30 * time.Minute
	ChecklistTTL     = 24 * time.Hour
	TaxonomyTTL      = 24 * time.Hour
	HotspotsTTL      = 6 * time.Hour
	RegionSpeciesTTL = 6 * time.Hour
	PhotosTTL        = 24 * time.Hour
)

// RoundCoord rounds a coordinate to two decimal places so that nearby
// requests share one cache entry.
func RoundCoord(v float64) float64 {
	return math.Round(v*100) / 100
}

func coord(v float64) string {
	r := RoundCoord(v)
	if r == 0 {
		// collapse -0 into 0
		r = 0
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

func geoKey(prefix string, lat, lng float64, rest ...int) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte(':')
	b.WriteString(coord(lat))
	b.WriteByte(':')
	b.WriteString(coord(lng))
	for _, n := range rest {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

// ObservationsKey identifies a recent-nearby observations query.
func ObservationsKey(lat, lng float64, distKm, backDays int) string {
	return geoKey("obs", lat, lng, distKm, backDays)
}

// NotableKey identifies a recent-nearby notable observations query.
func NotableKey(lat, lng float64, distKm, backDays int) string {
	return geoKey("notable", lat, lng, distKm, backDays)
}

// SpeciesObservationsKey identifies a per-species nearby observations query.
func SpeciesObservationsKey(speciesCode string, lat, lng float64, distKm, backDays int) string {
	return geoKey("species:"+speciesCode, lat, lng, distKm, backDays)
}

// ChecklistKey identifies a checklist detail lookup.
func ChecklistKey(subID string) string {
	return "checklist:" + subID
}

// TaxonomyKey identifies a taxonomy lookup. Codes are sorted so that order does not matter.
func TaxonomyKey(speciesCodes ...string) string {
	if len(speciesCodes) == 0 {
		return "taxonomy:all"
	}
	sorted := slices.Clone(speciesCodes)
	slices.Sort(sorted)
	return "taxonomy:" + strings.Join(sorted, ",")
}

// HotspotsKey identifies a nearby hotspots query.
func HotspotsKey(lat, lng float64, distKm int) string {
	return geoKey("hotspots", lat, lng, distKm)
}

// RegionSpeciesKey identifies a region species-list lookup.
func RegionSpeciesKey(regionCode string) string {
	return "region:" + regionCode
}

// PhotosKey identifies the photo assets of one checklist.
func PhotosKey(subID string) string {
	return "photos:" + subID
}
