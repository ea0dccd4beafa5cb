package observation

import (
	"cmp"
	"context"
	"math"
	"slices"
	"strings"

	"github.com/tphakala/lifer/internal/cache"
	"github.com/tphakala/lifer/internal/ebird"
	"github.com/tphakala/lifer/internal/scoring"
)

// DefaultSpeciesBackDays is the lookback used by SpeciesSightings when the query leaves it unset.
const DefaultSpeciesBackDays = 7

// UnknownLocation labels sightings whose location could not be resolved.
const UnknownLocation = "Unknown location"

// Sighting is one checklist on which a species was recorded.
type Sighting struct {
	SubmissionID  string  `json:"subId"`
	LocationName  string  `json:"locName"`
	ObservedAt    string  `json:"obsDt"`
	DistanceMiles float64 `json:"distanceMiles"`
	PhotoCount    int     `json:"photoCount"`
}

// SpeciesSightings lists recent checklists for one species, newest first.
type SpeciesSightings struct {
	SightingCount int        `json:"sightingCount"`
	Checklists    []Sighting `json:"checklists"`
}

type place struct {
	name     string
	lat, lng float64
}

// SpeciesSightings returns nearby checklists reporting speciesCode. Rows
// come from the species observation feed and always appear; extraSubIDs
// add rows only when their checklist can be fetched.
func (a *Aggregator) SpeciesSightings(ctx context.Context, speciesCode string, q Query, extraSubIDs []string) (*SpeciesSightings, error) {
	speciesCode = strings.TrimSpace(speciesCode)
	if q.LookbackDays == 0 {
		q.LookbackDays = DefaultSpeciesBackDays
	}
	geo, err := q.geo()
	if err != nil {
		return nil, err
	}
	geo.IncludeProvisional = true

	obs, _, err := cached(ctx, a.observations,
		cache.SpeciesObservationsKey(speciesCode, geo.Lat, geo.Lng, geo.DistanceKm, geo.BackDays),
		cache.SpeciesTTL, func(ctx context.Context) ([]ebird.Observation, error) {
			return a.client.RecentNearbySpeciesObservations(ctx, speciesCode, geo)
		})
	if err != nil {
		return nil, err
	}

	primary := make([]ebird.Observation, 0, len(obs))
	for i := range obs {
		if obs[i].SubmissionID != "" {
			primary = append(primary, obs[i])
		}
	}
	slices.SortStableFunc(primary, func(x, y ebird.Observation) int {
		return cmp.Compare(y.ObservedAt, x.ObservedAt)
	})

	primaryIDs := make(map[string]struct{}, len(primary))
	places := make(map[string]place)
	var fetchIDs []string
	for i := range primary {
		o := &primary[i]
		if _, dup := primaryIDs[o.SubmissionID]; !dup {
			primaryIDs[o.SubmissionID] = struct{}{}
			fetchIDs = append(fetchIDs, o.SubmissionID)
		}
		if _, ok := places[o.LocationID]; !ok {
			places[o.LocationID] = place{name: o.LocationName, lat: o.Lat, lng: o.Lng}
		}
	}

	var supplementary []string
	seen := make(map[string]struct{})
	for _, id := range extraSubIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := primaryIDs[id]; dup {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		if len(supplementary) >= a.config.MaxChecklistFetches {
			break
		}
		seen[id] = struct{}{}
		supplementary = append(supplementary, id)
	}
	fetchIDs = append(fetchIDs, supplementary...)

	checklists, err := a.fetchChecklists(ctx, fetchIDs)
	if err != nil {
		return nil, err
	}

	rows := make([]Sighting, 0, len(primary)+len(supplementary))
	for i := range primary {
		o := &primary[i]
		rows = append(rows, Sighting{
			SubmissionID:  o.SubmissionID,
			LocationName:  o.LocationName,
			ObservedAt:    o.ObservedAt,
			DistanceMiles: math.Round(scoring.HaversineMiles(q.Lat, q.Lng, o.Lat, o.Lng)),
			PhotoCount:    speciesPhotos(checklists[o.SubmissionID], speciesCode),
		})
	}

	for _, id := range supplementary {
		cl, ok := checklists[id]
		if !ok {
			continue
		}
		row := Sighting{
			SubmissionID: id,
			LocationName: UnknownLocation,
			ObservedAt:   cl.ObservedAt,
			PhotoCount:   speciesPhotos(cl, speciesCode),
		}
		switch p, known := places[cl.LocationID]; {
		case cl.Location != nil:
			row.LocationName = cl.Location.Name
			row.DistanceMiles = math.Round(scoring.HaversineMiles(q.Lat, q.Lng, cl.Location.Latitude, cl.Location.Longitude))
		case known:
			row.LocationName = p.name
			row.DistanceMiles = math.Round(scoring.HaversineMiles(q.Lat, q.Lng, p.lat, p.lng))
		}
		rows = append(rows, row)
	}

	slices.SortStableFunc(rows, func(x, y Sighting) int {
		return cmp.Compare(y.ObservedAt, x.ObservedAt)
	})

	return &SpeciesSightings{SightingCount: len(rows), Checklists: rows}, nil
}

// speciesPhotos returns the photo count of speciesCode on cl, or zero.
func speciesPhotos(cl *ebird.Checklist, speciesCode string) int {
	if cl == nil {
		return 0
	}
	for i := range cl.Entries {
		if cl.Entries[i].SpeciesCode == speciesCode {
			return cl.Entries[i].PhotoCount()
		}
	}
	return 0
}
