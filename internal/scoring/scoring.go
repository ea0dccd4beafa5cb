// Package scoring ranks nearby observations by how interesting they are to
// a particular birder.
package scoring

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/tphakala/lifer/internal/ebird"
	"github.com/tphakala/lifer/internal/lifelist"
)

// Score weights. Bonuses are summed.
const (
	WeightLifer          = 1000.0
	WeightNotable        = 500.0
	WeightChecklistNotes = 150.0
	WeightRecencyMax     = 150.0
)

// EarthRadiusMiles is the mean Earth radius used for distances.
const EarthRadiusMiles = 3958.8

// Reason explains a score bonus.
type Reason string

const (
	ReasonLifer          Reason = "lifer"
	ReasonNotable        Reason = "notable"
	ReasonChecklistNotes Reason = "checklist-notes"
)

// FormatReason returns the display label for r.
func FormatReason(r Reason) string {
	switch r {
	case ReasonLifer:
		return "Lifer"
	case ReasonNotable:
		return "Rare in this region"
	case ReasonChecklistNotes:
		return "Checklist notes added"
	default:
		return string(r)
	}
}

// observedAtLayouts are the timestamp forms used by the observation endpoints.
var observedAtLayouts = []string{"2006-01-02 15:04", time.DateOnly}

// Input is everything needed to rank one query's observations.
type Input struct {
	Recent  []ebird.Observation
	Notable []ebird.Observation
	// LifeList nil means the user has no life list; lifer scoring is skipped.
	LifeList       []lifelist.Entry
	CommentSpecies map[string]struct{}
	PhotoCounts    map[string]int
	UserLat        float64
	UserLng        float64
	// LookbackDays enables the recency bonus and the out-of-window cutoff when positive.
	LookbackDays int
	Now          time.Time
}

// ScoredObservation is the most recent observation of one species with its score.
type ScoredObservation struct {
	ebird.Observation
	AllSubmissionIDs     []string `json:"allSubIds"`
	Score                float64  `json:"score"`
	Reasons              []Reason `json:"reasons"`
	IsLifer              bool     `json:"isLifer"`
	UserObservationCount int      `json:"userObservationCount"`
	DistanceMiles        float64  `json:"distanceMiles"`
	PhotoCount           int      `json:"photoCount"`
}

// submission is a checklist id seen for a species, in encounter order.
type submission struct {
	id         string
	observedAt string
}

// speciesGroup collects everything seen for one species code.
type speciesGroup struct {
	latest      ebird.Observation
	submissions []submission
	subIndex    map[string]int
}

// Score deduplicates observations by species, scores each species, and
// returns them ordered by score descending. Equal scores keep the order in
// which species were first encountered, recent feed before notable.
func Score(in Input) []ScoredObservation {
	notable := make(map[string]struct{}, len(in.Notable))
	for i := range in.Notable {
		notable[in.Notable[i].SpeciesCode] = struct{}{}
	}

	var known map[string]*lifelist.Entry
	if in.LifeList != nil {
		known = lifelist.Index(in.LifeList)
	}

	groups := make(map[string]*speciesGroup)
	var order []string
	for _, feed := range [][]ebird.Observation{in.Recent, in.Notable} {
		for i := range feed {
			obs := &feed[i]
			g, ok := groups[obs.SpeciesCode]
			if !ok {
				g = &speciesGroup{latest: *obs, subIndex: make(map[string]int)}
				groups[obs.SpeciesCode] = g
				order = append(order, obs.SpeciesCode)
			} else if obs.ObservedAt > g.latest.ObservedAt {
				g.latest = *obs
			}

			if obs.SubmissionID == "" {
				continue
			}
			// A repeated submission keeps its position; the last-encountered timestamp wins
			if pos, seen := g.subIndex[obs.SubmissionID]; seen {
				g.submissions[pos].observedAt = obs.ObservedAt
				continue
			}
			g.subIndex[obs.SubmissionID] = len(g.submissions)
			g.submissions = append(g.submissions, submission{id: obs.SubmissionID, observedAt: obs.ObservedAt})
		}
	}

	scored := make([]ScoredObservation, 0, len(order))
	for _, code := range order {
		g := groups[code]
		obs := g.latest

		var (
			score   float64
			reasons []Reason
		)
		result := ScoredObservation{Observation: obs}

		if known != nil {
			entry, found := known[obs.ScientificName]
			if found {
				result.UserObservationCount = entry.ObservationCount
			} else {
				result.IsLifer = true
				score += WeightLifer
				reasons = append(reasons, ReasonLifer)
			}
		}
		if _, ok := notable[code]; ok {
			score += WeightNotable
			reasons = append(reasons, ReasonNotable)
		}
		if _, ok := in.CommentSpecies[code]; ok {
			score += WeightChecklistNotes
			reasons = append(reasons, ReasonChecklistNotes)
		}

		if in.LookbackDays > 0 {
			bonus, inWindow := recencyBonus(obs.ObservedAt, in.Now, in.LookbackDays)
			if inWindow {
				score += bonus
			} else {
				score = 0
			}
		}

		result.Score = score
		result.Reasons = reasons
		if result.Reasons == nil {
			result.Reasons = []Reason{}
		}
		result.AllSubmissionIDs = sortedSubmissionIDs(g.submissions)
		result.DistanceMiles = HaversineMiles(in.UserLat, in.UserLng, obs.Lat, obs.Lng)
		result.PhotoCount = in.PhotoCounts[code]

		scored = append(scored, result)
	}

	slices.SortStableFunc(scored, func(a, b ScoredObservation) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return scored
}

// sortedSubmissionIDs orders ids by observation time descending; ties keep
// encounter order.
func sortedSubmissionIDs(subs []submission) []string {
	sorted := slices.Clone(subs)
	slices.SortStableFunc(sorted, func(a, b submission) int {
		return cmp.Compare(b.observedAt, a.observedAt)
	})
	ids := make([]string, len(sorted))
	for i := range sorted {
		ids[i] = sorted[i].id
	}
	return ids
}

// parseObservedAt reads an observation timestamp in the location of ref.
func parseObservedAt(s string, ref time.Time) (time.Time, bool) {
	loc := ref.Location()
	for _, layout := range observedAtLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// recencyBonus decays linearly from WeightRecencyMax at now to zero at the
// edge of the lookback window. inWindow is false only for observations
// known to be older than the window; unparseable timestamps get no bonus.
func recencyBonus(observedAt string, now time.Time, lookbackDays int) (bonus float64, inWindow bool) {
	t, ok := parseObservedAt(observedAt, now)
	if !ok {
		return 0, true
	}
	window := time.Duration(lookbackDays) * 24 * time.Hour
	age := now.Sub(t)
	if age > window {
		return 0, false
	}
	if age < 0 {
		age = 0
	}
	bonus = WeightRecencyMax * (1 - float64(age)/float64(window))
	return math.Max(0, math.Min(WeightRecencyMax, bonus)), true
}

// HaversineMiles returns the great-circle distance between two points.
func HaversineMiles(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadiusMiles * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
