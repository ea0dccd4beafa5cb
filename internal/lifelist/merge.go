package lifelist

import (
	"cmp"
	"slices"

	"github.com/tphakala/lifer/internal/ebird"
)

// SortByTaxonomicOrder sorts entries in place by taxonomic order, breaking
// ties by scientific name.
func SortByTaxonomicOrder(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		if c := cmp.Compare(a.TaxonomicOrder, b.TaxonomicOrder); c != 0 {
			return c
		}
		return cmp.Compare(a.ScientificName, b.ScientificName)
	})
}

// Index maps scientific name to entry. Later duplicates win.
func Index(lifeList []Entry) map[string]*Entry {
	idx := make(map[string]*Entry, len(lifeList))
	for i := range lifeList {
		idx[lifeList[i].ScientificName] = &lifeList[i]
	}
	return idx
}

// MatchedObservation is an observation annotated against a life list.
type MatchedObservation struct {
	ebird.Observation
	IsLifer              bool `json:"isLifer"`
	UserObservationCount int  `json:"userObservationCount"`
}

// Match annotates observations by scientific name. Common names are never
// compared since they vary by locale.
func Match(observations []ebird.Observation, lifeList []Entry) []MatchedObservation {
	idx := Index(lifeList)
	out := make([]MatchedObservation, len(observations))
	for i, obs := range observations {
		out[i] = MatchedObservation{Observation: obs, IsLifer: true}
		if entry, ok := idx[obs.ScientificName]; ok {
			out[i].IsLifer = false
			out[i].UserObservationCount = entry.ObservationCount
		}
	}
	return out
}

// MergeFirstSeen applies a first-seen import: overlapping species take the
// incoming first observation, new species get no last observation.
func MergeFirstSeen(existing, incoming []Entry) []Entry {
	return merge(existing, incoming, func(dst *Entry, src *Entry) {
		dst.FirstObservation = cloneRef(src.FirstObservation)
	})
}

// MergeLastSeen applies a last-seen import: overlapping species take the
// incoming last observation, new species get no first observation.
func MergeLastSeen(existing, incoming []Entry) []Entry {
	return merge(existing, incoming, func(dst *Entry, src *Entry) {
		dst.LastObservation = cloneRef(src.LastObservation)
	})
}

// merge combines two lists by scientific name. Observation counts never decrease.
func merge(existing, incoming []Entry, apply func(dst, src *Entry)) []Entry {
	out := make([]Entry, 0, len(existing)+len(incoming))
	for i := range existing {
		out = append(out, existing[i].Clone())
	}
	idx := make(map[string]int, len(out))
	for i := range out {
		idx[out[i].ScientificName] = i
	}

	for i := range incoming {
		src := &incoming[i]
		pos, found := idx[src.ScientificName]
		if !found {
			entry := Entry{
				ScientificName:   src.ScientificName,
				CommonName:       src.CommonName,
				TaxonomicOrder:   src.TaxonomicOrder,
				ObservationCount: max(src.ObservationCount, 0),
				SpeciesCode:      src.SpeciesCode,
			}
			apply(&entry, src)
			idx[src.ScientificName] = len(out)
			out = append(out, entry)
			continue
		}

		dst := &out[pos]
		apply(dst, src)
		dst.ObservationCount = max(dst.ObservationCount, src.ObservationCount)
		if dst.SpeciesCode == "" {
			dst.SpeciesCode = src.SpeciesCode
		}
		if dst.CommonName == "" {
			dst.CommonName = src.CommonName
		}
		if dst.TaxonomicOrder == 0 {
			dst.TaxonomicOrder = src.TaxonomicOrder
		}
	}

	SortByTaxonomicOrder(out)
	return out
}

// AsLastSeen prepares parsed entries for a last-seen import: the recorded
// observation becomes the last observation and the first side is cleared.
func AsLastSeen(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i := range entries {
		e := entries[i].Clone()
		if e.LastObservation == nil {
			e.LastObservation = e.FirstObservation
		}
		e.FirstObservation = nil
		out[i] = e
	}
	return out
}

// AsFirstSeen prepares parsed entries for a first-seen import.
func AsFirstSeen(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i := range entries {
		e := entries[i].Clone()
		if e.FirstObservation == nil {
			e.FirstObservation = e.LastObservation
		}
		e.LastObservation = nil
		out[i] = e
	}
	return out
}

// EnrichSpeciesCodes fills missing species codes from a taxonomy, matching
// by scientific name. It returns how many entries were updated.
func EnrichSpeciesCodes(entries []Entry, taxonomy []ebird.Taxon) int {
	codes := make(map[string]string, len(taxonomy))
	for i := range taxonomy {
		codes[taxonomy[i].ScientificName] = taxonomy[i].SpeciesCode
	}
	updated := 0
	for i := range entries {
		if entries[i].SpeciesCode != "" {
			continue
		}
		if code, ok := codes[entries[i].ScientificName]; ok {
			entries[i].SpeciesCode = code
			updated++
		}
	}
	return updated
}
