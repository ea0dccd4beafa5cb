package lifelist

import (
	"cmp"
	"slices"
	"strings"

	"github.com/tphakala/lifer/internal/errors"
)

// SortMode orders a life list for display.
type SortMode string

const (
	SortDateAsc   SortMode = "date-asc"
	SortDateDesc  SortMode = "date-desc"
	SortAlphaAsc  SortMode = "alpha-asc"
	SortAlphaDesc SortMode = "alpha-desc"
)

// ParseSortMode validates s. An empty string selects SortDateDesc.
func ParseSortMode(s string) (SortMode, error) {
	switch m := SortMode(strings.TrimSpace(s)); m {
	case "":
		return SortDateDesc, nil
	case SortDateAsc, SortDateDesc, SortAlphaAsc, SortAlphaDesc:
		return m, nil
	default:
		return "", errors.Newf("invalid sort mode %q", s).
			Category(errors.CategoryValidation).
			Component("lifelist").
			Context("sort", s).
			Build()
	}
}

// firstDate returns the first observation date, falling back to the last one.
func firstDate(e *Entry) string {
	if e.FirstObservation != nil {
		return e.FirstObservation.Date
	}
	if e.LastObservation != nil {
		return e.LastObservation.Date
	}
	return ""
}

// SortEntries sorts entries in place. Date modes compare the first
// observation date; entries without any date sort last in both directions.
func SortEntries(entries []Entry, mode SortMode) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		switch mode {
		case SortAlphaAsc:
			return cmp.Compare(strings.ToLower(a.CommonName), strings.ToLower(b.CommonName))
		case SortAlphaDesc:
			return cmp.Compare(strings.ToLower(b.CommonName), strings.ToLower(a.CommonName))
		}

		da, db := firstDate(&a), firstDate(&b)
		switch {
		case da == db:
			return 0
		case da == "":
			return 1
		case db == "":
			return -1
		}
		if mode == SortDateAsc {
			return cmp.Compare(da, db)
		}
		return cmp.Compare(db, da)
	})
}

// Filter returns entries whose common or scientific name contains query,
// ignoring case. An empty query returns all entries.
func Filter(entries []Entry, query string) []Entry {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return slices.Clone(entries)
	}
	out := make([]Entry, 0, len(entries))
	for i := range entries {
		if strings.Contains(strings.ToLower(entries[i].CommonName), query) ||
			strings.Contains(strings.ToLower(entries[i].ScientificName), query) {
			out = append(out, entries[i])
		}
	}
	return out
}
