// Package lifelist parses eBird life-list exports and merges them into a
// per-user list keyed by scientific name.
package lifelist

import (
	"strings"
	"time"

	"github.com/tphakala/lifer/internal/errors"
)

// Format identifies the layout of an uploaded file.
type Format string

const (
	// FormatJournal is the "My eBird Data" export: one row per observation.
	FormatJournal Format = "my-data"
	// FormatLifeList is the life-list export: one row per species.
	FormatLifeList Format = "life-list"
)

// ImportType selects how parsed entries are applied to a stored list.
type ImportType string

const (
	ImportFirstSeen ImportType = "first-seen"
	ImportLastSeen  ImportType = "last-seen"
	ImportReplace   ImportType = "my-data"
)

// ParseImportType validates s. An empty string selects ImportFirstSeen.
func ParseImportType(s string) (ImportType, error) {
	switch t := ImportType(strings.TrimSpace(s)); t {
	case "":
		return ImportFirstSeen, nil
	case ImportFirstSeen, ImportLastSeen, ImportReplace:
		return t, nil
	default:
		return "", errors.Newf("invalid import type %q", s).
			Category(errors.CategoryValidation).
			Component("lifelist").
			Context("import_type", s).
			Build()
	}
}

// ObservationRef points at the checklist where a species was recorded.
type ObservationRef struct {
	Date        string `json:"date"`
	Location    string `json:"location"`
	ChecklistID string `json:"checklistId"`
	LocationID  string `json:"locationId,omitempty"`
}

// Entry is one species on a user's life list. A nil observation ref means
// that side is unknown, e.g. after a first-seen-only import.
type Entry struct {
	ScientificName   string          `json:"scientificName"`
	CommonName       string          `json:"commonName"`
	TaxonomicOrder   float64         `json:"taxonomicOrder"`
	ObservationCount int             `json:"observationCount"`
	SpeciesCode      string          `json:"speciesCode,omitempty"`
	FirstObservation *ObservationRef `json:"firstObservation"`
	LastObservation  *ObservationRef `json:"lastObservation"`
}

// ParseResult is the outcome of parsing one uploaded file.
type ParseResult struct {
	Entries           []Entry `json:"species"`
	TotalObservations int     `json:"totalObservations"`
	SkippedRows       int     `json:"skippedRows"`
	Format            Format  `json:"format"`
}

// ImportStats summarises an applied import.
type ImportStats struct {
	SpeciesCount      int `json:"speciesCount"`
	TotalObservations int `json:"totalObservations"`
	SkippedRows       int `json:"skippedRows"`
}

// ImportRecord is one applied import in a user's history.
type ImportRecord struct {
	ImportType ImportType `json:"importType"`
	ImportStats
	ImportedAt time.Time `json:"importedAt"`
}

// ImportSummary describes a user's stored list and import history.
type ImportSummary struct {
	SpeciesCount int           `json:"speciesCount"`
	ImportCount  int           `json:"importCount"`
	LastImport   *ImportRecord `json:"lastImport,omitempty"`
}

// Stats derives import statistics from a parse result.
func (r *ParseResult) Stats() ImportStats {
	return ImportStats{
		SpeciesCount:      len(r.Entries),
		TotalObservations: r.TotalObservations,
		SkippedRows:       r.SkippedRows,
	}
}

func cloneRef(ref *ObservationRef) *ObservationRef {
	if ref == nil {
		return nil
	}
	c := *ref
	return &c
}

// Clone returns a deep copy of e.
func (e *Entry) Clone() Entry {
	c := *e
	c.FirstObservation = cloneRef(e.FirstObservation)
	c.LastObservation = cloneRef(e.LastObservation)
	return c
}
