// model.go defines the persisted life-list data model
package datastore

import (
	"time"

	"github.com/tphakala/lifer/internal/lifelist"
)

// LifeListEntry is one species on a user's life list.
// A user has at most one row per scientific name.
type LifeListEntry struct {
	ID               string  `gorm:"primaryKey;type:varchar(36)"`
	UserID           string  `gorm:"type:varchar(128);not null;uniqueIndex:idx_life_list_user_sciname;index:idx_life_list_user"`
	ScientificName   string  `gorm:"type:varchar(191);not null;uniqueIndex:idx_life_list_user_sciname"`
	CommonName       string  `gorm:"not null"`
	TaxonomicOrder   float64 `gorm:"index:idx_life_list_taxon_order"`
	ObservationCount int     `gorm:"not null;default:0"`
	SpeciesCode      string  `gorm:"type:varchar(16)"`

	HasFirst         bool
	FirstDate        string
	FirstLocation    string
	FirstChecklistID string
	FirstLocationID  string

	HasLast         bool
	LastDate        string
	LastLocation    string
	LastChecklistID string
	LastLocationID  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LifeListImport records one applied upload. ImportSeq numbers a user's
// imports from 1 in the order they were recorded.
type LifeListImport struct {
	ID                string    `gorm:"primaryKey;type:varchar(36)"`
	UserID            string    `gorm:"type:varchar(128);not null;index:idx_life_list_imports_user;index:idx_life_list_imports_user_seq,priority:1"`
	ImportSeq         int64     `gorm:"not null;default:0;index:idx_life_list_imports_user_seq,priority:2"`
	ImportType        string    `gorm:"type:varchar(20);not null"`
	SpeciesCount      int       `gorm:"not null"`
	TotalObservations int       `gorm:"not null"`
	SkippedRows       int       `gorm:"not null"`
	ImportedAt        time.Time `gorm:"index"`
}

func refFrom(has bool, date, location, checklistID, locationID string) *lifelist.ObservationRef {
	if !has {
		return nil
	}
	return &lifelist.ObservationRef{
		Date:        date,
		Location:    location,
		ChecklistID: checklistID,
		LocationID:  locationID,
	}
}

// toEntry converts a row to the domain type.
func (e *LifeListEntry) toEntry() lifelist.Entry {
	return lifelist.Entry{
		ScientificName:   e.ScientificName,
		CommonName:       e.CommonName,
		TaxonomicOrder:   e.TaxonomicOrder,
		ObservationCount: e.ObservationCount,
		SpeciesCode:      e.SpeciesCode,
		FirstObservation: refFrom(e.HasFirst, e.FirstDate, e.FirstLocation, e.FirstChecklistID, e.FirstLocationID),
		LastObservation:  refFrom(e.HasLast, e.LastDate, e.LastLocation, e.LastChecklistID, e.LastLocationID),
	}
}

// entryRow converts a domain entry to a row owned by userID.
func entryRow(id, userID string, e *lifelist.Entry) LifeListEntry {
	row := LifeListEntry{
		ID:               id,
		UserID:           userID,
		ScientificName:   e.ScientificName,
		CommonName:       e.CommonName,
		TaxonomicOrder:   e.TaxonomicOrder,
		ObservationCount: e.ObservationCount,
		SpeciesCode:      e.SpeciesCode,
	}
	if f := e.FirstObservation; f != nil {
		row.HasFirst = true
		row.FirstDate, row.FirstLocation, row.FirstChecklistID, row.FirstLocationID = f.Date, f.Location, f.ChecklistID, f.LocationID
	}
	if l := e.LastObservation; l != nil {
		row.HasLast = true
		row.LastDate, row.LastLocation, row.LastChecklistID, row.LastLocationID = l.Date, l.Location, l.ChecklistID, l.LocationID
	}
	return row
}

// UserSettings is a user's saved search preferences, one row per user.
type UserSettings struct {
	UserID      string `gorm:"primaryKey;type:varchar(128)"`
	Lat         *float64
	Lng         *float64
	RadiusMiles float64 `gorm:"not null;default:10"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
