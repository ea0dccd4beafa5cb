// Package ebird provides a client for interacting with the eBird API v2
package ebird

import "time"

// Observation is a single sighting record returned by the observation endpoints.
// ObservedAt keeps the API's "YYYY-MM-DD[ HH:MM]" form, which sorts lexically.
type Observation struct {
	SpeciesCode     string  `json:"speciesCode" validate:"required"`
	CommonName      string  `json:"comName" validate:"required"`
	ScientificName  string  `json:"sciName" validate:"required"`
	LocationID      string  `json:"locId" validate:"required"`
	LocationName    string  `json:"locName"`
	ObservedAt      string  `json:"obsDt" validate:"required"`
	Count           *int    `json:"howMany,omitempty" validate:"omitempty,gte=0"`
	Lat             float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng             float64 `json:"lng" validate:"gte=-180,lte=180"`
	Valid           bool    `json:"obsValid"`
	Reviewed        bool    `json:"obsReviewed"`
	LocationPrivate bool    `json:"locationPrivate"`
	SubmissionID    string  `json:"subId,omitempty"`
	HasRichMedia    bool    `json:"hasRichMedia,omitempty"`
}

// ChecklistLocation is the location block embedded in a checklist.
type ChecklistLocation struct {
	LocationID       string  `json:"locId"`
	Name             string  `json:"name"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	CountryCode      string  `json:"countryCode,omitempty"`
	Subnational1Code string  `json:"subnational1Code,omitempty"`
}

// ChecklistEntry is one species line on a checklist.
type ChecklistEntry struct {
	SpeciesCode string         `json:"speciesCode" validate:"required"`
	ObservedAt  string         `json:"obsDt,omitempty"`
	CountRaw    string         `json:"howManyStr,omitempty"`
	Comments    string         `json:"comments,omitempty"`
	MediaCounts map[string]int `json:"mediaCounts,omitempty"`
}

// Checklist is a full submission as returned by the checklist view endpoint.
// Location is omitted by the API for some submissions.
type Checklist struct {
	SubmissionID string             `json:"subId" validate:"required"`
	ProtocolID   string             `json:"protocolId"`
	LocationID   string             `json:"locId"`
	Location     *ChecklistLocation `json:"loc,omitempty"`
	ObservedAt   string             `json:"obsDt" validate:"required"`
	NumObservers *int               `json:"numObservers,omitempty"`
	Entries      []ChecklistEntry   `json:"obs" validate:"dive"`
}

// MediaPhoto is the media-count key for photographs.
const MediaPhoto = "P"

// PhotoCount returns the number of photos attached to the entry.
func (e *ChecklistEntry) PhotoCount() int {
	return e.MediaCounts[MediaPhoto]
}

// Taxon is a single entry from the eBird taxonomy
type Taxon struct {
	ScientificName string   `json:"sciName" validate:"required"`
	CommonName     string   `json:"comName" validate:"required"`
	SpeciesCode    string   `json:"speciesCode" validate:"required"`
	Category       string   `json:"category"`   // species, spuh, slash, hybrid, etc.
	TaxonOrder     float64  `json:"taxonOrder"` // For sorting in taxonomic order
	BandingCodes   []string `json:"bandingCodes,omitempty"`
	ComNameCodes   []string `json:"comNameCodes,omitempty"`
	SciNameCodes   []string `json:"sciNameCodes,omitempty"`
	Order          string   `json:"order,omitempty"`
	FamilyCode     string   `json:"familyCode,omitempty"`
	FamilyComName  string   `json:"familyComName,omitempty"`
	FamilySciName  string   `json:"familySciName,omitempty"`
}

// Hotspot is a public birding location.
type Hotspot struct {
	LocationID        string  `json:"locId" validate:"required"`
	LocationName      string  `json:"locName" validate:"required"`
	CountryCode       string  `json:"countryCode"`
	Subnational1Code  string  `json:"subnational1Code"`
	Lat               float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng               float64 `json:"lng" validate:"gte=-180,lte=180"`
	LatestObservedAt  string  `json:"latestObsDt,omitempty"`
	NumSpeciesAllTime *int    `json:"numSpeciesAllTime,omitempty"`
}

// Config holds configuration for the eBird client
type Config struct {
	APIKey            string        `json:"api_key"`
	BaseURL           string        `json:"base_url"`
	Timeout           time.Duration `json:"timeout"`     // Per attempt
	Retries           int           `json:"retries"`     // Extra attempts after the first
	RetryDelay        time.Duration `json:"retry_delay"` // Base delay, doubled per retry
	RequestsPerSecond float64       `json:"requests_per_second"`
	BreakerThreshold  uint32        `json:"breaker_threshold"` // Consecutive failed calls before opening
	BreakerTimeout    time.Duration `json:"breaker_timeout"`   // Open duration before a trial call
}

// apiError is the problem document the API returns with 4xx responses
type apiError struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://api.ebird.org/v2",
		Timeout:           10 * time.Second,
		Retries:           2,
		RetryDelay:        time.Second,
		RequestsPerSecond: 10,
		BreakerThreshold:  5,
		BreakerTimeout:    30 * time.Second,
	}
}
