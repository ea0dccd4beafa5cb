package lifelist

import (
	"bytes"
	"encoding/csv"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tphakala/lifer/internal/errors"
	"github.com/tphakala/lifer/internal/logger"
)

// Column headers of the two supported exports.
const (
	colSubmissionID   = "Submission ID"
	colCommonName     = "Common Name"
	colScientificName = "Scientific Name"
	colTaxonomicOrder = "Taxonomic Order"
	colCount          = "Count"
	colLocation       = "Location"
	colLocationID     = "Location ID"
	colDate           = "Date"

	colTaxonOrder = "Taxon Order"
	colSubID      = "SubID"
	colLocID      = "LocID"
)

// dateLayouts are tried in order when reading an export date.
var dateLayouts = []string{
	time.DateOnly,
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"02 Jan 2006",
	"2 Jan 2006",
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// GetLogger returns the module logger for life-list handling.
func GetLogger() logger.Logger {
	return logger.Global().Module("lifelist")
}

// ParseDate reads a date in any supported export layout.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// normalizeDate returns s as YYYY-MM-DD when it parses, otherwise s unchanged.
func normalizeDate(s string) string {
	if t, ok := ParseDate(s); ok {
		return t.Format(time.DateOnly)
	}
	return strings.TrimSpace(s)
}

// parseCount reads an observation count; "X", blank, invalid and values
// below one all count as a single observation.
func parseCount(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "X") {
		return 1
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// detectFormat picks the life-list layout when its distinctive columns are present.
func detectFormat(headers []string) Format {
	if slices.Contains(headers, colTaxonOrder) || slices.Contains(headers, colSubID) {
		return FormatLifeList
	}
	return FormatJournal
}

// row gives named access to a CSV record. Missing trailing fields read as absent.
type row struct {
	index  map[string]int
	record []string
}

func (r row) get(col string) (string, bool) {
	i, ok := r.index[col]
	if !ok || i >= len(r.record) {
		return "", false
	}
	return strings.TrimSpace(r.record[i]), true
}

// required returns the trimmed value of col, or false when it is missing or blank.
func (r row) required(col string) (string, bool) {
	v, ok := r.get(col)
	return v, ok && v != ""
}

func (r row) number(col string) (float64, bool) {
	v, ok := r.required(col)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Parse reads an eBird export. Malformed rows are counted in SkippedRows;
// an error is returned only when the file is structurally unreadable and no
// data row could be recovered.
func Parse(raw []byte) (*ParseResult, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1 // Allow a variable number of fields

	header, err := reader.Read()
	if err == io.EOF {
		return &ParseResult{Entries: []Entry{}, Format: FormatJournal}, nil
	}
	if err != nil {
		return nil, wholeFileError(err)
	}

	index := make(map[string]int, len(header))
	headers := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		headers[i] = h
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	var (
		rows      []row
		skipped   int
		structErr error
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				skipped++
				if structErr == nil {
					structErr = err
				}
				continue
			}
			return nil, wholeFileError(err)
		}
		if isBlank(record) {
			continue
		}
		rows = append(rows, row{index: index, record: record})
	}

	if len(rows) == 0 && structErr != nil {
		return nil, wholeFileError(structErr)
	}

	format := detectFormat(headers)

	var result *ParseResult
	if format == FormatLifeList {
		result = parseLifeListRows(rows)
	} else {
		result = parseJournalRows(rows)
	}
	result.SkippedRows += skipped
	result.Format = format

	GetLogger().Debug("parsed life list file",
		logger.String("format", string(format)),
		logger.Int("species", len(result.Entries)),
		logger.Int("total_observations", result.TotalObservations),
		logger.Int("skipped_rows", result.SkippedRows))

	return result, nil
}

func wholeFileError(err error) error {
	return errors.Newf("CSV parsing failed: %w", err).
		Category(errors.CategoryFileParsing).
		Component("lifelist").
		Build()
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// parseJournalRows groups observation rows by scientific name.
func parseJournalRows(rows []row) *ParseResult {
	bySpecies := make(map[string]*Entry)
	firstDates := make(map[string]time.Time)
	lastDates := make(map[string]time.Time)
	var order []string
	result := &ParseResult{}

	for _, r := range rows {
		subID, ok1 := r.required(colSubmissionID)
		commonName, ok2 := r.required(colCommonName)
		sciName, ok3 := r.required(colScientificName)
		taxonOrder, ok4 := r.number(colTaxonomicOrder)
		location, ok5 := r.required(colLocation)
		dateStr, ok6 := r.required(colDate)
		if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 || !ok6 {
			result.SkippedRows++
			continue
		}
		date, ok := ParseDate(dateStr)
		if !ok {
			result.SkippedRows++
			continue
		}

		countRaw, _ := r.get(colCount)
		locID, _ := r.get(colLocationID)
		ref := ObservationRef{
			Date:        date.Format(time.DateOnly),
			Location:    location,
			ChecklistID: subID,
			LocationID:  locID,
		}
		result.TotalObservations++

		existing, found := bySpecies[sciName]
		if !found {
			first, last := ref, ref
			bySpecies[sciName] = &Entry{
				ScientificName:   sciName,
				CommonName:       commonName,
				TaxonomicOrder:   taxonOrder,
				ObservationCount: parseCount(countRaw),
				FirstObservation: &first,
				LastObservation:  &last,
			}
			firstDates[sciName] = date
			lastDates[sciName] = date
			order = append(order, sciName)
			continue
		}

		existing.ObservationCount += parseCount(countRaw)
		if date.Before(firstDates[sciName]) {
			first := ref
			existing.FirstObservation = &first
			firstDates[sciName] = date
		}
		if date.After(lastDates[sciName]) {
			last := ref
			existing.LastObservation = &last
			lastDates[sciName] = date
		}
	}

	result.Entries = make([]Entry, 0, len(order))
	for _, name := range order {
		result.Entries = append(result.Entries, *bySpecies[name])
	}
	SortByTaxonomicOrder(result.Entries)
	return result
}

// parseLifeListRows maps each row to one entry with a single observation.
func parseLifeListRows(rows []row) *ParseResult {
	result := &ParseResult{Entries: make([]Entry, 0, len(rows))}

	for _, r := range rows {
		taxonOrder, ok1 := r.number(colTaxonOrder)
		commonName, ok2 := r.required(colCommonName)
		sciName, ok3 := r.required(colScientificName)
		location, ok4 := r.required(colLocation)
		dateStr, ok5 := r.required(colDate)
		subID, ok6 := r.required(colSubID)
		if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 || !ok6 {
			result.SkippedRows++
			continue
		}

		countRaw, _ := r.get(colCount)
		locID, _ := r.get(colLocID)
		ref := ObservationRef{
			Date:        normalizeDate(dateStr),
			Location:    location,
			ChecklistID: subID,
			LocationID:  locID,
		}
		first, last := ref, ref
		result.Entries = append(result.Entries, Entry{
			ScientificName:   sciName,
			CommonName:       commonName,
			TaxonomicOrder:   taxonOrder,
			ObservationCount: parseCount(countRaw),
			FirstObservation: &first,
			LastObservation:  &last,
		})
	}

	SortByTaxonomicOrder(result.Entries)
	result.TotalObservations = len(result.Entries)
	return result
}
