// Package leadcsv parses raw CSV text into campaign leads: header detection,
// logical field mapping and phone filtering.
package leadcsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Mapping associates logical lead fields with CSV column headers. An empty
// value means the field is unmapped and omitted from imported rows.
type Mapping struct {
	Phone       string `json:"phone"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	CompanyName string `json:"company_name"`
}

// Candidate header names per logical field, matched case-insensitively.
var fieldCandidates = []struct {
	assign     func(*Mapping, string)
	candidates []string
}{
	{func(m *Mapping, h string) { m.Phone = h }, []string{"phone", "phone number", "phone numbers"}},
	{func(m *Mapping, h string) { m.FirstName = h }, []string{"first name", "firstname", "first"}},
	{func(m *Mapping, h string) { m.LastName = h }, []string{"last name", "lastname", "last"}},
	{func(m *Mapping, h string) { m.CompanyName = h }, []string{"company", "company name", "business"}},
}

var phonePattern = regexp.MustCompile(`^[0-9]+$`)

var ErrNoRows = errors.New("no rows found in CSV")

// Document is a parsed CSV file: the header row plus one map per data row,
// keyed by header name.
type Document struct {
	Headers []string
	Rows    []map[string]string
}

// Parse reads CSV text with a required header row. Rows with fewer fields than
// the header are tolerated (missing cells become empty strings); any other
// parse error aborts the whole parse.
func Parse(text string) (*Document, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing CSV: %w", err)
	}

	doc := &Document{Headers: header}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error parsing CSV: %w", err)
		}
		if len(record) > len(header) {
			return nil, fmt.Errorf("error parsing CSV: row %d has more fields than the header", len(doc.Rows)+2)
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(record) {
				row[h] = record[i]
			} else {
				row[h] = ""
			}
		}
		doc.Rows = append(doc.Rows, row)
	}

	if len(doc.Rows) == 0 {
		return nil, ErrNoRows
	}
	return doc, nil
}

// DetectMapping proposes a mapping by case-insensitive header matching. For
// each field the first header matching any candidate name wins; fields with no
// match stay empty.
func DetectMapping(headers []string) Mapping {
	var m Mapping
	for _, fc := range fieldCandidates {
		for _, h := range headers {
			if containsFold(fc.candidates, h) {
				fc.assign(&m, h)
				break
			}
		}
	}
	return m
}

func containsFold(candidates []string, header string) bool {
	lower := strings.ToLower(header)
	for _, c := range candidates {
		if c == lower {
			return true
		}
	}
	return false
}

// LeadRecord is one accepted row, ready to be inserted as a campaign lead.
type LeadRecord struct {
	Phone           string
	FirstName       string
	LastName        string
	CompanyName     string
	Personalization map[string]string
}

// BuildLeads filters rows through the phone mapping: a row is accepted iff its
// mapped phone value, trimmed, is non-empty and all digits. The returned count
// is the number of rows dropped as invalid. The personalization map is the
// original row minus every mapped column.
func BuildLeads(doc *Document, m Mapping) ([]LeadRecord, int, error) {
	if m.Phone == "" {
		return nil, 0, errors.New("phone column mapping is required")
	}

	mapped := map[string]bool{m.Phone: true}
	for _, col := range []string{m.FirstName, m.LastName, m.CompanyName} {
		if col != "" {
			mapped[col] = true
		}
	}

	var leads []LeadRecord
	invalid := 0
	for _, row := range doc.Rows {
		phone := strings.TrimSpace(row[m.Phone])
		if phone == "" || !phonePattern.MatchString(phone) {
			invalid++
			continue
		}

		personalization := make(map[string]string, len(row))
		for k, v := range row {
			if !mapped[k] {
				personalization[k] = v
			}
		}

		leads = append(leads, LeadRecord{
			Phone:           phone,
			FirstName:       valueOrEmpty(row, m.FirstName),
			LastName:        valueOrEmpty(row, m.LastName),
			CompanyName:     valueOrEmpty(row, m.CompanyName),
			Personalization: personalization,
		})
	}
	return leads, invalid, nil
}

func valueOrEmpty(row map[string]string, col string) string {
	if col == "" {
		return ""
	}
	return row[col]
}
