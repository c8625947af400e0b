// Package recipients turns an uploaded spreadsheet (CSV) into the ordered
// recipient list of a campaign.
package recipients

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ignite/mailmerge/internal/domain"
)

var (
	ErrEmptyFile          = errors.New("file is empty")
	ErrInvalidCSV         = errors.New("invalid CSV format")
	ErrNoHeaders          = errors.New("no headers detected in CSV file")
	ErrMissingEmailColumn = errors.New("no email column found")
)

// MaxRows caps a single upload.
const MaxRows = 50000

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// emailAliases are header spellings accepted for the address column.
var emailAliases = []string{"email", "email_address", "e-mail", "emailaddress", "mail", "subscriber_email"}

// Result is the outcome of parsing one upload.
type Result struct {
	Headers    []string           `json:"headers"`
	Recipients []domain.Recipient `json:"-"`
	// Skipped counts data rows dropped for a blank or malformed address.
	Skipped int `json:"skipped"`
}

// Parse reads a CSV with a header row. Headers are kept as written so each
// can be used as a placeholder. When the address sits under an alias such as
// "E-mail", every recipient also carries it under "email".
func Parse(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable fields
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	first, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}

	headers := normalizeHeaders(first)
	if !looksLikeHeader(headers) {
		return nil, ErrNoHeaders
	}
	emailCol := emailColumn(headers)
	if emailCol < 0 {
		return nil, ErrMissingEmailColumn
	}
	aliased := !strings.EqualFold(headers[emailCol], "email")

	result := &Result{Headers: headers}
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidCSV, line, err)
		}
		if blankRow(row) {
			continue
		}
		if len(result.Recipients)+result.Skipped >= MaxRows {
			return nil, fmt.Errorf("%w: more than %d rows", ErrInvalidCSV, MaxRows)
		}

		rec := make(domain.Recipient, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			if _, dup := rec[h]; dup {
				continue
			}
			if i < len(row) {
				rec[h] = strings.TrimSpace(row[i])
			} else {
				rec[h] = ""
			}
		}
		if !emailRegex.MatchString(rec[headers[emailCol]]) {
			result.Skipped++
			continue
		}
		if aliased {
			rec["email"] = rec[headers[emailCol]]
		}
		result.Recipients = append(result.Recipients, rec)
	}

	return result, nil
}

func normalizeHeaders(row []string) []string {
	out := make([]string, len(row))
	for i, h := range row {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		h = strings.TrimSpace(h)
		out[i] = h
	}
	return out
}

// looksLikeHeader rejects a first row that is already data: any cell that
// is an address, or a row with no names at all.
func looksLikeHeader(row []string) bool {
	named := false
	for _, cell := range row {
		if emailRegex.MatchString(cell) {
			return false
		}
		if cell != "" {
			named = true
		}
	}
	return named
}

// emailColumn returns the index of the address column. An exact "email"
// header wins over the looser aliases.
func emailColumn(headers []string) int {
	for i, h := range headers {
		if strings.EqualFold(h, "email") {
			return i
		}
	}
	for i, h := range headers {
		key := strings.ToLower(strings.ReplaceAll(h, " ", "_"))
		for _, alias := range emailAliases {
			if key == alias {
				return i
			}
		}
	}
	return -1
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
