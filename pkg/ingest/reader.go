// Package ingest implements the cleaning stage: it reads the raw CSV extracts,
// checks required columns, drops incomplete rows, parses dates and numbers and
// writes the cleaned tables back out.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/jordanlanch/commercebi/pkg/domain"
)

// Result holds the cleaned rows of one table and what was dropped on the way
type Result[T any] struct {
	Table   string     `json:"table"`
	Rows    []T        `json:"-"`
	Total   int        `json:"total_rows"`
	Dropped int        `json:"dropped_rows"`
	Errors  []RowError `json:"errors,omitempty"`

	keys map[string]struct{}
}

// Kept returns the number of rows that survived cleaning
func (r *Result[T]) Kept() int {
	return len(r.Rows)
}

// RowError describes why a single row was dropped
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// maxRowErrors caps how many per-row errors are kept on a result
const maxRowErrors = 100

func (r *Result[T]) drop(rowErr RowError) {
	r.Dropped++
	if len(r.Errors) < maxRowErrors {
		r.Errors = append(r.Errors, rowErr)
	}
}

// keep appends v unless a previous row already used the same primary key.
// The first occurrence wins; repeats are dropped as duplicates.
func (r *Result[T]) keep(row int, field, key string, v T) {
	if r.keys == nil {
		r.keys = make(map[string]struct{})
	}
	if _, dup := r.keys[key]; dup {
		r.drop(RowError{Row: row, Field: field, Value: key, Message: "duplicate " + field})
		return
	}
	r.keys[key] = struct{}{}
	r.Rows = append(r.Rows, v)
}

var errMissingValue = errors.New("missing value")

// record wraps one CSV row with header-indexed accessors
type record struct {
	values  []string
	headers map[string]int
}

func (r record) get(name string) string {
	idx, ok := r.headers[normalizeHeader(name)]
	if !ok || idx >= len(r.values) {
		return ""
	}
	return strings.TrimSpace(r.values[idx])
}

func (r record) has(name string) bool {
	_, ok := r.headers[normalizeHeader(name)]
	return ok
}

// text returns an NFC-normalized string value
func (r record) text(name string) string {
	return norm.NFC.String(r.get(name))
}

func (r record) required(name string) (string, error) {
	v := r.text(name)
	if v == "" {
		return "", errMissingValue
	}
	return v, nil
}

func (r record) float(name string) (float64, error) {
	v := r.get(name)
	if v == "" {
		return 0, errMissingValue
	}
	return strconv.ParseFloat(v, 64)
}

func (r record) integer(name string) (int, error) {
	v := r.get(name)
	if v == "" {
		return 0, errMissingValue
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n, nil
	}
	// integers exported as floats ("3.0")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("not an integer: %s", v)
	}
	return int(f), nil
}

// optionalInt returns 0 when the column is absent or empty
func (r record) optionalInt(name string) (int, error) {
	if r.get(name) == "" {
		return 0, nil
	}
	return r.integer(name)
}

func (r record) date(name string) (time.Time, error) {
	v := r.get(name)
	if v == "" {
		return time.Time{}, errMissingValue
	}
	return ParseDate(v)
}

// readTable validates the header and invokes fn for every data row.
// Row numbers are 1-based and exclude the header.
func readTable(table string, rd io.Reader, required []string, fn func(row int, rec record)) error {
	csvReader := csv.NewReader(rd)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	headers, err := csvReader.Read()
	if err == io.EOF {
		return domain.NewSchemaViolationError(table, required[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read %s header: %w", table, err)
	}

	headerMap := normalizeHeaders(headers)
	for _, field := range required {
		if _, ok := headerMap[normalizeHeader(field)]; !ok {
			return domain.NewSchemaViolationError(table, field)
		}
	}

	row := 0
	for {
		values, err := csvReader.Read()
		if err == io.EOF {
			return nil
		}
		row++
		if err != nil {
			// malformed line: hand an empty record to the caller so it is counted as dropped
			fn(row, record{headers: headerMap})
			continue
		}
		fn(row, record{values: values, headers: headerMap})
	}
}

func normalizeHeaders(headers []string) map[string]int {
	result := make(map[string]int, len(headers))
	for idx, header := range headers {
		normalized := normalizeHeader(header)
		if _, exists := result[normalized]; !exists {
			result[normalized] = idx
		}
	}
	return result
}

func normalizeHeader(value string) string {
	value = strings.TrimPrefix(value, "\ufeff")
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, " ", "")
	value = strings.ReplaceAll(value, "_", "")
	value = strings.ReplaceAll(value, "-", "")
	return value
}

// ParseDate accepts the date layouts seen in raw extracts and returns the calendar date in UTC
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty date")
	}
	layouts := []string{
		"2006-01-02",
		"2006/01/02",
		"01/02/2006",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		time.RFC3339,
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return domain.DateOnly(parsed), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format: %s", value)
}
