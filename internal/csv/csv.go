// Package csv parses delimited text into header and row arrays for bulk
// import. Cells are sanitized against spreadsheet formula injection as they
// are read, so downstream layers only ever see defused values.
package csv

import (
	encsv "encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/hsualexotake/inseam-sub000/internal/schema"
)

// Document is the result of parsing one delimited-text blob.
type Document struct {
	Headers []string
	Rows    [][]string
}

// formulaPrefixes are the cell-leading characters spreadsheet applications
// interpret as formula starts.
const formulaPrefixes = "=+-@"

// SanitizeCell defuses potential spreadsheet-formula injection. A cell whose
// first character is '=', '+', '-' or '@' is prefixed with a literal quote;
// all other cells pass through unchanged.
func SanitizeCell(value string) string {
	if value == "" {
		return value
	}
	if strings.ContainsRune(formulaPrefixes, rune(value[0])) {
		return "'" + value
	}
	return value
}

// Parse tokenizes delimited text into a header row plus data rows. Quoted
// fields may contain the delimiter and doubled quote characters; blank lines
// are skipped; empty input yields an empty document. Every header and data
// cell is sanitized via SanitizeCell. Rows may be ragged; width mismatches
// surface later as missing-field validation errors, not parse errors.
func Parse(text string) (Document, error) {
	doc := Document{}
	if strings.TrimSpace(text) == "" {
		return doc, nil
	}

	r := encsv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Document{}, fmt.Errorf("parse delimited text: %w", err)
		}

		if isBlank(record) {
			continue
		}

		for i, cell := range record {
			record[i] = SanitizeCell(cell)
		}

		if doc.Headers == nil {
			doc.Headers = record
			continue
		}
		doc.Rows = append(doc.Rows, record)
	}

	return doc, nil
}

// isBlank reports whether every cell in the record is empty or whitespace.
func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// MapToRecords converts parsed rows into raw records keyed by column key.
// Each header is matched to a column by case-insensitive name or key;
// unmatched headers are dropped silently, which downstream validation turns
// into missing-required errors where it matters.
func MapToRecords(headers []string, rows [][]string, columns []schema.ColumnDefinition) []map[string]any {
	// header position -> column key
	keyFor := make(map[int]string, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		for _, col := range columns {
			if strings.EqualFold(h, col.Name) || strings.EqualFold(h, col.Key) {
				keyFor[i] = col.Key
				break
			}
		}
	}

	records := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		record := make(map[string]any, len(keyFor))
		// Walk headers in order so when two headers match the same column,
		// the rightmost one deterministically wins.
		for i := range headers {
			key, ok := keyFor[i]
			if !ok || i >= len(row) {
				continue
			}
			record[key] = row[i]
		}
		records = append(records, record)
	}
	return records
}
