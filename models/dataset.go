package models

import (
	"math"
	"strconv"
	"strings"
)

// Column names the cleaning step depends on.
const (
	ColumnPrice     = "price"
	ColumnLongitude = "longitude"
	ColumnLatitude  = "latitude"
)

// Record is one data row. Fields holds the raw cell text exactly as read so
// retained rows are written back unchanged.
type Record struct {
	// Line is the 1-indexed line number in the source file (header is line 1).
	Line   int
	Fields []string
}

// Field returns the cell at index i, or "" when the row is too short.
func (r Record) Field(i int) string {
	if i < 0 || i >= len(r.Fields) {
		return ""
	}
	return r.Fields[i]
}

// Float parses the cell at index i. ok is false for missing, empty,
// non-numeric and NaN cells.
func (r Record) Float(i int) (v float64, ok bool) {
	s := strings.TrimSpace(r.Field(i))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Dataset is an ordered sequence of Records sharing one header.
type Dataset struct {
	Header  []string
	Records []Record
}

// Len returns the number of data rows.
func (d Dataset) Len() int {
	return len(d.Records)
}

// ColumnIndex returns the position of name in the header, or -1. Header
// cells must match exactly; " price" is not "price".
func (d Dataset) ColumnIndex(name string) int {
	for i, h := range d.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// WithRecords returns a Dataset with the same header and the given rows.
// The header slice is copied so the result never aliases the source.
func (d Dataset) WithRecords(records []Record) Dataset {
	header := make([]string, len(d.Header))
	copy(header, d.Header)
	return Dataset{Header: header, Records: records}
}
