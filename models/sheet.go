package models

import "fmt"

// Record is one ordered row of cell values.
type Record []CellValue

// Strings returns the human-readable form of every cell.
func (r Record) Strings() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.String()
	}
	return out
}

// Sheet is one fully materialized table extraction: a header and its data
// records. A Sheet is not modified after the extractor returns it.
type Sheet struct {
	Header  []string
	Records []Record
}

// Rows returns the header as the first record followed by every data record.
func (s *Sheet) Rows() []Record {
	rows := make([]Record, 0, len(s.Records)+1)
	header := make(Record, len(s.Header))
	for i, h := range s.Header {
		header[i] = Scalar(h)
	}
	rows = append(rows, header)
	return append(rows, s.Records...)
}

// Validate checks that every data record is as wide as the header.
func (s *Sheet) Validate() error {
	for i, r := range s.Records {
		if len(r) != len(s.Header) {
			return NewHarvestError(ErrCodeExtractionMismatch,
				fmt.Sprintf("row %d has %d cells, header has %d", i+1, len(r), len(s.Header)), nil)
		}
	}
	return nil
}

// Column returns the index of the first header equal to label, or -1.
func (s *Sheet) Column(label string) int {
	for i, h := range s.Header {
		if h == label {
			return i
		}
	}
	return -1
}

// Entry is one index row scheduled for a detail harvest.
type Entry struct {
	// Ordinal is the 1-based data row number in the index sheet.
	Ordinal int
	// Name is the display-name cell as extracted.
	Name string
	// LinkText is the visible text of the entry's link on the index page.
	LinkText string
	// Slug is the path-safe form of Name.
	Slug string
}

func (e Entry) String() string {
	return fmt.Sprintf("#%d %s", e.Ordinal, e.Name)
}
