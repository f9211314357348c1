package models

import (
	"strconv"
	"strings"
)

// TimestampColumn is always the first column of a stored dataset.
const TimestampColumn = "timestamp"

// Field is one named, already formatted value of a canonical record.
type Field struct {
	Name  string
	Value string
}

// Record is the canonical, series specific shape persisted to a dataset.
// Timestamp is in milliseconds and unique within a series.
type Record struct {
	Timestamp int64
	Fields    []Field
}

// Columns returns the header for the record: timestamp followed by the field
// names in insertion order.
func (r Record) Columns() []string {
	cols := make([]string, 0, len(r.Fields)+1)
	cols = append(cols, TimestampColumn)
	for _, f := range r.Fields {
		cols = append(cols, f.Name)
	}
	return cols
}

// Line renders the record as a comma separated line matching Columns.
func (r Record) Line() string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(r.Timestamp, 10))
	for _, f := range r.Fields {
		b.WriteByte(',')
		b.WriteString(f.Value)
	}
	return b.String()
}

// Value returns the value of the named field.
func (r Record) Value(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}
