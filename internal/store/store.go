// Package store keeps one series as a header-tagged, comma separated text
// file. The last line of the file is the sync cursor.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"datasetbuilder/models"
)

// StorageError reports a failure to read, parse or persist a dataset file.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ErrHeaderMismatch is wrapped by StorageError when a file holds different
// columns than the series writing to it.
var ErrHeaderMismatch = errors.New("header mismatch")

// Store is the file backing one series.
type Store struct {
	path string
}

// Open ensures the file and its parent directory exist. A missing file is
// created empty.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &StorageError{Op: "open", Path: path, Err: err}
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, &StorageError{Op: "open", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return nil, &StorageError{Op: "open", Path: path, Err: err}
	}
	return &Store{path: path}, nil
}

func (s *Store) Path() string { return s.path }

// Load reads the whole file. The resume point is the timestamp of the last
// line, or genesis() when the file has no data lines.
func (s *Store) Load(genesis func() int64) (*Dataset, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &StorageError{Op: "load", Path: s.path, Err: err}
	}

	ds := &Dataset{seen: make(map[int64]struct{})}

	text := strings.TrimRight(string(data), "\r\n")
	if text != "" {
		lines := strings.Split(text, "\n")
		for i, raw := range lines {
			line := strings.TrimRight(raw, "\r")
			if i == 0 && !startsWithDigit(line) {
				ds.header = strings.Split(line, ",")
				continue
			}
			ts, err := lineTimestamp(line)
			if err != nil {
				return nil, &StorageError{Op: "load", Path: s.path, Err: fmt.Errorf("line %d: %w", i+1, err)}
			}
			if len(ds.lines) > 0 && ts <= ds.last {
				return nil, &StorageError{Op: "load", Path: s.path, Err: fmt.Errorf("line %d: timestamp %d does not follow %d", i+1, ts, ds.last)}
			}
			ds.lines = append(ds.lines, line)
			ds.seen[ts] = struct{}{}
			ds.last = ts
		}
	}

	if len(ds.lines) > 0 {
		ds.resume = ds.last
	} else if genesis != nil {
		ds.resume = genesis()
	}
	return ds, nil
}

// Save rewrites the file with the dataset text through a temporary file and
// a rename so a crash never leaves a partially written dataset.
func (s *Store) Save(ds *Dataset) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return &StorageError{Op: "save", Path: s.path, Err: err}
	}
	tmpName := tmp.Name()

	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &StorageError{Op: "save", Path: s.path, Err: err}
	}

	if _, err := tmp.WriteString(ds.Text()); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &StorageError{Op: "save", Path: s.path, Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return &StorageError{Op: "save", Path: s.path, Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return &StorageError{Op: "save", Path: s.path, Err: err}
	}
	return nil
}

// Dataset is the in-memory copy of a store for one run.
type Dataset struct {
	header []string
	lines  []string
	seen   map[int64]struct{}
	last   int64
	resume int64
}

// Resume is the timestamp the next query window starts after.
func (d *Dataset) Resume() int64 { return d.resume }

// Header returns the column names, or nil when none has been written yet.
func (d *Dataset) Header() []string { return d.header }

// Len returns the number of data lines.
func (d *Dataset) Len() int { return len(d.lines) }

// Span returns the first and last stored timestamps.
func (d *Dataset) Span() (first, last int64, ok bool) {
	if len(d.lines) == 0 {
		return 0, 0, false
	}
	first, err := lineTimestamp(d.lines[0])
	if err != nil {
		return 0, 0, false
	}
	return first, d.last, true
}

// EnsureHeader checks that an existing header matches columns. It is a no-op
// for a dataset without a header.
func (d *Dataset) EnsureHeader(path string, columns []string) error {
	if d.header == nil {
		return nil
	}
	if strings.Join(d.header, ",") != strings.Join(columns, ",") {
		return &StorageError{
			Op:   "header",
			Path: path,
			Err:  fmt.Errorf("%w: have %q, want %q", ErrHeaderMismatch, strings.Join(d.header, ","), strings.Join(columns, ",")),
		}
	}
	return nil
}

// Append adds records whose timestamps are unseen and newer than the last
// stored line. The header is taken from the first record when missing. It
// returns the number of lines appended.
func (d *Dataset) Append(records []models.Record) int {
	if d.seen == nil {
		d.seen = make(map[int64]struct{})
	}

	appended := 0
	for _, r := range records {
		if d.header == nil {
			d.header = r.Columns()
		}
		if _, dup := d.seen[r.Timestamp]; dup {
			continue
		}
		if len(d.lines) > 0 && r.Timestamp <= d.last {
			continue
		}
		d.lines = append(d.lines, r.Line())
		d.seen[r.Timestamp] = struct{}{}
		d.last = r.Timestamp
		appended++
	}
	return appended
}

// Text renders the dataset as stored: header, then one line per record,
// newline separated without a trailing newline.
func (d *Dataset) Text() string {
	if d.header == nil && len(d.lines) == 0 {
		return ""
	}
	parts := make([]string, 0, len(d.lines)+1)
	if d.header != nil {
		parts = append(parts, strings.Join(d.header, ","))
	}
	parts = append(parts, d.lines...)
	return strings.Join(parts, "\n")
}

// Records parses the stored lines back into canonical records.
func (d *Dataset) Records() ([]models.Record, error) {
	out := make([]models.Record, 0, len(d.lines))
	for i, line := range d.lines {
		values := strings.Split(line, ",")
		if d.header != nil && len(values) != len(d.header) {
			return nil, fmt.Errorf("line %d: %d values for %d columns", i+1, len(values), len(d.header))
		}
		ts, err := strconv.ParseInt(values[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		rec := models.Record{Timestamp: ts, Fields: make([]models.Field, 0, len(values)-1)}
		for j, v := range values[1:] {
			name := fmt.Sprintf("field_%d", j+1)
			if d.header != nil {
				name = d.header[j+1]
			}
			rec.Fields = append(rec.Fields, models.Field{Name: name, Value: v})
		}
		out = append(out, rec)
	}
	return out, nil
}

func startsWithDigit(line string) bool {
	return line != "" && line[0] >= '0' && line[0] <= '9'
}

func lineTimestamp(line string) (int64, error) {
	first, _, _ := strings.Cut(line, ",")
	ts, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed line %q", line)
	}
	return ts, nil
}
