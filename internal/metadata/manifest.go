// Package metadata describes the files an export run produced for a series.
package metadata

import (
	"encoding/json"
	"fmt"
	"time"
)

// DataFile describes a single object written for a series.
type DataFile struct {
	Path        string `json:"path"`
	Format      string `json:"format"`
	FileSize    int64  `json:"file_size_in_bytes"`
	RecordCount int64  `json:"record_count"`
}

// Manifest lists every file of one series export together with the time
// range the dataset covers.
type Manifest struct {
	FormatVersion  int        `json:"format-version"`
	RunID          string     `json:"run-id"`
	Series         string     `json:"series"`
	Symbol         string     `json:"symbol"`
	GeneratedAtMs  int64      `json:"generated-at-ms"`
	FirstTimestamp int64      `json:"first-timestamp"`
	LastTimestamp  int64      `json:"last-timestamp"`
	Files          []DataFile `json:"files"`
}

// Generator accumulates the files of one series export.
type Generator struct {
	manifest Manifest
}

// NewGenerator starts a manifest for series under the given run.
func NewGenerator(runID, series, symbol string) *Generator {
	return &Generator{manifest: Manifest{
		FormatVersion: 1,
		RunID:         runID,
		Series:        series,
		Symbol:        symbol,
	}}
}

// SetRange records the first and last timestamps of the exported dataset.
func (g *Generator) SetRange(first, last int64) {
	g.manifest.FirstTimestamp = first
	g.manifest.LastTimestamp = last
}

// AddFile records a newly written file.
func (g *Generator) AddFile(df DataFile) error {
	if df.Path == "" {
		return fmt.Errorf("data file path is required")
	}
	g.manifest.Files = append(g.manifest.Files, df)
	return nil
}

// Manifest returns a copy of the manifest built so far.
func (g *Generator) Manifest() Manifest {
	m := g.manifest
	m.Files = append([]DataFile(nil), g.manifest.Files...)
	return m
}

// Encode stamps the manifest with at and renders it as indented JSON.
func (g *Generator) Encode(at time.Time) ([]byte, error) {
	m := g.Manifest()
	m.GeneratedAtMs = at.UnixMilli()
	return json.MarshalIndent(m, "", "  ")
}
