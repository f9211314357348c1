// Package series describes the exchange time series the builder syncs: where
// each one is queried, how raw entries map to canonical records and where a
// new dataset starts.
package series

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"datasetbuilder/internal/binance"
	"datasetbuilder/models"
)

// Adapter is the per-series policy used by the sync engine.
type Adapter interface {
	Definition() models.Definition
	Columns() []string
	Endpoint(window models.Window) binance.Request
	Map(raw json.RawMessage) (models.Record, error)
	Genesis(now time.Time) int64
}

// AdapterError reports a raw entry that could not be mapped.
type AdapterError struct {
	Series string
	Field  string
	Err    error
}

func (e *AdapterError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("series %s: field %s: %v", e.Series, e.Field, e.Err)
	}
	return fmt.Sprintf("series %s: %v", e.Series, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// FieldSpec is one stored column with its precision and rounding.
type FieldSpec struct {
	Column   string
	Places   int32
	Rounding Rounding
}

// Fetch asks fetcher for the entries inside window and maps every one of
// them to a canonical record, preserving upstream order.
func Fetch(ctx context.Context, fetcher binance.Fetcher, adapter Adapter, window models.Window) ([]models.Record, error) {
	raw, err := fetcher.Fetch(ctx, adapter.Endpoint(window))
	if err != nil {
		return nil, err
	}

	records := make([]models.Record, 0, len(raw))
	for _, item := range raw {
		rec, err := adapter.Map(item)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// base carries what every adapter shares: the definition, the endpoint and
// the field specs.
type base struct {
	def      models.Definition
	endpoint string
	fields   []FieldSpec
}

func (b base) Definition() models.Definition { return b.def }

func (b base) Columns() []string {
	cols := make([]string, 0, len(b.fields)+1)
	cols = append(cols, models.TimestampColumn)
	for _, f := range b.fields {
		cols = append(cols, f.Column)
	}
	return cols
}

func (b base) Endpoint(window models.Window) binance.Request {
	params := url.Values{}
	if b.def.Period != "" {
		params.Set("period", b.def.Period)
	}
	if b.def.Limit > 0 {
		params.Set("limit", strconv.Itoa(b.def.Limit))
	}
	return binance.Request{Path: b.endpoint, Params: params}.WithWindow(window)
}

func (b base) Genesis(now time.Time) int64 {
	return b.def.GenesisAt(now)
}

func (b base) fail(field string, err error) error {
	return &AdapterError{Series: b.def.Name, Field: field, Err: err}
}

func (b base) decode(raw json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return b.fail("", fmt.Errorf("decode entry: %w", err))
	}
	return nil
}

// record formats values against the field specs, in order.
func (b base) record(ts int64, values ...string) (models.Record, error) {
	if ts <= 0 {
		return models.Record{}, b.fail(models.TimestampColumn, fmt.Errorf("missing or zero timestamp"))
	}
	if len(values) != len(b.fields) {
		return models.Record{}, b.fail("", fmt.Errorf("got %d values for %d fields", len(values), len(b.fields)))
	}

	rec := models.Record{Timestamp: ts, Fields: make([]models.Field, 0, len(values))}
	for i, spec := range b.fields {
		v, err := FormatDecimal(values[i], spec.Places, spec.Rounding)
		if err != nil {
			return models.Record{}, b.fail(spec.Column, err)
		}
		rec.Fields = append(rec.Fields, models.Field{Name: spec.Column, Value: v})
	}
	return rec, nil
}
