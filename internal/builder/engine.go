// Package builder runs the resumable sync loop that extends a dataset from
// its last stored timestamp until the exchange has nothing new to return.
package builder

import (
	"context"
	"fmt"
	"time"

	"datasetbuilder/internal/binance"
	"datasetbuilder/internal/metrics"
	"datasetbuilder/internal/series"
	"datasetbuilder/internal/store"
	"datasetbuilder/logger"
	"datasetbuilder/models"
)

const component = "builder"

// State is the position of a series in the sync loop.
type State string

const (
	StateIdle      State = "IDLE"
	StateFetching  State = "FETCHING"
	StateAppending State = "APPENDING"
	StateDone      State = "DONE"
	StateFailed    State = "FAILED"
)

// Result summarises one series sync.
type Result struct {
	Series   string
	Cycles   int
	Appended int
	Resume   int64
	State    State
	Elapsed  time.Duration
}

// Exporter derives a copy of a dataset after its series has synced.
type Exporter interface {
	Name() string
	Export(ctx context.Context, def models.Definition, ds *store.Dataset) error
}

// Builder drives adapters against a single fetcher.
type Builder struct {
	fetcher   binance.Fetcher
	exporters []Exporter
	now       func() time.Time
	log       *logger.Log
}

type Option func(*Builder)

// WithClock replaces the clock used to compute rolling genesis points.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithExporters runs the exporters after each series completes.
func WithExporters(exporters ...Exporter) Option {
	return func(b *Builder) { b.exporters = append(b.exporters, exporters...) }
}

func New(fetcher binance.Fetcher, opts ...Option) *Builder {
	b := &Builder{
		fetcher: fetcher,
		now:     time.Now,
		log:     logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Sync extends the dataset of adapter until a page yields at most one record
// or stops advancing. Progress is persisted after every batch that appended
// something, so a failed or cancelled sync keeps what it already stored.
func (b *Builder) Sync(ctx context.Context, adapter series.Adapter) (Result, error) {
	def := adapter.Definition()
	res := Result{Series: def.Name, State: StateIdle}
	log := b.log.WithComponent(component).WithSeries(def.Name)
	started := time.Now()

	fail := func(op string, err error) (Result, error) {
		res.State = StateFailed
		res.Elapsed = time.Since(started)
		return res, fmt.Errorf("sync %s: %s: %w", def.Name, op, err)
	}

	st, err := store.Open(def.Path)
	if err != nil {
		return fail("open", err)
	}
	ds, err := st.Load(func() int64 { return adapter.Genesis(b.now()) })
	if err != nil {
		return fail("load", err)
	}
	if err := ds.EnsureHeader(def.Path, adapter.Columns()); err != nil {
		return fail("load", err)
	}

	resume := ds.Resume()
	res.Resume = resume
	log.WithFields(logger.Fields{
		"path":    def.Path,
		"resume":  resume,
		"records": ds.Len(),
	}).Info("series sync started")

	for {
		if err := ctx.Err(); err != nil {
			return fail("fetch", err)
		}

		res.State = StateFetching
		window := models.NextWindow(resume, def.Window)
		cycleStart := time.Now()

		records, err := series.Fetch(ctx, b.fetcher, adapter, window)
		if err != nil {
			return fail("fetch", err)
		}
		res.Cycles++

		logger.LogPerformanceEntry(log, component, "fetch_cycle", time.Since(cycleStart), logger.Fields{
			"start_time": window.StartTime().Format(time.RFC3339),
			"end_time":   window.EndTime().Format(time.RFC3339),
			"records":    len(records),
		})

		// A page of zero or one record means the upstream has caught up: the
		// single record is the already stored boundary.
		if len(records) <= 1 {
			break
		}
		last := records[len(records)-1].Timestamp
		if last <= resume {
			log.WithFields(logger.Fields{"resume": resume, "last": last}).Warn("batch does not advance the resume point")
			break
		}

		res.State = StateAppending
		appended := ds.Append(records)
		resume = last
		res.Resume = resume

		if appended > 0 {
			if err := st.Save(ds); err != nil {
				return fail("save", err)
			}
			res.Appended += appended
		}
		logger.LogDataFlowEntry(log, "binance", def.Path, appended, def.Name)
	}

	res.State = StateDone
	res.Elapsed = time.Since(started)
	log.WithFields(logger.Fields{
		"cycles":   res.Cycles,
		"appended": res.Appended,
		"resume":   res.Resume,
	}).Info("series sync finished")
	metrics.ReportSync(b.log, def.Name, res.Cycles, res.Appended, res.Resume, res.Elapsed)

	for _, exp := range b.exporters {
		if ds.Len() == 0 {
			break
		}
		if err := exp.Export(ctx, def, ds); err != nil {
			return res, fmt.Errorf("sync %s: export %s: %w", def.Name, exp.Name(), err)
		}
	}
	return res, nil
}

// SyncAll syncs adapters one after another and stops at the first failure.
// The results of every attempted series are returned.
func (b *Builder) SyncAll(ctx context.Context, adapters []series.Adapter) ([]Result, error) {
	results := make([]Result, 0, len(adapters))
	for _, adapter := range adapters {
		res, err := b.Sync(ctx, adapter)
		results = append(results, res)
		if err != nil {
			metrics.ReportSyncFailure(b.log, res.Series, err)
			return results, err
		}
	}
	return results, nil
}
