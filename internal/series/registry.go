package series

import (
	"fmt"
	"path/filepath"
	"time"

	"datasetbuilder/config"
)

// Constructor builds an adapter whose dataset lives under outputDir.
type Constructor func(outputDir string) Adapter

// Registry maps series names to adapter constructors and keeps the order in
// which series are synced.
type Registry struct {
	order []string
	ctors map[string]Constructor
}

// NewRegistry returns a registry holding every built-in series.
func NewRegistry() *Registry {
	r := &Registry{ctors: make(map[string]Constructor)}
	r.Register(FundingRateName, func(dir string) Adapter { return NewFundingRate(dir) })
	r.Register(OpenInterestName, func(dir string) Adapter { return NewOpenInterest(dir) })
	r.Register(LongShortRatioName, func(dir string) Adapter { return NewLongShortRatio(dir) })
	r.Register(TakerVolumeName, func(dir string) Adapter { return NewTakerVolume(dir) })
	return r
}

// Register adds or replaces a constructor. New names are appended to the
// sync order.
func (r *Registry) Register(name string, ctor Constructor) {
	if _, ok := r.ctors[name]; !ok {
		r.order = append(r.order, name)
	}
	r.ctors[name] = ctor
}

func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Build returns the enabled adapters in registry order with the configured
// overrides applied. When cfg lists no series every registered series is
// built; otherwise only the listed ones.
func (r *Registry) Build(cfg config.DatasetsConfig) ([]Adapter, error) {
	overrides := make(map[string]config.SeriesConfig, len(cfg.Series))
	for _, s := range cfg.Series {
		if _, ok := r.ctors[s.Name]; !ok {
			return nil, fmt.Errorf("unknown series %q", s.Name)
		}
		overrides[s.Name] = s
	}

	adapters := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		override, listed := overrides[name]
		if len(overrides) > 0 && !listed {
			continue
		}
		if listed && !override.IsEnabled() {
			continue
		}

		adapter := r.ctors[name](cfg.OutputDir)
		if listed {
			if o, ok := adapter.(overridable); ok {
				o.applyOverride(cfg.OutputDir, override)
			}
		}
		adapters = append(adapters, adapter)
	}
	return adapters, nil
}

type overridable interface {
	applyOverride(outputDir string, o config.SeriesConfig)
}

func (b *base) applyOverride(outputDir string, o config.SeriesConfig) {
	if o.Path != "" {
		if filepath.IsAbs(o.Path) {
			b.def.Path = o.Path
		} else {
			b.def.Path = filepath.Join(outputDir, o.Path)
		}
	}
	if o.LookbackDays > 0 {
		b.def.LookbackDays = o.LookbackDays
	}
	if o.WindowDays > 0 {
		b.def.Window = time.Duration(o.WindowDays) * 24 * time.Hour
	}
	if o.Limit > 0 {
		b.def.Limit = o.Limit
	}
	if o.Period != "" {
		b.def.Period = o.Period
	}
}

func datasetPath(outputDir, name string) string {
	if outputDir == "" {
		outputDir = config.DefaultOutputDir
	}
	return filepath.Join(outputDir, name+".csv")
}
