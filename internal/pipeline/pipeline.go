package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/dst-accident-etl/internal/accident"
	"github.com/couchcryptid/dst-accident-etl/internal/cache"
	"github.com/couchcryptid/dst-accident-etl/internal/domain"
	"github.com/couchcryptid/dst-accident-etl/internal/fusion"
	"github.com/couchcryptid/dst-accident-etl/internal/observability"
	"github.com/couchcryptid/dst-accident-etl/internal/reference"
)

// Raw input files under Options.RawDir.
const (
	GeolocationFile = "geolocation.psv"
	TimezonesFile   = "timezones.csv"
	OverridesFile   = "counties_timezone_override.csv"
	TransitionsFile = "dst.csv"
)

// Derived cache entries.
const (
	StatesEntry    = "_states.csv"
	CountiesEntry  = "_counties.csv"
	AccidentsEntry = "_accidents.csv"
)

// Sink receives the fused table once the pipeline has built it.
type Sink interface {
	Name() string
	Write(ctx context.Context, rows []domain.FusedAccident) error
	Close() error
}

// Options configures one pipeline run.
type Options struct {
	RawDir         string
	FirstYear      int
	LateSchemaYear int
	LastYear       int
	Excluded       []int
	BucketWidth    float64
	ApplyOverrides bool
}

// Result describes a completed build.
type Result struct {
	Rows            []domain.FusedAccident
	Accidents       accident.Stats
	Fusion          fusion.Stats
	GeoCached       bool
	AccidentsCached bool
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Pipeline builds the fused accident table from raw inputs and the derived
// table cache, then hands it to every sink.
type Pipeline struct {
	opts    Options
	store   *cache.Store
	sinks   []Sink
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
}

// New creates a Pipeline with the given cache, sinks and observability.
func New(opts Options, store *cache.Store, sinks []Sink, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		opts:    opts,
		store:   store,
		sinks:   sinks,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once a run has written every sink.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run")
	}
	return nil
}

// Run builds the fused table and writes it to every sink. The last-run gauges
// are updated whatever the outcome.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	res, err := p.run(ctx)
	p.metrics.LastRunTimestamp.Set(float64(domain.Clock().Now().Unix()))
	if err != nil {
		p.metrics.LastRunSuccess.Set(0)
		return res, err
	}
	p.metrics.LastRunSuccess.Set(1)
	p.ready.Store(true)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context) (Result, error) {
	res, err := p.Build(ctx)
	if err != nil {
		return res, err
	}
	for _, s := range p.sinks {
		start := time.Now()
		if err := s.Write(ctx, res.Rows); err != nil {
			return res, fmt.Errorf("write %s sink: %w", s.Name(), err)
		}
		p.metrics.RowsWritten.WithLabelValues(s.Name()).Add(float64(len(res.Rows)))
		p.logger.Info("sink written",
			"sink", s.Name(),
			"rows", len(res.Rows),
			"duration", time.Since(start),
		)
	}
	return res, nil
}

// Build produces the fused table without writing it anywhere. Derived
// tables are loaded from the cache when present and verified, and computed
// and persisted otherwise.
func (p *Pipeline) Build(ctx context.Context) (Result, error) {
	res := Result{StartedAt: domain.Clock().Now()}
	p.logger.Info("pipeline started",
		"raw_dir", p.opts.RawDir,
		"first_year", p.opts.FirstYear,
		"last_year", p.opts.LastYear,
		"bucket_width", p.opts.BucketWidth,
		"apply_overrides", p.opts.ApplyOverrides,
	)

	geo, hit, err := p.geoReference(ctx)
	if err != nil {
		return res, fmt.Errorf("build geo reference: %w", err)
	}
	res.GeoCached = hit

	accidents, stats, hit, err := p.accidents(ctx, geo)
	if err != nil {
		return res, err
	}
	res.Accidents = stats
	res.AccidentsCached = hit

	ref, err := p.loadReference()
	if err != nil {
		return res, err
	}

	fuser := fusion.NewFuser(fusion.Options{
		BucketWidth:    p.opts.BucketWidth,
		ApplyOverrides: p.opts.ApplyOverrides,
	}, p.logger, p.metrics)
	rows, fstats, err := fuser.Fuse(ctx, accidents, ref)
	if err != nil {
		return res, fmt.Errorf("fuse accidents: %w", err)
	}
	res.Rows = rows
	res.Fusion = fstats
	res.FinishedAt = domain.Clock().Now()

	p.logger.Info("pipeline finished",
		"rows", len(rows),
		"geo_cached", res.GeoCached,
		"accidents_cached", res.AccidentsCached,
		"duration", res.FinishedAt.Sub(res.StartedAt),
	)
	return res, nil
}

// Close releases every sink, returning the first error.
func (p *Pipeline) Close() error {
	var first error
	for _, s := range p.sinks {
		if err := s.Close(); err != nil {
			p.logger.Error("sink close failed", "sink", s.Name(), "error", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (p *Pipeline) geoReference(ctx context.Context) (reference.Geo, bool, error) {
	return cache.LoadOrCompute(ctx, p.store, []string{StatesEntry, CountiesEntry},
		func() (reference.Geo, error) {
			states, err := reference.LoadStates(p.store.Path(StatesEntry))
			if err != nil {
				return reference.Geo{}, err
			}
			counties, err := reference.LoadCounties(p.store.Path(CountiesEntry))
			if err != nil {
				return reference.Geo{}, err
			}
			return reference.Geo{States: states, Counties: counties}, nil
		},
		func(context.Context) (reference.Geo, error) {
			return reference.LoadGeolocation(filepath.Join(p.opts.RawDir, GeolocationFile))
		},
		func(geo reference.Geo) error {
			if err := p.store.Write(StatesEntry, func(w io.Writer) error {
				return reference.WriteStates(w, geo.States)
			}); err != nil {
				return err
			}
			return p.store.Write(CountiesEntry, func(w io.Writer) error {
				return reference.WriteCounties(w, geo.Counties)
			})
		},
	)
}

func (p *Pipeline) accidents(ctx context.Context, geo reference.Geo) ([]domain.Accident, accident.Stats, bool, error) {
	var stats accident.Stats
	rows, hit, err := cache.LoadOrCompute(ctx, p.store, []string{AccidentsEntry},
		func() ([]domain.Accident, error) {
			return accident.Read(p.store.Path(AccidentsEntry))
		},
		func(ctx context.Context) ([]domain.Accident, error) {
			loader := accident.NewLoader(accident.Options{
				Dir:            p.opts.RawDir,
				FirstYear:      p.opts.FirstYear,
				LateSchemaYear: p.opts.LateSchemaYear,
				LastYear:       p.opts.LastYear,
				Excluded:       p.opts.Excluded,
			}, p.logger, p.metrics)
			rows, s, err := loader.Load(ctx, geo)
			stats = s
			return rows, err
		},
		func(rows []domain.Accident) error {
			return p.store.Write(AccidentsEntry, func(w io.Writer) error {
				return accident.Write(w, rows)
			})
		},
	)
	if err != nil {
		return nil, stats, hit, err
	}
	if hit {
		stats = accident.Stats{Read: len(rows), Kept: len(rows)}
	}
	return rows, stats, hit, nil
}
