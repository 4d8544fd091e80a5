// Package accident reads the yearly FARS accident extracts and normalizes
// both schema eras into one cleaned table of domain.Accident rows.
package accident

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/couchcryptid/dst-accident-etl/internal/domain"
	"github.com/couchcryptid/dst-accident-etl/internal/observability"
	"github.com/couchcryptid/dst-accident-etl/internal/reference"
)

const stage = "accidents"

// Drop reasons, used as metric labels and log attributes.
const (
	ReasonExcluded    = "excluded_state"
	ReasonUnknownTime = "unknown_time"
	ReasonNoLocation  = "no_location"
	ReasonOutOfBounds = "out_of_bounds"
)

// Raw FARS columns.
const (
	colState     = "STATE"
	colCounty    = "COUNTY"
	colMonth     = "MONTH"
	colDay       = "DAY"
	colHour      = "HOUR"
	colMinute    = "MINUTE"
	colCase      = "ST_CASE"
	colLatitude  = "LATITUDE"
	colLongitude = "LONGITUD"
)

// FARS sentinels for an unrecorded time of day. Hour 24 is ambiguous between
// the start and end of the day and is treated the same way.
const (
	unknownHour   = 99
	ambiguousHour = 24
	unknownMinute = 99
)

// Options configures which files are read and which rows are kept.
type Options struct {
	Dir            string
	FirstYear      int
	LateSchemaYear int // first year carrying LATITUDE/LONGITUD
	LastYear       int
	Excluded       []int
	Bounds         domain.Bounds
}

// Stats counts rows per outcome. Every read row lands in exactly one bucket.
type Stats struct {
	Read        int
	Excluded    int
	UnknownTime int
	NoLocation  int
	OutOfBounds int
	Kept        int
}

// Dropped returns the number of rows removed by any filter.
func (s Stats) Dropped() int {
	return s.Excluded + s.UnknownTime + s.NoLocation + s.OutOfBounds
}

func (s *Stats) add(o Stats) {
	s.Read += o.Read
	s.Excluded += o.Excluded
	s.UnknownTime += o.UnknownTime
	s.NoLocation += o.NoLocation
	s.OutOfBounds += o.OutOfBounds
	s.Kept += o.Kept
}

// Loader reads and cleans the raw yearly extracts.
type Loader struct {
	opts     Options
	excluded map[int]bool
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewLoader creates a Loader. A zero Bounds defaults to domain.ContinentalBounds.
func NewLoader(opts Options, logger *slog.Logger, metrics *observability.Metrics) *Loader {
	if opts.Bounds == (domain.Bounds{}) {
		opts.Bounds = domain.ContinentalBounds
	}
	excluded := make(map[int]bool, len(opts.Excluded))
	for _, s := range opts.Excluded {
		excluded[s] = true
	}
	return &Loader{opts: opts, excluded: excluded, logger: logger, metrics: metrics}
}

// Load reads every year in the configured range, joins early-era rows to
// county centroids and late-era rows to the state list, and returns the
// concatenated cleaned table in year order.
func (l *Loader) Load(ctx context.Context, geo reference.Geo) ([]domain.Accident, Stats, error) {
	start := time.Now()
	joins := newJoinIndex(geo)

	var (
		all   []domain.Accident
		total Stats
	)
	for year := l.opts.FirstYear; year <= l.opts.LastYear; year++ {
		if err := ctx.Err(); err != nil {
			return nil, total, err
		}

		path := filepath.Join(l.opts.Dir, fmt.Sprintf("a%d.csv", year))
		late := year >= l.opts.LateSchemaYear
		rows, stats, err := l.loadYear(path, year, late, joins)
		if err != nil {
			return nil, total, fmt.Errorf("load accidents %d: %w", year, err)
		}
		l.logger.Debug("accident year loaded",
			"year", year,
			"late_schema", late,
			"read", stats.Read,
			"kept", stats.Kept,
		)
		all = append(all, rows...)
		total.add(stats)
	}

	l.record(total)
	l.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	l.logger.Info("accidents loaded",
		"stage", stage,
		"years", l.opts.LastYear-l.opts.FirstYear+1,
		"read", total.Read,
		"kept", total.Kept,
		"dropped", total.Dropped(),
		ReasonExcluded, total.Excluded,
		ReasonUnknownTime, total.UnknownTime,
		ReasonNoLocation, total.NoLocation,
		ReasonOutOfBounds, total.OutOfBounds,
		"duration", time.Since(start),
	)
	return all, total, nil
}

func (l *Loader) loadYear(path string, year int, late bool, joins joinIndex) ([]domain.Accident, Stats, error) {
	t, err := reference.Open(path, 0)
	if err != nil {
		return nil, Stats{}, err
	}
	defer t.Close()

	required := []string{colState, colMonth, colDay, colHour, colMinute, colCase}
	if late {
		required = append(required, colLatitude, colLongitude)
	} else {
		required = append(required, colCounty)
	}
	if err := t.Require(required...); err != nil {
		return nil, Stats{}, err
	}
	hasCounty := t.Has(colCounty)

	var (
		rows  []domain.Accident
		stats Stats
	)
	for t.Next() {
		stats.Read++

		state := t.Int(colState)
		if t.Err() != nil {
			break
		}
		if l.excluded[state] {
			stats.Excluded++
			continue
		}

		hour, minute := t.Int(colHour), t.Int(colMinute)
		if t.Err() != nil {
			break
		}
		if hour == unknownHour || hour == ambiguousHour || minute == unknownMinute {
			stats.UnknownTime++
			continue
		}

		a := domain.Accident{
			State:  state,
			Year:   year,
			Month:  t.Int(colMonth),
			Day:    t.Int(colDay),
			Hour:   hour,
			Minute: minute,
			Case:   t.Int(colCase),
		}
		if hasCounty {
			a.County = t.Int(colCounty)
		}

		if late {
			a.Lat = t.Float(colLatitude)
			a.Lng = t.Float(colLongitude)
			a.StateAlpha = joins.states[state]
		} else {
			c, ok := joins.counties[domain.CountyKey{State: state, County: a.County}]
			if !ok {
				stats.NoLocation++
				continue
			}
			a.StateAlpha = c.StateAlpha
			a.Lat = c.Lat
			a.Lng = c.Lng
		}
		if t.Err() != nil {
			break
		}

		if !l.opts.Bounds.Contains(a.Lat, a.Lng) {
			stats.OutOfBounds++
			continue
		}

		stats.Kept++
		rows = append(rows, a)
	}
	if err := t.Err(); err != nil {
		return nil, stats, err
	}
	return rows, stats, nil
}

func (l *Loader) record(s Stats) {
	l.metrics.RowsRead.WithLabelValues(stage).Add(float64(s.Read))
	l.metrics.RowsDropped.WithLabelValues(stage, ReasonExcluded).Add(float64(s.Excluded))
	l.metrics.RowsDropped.WithLabelValues(stage, ReasonUnknownTime).Add(float64(s.UnknownTime))
	l.metrics.RowsDropped.WithLabelValues(stage, ReasonNoLocation).Add(float64(s.NoLocation))
	l.metrics.RowsDropped.WithLabelValues(stage, ReasonOutOfBounds).Add(float64(s.OutOfBounds))
}

// joinIndex holds the lookups for both schema eras.
type joinIndex struct {
	counties map[domain.CountyKey]domain.County
	states   map[int]string
}

func newJoinIndex(geo reference.Geo) joinIndex {
	idx := joinIndex{
		counties: make(map[domain.CountyKey]domain.County, len(geo.Counties)),
		states:   make(map[int]string, len(geo.States)),
	}
	for _, c := range geo.Counties {
		idx.counties[c.Key()] = c
	}
	for _, s := range geo.States {
		idx.states[s.Code] = s.Alpha
	}
	return idx
}
