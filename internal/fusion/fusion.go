// Package fusion joins cleaned accidents to their jurisdiction meridians and
// to the DST transition in force, then derives the solar offset bucket.
package fusion

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/couchcryptid/dst-accident-etl/internal/domain"
	"github.com/couchcryptid/dst-accident-etl/internal/observability"
)

const stage = "fusion"

// Drop reasons, used as metric labels and log attributes.
const (
	ReasonNoTimezone   = "no_timezone"
	ReasonInvalidTime  = "invalid_time"
	ReasonNoTransition = "no_transition"
)

// Options configures the fusion stage.
type Options struct {
	// BucketWidth is the quantization width of OffsetMinutes, in minutes.
	BucketWidth float64
	// ApplyOverrides replaces state meridians with county overrides when the
	// accident carries a county code that has one.
	ApplyOverrides bool
}

// Reference bundles the lookup tables fusion joins against.
type Reference struct {
	Timezones   []domain.Timezone
	Overrides   []domain.TimezoneOverride
	Transitions []domain.Transition
}

// Stats counts rows per outcome.
type Stats struct {
	Read         int
	NoTimezone   int
	InvalidTime  int
	NoTransition int
	Overridden   int
	Kept         int
}

// Dropped returns the number of rows removed.
func (s Stats) Dropped() int {
	return s.NoTimezone + s.InvalidTime + s.NoTransition
}

// Fuser runs the fusion stage.
type Fuser struct {
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewFuser creates a Fuser.
func NewFuser(opts Options, logger *slog.Logger, metrics *observability.Metrics) *Fuser {
	return &Fuser{opts: opts, logger: logger, metrics: metrics}
}

// Fuse returns the enriched table sorted by accident time. Rows without a
// timezone, with an impossible date, or preceding every transition are
// dropped and counted.
func (f *Fuser) Fuse(ctx context.Context, accidents []domain.Accident, ref Reference) ([]domain.FusedAccident, Stats, error) {
	start := time.Now()
	stats := Stats{Read: len(accidents)}

	zones, err := indexTimezones(ref.Timezones)
	if err != nil {
		return nil, stats, err
	}
	var overrides map[domain.CountyKey]domain.TimezoneOverride
	if f.opts.ApplyOverrides {
		overrides = indexOverrides(ref.Overrides)
	}

	fused := make([]domain.FusedAccident, 0, len(accidents))
	for _, a := range accidents {
		tz, ok := zones[a.StateAlpha]
		if !ok {
			stats.NoTimezone++
			continue
		}
		row := domain.FusedAccident{Accident: a, Standard: tz.Standard, DST: tz.DST}
		if o, ok := overrides[domain.CountyKey{State: a.State, County: a.County}]; ok && a.County != 0 {
			row.Standard, row.DST = o.Standard, o.DST
			stats.Overridden++
		}
		fused = append(fused, row)
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	fused, stats.InvalidTime = reconstructTimes(fused)
	f.logger.Info(fmt.Sprintf("removing %d/%d accidents with invalid time", stats.InvalidTime, len(fused)+stats.InvalidTime),
		"stage", stage,
		"reason", ReasonInvalidTime,
	)
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	transitions := sortedTransitions(ref.Transitions)
	f.warnNonAlternating(transitions)

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Time.Before(fused[j].Time)
	})

	out := fused[:0]
	for _, row := range fused {
		tr, ok := LatestAtOrBefore(transitions, row.Time)
		if !ok {
			stats.NoTransition++
			continue
		}
		row.Switch = tr.Time
		row.Delta = tr.Delta
		row.DaysSinceSwitch = domain.WholeDaysBetween(tr.Time, row.Time)
		row.ActiveDST = domain.DSTInactive
		if tr.Entering() {
			row.ActiveDST = domain.DSTActive
		}
		out = append(out, domain.DeriveSolarOffset(row, f.opts.BucketWidth))
	}
	stats.Kept = len(out)

	f.record(stats)
	f.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	f.logger.Info("accidents fused",
		"stage", stage,
		"read", stats.Read,
		"kept", stats.Kept,
		"dropped", stats.Dropped(),
		ReasonNoTimezone, stats.NoTimezone,
		ReasonInvalidTime, stats.InvalidTime,
		ReasonNoTransition, stats.NoTransition,
		"overridden", stats.Overridden,
		"bucket_width", f.opts.BucketWidth,
		"duration", time.Since(start),
	)
	return out, stats, nil
}

// LatestAtOrBefore returns the last transition whose time is not after t.
// transitions must be sorted by time.
func LatestAtOrBefore(transitions []domain.Transition, t time.Time) (domain.Transition, bool) {
	i := sort.Search(len(transitions), func(i int) bool {
		return transitions[i].Time.After(t)
	})
	if i == 0 {
		return domain.Transition{}, false
	}
	return transitions[i-1], true
}

// reconstructTimes fills Time and drops rows whose components are not a real
// calendar instant. It returns the surviving rows and the number dropped.
func reconstructTimes(rows []domain.FusedAccident) ([]domain.FusedAccident, int) {
	out := rows[:0]
	invalid := 0
	for _, row := range rows {
		t, err := domain.ReconstructTime(row.Year, row.Month, row.Day, row.Hour, row.Minute)
		if err != nil {
			invalid++
			continue
		}
		row.Time = t
		out = append(out, row)
	}
	return out, invalid
}

func indexTimezones(zones []domain.Timezone) (map[string]domain.Timezone, error) {
	idx := make(map[string]domain.Timezone, len(zones))
	for _, tz := range zones {
		if _, dup := idx[tz.StateAlpha]; dup {
			return nil, fmt.Errorf("duplicate timezone entry for state %q", tz.StateAlpha)
		}
		idx[tz.StateAlpha] = tz
	}
	return idx, nil
}

func indexOverrides(overrides []domain.TimezoneOverride) map[domain.CountyKey]domain.TimezoneOverride {
	idx := make(map[domain.CountyKey]domain.TimezoneOverride, len(overrides))
	for _, o := range overrides {
		idx[o.Key()] = o
	}
	return idx
}

func sortedTransitions(in []domain.Transition) []domain.Transition {
	out := make([]domain.Transition, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	return out
}

// warnNonAlternating logs consecutive transitions in the same direction. The
// list is assumed to alternate; a repeat usually means a missing row.
func (f *Fuser) warnNonAlternating(transitions []domain.Transition) {
	for i := 1; i < len(transitions); i++ {
		if transitions[i].Delta == transitions[i-1].Delta {
			f.logger.Warn("consecutive DST transitions in the same direction",
				"stage", stage,
				"previous", transitions[i-1].Time,
				"current", transitions[i].Time,
				"delta", transitions[i].Delta,
			)
		}
	}
}

func (f *Fuser) record(s Stats) {
	f.metrics.RowsRead.WithLabelValues(stage).Add(float64(s.Read))
	f.metrics.RowsDropped.WithLabelValues(stage, ReasonNoTimezone).Add(float64(s.NoTimezone))
	f.metrics.RowsDropped.WithLabelValues(stage, ReasonInvalidTime).Add(float64(s.InvalidTime))
	f.metrics.RowsDropped.WithLabelValues(stage, ReasonNoTransition).Add(float64(s.NoTransition))
}
