package fusion

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/dst-accident-etl/internal/domain"
	"github.com/couchcryptid/dst-accident-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d, h, mi int) time.Time {
	return time.Date(y, m, d, h, mi, 0, 0, time.UTC)
}

var testReference = Reference{
	Timezones: []domain.Timezone{
		{StateAlpha: "CA", Standard: -120, DST: -105},
		{StateAlpha: "NY", Standard: -75, DST: -60},
		{StateAlpha: "TX", Standard: -90, DST: -75},
	},
	Overrides: []domain.TimezoneOverride{
		{State: 48, County: 141, StateAlpha: "TX", CountyName: "El Paso", Standard: -105, DST: -90},
	},
	Transitions: []domain.Transition{
		{Time: date(2010, time.March, 14, 2, 0), Delta: 1},
		{Time: date(2010, time.November, 7, 2, 0), Delta: -1},
		{Time: date(2011, time.March, 13, 2, 0), Delta: 1},
	},
}

func newTestFuser(opts Options) (*Fuser, *observability.Metrics) {
	if opts.BucketWidth == 0 {
		opts.BucketWidth = 60
	}
	metrics := observability.NewMetrics()
	return NewFuser(opts, slog.New(slog.NewTextHandler(io.Discard, nil)), metrics), metrics
}

func accident(alpha string, state, county, y, m, d, h, mi, stCase int, lat, lng float64) domain.Accident {
	return domain.Accident{
		State: state, StateAlpha: alpha, County: county,
		Year: y, Month: m, Day: d, Hour: h, Minute: mi, Case: stCase,
		Lat: lat, Lng: lng,
	}
}

func TestFuse_DayAfterSpringForward(t *testing.T) {
	f, _ := newTestFuser(Options{})
	in := []domain.Accident{accident("NY", 36, 61, 2010, 3, 15, 8, 0, 1, 40.7, -74.0)}

	out, stats, err := f.Fuse(context.Background(), in, testReference)
	require.NoError(t, err)
	require.Len(t, out, 1)

	row := out[0]
	assert.Equal(t, date(2010, time.March, 15, 8, 0), row.Time)
	assert.Equal(t, date(2010, time.March, 14, 2, 0), row.Switch)
	assert.Equal(t, 1, row.Delta)
	assert.Equal(t, domain.DSTActive, row.ActiveDST)
	assert.Equal(t, 1, row.DaysSinceSwitch)
	assert.InDelta(t, -14.0, row.LongitudeOffset, 1e-9)
	assert.Equal(t, -60.0, row.OffsetMinutes)
	assert.Equal(t, Stats{Read: 1, Kept: 1}, stats)
}

func TestFuse_AfterFallBackUsesStandardMeridian(t *testing.T) {
	f, _ := newTestFuser(Options{})
	in := []domain.Accident{accident("CA", 6, 37, 2010, 12, 1, 12, 0, 1, 34.0, -118.0)}

	out, _, err := f.Fuse(context.Background(), in, testReference)
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, domain.DSTInactive, out[0].ActiveDST)
	assert.Equal(t, -1, out[0].Delta)
	assert.Equal(t, 24, out[0].DaysSinceSwitch)
	assert.InDelta(t, 2.0, out[0].LongitudeOffset, 1e-9)
	assert.Equal(t, 0.0, out[0].OffsetMinutes)
}

func TestFuse_TransitionInstantMatchesItself(t *testing.T) {
	f, _ := newTestFuser(Options{})
	in := []domain.Accident{accident("NY", 36, 61, 2010, 11, 7, 2, 0, 1, 40.7, -74.0)}

	out, _, err := f.Fuse(context.Background(), in, testReference)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, -1, out[0].Delta)
	assert.Equal(t, 0, out[0].DaysSinceSwitch)
}

func TestFuse_DropsRowsBeforeFirstTransition(t *testing.T) {
	f, metrics := newTestFuser(Options{})
	in := []domain.Accident{
		accident("NY", 36, 61, 2009, 6, 1, 8, 0, 1, 40.7, -74.0),
		accident("NY", 36, 61, 2010, 6, 1, 8, 0, 2, 40.7, -74.0),
	}

	out, stats, err := f.Fuse(context.Background(), in, testReference)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 2, out[0].Case)
	assert.Equal(t, 1, stats.NoTransition)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RowsDropped.WithLabelValues(stage, ReasonNoTransition)))
}

func TestFuse_DropsRowsWithoutTimezone(t *testing.T) {
	f, _ := newTestFuser(Options{})
	in := []domain.Accident{
		accident("", 72, 0, 2010, 6, 1, 8, 0, 1, 30.0, -100.0),
		accident("NY", 36, 61, 2010, 6, 1, 8, 0, 2, 40.7, -74.0),
	}

	out, stats, err := f.Fuse(context.Background(), in, testReference)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 1, stats.NoTimezone)
}

func TestFuse_DropsInvalidCalendarDates(t *testing.T) {
	f, metrics := newTestFuser(Options{})
	in := []domain.Accident{
		accident("NY", 36, 61, 2010, 4, 31, 8, 0, 1, 40.7, -74.0),
		accident("NY", 36, 61, 2010, 13, 1, 8, 0, 2, 40.7, -74.0),
		accident("NY", 36, 61, 2010, 4, 30, 8, 0, 3, 40.7, -74.0),
	}

	out, stats, err := f.Fuse(context.Background(), in, testReference)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 3, out[0].Case)
	assert.Equal(t, 2, stats.InvalidTime)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RowsDropped.WithLabelValues(stage, ReasonInvalidTime)))
}

func TestFuse_SortsByTimeAndDaysAreNonNegative(t *testing.T) {
	f, _ := newTestFuser(Options{})
	in := []domain.Accident{
		accident("NY", 36, 61, 2011, 1, 5, 8, 0, 1, 40.7, -74.0),
		accident("CA", 6, 37, 2010, 3, 14, 1, 59, 2, 34.0, -118.0),
		accident("NY", 36, 61, 2010, 7, 4, 20, 0, 3, 40.7, -74.0),
		accident("TX", 48, 201, 2011, 3, 13, 3, 0, 4, 29.7, -95.3),
	}

	out, stats, err := f.Fuse(context.Background(), in, testReference)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.NoTransition)
	require.Len(t, out, 3)

	for i := 1; i < len(out); i++ {
		assert.False(t, out[i].Time.Before(out[i-1].Time))
	}
	for _, row := range out {
		assert.GreaterOrEqual(t, row.DaysSinceSwitch, 0)
		assert.False(t, row.Switch.After(row.Time))
		assert.Equal(t, row.ActiveDST == domain.DSTActive, row.Delta == 1)
	}
}

func TestFuse_OverridesOnlyWhenEnabled(t *testing.T) {
	in := []domain.Accident{accident("TX", 48, 141, 2010, 12, 1, 12, 0, 1, 31.8, -106.4)}

	off, _ := newTestFuser(Options{})
	out, stats, err := off.Fuse(context.Background(), in, testReference)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, -90.0, out[0].Standard)
	assert.Zero(t, stats.Overridden)

	on, _ := newTestFuser(Options{ApplyOverrides: true})
	out, stats, err = on.Fuse(context.Background(), in, testReference)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, -105.0, out[0].Standard)
	assert.Equal(t, -90.0, out[0].DST)
	assert.Equal(t, 1, stats.Overridden)
	assert.InDelta(t, -1.4, out[0].LongitudeOffset, 1e-9)
}

func TestFuse_DuplicateTimezoneIsError(t *testing.T) {
	f, _ := newTestFuser(Options{})
	ref := testReference
	ref.Timezones = append([]domain.Timezone{{StateAlpha: "NY"}}, ref.Timezones...)

	_, _, err := f.Fuse(context.Background(), nil, ref)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"NY"`)
}

func TestFuse_UnsortedTransitionsAreSorted(t *testing.T) {
	f, _ := newTestFuser(Options{})
	ref := testReference
	ref.Transitions = []domain.Transition{
		testReference.Transitions[2],
		testReference.Transitions[0],
		testReference.Transitions[1],
	}
	in := []domain.Accident{accident("NY", 36, 61, 2010, 6, 1, 8, 0, 1, 40.7, -74.0)}

	out, _, err := f.Fuse(context.Background(), in, ref)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, date(2010, time.March, 14, 2, 0), out[0].Switch)
	assert.Equal(t, testReference.Transitions[2], ref.Transitions[0], "input slice must not be reordered")
}

func TestFuse_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f, _ := newTestFuser(Options{})
	_, _, err := f.Fuse(ctx, []domain.Accident{accident("NY", 36, 61, 2010, 6, 1, 8, 0, 1, 40.7, -74.0)}, testReference)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLatestAtOrBefore(t *testing.T) {
	tr := testReference.Transitions
	tests := []struct {
		name   string
		at     time.Time
		want   domain.Transition
		wantOK bool
	}{
		{"before first", date(2010, time.January, 1, 0, 0), domain.Transition{}, false},
		{"exactly first", tr[0].Time, tr[0], true},
		{"between", date(2010, time.August, 1, 0, 0), tr[0], true},
		{"one minute before second", tr[1].Time.Add(-time.Minute), tr[0], true},
		{"after last", date(2020, time.January, 1, 0, 0), tr[2], true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := LatestAtOrBefore(tr, tt.at)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := LatestAtOrBefore(nil, date(2010, time.January, 1, 0, 0))
	assert.False(t, ok)
}
