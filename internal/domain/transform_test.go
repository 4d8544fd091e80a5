package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconstructTime(t *testing.T) {
	t.Run("valid components", func(t *testing.T) {
		got, err := ReconstructTime(1999, 7, 4, 23, 59)
		require.NoError(t, err)
		assert.Equal(t, time.Date(1999, time.July, 4, 23, 59, 0, 0, time.UTC), got)
	})

	t.Run("leap day", func(t *testing.T) {
		got, err := ReconstructTime(2000, 2, 29, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, 29, got.Day())
	})

	tests := []struct {
		name                            string
		year, month, day, hour, minute int
	}{
		{"april 31", 1990, 4, 31, 12, 0},
		{"feb 29 non leap", 1999, 2, 29, 12, 0},
		{"month 13", 1990, 13, 1, 12, 0},
		{"month 0", 1990, 0, 1, 12, 0},
		{"day 0", 1990, 1, 0, 12, 0},
		{"day 99", 1990, 1, 99, 12, 0},
		{"hour 24", 1990, 1, 1, 24, 0},
		{"minute 60", 1990, 1, 1, 12, 60},
		{"negative minute", 1990, 1, 1, 12, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReconstructTime(tt.year, tt.month, tt.day, tt.hour, tt.minute)
			require.ErrorIs(t, err, ErrInvalidTime)
		})
	}
}

func TestWholeDaysBetween(t *testing.T) {
	base := time.Date(2010, time.March, 14, 2, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		t        time.Time
		expected int
	}{
		{"same instant", base, 0},
		{"just under a day", base.Add(23*time.Hour + 59*time.Minute), 0},
		{"exactly one day", base.Add(24 * time.Hour), 1},
		{"ten and a half days", base.Add(252 * time.Hour), 10},
		{"one minute before", base.Add(-time.Minute), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, WholeDaysBetween(base, tt.t))
		})
	}
}

func TestBucket(t *testing.T) {
	tests := []struct {
		name     string
		minutes  float64
		width    float64
		expected float64
	}{
		{"small negative rounds to zero", -7, 60, 0},
		{"above half rounds up", 31, 60, 60},
		{"below half rounds down", 29, 60, 0},
		{"tie rounds up", 30, 60, 60},
		{"negative tie rounds toward positive", -30, 60, 0},
		{"just past negative tie", -30.01, 60, -60},
		{"negative hundred", -100, 60, -120},
		{"thirty minute width", 44, 30, 30},
		{"thirty minute width tie", 45, 30, 60},
		{"thirty minute width negative", -50, 30, -60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Bucket(tt.minutes, tt.width))
		})
	}
}

func TestBucket_Idempotent(t *testing.T) {
	widths := []float64{1, 15, 30, 60, 90}
	for _, width := range widths {
		for m := -300.0; m <= 300; m += 7.3 {
			once := Bucket(m, width)
			assert.Equal(t, once, Bucket(once, width), "width=%v minutes=%v", width, m)
		}
	}
}

func TestSolarMinutes(t *testing.T) {
	assert.Equal(t, 60.0, SolarMinutes(15))
	assert.Equal(t, -100.0, SolarMinutes(-25))
	assert.Equal(t, 0.0, SolarMinutes(0))
}

func TestDeriveSolarOffset(t *testing.T) {
	t.Run("DST meridian during DST", func(t *testing.T) {
		f := FusedAccident{
			Accident:  Accident{Lng: -100},
			Standard:  -90,
			DST:       -75,
			ActiveDST: DSTActive,
		}

		got := DeriveSolarOffset(f, 60)

		assert.Equal(t, -25.0, got.LongitudeOffset)
		assert.Equal(t, -120.0, got.OffsetMinutes)
	})

	t.Run("standard meridian outside DST", func(t *testing.T) {
		f := FusedAccident{
			Accident:  Accident{Lng: -100},
			Standard:  -90,
			DST:       -75,
			ActiveDST: DSTInactive,
		}

		got := DeriveSolarOffset(f, 60)

		assert.Equal(t, -10.0, got.LongitudeOffset)
		assert.Equal(t, -60.0, got.OffsetMinutes)
	})

	t.Run("thirty minute buckets", func(t *testing.T) {
		f := FusedAccident{
			Accident:  Accident{Lng: -100},
			Standard:  -90,
			DST:       -75,
			ActiveDST: DSTInactive,
		}

		got := DeriveSolarOffset(f, 30)

		assert.Equal(t, -30.0, got.OffsetMinutes)
	})
}

func TestBounds_Contains(t *testing.T) {
	tests := []struct {
		name     string
		lat, lng float64
		expected bool
	}{
		{"Austin", 30.27, -97.74, true},
		{"Anchorage", 61.2, -149.9, true},
		{"Honolulu", 21.3, -157.86, true},
		{"just inside west edge", 30, -174.999, true},
		{"western Aleutians", 51.9, -176.6, false},
		{"east of box", 45, -59.5, false},
		{"null island", 0, 0, false},
		{"lat placeholder", 77.7777, -97, false},
		{"lng placeholder", 30, 777.7777, false},
		{"lat on lower edge", 20, -97, false},
		{"lat on upper edge", 75, -97, false},
		{"lng on west edge", 30, -175, false},
		{"lng on east edge", 30, -60, false},
		{"NaN lat", math.NaN(), -97, false},
		{"NaN lng", 30, math.NaN(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ContinentalBounds.Contains(tt.lat, tt.lng))
		})
	}
}

func TestAccident_ID(t *testing.T) {
	a := Accident{State: 6, Year: 1999, Case: 60123}
	assert.Equal(t, "6-1999-60123", a.ID())
}

func TestAccident_DayMinute(t *testing.T) {
	assert.Equal(t, 0, Accident{}.DayMinute())
	assert.Equal(t, 23*60+59, Accident{Hour: 23, Minute: 59}.DayMinute())
}
