package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidTime is returned when date/time components do not form a real
// calendar instant.
var ErrInvalidTime = errors.New("invalid accident time")

// degreesPerHour is the longitude swept by the sun in one hour.
const degreesPerHour = 15.0

// ReconstructTime assembles a wall-clock timestamp from the five FARS
// components. Components are validated rather than normalized, so April 31
// fails instead of rolling over to May 1. The result carries no zone; UTC is
// used as a neutral container.
func ReconstructTime(year, month, day, hour, minute int) (time.Time, error) {
	if month < 1 || month > 12 || day < 1 || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("%w: %04d-%02d-%02d %02d:%02d", ErrInvalidTime, year, month, day, hour, minute)
	}
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, fmt.Errorf("%w: %04d-%02d-%02d %02d:%02d", ErrInvalidTime, year, month, day, hour, minute)
	}
	return t, nil
}

// WholeDaysBetween returns the number of whole days from since to t, rounded
// toward negative infinity.
func WholeDaysBetween(since, t time.Time) int {
	const day = 24 * time.Hour
	d := t.Sub(since)
	days := d / day
	if d%day < 0 {
		days--
	}
	return int(days)
}

// LongitudeOffset returns the degrees between a longitude and a legal meridian.
// Negative values lie west of the meridian, where the sun runs behind the clock.
func LongitudeOffset(lng, meridian float64) float64 {
	return lng - meridian
}

// SolarMinutes converts a longitude offset in degrees to minutes of solar time.
func SolarMinutes(offset float64) float64 {
	return offset * 60.0 / degreesPerHour
}

// Bucket quantizes minutes to the nearest multiple of width. Ties round
// toward positive infinity: Bucket(30, 60) == 60, Bucket(-30, 60) == 0.
func Bucket(minutes, width float64) float64 {
	return math.Floor((minutes+width/2)/width) * width
}

// DeriveSolarOffset fills LongitudeOffset and OffsetMinutes from the meridian
// selected by ActiveDST.
func DeriveSolarOffset(f FusedAccident, width float64) FusedAccident {
	f.LongitudeOffset = LongitudeOffset(f.Lng, f.Meridian())
	f.OffsetMinutes = Bucket(SolarMinutes(f.LongitudeOffset), width)
	return f
}

// DayMinute returns the minutes elapsed since local midnight.
func (a Accident) DayMinute() int {
	return a.Hour*60 + a.Minute
}

func caseID(state, year, stCase int) string {
	return fmt.Sprintf("%d-%d-%d", state, year, stCase)
}
