package analysis

import (
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/dst-accident-etl/internal/domain"
	"github.com/sj14/astral/pkg/astral"
)

// MaxEquationOfTime bounds, in minutes, how far true solar noon drifts from
// mean solar noon over a year.
const MaxEquationOfTime = 16.5

// SolarNoonOffset returns the minutes by which clock noon under the given
// meridian trails true solar noon at (lat, lng) on date. It is measured from
// the sun's position, so it agrees with the longitude-derived offset up to the
// equation of time. Solar noon is taken as the midpoint of sunrise and sunset,
// which fails where the sun does not rise or set that day.
func SolarNoonOffset(lat, lng, meridian float64, date time.Time) (float64, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	observer := astral.Observer{Latitude: lat, Longitude: lng}

	sunrise, err := astral.Sunrise(observer, day)
	if err != nil {
		return 0, fmt.Errorf("sunrise at (%g, %g) on %s: %w", lat, lng, day.Format(time.DateOnly), err)
	}
	sunset, err := astral.Sunset(observer, day)
	if err != nil {
		return 0, fmt.Errorf("sunset at (%g, %g) on %s: %w", lat, lng, day.Format(time.DateOnly), err)
	}
	// West of Greenwich sunset can land on the next UTC day.
	for !sunset.After(sunrise) {
		sunset = sunset.Add(24 * time.Hour)
	}
	noon := sunrise.Add(sunset.Sub(sunrise) / 2)

	// Clock noon under a meridian m is 12:00 UTC shifted by m/15 hours.
	clockNoon := day.Add(12*time.Hour - time.Duration(domain.SolarMinutes(meridian)*float64(time.Minute)))

	diff := clockNoon.Sub(noon).Minutes()
	return math.Remainder(diff, 24*60), nil
}

// SunAgreement reports whether a fused row's bucketed offset is consistent
// with the sun's position on the accident date. The tolerance covers half a
// bucket, the equation of time and one minute of rounding.
func SunAgreement(f domain.FusedAccident, width float64) (bool, float64, error) {
	got, err := SolarNoonOffset(f.Lat, f.Lng, f.Meridian(), f.Time)
	if err != nil {
		return false, 0, err
	}
	tolerance := width/2 + MaxEquationOfTime + 1
	return math.Abs(got-f.OffsetMinutes) <= tolerance, got, nil
}
