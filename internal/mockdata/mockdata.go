// Package mockdata generates a small, deterministic raw dataset in the same
// layout as the real inputs: the GNIS feature file, the meridian tables, the
// DST transition list and yearly accident extracts in both schema eras.
package mockdata

import (
	"encoding/csv"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Options controls what Write generates.
type Options struct {
	FirstYear      int
	LateSchemaYear int
	LastYear       int
	PerYear        int // regular accidents per year, before the edge-case rows
	Seed           uint64
}

// DefaultOptions spans two years of each schema era.
var DefaultOptions = Options{
	FirstYear:      1999,
	LateSchemaYear: 2001,
	LastYear:       2002,
	PerYear:        200,
	Seed:           42,
}

// Expected tallies the edge-case rows planted in the dataset, so callers can
// check drop counters against them.
type Expected struct {
	Rows        int // every accident row written
	Excluded    int
	UnknownTime int
	OutOfBounds int
	InvalidTime int
}

type county struct {
	state, code int
	alpha, name string
	lat, lng    float64
}

// ExcludedState is the state code planted for the exclusion filter. It is in
// the default exclusion list.
const ExcludedState = 4

var counties = []county{
	{6, 37, "CA", "Los Angeles", 34.3, -118.2},
	{6, 73, "CA", "San Diego", 33.0, -116.7},
	{36, 61, "NY", "New York", 40.78, -73.97},
	{36, 29, "NY", "Erie", 42.76, -78.78},
	{48, 201, "TX", "Harris", 29.86, -95.39},
	{48, 141, "TX", "El Paso", 31.77, -106.24},
	{ExcludedState, 13, "AZ", "Maricopa", 33.3, -112.5},
}

var timezones = [][]string{
	{"STATE_ALPHA", "TZ_NO_DST", "TZ_DST", "NOTE"},
	{"AZ", "-105", "-105", "no DST outside the Navajo Nation"},
	{"CA", "-120", "-105", ""},
	{"NY", "-75", "-60", ""},
	{"TX", "-90", "-75", "El Paso and Hudspeth on Mountain time"},
}

var overrides = [][]string{
	{"STATE", "COUNTY", "STATE_ALPHA", "COUNTY_NAME", "TZ_NO_DST", "TZ_DST"},
	{"48", "141", "TX", "El Paso", "-105", "-90"},
}

// Write generates the dataset into dir.
func Write(dir string, opts Options) (Expected, error) {
	var exp Expected
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return exp, err
	}
	if err := writeGeolocation(filepath.Join(dir, "geolocation.psv")); err != nil {
		return exp, err
	}
	if err := writeCSV(filepath.Join(dir, "timezones.csv"), ',', timezones); err != nil {
		return exp, err
	}
	if err := writeCSV(filepath.Join(dir, "counties_timezone_override.csv"), ',', overrides); err != nil {
		return exp, err
	}
	if err := writeCSV(filepath.Join(dir, "dst.csv"), ',', transitions(opts.FirstYear-1, opts.LastYear)); err != nil {
		return exp, err
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	for year := opts.FirstYear; year <= opts.LastYear; year++ {
		late := year >= opts.LateSchemaYear
		records := accidents(rng, year, late, opts.PerYear, &exp)
		if err := writeCSV(filepath.Join(dir, fmt.Sprintf("a%d.csv", year)), ',', records); err != nil {
			return exp, err
		}
	}
	return exp, nil
}

// writeGeolocation writes two features per county placed symmetrically around
// its centroid, plus a feature with no county code.
func writeGeolocation(path string) error {
	records := [][]string{{
		"FEATURE_ID", "FEATURE_NAME", "FEATURE_CLASS", "STATE_ALPHA", "STATE_NUMERIC",
		"COUNTY_NAME", "COUNTY_NUMERIC", "PRIM_LAT_DEC", "PRIM_LONG_DEC",
	}}
	id := 1
	for _, c := range counties {
		for _, d := range []float64{-0.1, 0.1} {
			records = append(records, []string{
				strconv.Itoa(id), fmt.Sprintf("%s Feature %d", c.name, id), "Populated Place",
				c.alpha, strconv.Itoa(c.state), c.name, strconv.Itoa(c.code),
				formatFloat(c.lat + d), formatFloat(c.lng - d),
			})
			id++
		}
	}
	records = append(records, []string{strconv.Itoa(id), "Offshore Bank", "Bar", "CA", "6", "", "", "33.5", "-119.5"})
	return writeCSV(path, '|', records)
}

// transitions lists US DST switches for the given years under the rule in
// force each year.
func transitions(first, last int) [][]string {
	records := [][]string{{"DATE", "DST_DELTA"}}
	for y := first; y <= last; y++ {
		var start, end time.Time
		switch {
		case y >= 2007:
			start = nthSunday(y, time.March, 2)
			end = nthSunday(y, time.November, 1)
		case y >= 1987:
			start = nthSunday(y, time.April, 1)
			end = lastSunday(y, time.October)
		default:
			start = lastSunday(y, time.April)
			end = lastSunday(y, time.October)
		}
		records = append(records,
			[]string{start.Add(2 * time.Hour).Format("2006-01-02 15:04"), "1"},
			[]string{end.Add(2 * time.Hour).Format("2006-01-02 15:04"), "-1"},
		)
	}
	return records
}

func nthSunday(year int, month time.Month, n int) time.Time {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for t.Weekday() != time.Sunday {
		t = t.AddDate(0, 0, 1)
	}
	return t.AddDate(0, 0, 7*(n-1))
}

func lastSunday(year int, month time.Month) time.Time {
	t := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	for t.Weekday() != time.Sunday {
		t = t.AddDate(0, 0, -1)
	}
	return t
}

func accidents(rng *rand.Rand, year int, late bool, n int, exp *Expected) [][]string {
	var records [][]string
	if late {
		records = append(records, []string{"STATE", "ST_CASE", "COUNTY", "MONTH", "DAY", "HOUR", "MINUTE", "LATITUDE", "LONGITUD"})
	} else {
		records = append(records, []string{"STATE", "COUNTY", "MONTH", "DAY", "HOUR", "MINUTE", "ST_CASE", "PERSONS"})
	}

	seq := 0
	add := func(c county, month, day, hour, minute int, lat, lng float64) {
		seq++
		stCase := c.state*10000 + seq
		if late {
			records = append(records, []string{
				strconv.Itoa(c.state), strconv.Itoa(stCase), strconv.Itoa(c.code),
				strconv.Itoa(month), strconv.Itoa(day), strconv.Itoa(hour), strconv.Itoa(minute),
				formatFloat(lat), formatFloat(lng),
			})
		} else {
			records = append(records, []string{
				strconv.Itoa(c.state), strconv.Itoa(c.code),
				strconv.Itoa(month), strconv.Itoa(day), strconv.Itoa(hour), strconv.Itoa(minute),
				strconv.Itoa(stCase), strconv.Itoa(1 + rng.IntN(4)),
			})
		}
		exp.Rows++
	}

	regular := counties[:len(counties)-1]
	for range n {
		c := regular[rng.IntN(len(regular))]
		month := 1 + rng.IntN(12)
		day := 1 + rng.IntN(daysIn(year, time.Month(month)))
		lat := c.lat + (rng.Float64()-0.5)*0.2
		lng := c.lng + (rng.Float64()-0.5)*0.2
		add(c, month, day, rng.IntN(24), rng.IntN(60), round4(lat), round4(lng))
	}

	ny := counties[2]
	add(ny, 6, 1, 99, 10, ny.lat, ny.lng)
	add(ny, 6, 1, 24, 0, ny.lat, ny.lng)
	add(ny, 6, 1, 12, 99, ny.lat, ny.lng)
	exp.UnknownTime += 3

	add(counties[len(counties)-1], 6, 1, 12, 0, 33.4, -112.0)
	exp.Excluded++

	add(ny, 2, 30, 12, 0, ny.lat, ny.lng)
	exp.InvalidTime++

	if late {
		add(ny, 6, 1, 12, 0, 77.7777, -888.8888)
		exp.OutOfBounds++
	}
	return records
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func round4(v float64) float64 {
	return float64(int64(v*10000)) / 10000
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeCSV(path string, comma rune, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	w.Comma = comma
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
