// Package reference loads the static lookup tables the pipeline joins
// accidents against: states, county centroids, state meridians, county
// meridian overrides and DST transition dates.
//
// Loaders only normalize structure and types. Missing columns and
// non-coercible cells are reported as *SchemaError.
package reference

import (
	"fmt"
	"sort"
	"time"

	"github.com/couchcryptid/dst-accident-etl/internal/domain"
)

// Column names of the reference files.
const (
	colState      = "STATE"
	colCounty     = "COUNTY"
	colStateAlpha = "STATE_ALPHA"
	colCountyName = "COUNTY_NAME"
	colLat        = "LAT"
	colLng        = "LNG"
	colTZNoDST    = "TZ_NO_DST"
	colTZDST      = "TZ_DST"
	colNote       = "NOTE"
	colDate       = "DATE"
	colDSTDelta   = "DST_DELTA"
)

// transitionLayouts are the accepted DATE formats of the transition list.
var transitionLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"1/2/2006",
	"1/2/2006 15:04",
}

// LoadStates reads the derived state list (STATE, STATE_ALPHA).
func LoadStates(path string) ([]domain.State, error) {
	t, err := Open(path, 0)
	if err != nil {
		return nil, err
	}
	defer t.Close()

	if err := t.Require(colState, colStateAlpha); err != nil {
		return nil, err
	}

	var states []domain.State
	for t.Next() {
		states = append(states, domain.State{
			Code:  t.Int(colState),
			Alpha: t.String(colStateAlpha),
		})
	}
	if err := t.Err(); err != nil {
		return nil, err
	}
	return states, nil
}

// LoadCounties reads the derived county centroid list
// (STATE, COUNTY, STATE_ALPHA, COUNTY_NAME, LAT, LNG).
func LoadCounties(path string) ([]domain.County, error) {
	t, err := Open(path, 0)
	if err != nil {
		return nil, err
	}
	defer t.Close()

	if err := t.Require(colState, colCounty, colStateAlpha, colCountyName, colLat, colLng); err != nil {
		return nil, err
	}

	var counties []domain.County
	for t.Next() {
		counties = append(counties, domain.County{
			State:      t.Int(colState),
			County:     t.Int(colCounty),
			StateAlpha: t.String(colStateAlpha),
			Name:       t.String(colCountyName),
			Lat:        t.Float(colLat),
			Lng:        t.Float(colLng),
		})
	}
	if err := t.Err(); err != nil {
		return nil, err
	}
	return counties, nil
}

// LoadTimezones reads the per-state meridian table
// (STATE_ALPHA, TZ_NO_DST, TZ_DST, NOTE). Both meridians are required.
func LoadTimezones(path string) ([]domain.Timezone, error) {
	t, err := Open(path, 0)
	if err != nil {
		return nil, err
	}
	defer t.Close()

	if err := t.Require(colStateAlpha, colTZNoDST, colTZDST); err != nil {
		return nil, err
	}

	var zones []domain.Timezone
	for t.Next() {
		zones = append(zones, domain.Timezone{
			StateAlpha: t.String(colStateAlpha),
			Standard:   t.Float(colTZNoDST),
			DST:        t.Float(colTZDST),
			Note:       t.String(colNote),
		})
	}
	if err := t.Err(); err != nil {
		return nil, err
	}
	return zones, nil
}

// LoadTimezoneOverrides reads per-county meridian exceptions
// (STATE, COUNTY, STATE_ALPHA, COUNTY_NAME, TZ_NO_DST, TZ_DST).
func LoadTimezoneOverrides(path string) ([]domain.TimezoneOverride, error) {
	t, err := Open(path, 0)
	if err != nil {
		return nil, err
	}
	defer t.Close()

	if err := t.Require(colState, colCounty, colStateAlpha, colTZNoDST, colTZDST); err != nil {
		return nil, err
	}

	var overrides []domain.TimezoneOverride
	for t.Next() {
		overrides = append(overrides, domain.TimezoneOverride{
			State:      t.Int(colState),
			County:     t.Int(colCounty),
			StateAlpha: t.String(colStateAlpha),
			CountyName: t.String(colCountyName),
			Standard:   t.Float(colTZNoDST),
			DST:        t.Float(colTZDST),
		})
	}
	if err := t.Err(); err != nil {
		return nil, err
	}
	return overrides, nil
}

// LoadTransitions reads the DST switch list (DATE, DST_DELTA) and returns it
// sorted by time.
func LoadTransitions(path string) ([]domain.Transition, error) {
	t, err := Open(path, 0)
	if err != nil {
		return nil, err
	}
	defer t.Close()

	if err := t.Require(colDate, colDSTDelta); err != nil {
		return nil, err
	}

	var transitions []domain.Transition
	for t.Next() {
		raw := t.String(colDate)
		at, err := parseTransitionDate(raw)
		if err != nil {
			return nil, &SchemaError{File: path, Column: colDate, Line: t.Line(), Value: raw, Err: err}
		}
		delta := t.Int(colDSTDelta)
		if t.Err() == nil && delta != 1 && delta != -1 {
			return nil, &SchemaError{File: path, Column: colDSTDelta, Line: t.Line(), Value: t.String(colDSTDelta), Err: fmt.Errorf("want +1 or -1")}
		}
		transitions = append(transitions, domain.Transition{Time: at, Delta: delta})
	}
	if err := t.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(transitions, func(i, j int) bool {
		return transitions[i].Time.Before(transitions[j].Time)
	})
	return transitions, nil
}

func parseTransitionDate(s string) (time.Time, error) {
	for _, layout := range transitionLayouts {
		if at, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return at, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format")
}
