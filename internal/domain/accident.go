package domain

import "time"

// DST flag values carried by FusedAccident.ActiveDST.
const (
	DSTActive   = "yes"
	DSTInactive = "no"
)

// State is one row of the derived state list.
type State struct {
	Code  int
	Alpha string
}

// County is a county centroid from the derived county list.
type County struct {
	State      int
	County     int
	StateAlpha string
	Name       string
	Lat        float64
	Lng        float64
}

// CountyKey identifies a county within a state.
type CountyKey struct {
	State  int
	County int
}

// Key returns the (state, county) join key.
func (c County) Key() CountyKey {
	return CountyKey{State: c.State, County: c.County}
}

// Timezone holds the legal meridians (degrees of longitude) of a state,
// outside and during DST.
type Timezone struct {
	StateAlpha string
	Standard   float64
	DST        float64
	Note       string
}

// TimezoneOverride replaces the state meridians for a single county.
type TimezoneOverride struct {
	State      int
	County     int
	StateAlpha string
	CountyName string
	Standard   float64
	DST        float64
}

// Key returns the (state, county) join key.
func (o TimezoneOverride) Key() CountyKey {
	return CountyKey{State: o.State, County: o.County}
}

// Transition is a dated DST switch. Delta is +1 when clocks enter DST and -1
// when they leave it.
type Transition struct {
	Time  time.Time
	Delta int
}

// Entering reports whether the transition starts DST.
func (t Transition) Entering() bool {
	return t.Delta == 1
}

// Accident is the unified, cleaned accident record shared by both raw schema
// eras. County is 0 when the raw schema does not carry one.
type Accident struct {
	State      int     `json:"state"`
	StateAlpha string  `json:"state_alpha"`
	County     int     `json:"county,omitempty"`
	Year       int     `json:"year"`
	Month      int     `json:"month"`
	Day        int     `json:"day"`
	Hour       int     `json:"hour"`
	Minute     int     `json:"minute"`
	Case       int     `json:"st_case"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
}

// ID returns a key unique across the whole table: ST_CASE is only unique
// within a state and year.
func (a Accident) ID() string {
	return caseID(a.State, a.Year, a.Case)
}

// FusedAccident is an accident enriched with its jurisdiction meridians, the
// preceding DST transition, and the derived solar offset.
type FusedAccident struct {
	Accident

	Time            time.Time `json:"time"`
	Standard        float64   `json:"tz_no_dst"`
	DST             float64   `json:"tz_dst"`
	Switch          time.Time `json:"dst_switch"`
	Delta           int       `json:"dst_delta"`
	ActiveDST       string    `json:"dst"`
	DaysSinceSwitch int       `json:"days_from_dst_switch"`
	LongitudeOffset float64   `json:"offset_lng"`
	OffsetMinutes   float64   `json:"offset_minutes"`
}

// Meridian returns the legal meridian in force at the accident time.
func (f FusedAccident) Meridian() float64 {
	if f.ActiveDST == DSTActive {
		return f.DST
	}
	return f.Standard
}
