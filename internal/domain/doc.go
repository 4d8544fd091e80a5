// Package domain models traffic accident records and the reference data used
// to place each accident relative to solar time.
//
// # Data Sources
//
// Accident records come from the NHTSA Fatality Analysis Reporting System
// (FARS), one accident file per year. Two schema eras exist:
//
//	1975–2000: STATE, COUNTY, MONTH, DAY, HOUR, MINUTE, ST_CASE, ...
//	           no coordinates; located by the county centroid.
//	2001–    : STATE, MONTH, DAY, HOUR, MINUTE, ST_CASE, LATITUDE, LONGITUD, ...
//	           coordinates recorded per accident.
//
// County centroids are derived from the USGS GNIS national file
// (pipe-delimited), averaging the primary coordinates of every feature in a
// county. Legal time meridians per state come from a hand-maintained table,
// and DST transition dates from a list of dated +1/-1 switches.
//
// # FARS Conventions
//
// Unknown values:
//
//	HOUR 99 and MINUTE 99 mean "unknown". HOUR 24 appears in older years
//	and is ambiguous (midnight of which day?), so it is treated as unknown.
//	Coordinates such as 77.7777 / 777.7777 / 88.8888 / 99.9999 are
//	"not reported" placeholders and fall outside the continental bounding box.
//
// ST_CASE is unique within a state and year only.
//
// # Solar Offset
//
// Legal clock time is tied to a meridian (e.g. -75° for Eastern standard time,
// -60° once DST shifts Eastern clocks forward an hour). Fifteen degrees of
// longitude equal one hour of solar time, so an accident at longitude λ under
// meridian m happens (λ - m)·4 minutes away from local solar time. Those
// minutes are quantized into buckets by [Bucket].
package domain
