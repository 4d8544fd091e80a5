package domain

import (
	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// Bounds is an open latitude/longitude box in degrees.
type Bounds struct {
	rect s2.Rect
}

// NewBounds builds a box from degree limits. Points on the edge are outside.
func NewBounds(minLat, maxLat, minLng, maxLng float64) Bounds {
	return Bounds{rect: s2.Rect{
		Lat: r1.Interval{Lo: (s1.Angle(minLat) * s1.Degree).Radians(), Hi: (s1.Angle(maxLat) * s1.Degree).Radians()},
		Lng: s1.IntervalFromEndpoints((s1.Angle(minLng) * s1.Degree).Radians(), (s1.Angle(maxLng) * s1.Degree).Radians()),
	}}
}

// ContinentalBounds covers the contiguous US, Alaska and Hawaii while
// rejecting the FARS "not reported" coordinate placeholders and 0/0.
var ContinentalBounds = NewBounds(20, 75, -175, -60)

// Contains reports whether the point lies strictly inside the box. NaN
// coordinates are never contained.
func (b Bounds) Contains(lat, lng float64) bool {
	ll := s2.LatLngFromDegrees(lat, lng)
	if !ll.IsValid() {
		return false
	}
	return b.rect.Lat.InteriorContains(ll.Lat.Radians()) && b.rect.Lng.InteriorContains(ll.Lng.Radians())
}
