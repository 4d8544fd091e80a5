package reference

import (
	"sort"

	"github.com/couchcryptid/dst-accident-etl/internal/domain"
)

// GNIS national file columns.
const (
	colStateNumeric  = "STATE_NUMERIC"
	colCountyNumeric = "COUNTY_NUMERIC"
	colPrimLat       = "PRIM_LAT_DEC"
	colPrimLng       = "PRIM_LONG_DEC"
)

// Geo is the derived geographic reference: county centroids and the distinct
// states they belong to.
type Geo struct {
	States   []domain.State
	Counties []domain.County
}

type countyGroup struct {
	state, county int
	alpha, name   string
}

type centroid struct {
	latSum, lngSum float64
	n              int
}

// LoadGeolocation reads the pipe-delimited GNIS feature file and derives
// county centroids by averaging every feature of a county. Features without
// a county code are skipped.
func LoadGeolocation(path string) (Geo, error) {
	t, err := Open(path, '|')
	if err != nil {
		return Geo{}, err
	}
	defer t.Close()

	if err := t.Require(colStateNumeric, colCountyNumeric, colStateAlpha, colCountyName, colPrimLat, colPrimLng); err != nil {
		return Geo{}, err
	}

	sums := make(map[countyGroup]*centroid)
	var order []countyGroup
	for t.Next() {
		if t.Empty(colCountyNumeric) {
			continue
		}
		key := countyGroup{
			state:  t.Int(colStateNumeric),
			county: t.Int(colCountyNumeric),
			alpha:  t.String(colStateAlpha),
			name:   t.String(colCountyName),
		}
		lat, lng := t.Float(colPrimLat), t.Float(colPrimLng)
		if t.Err() != nil {
			break
		}
		c, ok := sums[key]
		if !ok {
			c = &centroid{}
			sums[key] = c
			order = append(order, key)
		}
		c.latSum += lat
		c.lngSum += lng
		c.n++
	}
	if err := t.Err(); err != nil {
		return Geo{}, err
	}

	sort.Slice(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.state != b.state {
			return a.state < b.state
		}
		if a.county != b.county {
			return a.county < b.county
		}
		if a.alpha != b.alpha {
			return a.alpha < b.alpha
		}
		return a.name < b.name
	})

	geo := Geo{Counties: make([]domain.County, 0, len(order))}
	seen := make(map[domain.State]bool)
	for _, key := range order {
		c := sums[key]
		geo.Counties = append(geo.Counties, domain.County{
			State:      key.state,
			County:     key.county,
			StateAlpha: key.alpha,
			Name:       key.name,
			Lat:        c.latSum / float64(c.n),
			Lng:        c.lngSum / float64(c.n),
		})
		st := domain.State{Code: key.state, Alpha: key.alpha}
		if !seen[st] {
			seen[st] = true
			geo.States = append(geo.States, st)
		}
	}
	return geo, nil
}
