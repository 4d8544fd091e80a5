package reference

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/dst-accident-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTimezones(t *testing.T) {
	path := writeFile(t, "timezones.csv", "STATE_ALPHA,TZ_NO_DST,TZ_DST,NOTE\n"+
		"NY,-75,-60,\n"+
		"TX,-90,-75,west part in MT\n")

	zones, err := LoadTimezones(path)
	require.NoError(t, err)
	require.Len(t, zones, 2)

	assert.Equal(t, domain.Timezone{StateAlpha: "NY", Standard: -75, DST: -60}, zones[0])
	assert.Equal(t, "TX", zones[1].StateAlpha)
	assert.Equal(t, -90.0, zones[1].Standard)
	assert.Equal(t, -75.0, zones[1].DST)
	assert.Equal(t, "west part in MT", zones[1].Note)
}

func TestLoadTimezones_MissingColumn(t *testing.T) {
	path := writeFile(t, "timezones.csv", "STATE_ALPHA,TZ_NO_DST,NOTE\nNY,-75,\n")

	_, err := LoadTimezones(path)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "TZ_DST", schemaErr.Column)
	assert.Zero(t, schemaErr.Line)
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestLoadTimezones_NonNumericOffset(t *testing.T) {
	path := writeFile(t, "timezones.csv", "STATE_ALPHA,TZ_NO_DST,TZ_DST,NOTE\nNY,-75,east,\n")

	_, err := LoadTimezones(path)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "TZ_DST", schemaErr.Column)
	assert.Equal(t, 2, schemaErr.Line)
	assert.Equal(t, "east", schemaErr.Value)
}

func TestLoadTimezones_EmptyOffsetIsSchemaError(t *testing.T) {
	path := writeFile(t, "timezones.csv", "STATE_ALPHA,TZ_NO_DST,TZ_DST,NOTE\nNY,,-60,\n")

	_, err := LoadTimezones(path)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "TZ_NO_DST", schemaErr.Column)
}

func TestLoadTimezoneOverrides(t *testing.T) {
	path := writeFile(t, "counties_timezone_override.csv", "STATE,COUNTY,STATE_ALPHA,COUNTY_NAME,TZ_NO_DST,TZ_DST\n"+
		"48,141,TX,El Paso,-105,-90\n")

	overrides, err := LoadTimezoneOverrides(path)
	require.NoError(t, err)
	require.Len(t, overrides, 1)

	assert.Equal(t, domain.TimezoneOverride{
		State: 48, County: 141, StateAlpha: "TX", CountyName: "El Paso", Standard: -105, DST: -90,
	}, overrides[0])
	assert.Equal(t, domain.CountyKey{State: 48, County: 141}, overrides[0].Key())
}

func TestLoadTransitions_SortedAndTyped(t *testing.T) {
	path := writeFile(t, "dst.csv", "DATE,DST_DELTA\n"+
		"1976-10-31,-1\n"+
		"1976-04-25,1\n"+
		"1975-10-26 02:00,-1\n")

	transitions, err := LoadTransitions(path)
	require.NoError(t, err)
	require.Len(t, transitions, 3)

	assert.Equal(t, time.Date(1975, time.October, 26, 2, 0, 0, 0, time.UTC), transitions[0].Time)
	assert.Equal(t, -1, transitions[0].Delta)
	assert.Equal(t, time.Date(1976, time.April, 25, 0, 0, 0, 0, time.UTC), transitions[1].Time)
	assert.True(t, transitions[1].Entering())
	assert.Equal(t, time.Date(1976, time.October, 31, 0, 0, 0, 0, time.UTC), transitions[2].Time)
}

func TestLoadTransitions_BadDate(t *testing.T) {
	path := writeFile(t, "dst.csv", "DATE,DST_DELTA\nspring,1\n")

	_, err := LoadTransitions(path)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "DATE", schemaErr.Column)
	assert.Equal(t, "spring", schemaErr.Value)
}

func TestLoadTransitions_BadDelta(t *testing.T) {
	path := writeFile(t, "dst.csv", "DATE,DST_DELTA\n1976-04-25,2\n")

	_, err := LoadTransitions(path)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "DST_DELTA", schemaErr.Column)
}

func TestLoadStatesAndCounties_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	states := []domain.State{{Code: 6, Alpha: "CA"}, {Code: 36, Alpha: "NY"}}
	counties := []domain.County{
		{State: 6, County: 37, StateAlpha: "CA", Name: "Los Angeles", Lat: 34.05, Lng: -118.25},
		{State: 36, County: 61, StateAlpha: "NY", Name: "New York, County of", Lat: 40.78, Lng: -73.97},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteStates(&buf, states))
	statesPath := filepath.Join(dir, "_states.csv")
	require.NoError(t, os.WriteFile(statesPath, buf.Bytes(), 0o644))

	buf.Reset()
	require.NoError(t, WriteCounties(&buf, counties))
	countiesPath := filepath.Join(dir, "_counties.csv")
	require.NoError(t, os.WriteFile(countiesPath, buf.Bytes(), 0o644))

	gotStates, err := LoadStates(statesPath)
	require.NoError(t, err)
	assert.Equal(t, states, gotStates)

	gotCounties, err := LoadCounties(countiesPath)
	require.NoError(t, err)
	assert.Equal(t, counties, gotCounties)
}

func TestLoadCounties_FloatFormattedCodes(t *testing.T) {
	path := writeFile(t, "_counties.csv", "STATE,COUNTY,STATE_ALPHA,COUNTY_NAME,LAT,LNG\n6.0,37.0,CA,Los Angeles,34,-118\n")

	counties, err := LoadCounties(path)
	require.NoError(t, err)
	require.Len(t, counties, 1)
	assert.Equal(t, 6, counties[0].State)
	assert.Equal(t, 37, counties[0].County)
}

func TestLoadCounties_FractionalCodeRejected(t *testing.T) {
	path := writeFile(t, "_counties.csv", "STATE,COUNTY,STATE_ALPHA,COUNTY_NAME,LAT,LNG\n6.5,37,CA,Los Angeles,34,-118\n")

	_, err := LoadCounties(path)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "STATE", schemaErr.Column)
}

func TestLoadGeolocation(t *testing.T) {
	path := writeFile(t, "geolocation.psv", "FEATURE_ID|FEATURE_NAME|STATE_ALPHA|STATE_NUMERIC|COUNTY_NAME|COUNTY_NUMERIC|PRIM_LAT_DEC|PRIM_LONG_DEC\n"+
		"1|Alpha Creek|AL|1|Autauga|1|32.0|-86.0\n"+
		"2|Beta Hill|AL|1|Autauga|1|33.0|-87.0\n"+
		"3|Gamma Lake|AL|1|Baldwin|3|30.5|-87.5\n"+
		"4|Offshore Bank|AL|1||||\n"+
		"5|Delta Park|AK|2|Aleutians East|13|55.0|-161.0\n")

	geo, err := LoadGeolocation(path)
	require.NoError(t, err)

	require.Len(t, geo.Counties, 3)
	assert.Equal(t, domain.County{State: 1, County: 1, StateAlpha: "AL", Name: "Autauga", Lat: 32.5, Lng: -86.5}, geo.Counties[0])
	assert.Equal(t, domain.County{State: 1, County: 3, StateAlpha: "AL", Name: "Baldwin", Lat: 30.5, Lng: -87.5}, geo.Counties[1])
	assert.Equal(t, 2, geo.Counties[2].State)

	assert.Equal(t, []domain.State{{Code: 1, Alpha: "AL"}, {Code: 2, Alpha: "AK"}}, geo.States)
}

func TestLoadGeolocation_MissingColumn(t *testing.T) {
	path := writeFile(t, "geolocation.psv", "STATE_ALPHA|STATE_NUMERIC|COUNTY_NUMERIC\nAL|1|1\n")

	_, err := LoadGeolocation(path)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "COUNTY_NAME", schemaErr.Column)
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.csv"), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpen_EmptyFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		comma   rune
	}{
		{"zero bytes sniffed", "", 0},
		{"whitespace sniffed", "\n  \r\n", 0},
		{"zero bytes comma", "", ','},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "empty.csv", tt.content)

			var err error
			require.NotPanics(t, func() { _, err = Open(path, tt.comma) })

			var schemaErr *SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Equal(t, path, schemaErr.File)
			assert.ErrorIs(t, err, ErrEmptyFile)
			assert.Equal(t, path+": file has no header", err.Error())
		})
	}
}

func TestLoadTransitions_EmptyFile(t *testing.T) {
	path := writeFile(t, "dst.csv", "")

	var err error
	require.NotPanics(t, func() { _, err = LoadTransitions(path) })
	assert.ErrorIs(t, err, ErrEmptyFile)
}
