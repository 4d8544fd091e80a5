package accident

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/couchcryptid/dst-accident-etl/internal/domain"
	"github.com/couchcryptid/dst-accident-etl/internal/reference"
)

// Cleaned table columns. COUNTY is optional on read so tables written before
// it was carried still load.
const (
	colStateAlpha = "STATE_ALPHA"
	colYear       = "YEAR"
	colLat        = "LAT"
	colLng        = "LNG"
)

var header = []string{colState, colStateAlpha, colCounty, colYear, colMonth, colDay, colHour, colMinute, colCase, colLat, colLng}

// Write encodes the cleaned table as CSV.
func Write(w io.Writer, rows []domain.Accident) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	rec := make([]string, len(header))
	for _, a := range rows {
		rec[0] = strconv.Itoa(a.State)
		rec[1] = a.StateAlpha
		rec[2] = strconv.Itoa(a.County)
		rec[3] = strconv.Itoa(a.Year)
		rec[4] = strconv.Itoa(a.Month)
		rec[5] = strconv.Itoa(a.Day)
		rec[6] = strconv.Itoa(a.Hour)
		rec[7] = strconv.Itoa(a.Minute)
		rec[8] = strconv.Itoa(a.Case)
		rec[9] = strconv.FormatFloat(a.Lat, 'f', -1, 64)
		rec[10] = strconv.FormatFloat(a.Lng, 'f', -1, 64)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read decodes a cleaned table written by Write.
func Read(path string) ([]domain.Accident, error) {
	t, err := reference.Open(path, 0)
	if err != nil {
		return nil, err
	}
	defer t.Close()

	if err := t.Require(colState, colStateAlpha, colYear, colMonth, colDay, colHour, colMinute, colCase, colLat, colLng); err != nil {
		return nil, err
	}
	hasCounty := t.Has(colCounty)

	var rows []domain.Accident
	for t.Next() {
		a := domain.Accident{
			State:      t.Int(colState),
			StateAlpha: t.String(colStateAlpha),
			Year:       t.Int(colYear),
			Month:      t.Int(colMonth),
			Day:        t.Int(colDay),
			Hour:       t.Int(colHour),
			Minute:     t.Int(colMinute),
			Case:       t.Int(colCase),
			Lat:        t.Float(colLat),
			Lng:        t.Float(colLng),
		}
		if hasCounty {
			a.County = t.Int(colCounty)
		}
		rows = append(rows, a)
	}
	if err := t.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}
