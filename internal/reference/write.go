package reference

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/couchcryptid/dst-accident-etl/internal/domain"
)

// WriteStates writes the state list in the layout LoadStates reads.
func WriteStates(w io.Writer, states []domain.State) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{colState, colStateAlpha}); err != nil {
		return err
	}
	for _, s := range states {
		if err := cw.Write([]string{strconv.Itoa(s.Code), s.Alpha}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCounties writes county centroids in the layout LoadCounties reads.
func WriteCounties(w io.Writer, counties []domain.County) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{colState, colCounty, colStateAlpha, colCountyName, colLat, colLng}); err != nil {
		return err
	}
	for _, c := range counties {
		row := []string{
			strconv.Itoa(c.State),
			strconv.Itoa(c.County),
			c.StateAlpha,
			c.Name,
			strconv.FormatFloat(c.Lat, 'f', -1, 64),
			strconv.FormatFloat(c.Lng, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
