// Package csvfile writes and reads the fused accident table as a flat CSV
// file, the hand-off format for downstream analysis.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/dst-accident-etl/internal/cache"
	"github.com/couchcryptid/dst-accident-etl/internal/domain"
	"github.com/couchcryptid/dst-accident-etl/internal/reference"
)

// TimeLayout is the timestamp format of the TIME and DST_SWITCH columns.
const TimeLayout = "2006-01-02 15:04:05"

// Header lists the output columns in order.
var Header = []string{
	"STATE", "STATE_ALPHA", "TIME", "YEAR", "MONTH", "DAY", "HOUR", "MINUTE", "ST_CASE",
	"LAT", "LNG", "TZ_NO_DST", "TZ_DST", "DST_SWITCH", "DAYS_FROM_DST_SWITCH", "DST_DELTA",
	"DST", "OFFSET_LNG", "OFFSET_MINUTES",
}

// Sink writes the fused table to a single file, replacing it atomically.
type Sink struct {
	path   string
	logger *slog.Logger
}

// NewSink creates a Sink targeting path.
func NewSink(path string, logger *slog.Logger) *Sink {
	return &Sink{path: path, logger: logger}
}

func (s *Sink) Name() string { return "csv" }

// Write encodes rows to the target file.
func (s *Sink) Write(ctx context.Context, rows []domain.FusedAccident) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cache.WriteAtomic(s.path, func(w io.Writer) error {
		return Encode(w, rows)
	}); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	s.logger.Debug("fused table exported", "path", s.path, "rows", len(rows))
	return nil
}

func (s *Sink) Close() error { return nil }

// Encode writes rows with a header line.
func Encode(w io.Writer, rows []domain.FusedAccident) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for i := range rows {
		if err := cw.Write(record(rows[i])); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func record(f domain.FusedAccident) []string {
	return []string{
		strconv.Itoa(f.State),
		f.StateAlpha,
		f.Time.Format(TimeLayout),
		strconv.Itoa(f.Year),
		strconv.Itoa(f.Month),
		strconv.Itoa(f.Day),
		strconv.Itoa(f.Hour),
		strconv.Itoa(f.Minute),
		strconv.Itoa(f.Case),
		formatFloat(f.Lat),
		formatFloat(f.Lng),
		formatFloat(f.Standard),
		formatFloat(f.DST),
		f.Switch.Format(TimeLayout),
		strconv.Itoa(f.DaysSinceSwitch),
		strconv.Itoa(f.Delta),
		f.ActiveDST,
		formatFloat(f.LongitudeOffset),
		formatFloat(f.OffsetMinutes),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Read decodes a file written by Sink. Columns are matched by name.
func Read(path string) ([]domain.FusedAccident, error) {
	t, err := reference.Open(path, 0)
	if err != nil {
		return nil, err
	}
	defer t.Close()

	if err := t.Require(Header...); err != nil {
		return nil, err
	}

	var rows []domain.FusedAccident
	for t.Next() {
		f := domain.FusedAccident{
			Accident: domain.Accident{
				State:      t.Int("STATE"),
				StateAlpha: t.String("STATE_ALPHA"),
				Year:       t.Int("YEAR"),
				Month:      t.Int("MONTH"),
				Day:        t.Int("DAY"),
				Hour:       t.Int("HOUR"),
				Minute:     t.Int("MINUTE"),
				Case:       t.Int("ST_CASE"),
				Lat:        t.Float("LAT"),
				Lng:        t.Float("LNG"),
			},
			Standard:        t.Float("TZ_NO_DST"),
			DST:             t.Float("TZ_DST"),
			DaysSinceSwitch: t.Int("DAYS_FROM_DST_SWITCH"),
			Delta:           t.Int("DST_DELTA"),
			ActiveDST:       t.String("DST"),
			LongitudeOffset: t.Float("OFFSET_LNG"),
			OffsetMinutes:   t.Float("OFFSET_MINUTES"),
		}
		if f.Time, err = time.Parse(TimeLayout, t.String("TIME")); err != nil {
			return nil, &reference.SchemaError{File: path, Column: "TIME", Line: t.Line(), Value: t.String("TIME"), Err: err}
		}
		if f.Switch, err = time.Parse(TimeLayout, t.String("DST_SWITCH")); err != nil {
			return nil, &reference.SchemaError{File: path, Column: "DST_SWITCH", Line: t.Line(), Value: t.String("DST_SWITCH"), Err: err}
		}
		rows = append(rows, f)
	}
	if err := t.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}
