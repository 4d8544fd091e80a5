// Package sqlite exports the fused accident table into a SQLite database so
// downstream analyses can query it by DST flag and offset bucket.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/dst-accident-etl/internal/domain"

	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02 15:04:05"

const schema = `
CREATE TABLE IF NOT EXISTS fused_accidents (
	state                INTEGER NOT NULL,
	state_alpha          TEXT    NOT NULL,
	st_case              INTEGER NOT NULL,
	year                 INTEGER NOT NULL,
	month                INTEGER NOT NULL,
	day                  INTEGER NOT NULL,
	hour                 INTEGER NOT NULL,
	minute               INTEGER NOT NULL,
	time                 TEXT    NOT NULL,
	lat                  REAL    NOT NULL,
	lng                  REAL    NOT NULL,
	tz_no_dst            REAL    NOT NULL,
	tz_dst               REAL    NOT NULL,
	dst_switch           TEXT    NOT NULL,
	days_from_dst_switch INTEGER NOT NULL,
	dst_delta            INTEGER NOT NULL,
	dst                  TEXT    NOT NULL,
	offset_lng           REAL    NOT NULL,
	offset_minutes       REAL    NOT NULL,
	PRIMARY KEY (state, year, st_case)
);
CREATE INDEX IF NOT EXISTS fused_accidents_group ON fused_accidents (dst, offset_minutes);
`

const insert = `INSERT INTO fused_accidents (
	state, state_alpha, st_case, year, month, day, hour, minute, time, lat, lng,
	tz_no_dst, tz_dst, dst_switch, days_from_dst_switch, dst_delta, dst, offset_lng, offset_minutes
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Sink replaces the contents of the fused_accidents table on every write.
type Sink struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the database at path and ensures the schema exists.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Sink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	return &Sink{db: db, logger: logger}, nil
}

func (s *Sink) Name() string { return "sqlite" }

// Write replaces the table contents in a single transaction.
func (s *Sink) Write(ctx context.Context, rows []domain.FusedAccident) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM fused_accidents`); err != nil {
		return fmt.Errorf("clear fused_accidents: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range rows {
		f := &rows[i]
		if _, err = stmt.ExecContext(ctx,
			f.State, f.StateAlpha, f.Case, f.Year, f.Month, f.Day, f.Hour, f.Minute,
			f.Time.Format(timeLayout), f.Lat, f.Lng, f.Standard, f.DST,
			f.Switch.Format(timeLayout), f.DaysSinceSwitch, f.Delta, f.ActiveDST,
			f.LongitudeOffset, f.OffsetMinutes,
		); err != nil {
			return fmt.Errorf("insert %s: %w", f.ID(), err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("fused table stored", "rows", len(rows))
	return nil
}

// GroupCount is the number of rows sharing a DST flag and offset bucket.
type GroupCount struct {
	ActiveDST     string
	OffsetMinutes float64
	Count         int
}

// GroupCounts returns row counts per (dst, offset_minutes), ordered by both.
// Rows settleDays or fewer days after their switch are not counted, and
// groups left with fewer than minGroupSize rows are omitted.
func (s *Sink) GroupCounts(ctx context.Context, settleDays, minGroupSize int) ([]GroupCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dst, offset_minutes, COUNT(*)
		FROM fused_accidents
		WHERE days_from_dst_switch > ?
		GROUP BY dst, offset_minutes
		HAVING COUNT(*) >= ?
		ORDER BY dst, offset_minutes`, settleDays, minGroupSize)
	if err != nil {
		return nil, fmt.Errorf("query group counts: %w", err)
	}
	defer rows.Close()

	var out []GroupCount
	for rows.Next() {
		var g GroupCount
		if err := rows.Scan(&g.ActiveDST, &g.OffsetMinutes, &g.Count); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Sink) Close() error {
	return s.db.Close()
}
