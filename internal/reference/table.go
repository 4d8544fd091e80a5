package reference

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jfyne/csvd"
)

// SchemaError reports a structural problem in an input file: a missing
// required column or a cell that cannot be coerced to its declared type.
// Schema errors are fatal for the run.
type SchemaError struct {
	File   string
	Column string
	Line   int // 0 when the error concerns the header
	Value  string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%s: %v", e.File, e.Err)
	}
	if e.Line == 0 {
		return fmt.Sprintf("%s: column %q: %v", e.File, e.Column, e.Err)
	}
	return fmt.Sprintf("%s:%d: column %q value %q: %v", e.File, e.Line, e.Column, e.Value, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// ErrMissingColumn is wrapped by SchemaError when a required header is absent.
var ErrMissingColumn = errors.New("required column missing")

// ErrEmptyFile is wrapped by SchemaError when a file has no header line.
var ErrEmptyFile = errors.New("file has no header")

// Table is a header-indexed CSV reader with typed accessors. Accessor errors
// are latched: after the first failure every accessor returns zero values and
// Err reports the failure.
type Table struct {
	path   string
	file   *os.File
	reader *csv.Reader
	index  map[string]int
	record []string
	line   int
	err    error
}

// Open opens a delimited file. A zero comma sniffs the delimiter from the
// first line. A file holding nothing but whitespace is a SchemaError.
func Open(path string, comma rune) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	br := bufio.NewReader(f)
	head, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		_ = f.Close()
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	// The sniffer indexes its first candidate dialect, which an empty input lacks.
	if len(bytes.TrimSpace(head)) == 0 {
		_ = f.Close()
		return nil, &SchemaError{File: path, Err: ErrEmptyFile}
	}

	var r *csv.Reader
	if comma == 0 {
		r = csvd.NewReader(br)
	} else {
		r = csv.NewReader(br)
		r.Comma = comma
	}
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		index[strings.ToUpper(h)] = i
	}

	return &Table{path: path, file: f, reader: r, index: index, line: 1}, nil
}

// Require fails with a SchemaError if any column is missing from the header.
func (t *Table) Require(columns ...string) error {
	for _, c := range columns {
		if !t.Has(c) {
			return &SchemaError{File: t.path, Column: c, Err: ErrMissingColumn}
		}
	}
	return nil
}

// Has reports whether the header contains a column.
func (t *Table) Has(column string) bool {
	_, ok := t.index[column]
	return ok
}

// Next advances to the next row. It returns false at EOF or on error.
func (t *Table) Next() bool {
	if t.err != nil {
		return false
	}
	rec, err := t.reader.Read()
	if errors.Is(err, io.EOF) {
		return false
	}
	t.line++
	if err != nil {
		t.err = fmt.Errorf("read %s:%d: %w", t.path, t.line, err)
		return false
	}
	t.record = rec
	return true
}

// String returns the trimmed cell of a column in the current row.
func (t *Table) String(column string) string {
	i, ok := t.index[column]
	if !ok || i >= len(t.record) {
		return ""
	}
	return strings.TrimSpace(t.record[i])
}

// Int coerces a cell to int. Values like "12.0" written by float-typed
// exports are accepted when they carry no fraction.
func (t *Table) Int(column string) int {
	if t.err != nil {
		return 0
	}
	s := t.String(column)
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		if err == nil {
			err = errors.New("not an integer")
		}
		t.fail(column, s, err)
		return 0
	}
	return int(f)
}

// Float coerces a cell to float64.
func (t *Table) Float(column string) float64 {
	if t.err != nil {
		return 0
	}
	s := t.String(column)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		t.fail(column, s, err)
		return 0
	}
	return v
}

// Empty reports whether a cell is blank.
func (t *Table) Empty(column string) bool {
	return t.String(column) == ""
}

// Line returns the 1-based line number of the current row.
func (t *Table) Line() int {
	return t.line
}

// Err returns the first read or coercion error.
func (t *Table) Err() error {
	return t.err
}

// Close releases the underlying file.
func (t *Table) Close() error {
	return t.file.Close()
}

func (t *Table) fail(column, value string, err error) {
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		err = numErr.Err
	}
	t.err = &SchemaError{File: t.path, Column: column, Line: t.line, Value: value, Err: err}
}
