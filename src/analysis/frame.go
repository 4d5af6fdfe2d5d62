// Package analysis turns the reading window into a table and fits the trend
// line drawn over it.
package analysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"

	"github.com/katehuntsman/cintel-05-cintel/src/monitor"
)

// TimestampColumn is the name of the leading column in every frame.
const TimestampColumn = "timestamp"

// SheetName is the worksheet name used for XLSX exports.
const SheetName = "Readings"

// ErrUnknownColumn is returned when a frame has no column for a key.
var ErrUnknownColumn = errors.New("unknown column")

// Frame is a snapshot of the reading window as a table: one timestamp column
// followed by one float column per source field.
type Frame struct {
	df     dataframe.DataFrame
	fields []monitor.Field
	times  []time.Time
}

// NewFrame builds a frame from readings (oldest first) for the given fields.
func NewFrame(readings []monitor.Reading, fields []monitor.Field) (*Frame, error) {
	times := make([]time.Time, len(readings))
	stamps := make([]string, len(readings))
	for i, r := range readings {
		times[i] = r.Timestamp
		stamps[i] = r.TimestampLabel()
	}
	cols := []series.Series{series.New(stamps, series.String, TimestampColumn)}
	for _, f := range fields {
		vals := make([]float64, len(readings))
		for i, r := range readings {
			v, ok := r.Value(f.Key)
			if !ok {
				return nil, fmt.Errorf("analysis: field %q: %w", f.Key, ErrUnknownColumn)
			}
			vals[i] = v
		}
		cols = append(cols, series.New(vals, series.Float, f.Key))
	}
	df := dataframe.New(cols...)
	if df.Err != nil {
		return nil, fmt.Errorf("analysis: build frame: %w", df.Err)
	}
	return &Frame{df: df, fields: fields, times: times}, nil
}

// Len is the number of rows.
func (f *Frame) Len() int { return len(f.times) }

// Fields returns the numeric columns in display order.
func (f *Frame) Fields() []monitor.Field { return f.fields }

// Times returns the row timestamps.
func (f *Frame) Times() []time.Time { return f.times }

// Field looks up the field description for key.
func (f *Frame) Field(key string) (monitor.Field, bool) {
	for _, fd := range f.fields {
		if fd.Key == key {
			return fd, true
		}
	}
	return monitor.Field{}, false
}

// Column returns the float values stored under key.
func (f *Frame) Column(key string) ([]float64, error) {
	if _, ok := f.Field(key); !ok {
		return nil, fmt.Errorf("analysis: column %q: %w", key, ErrUnknownColumn)
	}
	if f.Len() == 0 {
		return []float64{}, nil
	}
	s := f.df.Col(key)
	if s.Err != nil {
		return nil, fmt.Errorf("analysis: column %q: %w", key, s.Err)
	}
	return s.Float(), nil
}

// Header returns the column titles used by the grid and the exports.
func (f *Frame) Header() []string {
	out := []string{TimestampColumn}
	for _, fd := range f.fields {
		out = append(out, fd.Key)
	}
	return out
}

// Records renders each row as display strings, honouring every field's
// rounding. The header is not included.
func (f *Frame) Records() [][]string {
	out := make([][]string, f.Len())
	if f.Len() == 0 {
		return out
	}
	cols := make([][]float64, len(f.fields))
	for i, fd := range f.fields {
		cols[i] = f.df.Col(fd.Key).Float()
	}
	stamps := f.df.Col(TimestampColumn).Records()
	for row := range out {
		rec := []string{stamps[row]}
		for i, fd := range f.fields {
			rec = append(rec, strconv.FormatFloat(cols[i][row], 'f', fd.Decimals, 64))
		}
		out[row] = rec
	}
	return out
}

// WriteCSV writes a header row followed by every record.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Header()); err != nil {
		return fmt.Errorf("analysis: write csv header: %w", err)
	}
	if err := cw.WriteAll(f.Records()); err != nil {
		return fmt.Errorf("analysis: write csv rows: %w", err)
	}
	return nil
}

// WriteXLSX writes the frame as a single-sheet workbook. Numeric columns are
// stored as numbers so spreadsheet users can chart them directly.
func (f *Frame) WriteXLSX(w io.Writer) error {
	book := excelize.NewFile()
	defer book.Close()
	if err := book.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("analysis: rename sheet: %w", err)
	}
	header := make([]interface{}, 0, len(f.fields)+1)
	for _, h := range f.Header() {
		header = append(header, h)
	}
	if err := book.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("analysis: write xlsx header: %w", err)
	}
	cols := make([][]float64, len(f.fields))
	for i, fd := range f.fields {
		vals, err := f.Column(fd.Key)
		if err != nil {
			return err
		}
		cols[i] = vals
	}
	for row, ts := range f.times {
		cell, err := excelize.CoordinatesToCellName(1, row+2)
		if err != nil {
			return fmt.Errorf("analysis: xlsx cell: %w", err)
		}
		values := []interface{}{ts.Format(monitor.TimestampLayout)}
		for i := range f.fields {
			values = append(values, cols[i][row])
		}
		if err := book.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("analysis: write xlsx row %d: %w", row+1, err)
		}
	}
	if err := book.Write(w); err != nil {
		return fmt.Errorf("analysis: write xlsx: %w", err)
	}
	return nil
}
