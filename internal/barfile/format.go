// Package barfile reads and writes bar series as CSV, JSON or Parquet files
// and serves a directory of them as a bar source.
package barfile

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"trading-signals/internal/model"
)

// ErrUnsupportedFormat is returned for file extensions other than csv, json and parquet.
var ErrUnsupportedFormat = errors.New("unsupported bar file format")

// Format is a bar file encoding, named by its file extension.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

// Formats lists the encodings in lookup order.
var Formats = []Format{FormatParquet, FormatCSV, FormatJSON}

// ParseFormat maps "csv", "json" or "parquet" (any case) to a Format.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatCSV, FormatJSON, FormatParquet:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// FormatOf returns the Format named by path's extension.
func FormatOf(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Record is the on-disk row: Unix milliseconds plus OHLC.
type Record struct {
	T int64   `json:"t" parquet:"t"`
	O float64 `json:"o" parquet:"o"`
	H float64 `json:"h" parquet:"h"`
	L float64 `json:"l" parquet:"l"`
	C float64 `json:"c" parquet:"c"`
}

func toRecords(bars []model.Bar) []Record {
	out := make([]Record, len(bars))
	for i, b := range bars {
		out[i] = Record{T: b.Time.UnixMilli(), O: b.Open, H: b.High, L: b.Low, C: b.Close}
	}
	return out
}

func fromRecords(recs []Record) []model.Bar {
	out := make([]model.Bar, len(recs))
	for i, r := range recs {
		out[i] = model.Bar{Time: time.UnixMilli(r.T).UTC(), Open: r.O, High: r.H, Low: r.L, Close: r.C}
	}
	return out
}

// ReadFile decodes the bars in path according to its extension.
// Bars are returned as stored; ordering is not checked here.
func ReadFile(path string) ([]model.Bar, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	if format == FormatParquet {
		recs, err := parquet.ReadFile[Record](path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return fromRecords(recs), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var bars []model.Bar
	if format == FormatCSV {
		bars, err = ReadCSV(f)
	} else {
		bars, err = ReadJSON(f)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return bars, nil
}

// WriteFile encodes bars into path according to its extension.
func WriteFile(path string, bars []model.Bar) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	if format == FormatParquet {
		return parquet.WriteFile(path, toRecords(bars))
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if format == FormatCSV {
		err = WriteCSV(f, bars)
	} else {
		err = WriteJSON(f, bars)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadJSON decodes an array of records ({"t","o","h","l","c"}).
func ReadJSON(r io.Reader) ([]model.Bar, error) {
	var recs []Record
	if err := json.NewDecoder(r).Decode(&recs); err != nil {
		return nil, err
	}
	return fromRecords(recs), nil
}

// WriteJSON encodes bars as an indented array of records.
func WriteJSON(w io.Writer, bars []model.Bar) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(toRecords(bars))
}

var csvColumns = map[string]string{
	"t": "t", "time": "t", "timestamp": "t", "date": "t", "datetime": "t",
	"o": "o", "open": "o",
	"h": "h", "high": "h",
	"l": "l", "low": "l",
	"c": "c", "close": "c",
}

// ReadCSV decodes CSV with a header row. Columns may be named t/o/h/l/c or
// time/open/high/low/close (any case); extra columns are ignored. The time
// column holds Unix milliseconds, RFC 3339 or a YYYY-MM-DD date.
func ReadCSV(r io.Reader) ([]model.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	for i, name := range header {
		if col, ok := csvColumns[strings.ToLower(strings.TrimSpace(name))]; ok {
			idx[col] = i
		}
	}
	for _, col := range []string{"t", "o", "h", "l", "c"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("csv header %v: missing %q column", header, col)
		}
	}

	var bars []model.Bar
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return bars, nil
		}
		if err != nil {
			return nil, err
		}
		b, err := parseRow(row, idx)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		bars = append(bars, b)
	}
}

func parseRow(row []string, idx map[string]int) (model.Bar, error) {
	field := func(col string) (string, error) {
		i := idx[col]
		if i >= len(row) {
			return "", fmt.Errorf("missing %q", col)
		}
		return strings.TrimSpace(row[i]), nil
	}
	num := func(col string) (float64, error) {
		s, err := field(col)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", col, err)
		}
		return v, nil
	}

	var b model.Bar
	ts, err := field("t")
	if err != nil {
		return b, err
	}
	if b.Time, err = parseTime(ts); err != nil {
		return b, err
	}
	if b.Open, err = num("o"); err != nil {
		return b, err
	}
	if b.High, err = num("h"); err != nil {
		return b, err
	}
	if b.Low, err = num("l"); err != nil {
		return b, err
	}
	b.Close, err = num("c")
	return b, err
}

func parseTime(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("time %q: want unix millis, RFC 3339 or YYYY-MM-DD", s)
}

// WriteCSV encodes bars with a t,o,h,l,c header and Unix millisecond times.
func WriteCSV(w io.Writer, bars []model.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"t", "o", "h", "l", "c"}); err != nil {
		return err
	}
	for _, b := range bars {
		if err := cw.Write([]string{
			strconv.FormatInt(b.Time.UnixMilli(), 10),
			floatStr(b.Open),
			floatStr(b.High),
			floatStr(b.Low),
			floatStr(b.Close),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
