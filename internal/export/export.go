// Package export renders row sets as CSV or indented JSON for download and
// archiving.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Format is a supported export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat maps a query value to a Format. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("export: unknown format %q", s)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv; charset=utf-8"
}

// Ext returns the file extension of f without the dot.
func (f Format) Ext() string { return string(f) }

// Columns returns the header for rows: every key of preferred that occurs in
// any row, in that order, followed by the remaining keys sorted.
func Columns(rows []map[string]any, preferred []string) []string {
	present := make(map[string]struct{})
	for _, r := range rows {
		for k := range r {
			present[k] = struct{}{}
		}
	}

	cols := make([]string, 0, len(present))
	for _, k := range preferred {
		if _, ok := present[k]; ok {
			cols = append(cols, k)
			delete(present, k)
		}
	}
	rest := make([]string, 0, len(present))
	for k := range present {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

// CSV encodes rows with a header row built by Columns. Missing and nil
// values are written as empty fields. No rows yields no output.
func CSV(rows []map[string]any, preferred []string) ([]byte, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	cols := Columns(rows, preferred)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(cols); err != nil {
		return nil, fmt.Errorf("export: write csv header: %w", err)
	}
	record := make([]string, len(cols))
	for _, r := range rows {
		for i, c := range cols {
			record[i] = cell(r[c])
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("export: write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("export: flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// JSON encodes v with two-space indentation.
func JSON(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: encode json: %w", err)
	}
	return b, nil
}

// Encode renders rows in format f. JSON output is the rows array itself.
func Encode(f Format, rows []map[string]any, preferred []string) ([]byte, error) {
	if f == FormatJSON {
		if rows == nil {
			rows = []map[string]any{}
		}
		return JSON(rows)
	}
	return CSV(rows, preferred)
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
