// Package decode turns an uploaded spreadsheet into header-keyed raw rows.
// Only the first sheet is read; the first row is the header.
package decode

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hercules-motores/service-analytics/internal/orders"
)

var (
	ErrEmpty             = errors.New("spreadsheet has no data rows")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrTooManyRows       = errors.New("spreadsheet exceeds the row limit")
)

const (
	FormatXLSX = "xlsx"
	FormatXLS  = "xls"
	FormatCSV  = "csv"
)

// DecodeError reports an upload that could not be turned into rows. Nothing
// from the upload should be used when it is returned.
type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format == "" {
		return "decode upload: " + e.Err.Error()
	}
	return fmt.Sprintf("decode %s upload: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Table is a decoded sheet.
type Table struct {
	Format  string
	Headers []string
	Rows    []orders.RawRow
}

// Decoder reads uploads. A zero Decoder has no row limit.
type Decoder struct {
	MaxRows int
}

// FormatOf maps a filename to its format by extension.
func FormatOf(filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	case ".csv":
		return FormatCSV, nil
	}
	return "", ErrUnsupportedFormat
}

// Decode reads payload according to the extension of filename. Every error
// it returns is a *DecodeError.
func (d Decoder) Decode(filename string, payload []byte) (Table, error) {
	format, err := FormatOf(filename)
	if err != nil {
		return Table{}, &DecodeError{Err: fmt.Errorf("%w: %q", err, filepath.Ext(filename))}
	}
	if len(payload) == 0 {
		return Table{}, &DecodeError{Format: format, Err: ErrEmpty}
	}

	var grid [][]string
	switch format {
	case FormatXLSX:
		grid, err = readXLSX(payload)
	case FormatXLS:
		grid, err = readXLS(payload)
	case FormatCSV:
		grid, err = readCSV(payload)
	}
	if err != nil {
		return Table{}, &DecodeError{Format: format, Err: err}
	}

	table, err := d.tabulate(grid)
	if err != nil {
		return Table{}, &DecodeError{Format: format, Err: err}
	}
	table.Format = format
	return table, nil
}

// tabulate keys each data row by header. Blank rows are skipped. A repeated
// header keeps its first column under the plain name and later ones get a
// numeric suffix.
func (d Decoder) tabulate(grid [][]string) (Table, error) {
	headerAt := -1
	for i, row := range grid {
		if !blankRow(row) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return Table{}, ErrEmpty
	}

	headers := uniqueHeaders(grid[headerAt])
	var rows []orders.RawRow
	for _, cells := range grid[headerAt+1:] {
		if blankRow(cells) {
			continue
		}
		if d.MaxRows > 0 && len(rows) >= d.MaxRows {
			return Table{}, fmt.Errorf("%w of %d", ErrTooManyRows, d.MaxRows)
		}
		raw := make(orders.RawRow, len(headers))
		for j, h := range headers {
			if h == "" {
				continue
			}
			if j < len(cells) {
				raw[h] = cells[j]
			} else {
				raw[h] = nil
			}
		}
		rows = append(rows, raw)
	}
	if len(rows) == 0 {
		return Table{}, ErrEmpty
	}

	names := make([]string, 0, len(headers))
	for _, h := range headers {
		if h != "" {
			names = append(names, h)
		}
	}
	return Table{Headers: names, Rows: rows}, nil
}

func uniqueHeaders(row []string) []string {
	out := make([]string, len(row))
	seen := map[string]int{}
	for i, h := range row {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			continue
		}
		if n, dup := seen[h]; dup {
			seen[h] = n + 1
			out[i] = h + "_" + strconv.Itoa(n)
			continue
		}
		seen[h] = 1
		out[i] = h
	}
	return out
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
