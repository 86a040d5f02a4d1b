package decode

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readCSV accepts UTF-8 (with or without BOM) and falls back to Windows-1252,
// which is what spreadsheet tools emit for "CSV (separated by semicolons)".
func readCSV(payload []byte) ([][]string, error) {
	payload = bytes.TrimPrefix(payload, utf8BOM)

	var src io.Reader = bytes.NewReader(payload)
	text := payload
	if !utf8.Valid(payload) {
		decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), payload)
		if err != nil {
			return nil, fmt.Errorf("decode text: %w", err)
		}
		src = bytes.NewReader(decoded)
		text = decoded
	}

	r := csv.NewReader(src)
	r.Comma = sniffSeparator(text)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}

// sniffSeparator picks ';' or ',' by whichever appears more often in the
// header line.
func sniffSeparator(text []byte) rune {
	header := string(text)
	if i := strings.IndexAny(header, "\r\n"); i >= 0 {
		header = header[:i]
	}
	if strings.Count(header, ";") >= strings.Count(header, ",") && strings.Contains(header, ";") {
		return ';'
	}
	return ','
}
