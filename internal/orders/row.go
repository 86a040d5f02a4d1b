package orders

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/hercules-motores/service-analytics/internal/dates"
)

// RawRow is one decoded spreadsheet row: header to cell value. Values are
// strings, numbers or nil.
type RawRow map[string]any

// Row is a canonical service-order line. Every schema field is present as
// text; date fields hold DD/MM/YYYY or the empty string. A Row is never
// modified after it is built.
type Row struct {
	values map[string]string
	dates  map[string]time.Time
}

// RowFromValues builds a Row from already-canonical text, keeping only
// schema fields. Date fields that do not parse as DD/MM/YYYY are blanked.
func RowFromValues(schema *Schema, values map[string]string) Row {
	r := Row{
		values: make(map[string]string, len(schema.fields)),
		dates:  map[string]time.Time{},
	}
	for _, field := range schema.fields {
		v := values[field]
		if IsDateField(field) {
			t, ok := dates.Parse(v)
			if !ok {
				v = ""
			} else {
				r.dates[field] = t
			}
		}
		r.values[field] = v
	}
	return r
}

func (r Row) Get(field string) string {
	return r.values[field]
}

// Date returns the parsed value of a date field.
func (r Row) Date(field string) (time.Time, bool) {
	t, ok := r.dates[field]
	return t, ok
}

// Values returns a copy of the row's fields.
func (r Row) Values() map[string]string {
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

func (r Row) MarshalJSON() ([]byte, error) {
	if r.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.values)
}

func (r *Row) UnmarshalJSON(data []byte) error {
	var values map[string]string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*r = RowFromValues(canonicalSchema, values)
	return nil
}

// canonicalSchema backs JSON decoding; schemas are read-only once built.
var canonicalSchema = DefaultSchema()

// Rejection explains why a raw row was dropped.
type Rejection struct {
	Row    int    `json:"row"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
	Value  string `json:"value,omitempty"`
}

const (
	ReasonMissing     = "missing"
	ReasonInvalidDate = "invalid_date"
)

func (r *Rejection) Error() string {
	if r.Value != "" {
		return fmt.Sprintf("row %d: %s %s (%q)", r.Row, r.Field, r.Reason, r.Value)
	}
	return fmt.Sprintf("row %d: %s %s", r.Row, r.Field, r.Reason)
}

// Validator maps raw rows onto the schema and enforces mandatory fields.
type Validator struct {
	Schema   *Schema
	Required []string
}

// NewValidator returns a validator requiring the given fields, or the
// opening date when none are named.
func NewValidator(schema *Schema, required ...string) *Validator {
	if schema == nil {
		schema = DefaultSchema()
	}
	if len(required) == 0 {
		required = []string{FieldOpeningDate}
	}
	return &Validator{Schema: schema, Required: required}
}

// Normalize converts one raw row. The returned error is a *Rejection.
func (v *Validator) Normalize(raw RawRow) (Row, error) {
	return v.normalize(raw, 0)
}

// NormalizeAll converts a batch, dropping rejected rows. Rejection row
// numbers are 1-based positions in raws.
func (v *Validator) NormalizeAll(raws []RawRow) ([]Row, []Rejection) {
	rows := make([]Row, 0, len(raws))
	var rejections []Rejection
	for i, raw := range raws {
		row, err := v.normalize(raw, i+1)
		if err != nil {
			if rej, ok := err.(*Rejection); ok {
				rejections = append(rejections, *rej)
			}
			continue
		}
		rows = append(rows, row)
	}
	return rows, rejections
}

func (v *Validator) normalize(raw RawRow, position int) (Row, error) {
	lookup := newRawLookup(raw)
	row := Row{
		values: make(map[string]string, len(v.Schema.fields)),
		dates:  map[string]time.Time{},
	}
	rawText := map[string]string{}

	for _, field := range v.Schema.fields {
		value := lookup.get(v.Schema.candidates(field))
		if IsDateField(field) {
			if t, ok := dates.Normalize(value); ok {
				row.values[field] = dates.Format(t)
				row.dates[field] = t
			} else {
				row.values[field] = ""
				rawText[field] = toText(value)
			}
			continue
		}
		row.values[field] = toText(value)
	}

	if rej := v.checkRequired(row, rawText); rej != nil {
		rej.Row = position
		return Row{}, rej
	}
	return row, nil
}

// Check applies the mandatory-field rule to an already canonical row, such
// as one read back from storage.
func (v *Validator) Check(row Row) error {
	if rej := v.checkRequired(row, nil); rej != nil {
		return rej
	}
	return nil
}

// checkRequired rejects rows whose mandatory fields came out empty.
func (v *Validator) checkRequired(row Row, rawText map[string]string) *Rejection {
	for _, field := range v.Required {
		if strings.TrimSpace(row.values[field]) != "" {
			continue
		}
		original := strings.TrimSpace(rawText[field])
		if IsDateField(field) && original != "" {
			return &Rejection{Field: field, Reason: ReasonInvalidDate, Value: original}
		}
		return &Rejection{Field: field, Reason: ReasonMissing}
	}
	return nil
}

type rawLookup struct {
	raw    RawRow
	folded map[string]string
}

func newRawLookup(raw RawRow) rawLookup {
	folded := make(map[string]string, len(raw))
	for key := range raw {
		k := FoldHeader(key)
		if _, taken := folded[k]; !taken {
			folded[k] = key
		}
	}
	return rawLookup{raw: raw, folded: folded}
}

// get returns the first non-blank value among the candidate headers, trying
// exact names before folded ones.
func (l rawLookup) get(candidates []string) any {
	for _, name := range candidates {
		if v, ok := l.raw[name]; ok && !isBlank(v) {
			return v
		}
	}
	for _, name := range candidates {
		if key, ok := l.folded[FoldHeader(name)]; ok && !isBlank(l.raw[key]) {
			return l.raw[key]
		}
	}
	return nil
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

// toText renders a cell value as text; nil becomes "".
func toText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case time.Time:
		return dates.Format(t)
	case fmt.Stringer:
		return t.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Pointer:
		if rv.IsNil() {
			return ""
		}
		return toText(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}
