// Package dates turns the date encodings found in service-order exports into
// calendar dates. Dates are civil: they carry no time of day and live at UTC
// midnight so that day arithmetic is exact.
package dates

import (
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Layout is the canonical text form of a normalized date.
const Layout = "02/01/2006"

const (
	// serialEpochOffset is the number of days between the spreadsheet epoch
	// (1899-12-30) and the Unix epoch.
	serialEpochOffset = 25569

	// maxSerial is 9999-12-31, the last day spreadsheets can represent.
	maxSerial     = 2958465
	secondsPerDay = 86400
)

var (
	numericRe  = regexp.MustCompile(`^\d+(\.\d+)?$`)
	dayFirstRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})(?: \d{1,2}:\d{2}(?::\d{2})?)?$`)
	isoRe      = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})(?:[T ]\d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?(?:Z|[+-]\d{2}:?\d{2})?)?$`)

	// Two or more spaces separate the date from the time in ATweb exports
	// ("27/01/2020  00:00:00").
	timeSeparatorRe = regexp.MustCompile(` {2,}`)
)

// Normalize interprets a raw cell value as a calendar date. It accepts
// spreadsheet serials (native numbers or all-digit text), day-first
// D/M/YYYY text with an optional time suffix, and ISO YYYY-MM-DD text.
// Anything else reports false; Normalize never panics.
func Normalize(value any) (time.Time, bool) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, false
	case string:
		return normalizeText(v)
	case []byte:
		return normalizeText(string(v))
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		return civil(v.Year(), int(v.Month()), v.Day())
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return Normalize(*v)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return FromSerial(rv.Float())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return FromSerial(float64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return FromSerial(float64(rv.Uint()))
	}
	return time.Time{}, false
}

// FromSerial converts a spreadsheet date serial. The fractional part (time of
// day) is dropped.
func FromSerial(serial float64) (time.Time, bool) {
	if math.IsNaN(serial) || math.IsInf(serial, 0) || serial <= 0 || serial > maxSerial {
		return time.Time{}, false
	}
	unixDays := int64(math.Floor(serial - serialEpochOffset))
	t := time.Unix(unixDays*secondsPerDay, 0).UTC()
	return civil(t.Year(), int(t.Month()), t.Day())
}

func normalizeText(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	if numericRe.MatchString(s) {
		serial, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, false
		}
		return FromSerial(serial)
	}

	if loc := timeSeparatorRe.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}

	if m := dayFirstRe.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		return civil(year, month, day)
	}

	if m := isoRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return civil(year, month, day)
	}

	return time.Time{}, false
}

func civil(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

// Of truncates t to its calendar date, read in t's own location.
func Of(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func Format(t time.Time) string {
	return t.Format(Layout)
}

// Parse reads the canonical DD/MM/YYYY form.
func Parse(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DaysBetween is the absolute distance between two dates in whole days,
// rounded up.
func DaysBetween(a, b time.Time) int {
	d := b.Sub(a)
	if d < 0 {
		d = -d
	}
	return int(math.Ceil(d.Hours() / 24))
}

// WeekStart returns the Monday of t's ISO week.
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return Of(t).AddDate(0, 0, -offset)
}

func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}
