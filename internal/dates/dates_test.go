package dates

import (
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name  string
		input any
		want  string
	}{
		// Serials count days from 1899-12-30 in UTC, so 45001 is the 16th
		// regardless of the host time zone.
		{name: "serial number", input: float64(45000), want: "15/03/2023"},
		{name: "serial next day", input: float64(45001), want: "16/03/2023"},
		{name: "serial as text", input: "45001", want: "16/03/2023"},
		{name: "serial with time fraction", input: 45001.75, want: "16/03/2023"},
		{name: "serial as int", input: 43857, want: "27/01/2020"},
		{name: "decimal serial text", input: "43857.5", want: "27/01/2020"},
		{name: "day first with double-space time", input: "27/01/2020  10:00:00", want: "27/01/2020"},
		{name: "day first with wide time gap", input: "05/05/2025    16:59:43", want: "05/05/2025"},
		{name: "day first with single-space time", input: "27/01/2020 10:00", want: "27/01/2020"},
		{name: "day first short parts", input: "5/3/2024", want: "05/03/2024"},
		{name: "surrounding whitespace", input: "  01/12/2021 ", want: "01/12/2021"},
		{name: "iso date", input: "2024-03-05", want: "05/03/2024"},
		{name: "iso timestamp", input: "2024-03-05T10:11:12Z", want: "05/03/2024"},
		{name: "time value", input: time.Date(2022, 7, 9, 23, 0, 0, 0, time.UTC), want: "09/07/2022"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Normalize(tc.input)
			if !ok {
				t.Fatalf("expected %q to normalize", tc.input)
			}
			if Format(got) != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, Format(got))
			}
			if got.Hour() != 0 || got.Minute() != 0 || got.Location() != time.UTC {
				t.Fatalf("expected a UTC civil date, got %v", got)
			}
		})
	}
}

func TestNormalizeRejects(t *testing.T) {
	inputs := []any{
		nil,
		"",
		"   ",
		"abc",
		"31/02/2020",
		"13/13/2020",
		"27/01/20",
		"27-01-2020",
		"27/01/2020 garbage",
		"0",
		float64(0),
		-5,
		"2024-02-30",
		true,
		struct{}{},
	}
	for _, input := range inputs {
		if got, ok := Normalize(input); ok {
			t.Fatalf("expected %#v to be absent, got %s", input, Format(got))
		}
	}
}

func TestSerialAndTextAgree(t *testing.T) {
	for serial := 40000; serial < 40800; serial++ {
		fromSerial, ok := Normalize(serial)
		if !ok {
			t.Fatalf("expected serial %d to normalize", serial)
		}
		fromText, ok := Normalize(Format(fromSerial))
		if !ok {
			t.Fatalf("expected %s to normalize", Format(fromSerial))
		}
		if !fromSerial.Equal(fromText) {
			t.Fatalf("serial %d: expected %v, got %v", serial, fromSerial, fromText)
		}
		withTime, ok := Normalize(Format(fromSerial) + "  00:00:00")
		if !ok || !withTime.Equal(fromSerial) {
			t.Fatalf("serial %d: expected time suffix to be ignored", serial)
		}
	}
}

func TestParse(t *testing.T) {
	got, ok := Parse("15/03/2023")
	if !ok {
		t.Fatal("expected canonical date to parse")
	}
	if got.Year() != 2023 || got.Month() != time.March || got.Day() != 15 {
		t.Fatalf("expected 2023-03-15, got %v", got)
	}
	if _, ok := Parse(""); ok {
		t.Fatal("expected empty text to be absent")
	}
	if _, ok := Parse("2023-03-15"); ok {
		t.Fatal("expected non-canonical text to be rejected")
	}
}

func TestDaysBetween(t *testing.T) {
	open := time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC)
	closed := time.Date(2020, 1, 27, 0, 0, 0, 0, time.UTC)

	if got := DaysBetween(open, closed); got != 1143 {
		t.Fatalf("expected 1143 days, got %d", got)
	}
	if DaysBetween(open, closed) != DaysBetween(closed, open) {
		t.Fatal("expected distance to be symmetric")
	}
	if got := DaysBetween(open, open); got != 0 {
		t.Fatalf("expected 0 days, got %d", got)
	}
	if got := DaysBetween(open, open.Add(25*time.Hour)); got != 2 {
		t.Fatalf("expected partial days to round up, got %d", got)
	}
}

func TestWeekStart(t *testing.T) {
	cases := map[string]string{
		"03/10/2024": "30/09/2024",
		"30/09/2024": "30/09/2024",
		"06/10/2024": "30/09/2024",
		"07/10/2024": "07/10/2024",
	}
	for in, want := range cases {
		day, _ := Parse(in)
		if got := Format(WeekStart(day)); got != want {
			t.Fatalf("%s: expected week start %s, got %s", in, want, got)
		}
	}
}
