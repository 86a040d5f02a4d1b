package handlers

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hercules-motores/service-analytics/internal/orders"
)

func TestParseFilter(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/dashboard?start=2024-01-10&end=2024-02-01&status=%20Aberto%20&part=R1%20-%20Rotor", nil)
	s, err := parseFilter(req)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.Start == nil || !s.Start.Equal(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %v", s.Start)
	}
	if s.End == nil || s.End.Month() != time.February {
		t.Fatalf("unexpected end %v", s.End)
	}
	if s.Status != " Aberto " || s.Part != "R1 - Rotor" {
		t.Fatalf("unexpected selections: %+v", s)
	}

	blank, err := parseFilter(httptest.NewRequest("GET", "/api/dashboard?city=%20%20", nil))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if blank.City != "" {
		t.Fatalf("expected blank city to be unset, got %q", blank.City)
	}

	if _, err := parseFilter(httptest.NewRequest("GET", "/api/dashboard?end=2024-13-01", nil)); err == nil {
		t.Fatal("expected invalid month to fail")
	}
}

func TestParsePage(t *testing.T) {
	cases := []struct {
		query   string
		want    page
		wantErr bool
	}{
		{query: "", want: page{Limit: defaultOrderPageLimit}},
		{query: "?limit=10&offset=20", want: page{Limit: 10, Offset: 20}},
		{query: "?limit=100000", want: page{Limit: maxOrderPageLimit}},
		{query: "?limit=0", wantErr: true},
		{query: "?offset=-1", wantErr: true},
		{query: "?limit=abc", wantErr: true},
	}
	for _, tc := range cases {
		got, err := parsePage(httptest.NewRequest("GET", "/api/orders"+tc.query, nil))
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tc.query)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%q: expected %+v, got %+v (%v)", tc.query, tc.want, got, err)
		}
	}
}

func TestExportFilename(t *testing.T) {
	if got := exportFilename(nil); got != "orders.csv" {
		t.Fatalf("expected orders.csv, got %q", got)
	}
	meta := &orders.ImportMetadata{Filename: `relatorio "julho".xlsx`}
	if got := exportFilename(meta); got != "relatorio _julho_-filtered.csv" {
		t.Fatalf("unexpected filename %q", got)
	}
}
