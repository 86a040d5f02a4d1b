package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hercules-motores/service-analytics/internal/db"
	"github.com/hercules-motores/service-analytics/internal/orders"
)

func sampleRows(t *testing.T) []orders.Row {
	t.Helper()
	rows, rejections := orders.NewValidator(nil).NormalizeAll([]orders.RawRow{
		{"OS": "1", "Data Abertura": "01/03/2024", "Status": "Aberta", "Descrição Peça": "Rotor"},
		{"OS": "1", "Data Abertura": "01/03/2024", "Status": "Finalizada", "Descrição Peça": "Estator"},
		{"OS": "2", "Data Abertura": 45001},
	})
	if len(rejections) != 0 {
		t.Fatalf("unexpected rejections: %+v", rejections)
	}
	return rows
}

// exerciseStore runs the contract every Store implementation must meet.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	meta, err := s.FetchMetadata(ctx, "default")
	if err != nil || meta != nil {
		t.Fatalf("expected no metadata before import, got %v %v", meta, err)
	}
	ds, err := s.FetchAll(ctx, "default")
	if err != nil || ds.Metadata != nil || len(ds.Rows) != 0 {
		t.Fatalf("expected empty dataset, got %+v %v", ds, err)
	}

	first := orders.ImportMetadata{Filename: "jan.xlsx", ImportedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	n, err := s.ReplaceImport(ctx, "default", sampleRows(t), first)
	if err != nil {
		t.Fatalf("replace import: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows written, got %d", n)
	}

	second := orders.ImportMetadata{Filename: "feb.xlsx", ImportedAt: first.ImportedAt.Add(time.Hour)}
	if _, err := s.ReplaceImport(ctx, "default", sampleRows(t)[:1], second); err != nil {
		t.Fatalf("replace import: %v", err)
	}
	if _, err := s.ReplaceImport(ctx, "other", sampleRows(t), first); err != nil {
		t.Fatalf("replace other scope: %v", err)
	}

	ds, err = s.FetchAll(ctx, "default")
	if err != nil {
		t.Fatalf("fetch all: %v", err)
	}
	if len(ds.Rows) != 1 {
		t.Fatalf("expected previous import to be replaced, got %d rows", len(ds.Rows))
	}
	if ds.Metadata == nil || !ds.Metadata.SameImport(second) {
		t.Fatalf("expected metadata %+v, got %+v", second, ds.Metadata)
	}
	if _, ok := ds.Rows[0].Date(orders.FieldOpeningDate); !ok {
		t.Fatal("expected stored rows to keep parsed dates")
	}

	ds, err = s.FetchAll(ctx, "other")
	if err != nil || len(ds.Rows) != 3 {
		t.Fatalf("expected 3 rows in other scope, got %d %v", len(ds.Rows), err)
	}
	if got := ds.Rows[2].Get(orders.FieldOpeningDate); got != "16/03/2023" {
		t.Fatalf("expected row order to be kept, got %q", got)
	}

	meta, err = s.FetchMetadata(ctx, "default")
	if err != nil || meta == nil || meta.Filename != "feb.xlsx" {
		t.Fatalf("expected feb.xlsx metadata, got %+v %v", meta, err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryStoreCopiesRows(t *testing.T) {
	s := NewMemory()
	rows := sampleRows(t)
	if _, err := s.ReplaceImport(context.Background(), "default", rows, orders.ImportMetadata{Filename: "a.csv"}); err != nil {
		t.Fatalf("replace import: %v", err)
	}
	rows[0] = orders.Row{}

	ds, _ := s.FetchAll(context.Background(), "default")
	if ds.Rows[0].Get(orders.FieldOrder) != "1" {
		t.Fatal("expected stored rows to be independent of the caller's slice")
	}
}

func TestPostgresStore(t *testing.T) {
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, databaseURL)
	if err != nil {
		t.Fatalf("connect test db: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, `DROP SCHEMA public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := db.Migrate(databaseURL, filepath.Join("..", "..", "migrations")); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	exerciseStore(t, NewPostgres(pool))

	// A replace landing between the two reads must not tear the result.
	s := NewPostgres(pool)
	third := orders.ImportMetadata{Filename: "mar.xlsx", ImportedAt: time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)}
	s.beforeRows = func() {
		s.beforeRows = nil
		if _, err := s.ReplaceImport(ctx, "other", sampleRows(t)[:1], third); err != nil {
			t.Errorf("concurrent replace: %v", err)
		}
	}
	ds, err := s.FetchAll(ctx, "other")
	if err != nil {
		t.Fatalf("fetch all: %v", err)
	}
	if ds.Metadata == nil || ds.Metadata.Filename != "jan.xlsx" || len(ds.Rows) != 3 {
		t.Fatalf("expected the jan.xlsx import with 3 rows, got %+v with %d rows", ds.Metadata, len(ds.Rows))
	}
	ds, err = s.FetchAll(ctx, "other")
	if err != nil || ds.Metadata == nil || ds.Metadata.Filename != "mar.xlsx" || len(ds.Rows) != 1 {
		t.Fatalf("expected mar.xlsx with 1 row after the replace, got %+v %v", ds.Metadata, err)
	}
}
