package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hercules-motores/service-analytics/internal/orders"
)

// Postgres keeps imports in the imports and service_order_rows tables.
type Postgres struct {
	DB *pgxpool.Pool

	// beforeRows runs between the metadata and row reads of FetchAll.
	beforeRows func()
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{DB: db}
}

var rowColumns = []string{"import_id", "position", "data"}

func (p *Postgres) ReplaceImport(ctx context.Context, scope string, rows []orders.Row, meta orders.ImportMetadata) (int, error) {
	tx, err := p.DB.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback(ctx)

	// Rows of the previous import go with it (ON DELETE CASCADE).
	if _, err := tx.Exec(ctx, `DELETE FROM imports WHERE scope = $1`, scope); err != nil {
		return 0, fmt.Errorf("delete previous import: %w", err)
	}

	importID := uuid.New()
	_, err = tx.Exec(ctx,
		`INSERT INTO imports (id, scope, filename, imported_at, row_count) VALUES ($1, $2, $3, $4, $5)`,
		importID, scope, meta.Filename, meta.ImportedAt.UTC(), len(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("insert import: %w", err)
	}

	copyRows := make([][]any, 0, len(rows))
	for i, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return 0, fmt.Errorf("encode row %d: %w", i+1, err)
		}
		copyRows = append(copyRows, []any{importID, i, data})
	}
	written, err := tx.CopyFrom(ctx, pgx.Identifier{"service_order_rows"}, rowColumns, pgx.CopyFromRows(copyRows))
	if err != nil {
		return 0, fmt.Errorf("copy rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return int(written), nil
}

// FetchAll reads metadata and rows from one snapshot, so a concurrent
// ReplaceImport is seen either entirely or not at all.
func (p *Postgres) FetchAll(ctx context.Context, scope string) (Dataset, error) {
	tx, err := p.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return Dataset{}, fmt.Errorf("begin fetch: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		importID uuid.UUID
		meta     orders.ImportMetadata
	)
	err = tx.QueryRow(ctx,
		`SELECT id, filename, imported_at FROM imports WHERE scope = $1`, scope,
	).Scan(&importID, &meta.Filename, &meta.ImportedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Dataset{}, nil
	}
	if err != nil {
		return Dataset{}, fmt.Errorf("load import: %w", err)
	}

	if p.beforeRows != nil {
		p.beforeRows()
	}

	result, err := tx.Query(ctx,
		`SELECT data FROM service_order_rows WHERE import_id = $1 ORDER BY position`, importID,
	)
	if err != nil {
		return Dataset{}, fmt.Errorf("query rows: %w", err)
	}
	defer result.Close()

	var rows []orders.Row
	for result.Next() {
		var data []byte
		if err := result.Scan(&data); err != nil {
			return Dataset{}, fmt.Errorf("scan row: %w", err)
		}
		var row orders.Row
		if err := json.Unmarshal(data, &row); err != nil {
			return Dataset{}, fmt.Errorf("decode row: %w", err)
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return Dataset{}, fmt.Errorf("read rows: %w", err)
	}
	result.Close()
	if err := tx.Commit(ctx); err != nil {
		return Dataset{}, fmt.Errorf("commit fetch: %w", err)
	}

	meta.ImportedAt = meta.ImportedAt.UTC()
	return Dataset{Rows: rows, Metadata: &meta}, nil
}

func (p *Postgres) FetchMetadata(ctx context.Context, scope string) (*orders.ImportMetadata, error) {
	var (
		filename   string
		importedAt time.Time
	)
	err := p.DB.QueryRow(ctx,
		`SELECT filename, imported_at FROM imports WHERE scope = $1`, scope,
	).Scan(&filename, &importedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load import metadata: %w", err)
	}
	return &orders.ImportMetadata{Filename: filename, ImportedAt: importedAt.UTC()}, nil
}
