// Package store persists the canonical rows of the current import, one
// import per scope.
package store

import (
	"context"

	"github.com/hercules-motores/service-analytics/internal/orders"
)

// Dataset is everything stored for a scope. Metadata is nil and Rows empty
// when nothing has been imported.
type Dataset struct {
	Rows     []orders.Row
	Metadata *orders.ImportMetadata
}

type Store interface {
	// ReplaceImport atomically discards the previous import of scope and
	// stores rows in its place, returning how many rows were written.
	ReplaceImport(ctx context.Context, scope string, rows []orders.Row, meta orders.ImportMetadata) (int, error)
	// FetchAll returns every stored row in insertion order.
	FetchAll(ctx context.Context, scope string) (Dataset, error)
	// FetchMetadata is the cheap staleness probe. It returns nil when the
	// scope has no import.
	FetchMetadata(ctx context.Context, scope string) (*orders.ImportMetadata, error)
}
