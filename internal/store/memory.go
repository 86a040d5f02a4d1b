package store

import (
	"context"
	"sync"

	"github.com/hercules-motores/service-analytics/internal/orders"
)

// Memory is a process-local Store. It backs tests and single-instance
// deployments without a database.
type Memory struct {
	mu      sync.RWMutex
	imports map[string]Dataset
}

func NewMemory() *Memory {
	return &Memory{imports: map[string]Dataset{}}
}

func (m *Memory) ReplaceImport(_ context.Context, scope string, rows []orders.Row, meta orders.ImportMetadata) (int, error) {
	stored := append([]orders.Row(nil), rows...)
	copied := meta

	m.mu.Lock()
	defer m.mu.Unlock()
	m.imports[scope] = Dataset{Rows: stored, Metadata: &copied}
	return len(stored), nil
}

func (m *Memory) FetchAll(_ context.Context, scope string) (Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ds, ok := m.imports[scope]
	if !ok {
		return Dataset{}, nil
	}
	meta := *ds.Metadata
	return Dataset{Rows: append([]orders.Row(nil), ds.Rows...), Metadata: &meta}, nil
}

func (m *Memory) FetchMetadata(_ context.Context, scope string) (*orders.ImportMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ds, ok := m.imports[scope]
	if !ok {
		return nil, nil
	}
	meta := *ds.Metadata
	return &meta, nil
}
