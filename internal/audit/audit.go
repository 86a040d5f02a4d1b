// Package audit records who changed the active import and when.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	ActionImportApply  = "import.apply"
	ActionImportFailed = "import.failed"
	ActionImportReload = "import.reload"
	ActionViewClear    = "import.clear"
	ActionExport       = "export.download"
)

type Entry struct {
	Scope      string
	Action     string
	EntityType string
	EntityID   string
	RequestID  string
	Metadata   map[string]any
}

type Recorder interface {
	Log(ctx context.Context, entry Entry) error
}

// Logger writes entries to the audit_log table.
type Logger struct {
	db *pgxpool.Pool
}

func NewLogger(db *pgxpool.Pool) *Logger {
	return &Logger{db: db}
}

func (l *Logger) Log(ctx context.Context, entry Entry) error {
	metadata := []byte("{}")
	if len(entry.Metadata) > 0 {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		metadata = encoded
	}

	_, err := l.db.Exec(ctx, `
		INSERT INTO audit_log (scope, action, entity_type, entity_id, request_id, metadata)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)`,
		entry.Scope, entry.Action, entry.EntityType, entry.EntityID, entry.RequestID, metadata,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// SlogRecorder emits entries as structured log lines. It is used when no
// database is configured.
type SlogRecorder struct {
	logger *slog.Logger
}

func NewSlogRecorder(logger *slog.Logger) *SlogRecorder {
	return &SlogRecorder{logger: logger}
}

func (s *SlogRecorder) Log(ctx context.Context, entry Entry) error {
	s.logger.InfoContext(ctx, "audit",
		"scope", entry.Scope,
		"action", entry.Action,
		"entity_type", entry.EntityType,
		"entity_id", entry.EntityID,
		"request_id", entry.RequestID,
		"metadata", entry.Metadata,
	)
	return nil
}

// Memory keeps entries in order; tests read them back with Entries.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

func (m *Memory) Log(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}
