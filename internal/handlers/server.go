package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hercules-motores/service-analytics/internal/analytics"
	"github.com/hercules-motores/service-analytics/internal/audit"
	"github.com/hercules-motores/service-analytics/internal/config"
	"github.com/hercules-motores/service-analytics/internal/httpx"
	"github.com/hercules-motores/service-analytics/internal/importer"
	"github.com/hercules-motores/service-analytics/internal/middleware"
	"github.com/hercules-motores/service-analytics/internal/orders"
)

type Server struct {
	Config   config.Config
	Importer *importer.Orchestrator
	Memo     *analytics.Memo
	Schema   *orders.Schema
	Audit    audit.Recorder
	Logger   *slog.Logger
}

func NewServer(cfg config.Config, imp *importer.Orchestrator, schema *orders.Schema, auditLogger audit.Recorder, logger *slog.Logger) *Server {
	if schema == nil {
		schema = orders.DefaultSchema()
	}
	return &Server{
		Config:   cfg,
		Importer: imp,
		Memo:     analytics.NewMemo(cfg.DashboardMemoSize),
		Schema:   schema,
		Audit:    auditLogger,
		Logger:   logger,
	}
}

func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.Importer.Snapshot()
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"state":  s.Importer.State(),
		"orders": len(snap.Orders),
	})
}

// record writes an audit entry. Failures are logged and never surface to
// the client.
func (s *Server) record(ctx context.Context, r *http.Request, action, entityType, entityID string, metadata map[string]any) {
	if s.Audit == nil {
		return
	}
	err := s.Audit.Log(ctx, audit.Entry{
		Scope:      s.Config.ImportScope,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		RequestID:  middleware.RequestIDFromContext(r.Context()),
		Metadata:   metadata,
	})
	if err != nil {
		s.Logger.Warn("audit_failed", "action", action, "error", err)
	}
}
