package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"

	"github.com/hercules-motores/service-analytics/internal/audit"
	"github.com/hercules-motores/service-analytics/internal/filter"
	"github.com/hercules-motores/service-analytics/internal/httpx"
	"github.com/hercules-motores/service-analytics/internal/orders"
)

// GetExportsOrdersCsv streams the filtered orders with one line per related
// item, using the schema's column order. The separator is ';' so the file
// opens directly in pt-BR spreadsheet tools.
func (s *Server) GetExportsOrdersCsv(w http.ResponseWriter, r *http.Request) {
	state, err := parseFilter(r)
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	snap := s.Importer.Snapshot()
	rows := orders.Flatten(filter.Apply(snap.Orders, state))
	filename := exportFilename(snap.Metadata)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	writer := csv.NewWriter(w)
	writer.Comma = ';'

	fields := s.Schema.Fields()
	if err := writer.Write(fields); err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to generate export CSV", nil)
		return
	}
	record := make([]string, len(fields))
	for _, row := range rows {
		for i, field := range fields {
			record[i] = row.Get(field)
		}
		if err := writer.Write(record); err != nil {
			s.Logger.Warn("export_write_failed", "error", err)
			return
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		s.Logger.Warn("export_write_failed", "error", err)
		return
	}

	s.record(r.Context(), r, audit.ActionExport, "orders", filename, map[string]any{
		"filename": filename,
		"rows":     len(rows),
	})
}

func exportFilename(meta *orders.ImportMetadata) string {
	if meta == nil {
		return "orders.csv"
	}
	base := meta.Filename
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	base = strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 0x20 {
			return '_'
		}
		return r
	}, base)
	return base + "-filtered.csv"
}
