package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hercules-motores/service-analytics/internal/audit"
	"github.com/hercules-motores/service-analytics/internal/decode"
	"github.com/hercules-motores/service-analytics/internal/httpx"
	"github.com/hercules-motores/service-analytics/internal/importer"
	"github.com/hercules-motores/service-analytics/internal/orders"
)

type importStatus struct {
	Metadata  *orders.ImportMetadata `json:"metadata,omitempty"`
	State     importer.State         `json:"state"`
	Importing bool                   `json:"importing"`
	Orders    int                    `json:"orders"`
	Rejected  int                    `json:"rejected"`
	Source    string                 `json:"source"`
	Version   uint64                 `json:"version"`
	LoadedAt  time.Time              `json:"loadedAt"`
}

func (s *Server) currentStatus() importStatus {
	snap := s.Importer.Snapshot()
	return importStatus{
		Metadata:  snap.Metadata,
		State:     s.Importer.State(),
		Importing: s.Importer.Importing(),
		Orders:    len(snap.Orders),
		Rejected:  snap.Rejected,
		Source:    snap.Source,
		Version:   snap.Version,
		LoadedAt:  snap.LoadedAt.UTC(),
	}
}

func (s *Server) PostImports(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data") {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_content_type", "Content-Type must be multipart/form-data", nil)
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.WriteError(w, r, http.StatusRequestEntityTooLarge, "file_too_large", "Uploaded file exceeds the size limit", map[string]any{"maxBytes": tooLarge.Limit})
			return
		}
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_multipart", "Failed to parse multipart form", nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "missing_file", "file is required", nil)
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_file", "Failed to read uploaded file", nil)
		return
	}

	// A client hanging up must not abort a half-persisted import.
	ctx := context.WithoutCancel(r.Context())
	result, err := s.Importer.Import(ctx, header.Filename, payload)
	if err != nil {
		s.record(ctx, r, audit.ActionImportFailed, "import", header.Filename, map[string]any{
			"filename": header.Filename,
			"error":    err.Error(),
		})
		s.writeImportError(w, r, err, result)
		return
	}

	s.record(ctx, r, audit.ActionImportApply, "import", result.Metadata.Filename, map[string]any{
		"filename": result.Metadata.Filename,
		"rows":     result.Rows,
		"orders":   result.Orders,
		"rejected": result.Rejected,
	})
	httpx.WriteJSON(w, http.StatusCreated, result)
}

func (s *Server) GetImportsCurrent(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, s.currentStatus())
}

func (s *Server) DeleteImportsCurrent(w http.ResponseWriter, r *http.Request) {
	if err := s.Importer.Clear(r.Context()); err != nil {
		s.writeImportError(w, r, err, importer.ImportResult{})
		return
	}
	s.record(r.Context(), r, audit.ActionViewClear, "import", "", nil)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) PostImportsReload(w http.ResponseWriter, r *http.Request) {
	if err := s.Importer.Reload(r.Context()); err != nil {
		s.writeImportError(w, r, err, importer.ImportResult{})
		return
	}
	status := s.currentStatus()
	s.record(r.Context(), r, audit.ActionImportReload, "import", "", map[string]any{"orders": status.Orders})
	httpx.WriteJSON(w, http.StatusOK, status)
}

func (s *Server) writeImportError(w http.ResponseWriter, r *http.Request, err error, result importer.ImportResult) {
	var (
		decodeErr  *decode.DecodeError
		fetchErr   *importer.FetchError
		persistErr *importer.PersistError
	)
	switch {
	case errors.As(err, &decodeErr):
		code := "invalid_file"
		switch {
		case errors.Is(err, decode.ErrUnsupportedFormat):
			code = "unsupported_format"
		case errors.Is(err, decode.ErrEmpty):
			code = "empty_file"
		case errors.Is(err, decode.ErrTooManyRows):
			code = "too_many_rows"
		}
		httpx.WriteError(w, r, http.StatusBadRequest, code, decodeErr.Error(), nil)
	case errors.Is(err, importer.ErrNoValidRows):
		httpx.WriteError(w, r, http.StatusUnprocessableEntity, "no_valid_rows", "No row passed validation", map[string]any{
			"rejected":       result.Rejected,
			"rejections":     result.Rejections,
			"missingColumns": result.MissingColumns,
		})
	case errors.Is(err, importer.ErrImportInFlight):
		httpx.WriteError(w, r, http.StatusConflict, "import_in_progress", "An import is in progress", nil)
	case errors.Is(err, importer.ErrSuperseded):
		httpx.WriteError(w, r, http.StatusConflict, "superseded", "A newer import replaced this result", nil)
	case errors.As(err, &persistErr):
		httpx.WriteError(w, r, http.StatusServiceUnavailable, "persist_failed", "Failed to save the import; previous data kept", nil)
	case errors.As(err, &fetchErr):
		httpx.WriteError(w, r, http.StatusBadGateway, "fetch_failed", "Failed to load data from the store", nil)
	default:
		s.Logger.Error("import_error", "error", err)
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Import failed", nil)
	}
}
