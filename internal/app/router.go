package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/go-chi/chi/v5"
	openapimiddleware "github.com/oapi-codegen/nethttp-middleware"

	apispec "github.com/hercules-motores/service-analytics/api"
	"github.com/hercules-motores/service-analytics/internal/audit"
	"github.com/hercules-motores/service-analytics/internal/config"
	"github.com/hercules-motores/service-analytics/internal/handlers"
	"github.com/hercules-motores/service-analytics/internal/httpx"
	"github.com/hercules-motores/service-analytics/internal/importer"
	"github.com/hercules-motores/service-analytics/internal/middleware"
	"github.com/hercules-motores/service-analytics/internal/orders"
)

func NewRouter(cfg config.Config, imp *importer.Orchestrator, schema *orders.Schema, auditLogger audit.Recorder, logger *slog.Logger) (http.Handler, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(apispec.Spec)
	if err != nil {
		return nil, fmt.Errorf("load openapi spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate openapi spec: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.SecurityHeaders(cfg.Env))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.LimitBodyBytesWithOverrides(cfg.APIMaxBodyBytes, []middleware.BodyLimitOverride{
		{PathPrefix: "/imports", MaxBytes: cfg.ImportMaxFileBytes},
	}))

	api := chi.NewRouter()
	api.Use(openapimiddleware.OapiRequestValidatorWithOptions(doc, &openapimiddleware.Options{
		SilenceServersWarning: true,
		// Uploads are size-limited and parsed by the handler.
		Options: openapi3filter.Options{ExcludeRequestBody: true},
		ErrorHandler: func(w http.ResponseWriter, message string, statusCode int) {
			requestID := w.Header().Get("X-Request-Id")
			httpx.WriteJSON(w, statusCode, httpx.ErrorEnvelope{
				Error:     httpx.ErrorBody{Code: "validation_error", Message: message},
				RequestID: requestID,
			})
		},
	}))

	h := handlers.NewServer(cfg, imp, schema, auditLogger, logger)
	uploadLimiter := middleware.NewIPRateLimiterWithMaxEntries(cfg.UploadRateLimit, cfg.UploadRateWindow, cfg.RateLimitMaxIPs)

	api.Get("/health", h.GetHealth)

	api.Route("/imports", func(imports chi.Router) {
		imports.With(uploadLimiter.Middleware("Too many uploads")).Post("/", h.PostImports)
		imports.Get("/current", h.GetImportsCurrent)
		imports.Delete("/current", h.DeleteImportsCurrent)
		imports.Post("/reload", h.PostImportsReload)
	})

	api.Get("/dashboard", h.GetDashboard)
	api.Get("/filter-options", h.GetFilterOptions)
	api.Get("/orders", h.GetOrders)
	api.Get("/orders/{orderId}", func(w http.ResponseWriter, r *http.Request) {
		h.GetOrdersOrderId(w, r, chi.URLParam(r, "orderId"))
	})
	api.Get("/customers/summary", h.GetCustomersSummary)
	api.Get("/exports/orders.csv", h.GetExportsOrdersCsv)

	r.Mount("/api", api)
	return r, nil
}
