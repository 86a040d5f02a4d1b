package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hercules-motores/service-analytics/internal/audit"
	"github.com/hercules-motores/service-analytics/internal/cache"
	"github.com/hercules-motores/service-analytics/internal/config"
	"github.com/hercules-motores/service-analytics/internal/db"
	"github.com/hercules-motores/service-analytics/internal/decode"
	"github.com/hercules-motores/service-analytics/internal/importer"
	"github.com/hercules-motores/service-analytics/internal/orders"
	"github.com/hercules-motores/service-analytics/internal/store"
)

const sheet = "OS;Data Abertura;Data Fechamento;Status;Finalidade;Faturado Para;Cidade Posto;Razão Social Posto;Peças Trocadas;Descrição Peça\n" +
	"1001;10/01/2024;15/01/2024;Finalizado;Garantia;Loja Centro;Recife;Posto A;R1;Rotor\n" +
	"1002;12/01/2024;;Aberto;Venda;Loja Centro;Recife;Posto A;E1;Estator\n" +
	"1002;12/01/2024;;Aberto;Venda;Loja Centro;Recife;Posto A;R1;Rotor\n" +
	"1003;20/02/2024;22/02/2024;Finalizado;Garantia;Loja Norte;Olinda;Posto B;;\n" +
	"1004;;;Aberto;Venda;Loja Norte;Olinda;Posto B;;\n"

type testEnv struct {
	router   http.Handler
	importer *importer.Orchestrator
	audit    *audit.Memory
}

func setupMemoryEnv(t *testing.T, mutate ...func(*config.Config)) testEnv {
	t.Helper()
	return setupEnv(t, store.NewMemory(), mutate...)
}

func setupEnv(t *testing.T, st store.Store, mutate ...func(*config.Config)) testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		Addr:               ":0",
		StoreDriver:        config.StoreMemory,
		ImportScope:        "test",
		Env:                "test",
		APIMaxBodyBytes:    1 << 20,
		ImportMaxFileBytes: 5 << 20,
		ImportMaxRows:      1000,
		UploadRateLimit:    20,
		UploadRateWindow:   time.Minute,
		RateLimitMaxIPs:    100,
		DashboardMemoSize:  16,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}

	schema := orders.DefaultSchema()
	imp := importer.New(importer.Options{
		Store:     st,
		Cache:     cache.NewMemory(),
		Decoder:   decode.Decoder{MaxRows: cfg.ImportMaxRows},
		Validator: orders.NewValidator(schema),
		Scope:     cfg.ImportScope,
		Logger:    logger,
	})
	recorder := &audit.Memory{}
	router, err := NewRouter(cfg, imp, schema, recorder, logger)
	if err != nil {
		t.Fatalf("create router: %v", err)
	}
	return testEnv{router: router, importer: imp, audit: recorder}
}

func TestHealth(t *testing.T) {
	env := setupMemoryEnv(t)
	status, body := request(t, env.router, http.MethodGet, "/api/health")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	if !strings.Contains(string(body), `"status":"ok"`) {
		t.Fatalf("unexpected health body: %s", body)
	}
}

func TestUploadAndDashboard(t *testing.T) {
	env := setupMemoryEnv(t)

	status, body := upload(t, env.router, "servicos.csv", []byte(sheet))
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", status, body)
	}
	var result importer.ImportResult
	decodeJSON(t, body, &result)
	if result.Rows != 4 || result.Orders != 3 || result.Rejected != 1 {
		t.Fatalf("expected 4 rows / 3 orders / 1 rejected, got %+v", result)
	}

	status, body = request(t, env.router, http.MethodGet, "/api/dashboard")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var dash struct {
		KPIs struct {
			TotalOrders        int     `json:"totalOrders"`
			WarrantyPercentage float64 `json:"warrantyPercentage"`
		} `json:"kpis"`
		PartRanking []struct {
			Label    string `json:"label"`
			Quantity int    `json:"quantidade"`
		} `json:"partRanking"`
		Metadata *orders.ImportMetadata `json:"metadata"`
	}
	decodeJSON(t, body, &dash)
	if dash.KPIs.TotalOrders != 3 || dash.KPIs.WarrantyPercentage != 66.67 {
		t.Fatalf("unexpected kpis: %+v", dash.KPIs)
	}
	if len(dash.PartRanking) == 0 || dash.PartRanking[0].Label != "R1 - Rotor" || dash.PartRanking[0].Quantity != 2 {
		t.Fatalf("unexpected part ranking: %+v", dash.PartRanking)
	}
	if dash.Metadata == nil || dash.Metadata.Filename != "servicos.csv" {
		t.Fatalf("expected metadata in dashboard, got %+v", dash.Metadata)
	}

	status, body = request(t, env.router, http.MethodGet, "/api/dashboard?start=2024-02-01&end=2024-02-29&status=Finalizado")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	decodeJSON(t, body, &dash)
	if dash.KPIs.TotalOrders != 1 {
		t.Fatalf("expected 1 order in february, got %d", dash.KPIs.TotalOrders)
	}

	status, body = request(t, env.router, http.MethodGet, "/api/dashboard?start=2024-03-01&end=2024-01-01")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	decodeJSON(t, body, &dash)
	if dash.KPIs.TotalOrders != 0 {
		t.Fatalf("expected inverted range to match nothing, got %d", dash.KPIs.TotalOrders)
	}

	entries := env.audit.Entries()
	if len(entries) != 1 || entries[0].Action != audit.ActionImportApply {
		t.Fatalf("expected one import audit entry, got %+v", entries)
	}
}

func TestEveryFilterOptionMatchesOrders(t *testing.T) {
	env := setupMemoryEnv(t)
	padded := "OS;Data Abertura;Status;Finalidade;Faturado Para;Cidade Posto;Razão Social Posto;Peças Trocadas;Descrição Peça\n" +
		"2001;05/03/2024;Aberto ;Garantia;Loja Sul ;Recife ;Posto C ;R1;Rotor \n" +
		"2002;06/03/2024;Finalizado;Venda;Loja Norte;Olinda;Posto B;;\n"
	if status, body := upload(t, env.router, "padded.csv", []byte(padded)); status != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", status, body)
	}

	status, body := request(t, env.router, http.MethodGet, "/api/filter-options")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var options map[string][]string
	decodeJSON(t, body, &options)
	if !contains(options["cities"], "Recife ") {
		t.Fatalf("expected untrimmed city option, got %v", options["cities"])
	}

	params := map[string]string{
		"productFamilies": "productFamily",
		"statuses":        "status",
		"states":          "state",
		"customers":       "customer",
		"resellers":       "reseller",
		"cities":          "city",
		"authorized":      "authorized",
		"defects":         "defect",
		"parts":           "part",
		"products":        "product",
	}
	for dimension, values := range options {
		param, ok := params[dimension]
		if !ok {
			t.Fatalf("unexpected option dimension %q", dimension)
		}
		for _, v := range values {
			query := url.Values{param: {v}}.Encode()
			status, body := request(t, env.router, http.MethodGet, "/api/dashboard?"+query)
			if status != http.StatusOK {
				t.Fatalf("expected 200 for %s, got %d: %s", query, status, body)
			}
			var dash struct {
				KPIs struct {
					TotalOrders int `json:"totalOrders"`
				} `json:"kpis"`
			}
			decodeJSON(t, body, &dash)
			if dash.KPIs.TotalOrders == 0 {
				t.Fatalf("expected option %s=%q to match orders", param, v)
			}
		}
	}
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

func TestDashboardRejectsBadDate(t *testing.T) {
	env := setupMemoryEnv(t)
	status, body := request(t, env.router, http.MethodGet, "/api/dashboard?start=15/03/2024")
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", status, body)
	}
	if !strings.Contains(string(body), `"code":"validation_error"`) {
		t.Fatalf("expected validation_error envelope, got %s", body)
	}
}

func TestOrdersEndpoints(t *testing.T) {
	env := setupMemoryEnv(t)
	if status, body := upload(t, env.router, "servicos.csv", []byte(sheet)); status != http.StatusCreated {
		t.Fatalf("upload: %d %s", status, body)
	}

	status, body := request(t, env.router, http.MethodGet, "/api/orders?reseller=Loja%20Centro&limit=1")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var page struct {
		Items []map[string]any `json:"items"`
		Total int              `json:"total"`
		Limit int              `json:"limit"`
	}
	decodeJSON(t, body, &page)
	if page.Total != 2 || page.Limit != 1 || len(page.Items) != 1 {
		t.Fatalf("unexpected page: total=%d limit=%d items=%d", page.Total, page.Limit, len(page.Items))
	}

	status, body = request(t, env.router, http.MethodGet, "/api/orders/1002")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var order struct {
		OS           string           `json:"OS"`
		RelatedItems []map[string]any `json:"relatedItems"`
	}
	decodeJSON(t, body, &order)
	if order.OS != "1002" || len(order.RelatedItems) != 2 {
		t.Fatalf("expected OS 1002 with 2 items, got %+v", order)
	}

	if status, _ := request(t, env.router, http.MethodGet, "/api/orders/9999"); status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown order, got %d", status)
	}

	status, body = request(t, env.router, http.MethodGet, "/api/customers/summary?reseller=Loja%20Centro")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var summary struct {
		TotalOS  int `json:"totalOS"`
		ActiveOS int `json:"activeOS"`
	}
	decodeJSON(t, body, &summary)
	if summary.TotalOS != 2 || summary.ActiveOS != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	status, body = request(t, env.router, http.MethodGet, "/api/filter-options")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var options struct {
		Resellers []string `json:"resellers"`
	}
	decodeJSON(t, body, &options)
	if len(options.Resellers) != 2 {
		t.Fatalf("expected 2 resellers, got %v", options.Resellers)
	}
}

func TestExportOrdersCSV(t *testing.T) {
	env := setupMemoryEnv(t)
	if status, body := upload(t, env.router, "servicos.csv", []byte(sheet)); status != http.StatusCreated {
		t.Fatalf("upload: %d %s", status, body)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/exports/orders.csv?city=Recife", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "servicos-filtered.csv") {
		t.Fatalf("unexpected content disposition %q", got)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	// header + OS 1001 + two items of OS 1002
	if len(lines) != 4 {
		t.Fatalf("expected 4 csv lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "OS;Tipo;Status") {
		t.Fatalf("unexpected csv header %q", lines[0])
	}
}

func TestUploadErrors(t *testing.T) {
	env := setupMemoryEnv(t)

	status, body := upload(t, env.router, "relatorio.pdf", []byte("%PDF-1.4"))
	if status != http.StatusBadRequest || !strings.Contains(string(body), `"code":"unsupported_format"`) {
		t.Fatalf("expected unsupported_format, got %d: %s", status, body)
	}

	status, body = upload(t, env.router, "vazio.csv", []byte("OS;Data Abertura\n1;\n"))
	if status != http.StatusUnprocessableEntity || !strings.Contains(string(body), `"code":"no_valid_rows"`) {
		t.Fatalf("expected no_valid_rows, got %d: %s", status, body)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/imports", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-multipart upload, got %d", rec.Code)
	}
}

func TestUploadSizeLimit(t *testing.T) {
	env := setupMemoryEnv(t, func(cfg *config.Config) { cfg.ImportMaxFileBytes = 64 })
	status, body := upload(t, env.router, "grande.csv", []byte(sheet))
	if status != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", status, body)
	}
}

func TestUploadRateLimited(t *testing.T) {
	env := setupMemoryEnv(t, func(cfg *config.Config) { cfg.UploadRateLimit = 1 })
	if status, body := upload(t, env.router, "servicos.csv", []byte(sheet)); status != http.StatusCreated {
		t.Fatalf("upload: %d %s", status, body)
	}
	status, body := upload(t, env.router, "servicos.csv", []byte(sheet))
	if status != http.StatusTooManyRequests || !strings.Contains(string(body), `"code":"RATE_LIMITED"`) {
		t.Fatalf("expected 429 RATE_LIMITED, got %d: %s", status, body)
	}
}

func TestClearAndReload(t *testing.T) {
	env := setupMemoryEnv(t)
	if status, body := upload(t, env.router, "servicos.csv", []byte(sheet)); status != http.StatusCreated {
		t.Fatalf("upload: %d %s", status, body)
	}

	if status, body := request(t, env.router, http.MethodDelete, "/api/imports/current"); status != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", status, body)
	}
	var current struct {
		Orders   int                    `json:"orders"`
		State    string                 `json:"state"`
		Metadata *orders.ImportMetadata `json:"metadata"`
	}
	_, body := request(t, env.router, http.MethodGet, "/api/imports/current")
	decodeJSON(t, body, &current)
	if current.Orders != 0 || current.Metadata != nil {
		t.Fatalf("expected empty view after clear, got %+v", current)
	}

	status, body := request(t, env.router, http.MethodPost, "/api/imports/reload")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	decodeJSON(t, body, &current)
	if current.Orders != 3 || current.State != string(importer.StateIdle) {
		t.Fatalf("expected 3 orders after reload, got %+v", current)
	}
}

func TestPostgresRoundTrip(t *testing.T) {
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

	env := setupEnv(t, store.NewPostgres(pool))
	if status, body := upload(t, env.router, "servicos.csv", []byte(sheet)); status != http.StatusCreated {
		t.Fatalf("upload: %d %s", status, body)
	}

	fresh := setupEnv(t, store.NewPostgres(pool))
	if err := fresh.importer.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap := fresh.importer.Snapshot(); len(snap.Orders) != 3 || snap.Source != importer.SourceStore {
		t.Fatalf("expected 3 orders loaded from postgres, got %d (%s)", len(snap.Orders), snap.Source)
	}
}

func upload(t *testing.T, router http.Handler, filename string, payload []byte) (int, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/imports", &buf)
	req.RemoteAddr = "127.0.0.1:12345"
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	resBody, _ := io.ReadAll(rec.Result().Body)
	return rec.Code, resBody
}

func request(t *testing.T, router http.Handler, method, path string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "127.0.0.1:12345"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	resBody, _ := io.ReadAll(rec.Result().Body)
	return rec.Code, resBody
}

func decodeJSON(t *testing.T, body []byte, dest any) {
	t.Helper()
	if err := json.Unmarshal(body, dest); err != nil {
		t.Fatalf("decode response: %v (%s)", err, body)
	}
}
