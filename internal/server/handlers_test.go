package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/openextract/openextract/internal/config"
	"github.com/openextract/openextract/internal/engine"
	"github.com/openextract/openextract/internal/extract"
	"github.com/openextract/openextract/internal/registry"
	"github.com/openextract/openextract/internal/store"
)

const serverTemplateJSON = `{
  "template_id": "invoice-basic",
  "template_name": "Basic Invoice",
  "description": "Simple invoices",
  "document_type": "invoice",
  "version": "1.0.0",
  "fields": [
    {"field_name": "invoice_number", "display_name": "Invoice Number", "data_type": "string",
     "required": true, "regex_pattern": "Invoice Number: (INV-\\d+)"},
    {"field_name": "total", "display_name": "Total", "data_type": "currency",
     "required": true, "regex_pattern": "Total: \\$([\\d,.]+)"}
  ],
  "output_format": {"csv_headers": ["_source_file", "invoice_number", "total"]}
}`

func newTestServer(t *testing.T, withStore bool) *Server {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "invoice.json"), []byte(serverTemplateJSON), 0644); err != nil {
		t.Fatal(err)
	}
	reg := registry.New(dir, nil)
	if err := reg.Load(); err != nil {
		t.Fatalf("load registry: %v", err)
	}

	var st store.Store
	if withStore {
		sqlStore, err := store.NewSQLiteStore(filepath.Join(dir, "runs.db"))
		if err != nil {
			t.Fatalf("open store: %v", err)
		}
		t.Cleanup(func() { sqlStore.Close() })
		st = sqlStore
	}

	return NewServer(engine.NewEngine(), reg, extract.NewExtractor(), st,
		&config.ServerConfig{Host: "localhost", Port: 8080}, zap.NewNop())
}

// withURLParam injects a chi route parameter so handlers can be called
// without the router.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, false)

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.handleHealth(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var out struct {
		Status    string `json:"status"`
		Templates int    `json:"templates"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Status != "ok" || out.Templates != 1 {
		t.Errorf("health = %+v", out)
	}
}

func TestHandleListTemplates(t *testing.T) {
	srv := newTestServer(t, false)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/templates", nil)
	w := httptest.NewRecorder()
	srv.handleListTemplates(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var out struct {
		Templates []templateSummary `json:"templates"`
		Total     int               `json:"total"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Total != 1 || out.Templates[0].ID != "invoice-basic" {
		t.Errorf("list = %+v", out)
	}
	if out.Templates[0].FieldCount != 2 {
		t.Errorf("field count = %d", out.Templates[0].FieldCount)
	}

	r = httptest.NewRequest(http.MethodGet, "/api/v1/templates?document_type=receipt", nil)
	w = httptest.NewRecorder()
	srv.handleListTemplates(w, r)
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Total != 0 {
		t.Errorf("filtered total = %d, want 0", out.Total)
	}
}

func TestHandleGetTemplate(t *testing.T) {
	srv := newTestServer(t, false)

	r := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/templates/invoice-basic", nil), "id", "invoice-basic")
	w := httptest.NewRecorder()
	srv.handleGetTemplate(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}

	r = withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/templates/nope", nil), "id", "nope")
	w = httptest.NewRecorder()
	srv.handleGetTemplate(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestHandleExtract(t *testing.T) {
	srv := newTestServer(t, true)

	body := `{"template_id": "invoice-basic", "source": "a.txt",
	          "pages": ["Invoice Number: INV-1\nTotal: $12.50"]}`
	r := httptest.NewRequest(http.MethodPost, "/api/v1/extract", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleExtract(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	var out extractResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.RunID == "" {
		t.Error("run_id missing; runs should persist when a store is configured")
	}
	if !out.Report.Valid {
		t.Errorf("report = %+v", out.Report)
	}
	total, ok := out.Result.Outcome("total")
	if !ok || total.Value.String() != "12.50" {
		t.Errorf("total = %+v", total)
	}
}

func TestHandleExtractErrors(t *testing.T) {
	srv := newTestServer(t, false)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", "{", http.StatusBadRequest},
		{"unknown template", `{"template_id": "nope", "pages": ["x"]}`, http.StatusNotFound},
		{"empty document", `{"template_id": "invoice-basic", "pages": []}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/v1/extract", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			srv.handleExtract(w, r)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body)
			}
		})
	}
}

func TestHandleExtractBatch(t *testing.T) {
	srv := newTestServer(t, false)

	body := `{"template_id": "invoice-basic", "documents": [
	  {"source": "one.txt", "pages": ["Invoice Number: INV-1\nTotal: $1.00"]},
	  {"source": "two.txt", "pages": ["   "]},
	  {"source": "three.txt", "pages": ["Invoice Number: INV-3\nTotal: $3.00"]}
	]}`
	r := httptest.NewRequest(http.MethodPost, "/api/v1/extract/batch", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleExtractBatch(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	var out struct {
		Items []batchItemResponse `json:"items"`
		Total int                 `json:"total"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Total != 3 {
		t.Fatalf("total = %d", out.Total)
	}
	if out.Items[1].Error == "" {
		t.Error("empty document should report an item error")
	}
	if out.Items[0].Error != "" || out.Items[2].Error != "" {
		t.Error("sibling items must be unaffected by one failure")
	}
	if out.Items[2].Source != "three.txt" {
		t.Errorf("order not preserved: %+v", out.Items)
	}
}

func TestHandleExtractFile(t *testing.T) {
	srv := newTestServer(t, false)

	var buf bytes.Buffer
	mw := newMultipart(t, &buf, "upload.txt", "Invoice Number: INV-5\nTotal: $5.00", "invoice-basic")
	r := httptest.NewRequest(http.MethodPost, "/api/v1/extract/file", &buf)
	r.Header.Set("Content-Type", mw)
	w := httptest.NewRecorder()
	srv.handleExtractFile(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	var out extractResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Result.Source != "upload.txt" {
		t.Errorf("source = %q", out.Result.Source)
	}
	num, _ := out.Result.Outcome("invoice_number")
	if num.Value == nil || num.Value.String() != "INV-5" {
		t.Errorf("invoice_number = %+v", num)
	}
}

func TestRunLifecycle(t *testing.T) {
	srv := newTestServer(t, true)

	body := `{"template_id": "invoice-basic", "source": "a.txt",
	          "pages": ["Invoice Number: INV-1\nTotal: $12.50"]}`
	r := httptest.NewRequest(http.MethodPost, "/api/v1/extract", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleExtract(w, r)
	var created extractResponse
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created.RunID == "" {
		t.Fatal("no run id")
	}

	r = httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	w = httptest.NewRecorder()
	srv.handleListRuns(w, r)
	var list struct {
		Runs  []*store.Run `json:"runs"`
		Total int64        `json:"total"`
	}
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 || len(list.Runs) != 1 {
		t.Fatalf("list = %+v", list)
	}

	r = withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/runs/x/export", nil), "id", created.RunID)
	w = httptest.NewRecorder()
	srv.handleExportRun(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d, body %s", w.Code, w.Body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %q", ct)
	}
	if !strings.HasPrefix(w.Body.String(), "_source_file,invoice_number,total") {
		t.Errorf("csv body = %q", w.Body.String())
	}

	r = withURLParam(httptest.NewRequest(http.MethodDelete, "/api/v1/runs/x", nil), "id", created.RunID)
	w = httptest.NewRecorder()
	srv.handleDeleteRun(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}

	r = withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/runs/x", nil), "id", created.RunID)
	w = httptest.NewRecorder()
	srv.handleGetRun(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}
}

func TestRunEndpointsWithoutStore(t *testing.T) {
	srv := newTestServer(t, false)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	w := httptest.NewRecorder()
	srv.handleListRuns(w, r)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", w.Code)
	}
}

func TestHandleReloadTemplates(t *testing.T) {
	srv := newTestServer(t, false)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/templates/reload", nil)
	w := httptest.NewRecorder()
	srv.handleReloadTemplates(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	var out struct {
		Status    string `json:"status"`
		Templates int    `json:"templates"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Status != "reloaded" || out.Templates != 1 {
		t.Errorf("reload = %+v", out)
	}
}

// newMultipart writes a multipart body with a file part and template_id
// field, returning the content type.
func newMultipart(t *testing.T, buf *bytes.Buffer, filename, content, templateID string) string {
	t.Helper()
	mw := multipart.NewWriter(buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fmt.Fprint(fw, content); err != nil {
		t.Fatal(err)
	}
	if err := mw.WriteField("template_id", templateID); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return mw.FormDataContentType()
}
