package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openextract/openextract/internal/engine"
	"github.com/openextract/openextract/internal/export"
	"github.com/openextract/openextract/internal/store"
	"github.com/openextract/openextract/internal/template"
)

// templateSummary is the catalog listing shape.
type templateSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	DocumentType string `json:"document_type"`
	Category     string `json:"category"`
	Version      string `json:"version,omitempty"`
	FieldCount   int    `json:"field_count"`
}

func summarize(t *template.Template) templateSummary {
	return templateSummary{
		ID:           t.ID,
		Name:         t.Name,
		Description:  t.Description,
		DocumentType: t.DocumentType,
		Category:     t.Category,
		Version:      t.Version,
		FieldCount:   len(t.Fields),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"templates": s.registry.Count(),
	})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	var list []*template.Template
	var err error
	switch {
	case r.URL.Query().Get("q") != "":
		list, err = s.registry.Search(r.URL.Query().Get("q"), 25)
		if err != nil {
			s.logger.Error("template search failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	case r.URL.Query().Get("document_type") != "":
		list = s.registry.ListByDocumentType(r.URL.Query().Get("document_type"))
	case r.URL.Query().Get("category") != "":
		list = s.registry.ListByCategory(r.URL.Query().Get("category"))
	default:
		list = s.registry.List()
	}
	out := make([]templateSummary, len(list))
	for i, t := range list {
		out[i] = summarize(t)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"templates": out, "total": len(out)})
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, t)
}

func (s *Server) handleReloadTemplates(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Reload(); err != nil {
		s.logger.Error("template reload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"status": "reloaded", "templates": s.registry.Count()})
}

// extractRequest is the JSON extraction input: page texts already produced
// by a document-to-text step on the client side.
type extractRequest struct {
	TemplateID string   `json:"template_id"`
	Source     string   `json:"source,omitempty"`
	Pages      []string `json:"pages"`
}

// extractResponse carries one document's result and validation report.
type extractResponse struct {
	RunID  string         `json:"run_id,omitempty"`
	Result *engine.Result `json:"result"`
	Report *engine.Report `json:"report"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t, err := s.registry.Get(req.TemplateID)
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	resp, err := s.extractOne(r, engine.Document{Source: req.Source, Pages: req.Pages}, t)
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// extractOne runs extraction + validation and persists the run when a store
// is configured. Persistence failures are logged, not surfaced: the caller
// still gets their result.
func (s *Server) extractOne(r *http.Request, doc engine.Document, t *template.Template) (*extractResponse, error) {
	result, err := s.engine.Extract(doc, t)
	if err != nil {
		return nil, err
	}
	report := engine.Validate(result, t)
	resp := &extractResponse{Result: result, Report: report}
	if s.store != nil {
		run := &store.Run{
			ID:              uuid.NewString(),
			TemplateID:      t.ID,
			Source:          doc.Source,
			Checksum:        store.Checksum(doc.Pages),
			Valid:           report.Valid,
			FieldsExtracted: report.FieldsExtracted,
			FieldsTotal:     report.FieldsTotal,
			Result:          result,
			Report:          report,
		}
		if err := s.store.CreateRun(r.Context(), run); err != nil {
			s.logger.Warn("persist run failed", zap.String("template", t.ID), zap.Error(err))
		} else {
			resp.RunID = run.ID
		}
	}
	return resp, nil
}

// batchRequest extracts several documents with one template.
type batchRequest struct {
	TemplateID string            `json:"template_id"`
	Documents  []engine.Document `json:"documents"`
}

// batchItemResponse is one document's outcome; Error is set when that
// document failed entirely and never affects sibling items.
type batchItemResponse struct {
	Source string         `json:"source,omitempty"`
	RunID  string         `json:"run_id,omitempty"`
	Result *engine.Result `json:"result,omitempty"`
	Report *engine.Report `json:"report,omitempty"`
	Error  string         `json:"error,omitempty"`
}

func (s *Server) handleExtractBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t, err := s.registry.Get(req.TemplateID)
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	items := make([]batchItemResponse, len(req.Documents))
	for i, doc := range req.Documents {
		resp, err := s.extractOne(r, doc, t)
		if err != nil {
			items[i] = batchItemResponse{Source: doc.Source, Error: err.Error()}
			continue
		}
		items[i] = batchItemResponse{
			Source: doc.Source,
			RunID:  resp.RunID,
			Result: resp.Result,
			Report: resp.Report,
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"items": items, "total": len(items)})
}

// handleExtractFile accepts a multipart upload ("file" part, "template_id"
// form value), converts it to page text, and extracts.
func (s *Server) handleExtractFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	t, err := s.registry.Get(r.FormValue("template_id"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "missing file part")
		return
	}
	defer file.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		s.respondError(w, http.StatusBadRequest, "read upload failed")
		return
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	pages, err := s.extractor.PagesFromBytes(buf.Bytes(), ext)
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("convert document: %v", err))
		return
	}
	resp, err := s.extractOne(r, engine.Document{Source: header.Filename, Pages: pages}, t)
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, http.StatusNotImplemented, "run storage not configured")
		return
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.store.ListRuns(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list runs failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.store.CountRuns(r.Context())
	if err != nil {
		s.logger.Error("count runs failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"runs": runs, "total": total})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, http.StatusNotImplemented, "run storage not configured")
		return
	}
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	s.respondJSON(w, http.StatusOK, run)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, http.StatusNotImplemented, "run storage not configured")
		return
	}
	if err := s.store.DeleteRun(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleExportRun renders a stored run as csv (default) or xlsx in the
// template's csv_headers order.
func (s *Server) handleExportRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, http.StatusNotImplemented, "run storage not configured")
		return
	}
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	t, err := s.registry.Get(run.TemplateID)
	if err != nil {
		s.respondError(w, http.StatusConflict, fmt.Sprintf("template for run no longer loaded: %v", err))
		return
	}
	format := r.URL.Query().Get("format")
	switch format {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", run.ID))
		if err := export.WriteCSV(w, t, []*engine.Result{run.Result}); err != nil {
			s.logger.Error("csv export failed", zap.String("run", run.ID), zap.Error(err))
		}
	case "xlsx":
		data, err := export.XLSX(t, []*engine.Result{run.Result})
		if err != nil {
			s.logger.Error("xlsx export failed", zap.String("run", run.ID), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", run.ID))
		_, _ = w.Write(data)
	default:
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q; use csv or xlsx", format))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response failed", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]string{"error": msg})
}
