package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/transfer"
	"ledger/internal/view"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var notices = map[string]string{
	"added":    "Record added.",
	"imported": "Records imported.",
	"cleared":  "All records deleted.",
}

type indexData struct {
	Panels     []view.Panel
	Categories []string
	Today      string
	Notice     string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	panels, err := s.ledger.Dashboard(r.Context(), s.now())
	if err != nil {
		s.fail(w, r, "Failed to load dashboard", err, log.OpRender, false)
		return
	}

	s.render(w, r, "index.html", indexData{
		Panels:     panels,
		Categories: core.Categories,
		Today:      today(s.now()),
		Notice:     notices[r.URL.Query().Get("notice")],
	})
}

// handlePanel renders a single period panel as an HTML fragment.
func (s *Server) handlePanel(w http.ResponseWriter, r *http.Request) {
	period := periodParam(r.URL.Query().Get("period"))
	panel, err := s.ledger.Panel(r.Context(), period, s.now())
	if err != nil {
		s.fail(w, r, "Failed to load panel", err, log.OpRender, false)
		return
	}
	s.render(w, r, "panel", panel)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.ledger.Records(r.Context())
	if err != nil {
		s.fail(w, r, "Failed to read records", err, log.OpRead, true)
		return
	}
	payload, err := transfer.Export(records)
	if err != nil {
		s.fail(w, r, "Failed to encode records", err, log.OpRead, true)
		return
	}
	NewResponse().Body("application/json", payload).Write(w)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		ErrorResponse(http.StatusBadRequest, "Invalid request body", wantsJSON(r)).Write(w)
		return
	}
	asJSON := parser.IsJSON() || wantsJSON(r)

	rec, err := s.ledger.AddRecord(r.Context(), parser.Form())
	if err != nil {
		if core.IsInvalidInput(err) {
			s.logger.WarnContext(r.Context(), "Record rejected", log.FieldError, err.Error(), log.FieldOperation, log.OpValidate)
			ErrorResponse(http.StatusUnprocessableEntity, err.Error(), asJSON).Write(w)
			return
		}
		s.fail(w, r, "Failed to add record", err, log.OpAppend, asJSON)
		return
	}

	if asJSON {
		NewResponse().Status(http.StatusCreated).JSON(rec).Write(w)
		return
	}
	http.Redirect(w, r, "/?notice=added", http.StatusSeeOther)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	filename, payload, err := s.ledger.Export(r.Context())
	if err != nil {
		s.fail(w, r, "Failed to export records", err, log.OpExport, true)
		return
	}
	NewResponse().Attachment("application/json", filename, payload).Write(w)
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	filename, payload, err := s.ledger.ExportXLSX(r.Context())
	if err != nil {
		s.fail(w, r, "Failed to export spreadsheet", err, log.OpExport, true)
		return
	}
	NewResponse().Attachment(xlsxContentType, filename, payload).Write(w)
}

type importResult struct {
	Imported int `json:"imported"`
}

// handleImport accepts either a multipart upload in field "file" or the raw
// JSON payload as the body. Replacing the store needs confirm=yes.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	multipart := strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
	asJSON := !multipart || wantsJSON(r)

	var (
		payload []byte
		confirm string
		err     error
	)
	if multipart {
		payload, err = readUpload(r, s.maxUpload)
		confirm = r.FormValue("confirm")
	} else {
		payload, err = io.ReadAll(r.Body)
		confirm = r.URL.Query().Get("confirm")
	}
	if err != nil {
		ErrorResponse(http.StatusBadRequest, "Could not read import file", asJSON).Write(w)
		return
	}

	confirmer := services.NeverConfirm
	if confirmed(confirm) {
		confirmer = services.AlwaysConfirm
	}

	n, err := s.ledger.Import(r.Context(), payload, confirmer)
	switch {
	case err == nil:
	case core.IsFormat(err):
		s.logger.WarnContext(r.Context(), "Import rejected", log.FieldError, err.Error(), log.FieldOperation, log.OpImport)
		ErrorResponse(http.StatusBadRequest, err.Error(), asJSON).Write(w)
		return
	case errors.Is(err, core.ErrCancelled):
		ErrorResponse(http.StatusConflict, "Import not confirmed; resend with confirm=yes", asJSON).Write(w)
		return
	default:
		s.fail(w, r, "Failed to import records", err, log.OpImport, asJSON)
		return
	}

	if asJSON {
		NewResponse().JSON(importResult{Imported: n}).Write(w)
		return
	}
	http.Redirect(w, r, "/?notice=imported", http.StatusSeeOther)
}

func readUpload(r *http.Request, limit int64) ([]byte, error) {
	if err := r.ParseMultipartForm(limit); err != nil {
		return nil, err
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	asJSON := wantsJSON(r)

	confirmer := services.NeverConfirm
	if confirmed(r.FormValue("confirm")) {
		confirmer = services.AlwaysConfirm
	}

	if err := s.ledger.Clear(r.Context(), confirmer); err != nil {
		if errors.Is(err, core.ErrCancelled) {
			ErrorResponse(http.StatusConflict, "Clear not confirmed; resend with confirm=yes", asJSON).Write(w)
			return
		}
		s.fail(w, r, "Failed to clear records", err, log.OpClear, asJSON)
		return
	}

	if asJSON {
		NewResponse().Status(http.StatusNoContent).Write(w)
		return
	}
	http.Redirect(w, r, "/?notice=cleared", http.StatusSeeOther)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	png, err := s.ledger.Chart(r.Context(), s.now())
	if err != nil {
		s.fail(w, r, "Failed to render chart", err, log.OpRender, false)
		return
	}
	NewResponse().Body("image/png", png).Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]string{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the backing store within a short deadline.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{"templates": "ok", "store": "ok"}
	status, code := "ready", http.StatusOK

	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			checks["store"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		}
	}

	NewResponse().Status(code).JSON(map[string]any{
		"status":         status,
		"checks":         checks,
		"active_clients": s.limiter.ActiveClients(),
		"rate_limited":   s.limiter.Hits(),
		"suspicious":     s.detector.SuspiciousCount(),
		"requests":       s.tracer.Total(),
	}).Write(w)
}

// render executes name into a buffer so a template failure never leaves a
// half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.events.LogError(r.Context(), "Template execution failed", err, log.ComponentTemplate, log.OpRender,
			log.NewFields().WithPeriod(r.URL.Query().Get("period")))
		ErrorResponse(http.StatusInternalServerError, "Rendering failed", false).Write(w)
		return
	}
	NewResponse().Body("text/html; charset=utf-8", buf.Bytes()).Write(w)
}

// fail logs err and answers 500 without leaking the cause.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, msg string, err error, op string, asJSON bool) {
	component := log.ComponentHTTP
	if core.IsPersistence(err) {
		component = log.ComponentStorage
	}
	s.events.LogError(r.Context(), msg, err, component, op, nil)
	ErrorResponse(http.StatusInternalServerError, msg, asJSON).Write(w)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}
