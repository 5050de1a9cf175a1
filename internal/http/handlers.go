package http

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"spendscan/internal/core"
	"spendscan/internal/remote"
)

// maxReceiptBytes caps uploaded receipt images at 10 MB.
const maxReceiptBytes = 10 << 20

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.health != nil {
		if err := s.health.Health(ctx); err != nil {
			checks["backend"] = "failed: " + err.Error()
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["backend"] = "ok"
		}
	} else {
		checks["backend"] = "not_configured"
	}

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	data := struct {
		Degraded bool
		Count    int
	}{
		Degraded: s.store.Degraded(),
		Count:    s.store.Count(),
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Index template execution failed", "error", err, "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleDashboard renders the dashboard partial: totals, top categories,
// and the most recent entries.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	summary := s.store.Summary()
	records := s.store.Snapshot()

	data := dashboardView{
		Total:    formatAmount(summary.TotalSpent),
		Count:    summary.TotalCount,
		Average:  formatAmount(summary.AveragePerExpense()),
		Top:      newCategoryRows(summary),
		Degraded: s.store.Degraded(),
	}
	if len(data.Top) > 5 {
		data.Top = data.Top[:5]
	}
	for i, rec := range records {
		if i == 5 {
			break
		}
		data.Recent = append(data.Recent, newExpenseRow(rec))
	}

	s.render(w, r, "dashboard.html", data)
}

// handleExpenses renders the full expense list partial, newest first.
func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	summary := s.store.Summary()
	records := s.store.Snapshot()

	data := expensesView{
		Count:    len(records),
		Total:    formatAmount(summary.TotalSpent),
		Degraded: s.store.Degraded(),
	}
	for _, rec := range records {
		data.Items = append(data.Items, newExpenseRow(rec))
	}

	s.render(w, r, "expenses.html", data)
}

// handleAnalytics renders the category breakdown and calendar buckets.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	summary := s.store.Summary()

	data := analyticsView{
		Rows:     newCategoryRows(summary),
		Monthly:  newBucketRows(summary.Monthly),
		Weekly:   newBucketRows(summary.Weekly),
		Total:    formatAmount(summary.TotalSpent),
		Count:    summary.TotalCount,
		Degraded: s.store.Degraded(),
	}

	s.render(w, r, "analytics.html", data)
}

// handleScanner renders the receipt upload tab, including the extraction
// result when a scan already happened this session.
func (s *Server) handleScanner(w http.ResponseWriter, r *http.Request) {
	draft, extraction, scanned := s.store.Draft()

	data := formView{
		Draft:      draft,
		Categories: core.Categories(),
		Scanned:    scanned,
		Extraction: extraction,
	}

	s.render(w, r, "scanner.html", data)
}

// handleManual renders the manual entry form, prefilled from the current
// draft (which a scan may have populated).
func (s *Server) handleManual(w http.ResponseWriter, r *http.Request) {
	draft, extraction, scanned := s.store.Draft()

	data := formView{
		Draft:      draft,
		Categories: core.Categories(),
		Scanned:    scanned,
		Extraction: extraction,
	}

	s.render(w, r, "manual.html", data)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "method", r.Method, "url", r.URL.Path)
		BadRequestError("Invalid request format").Write(w)
		return
	}

	form := core.DraftForm{
		Amount:      sanitizeInput(r.Form.Get("amount")),
		Merchant:    sanitizeInput(r.Form.Get("merchant")),
		Category:    sanitizeInput(r.Form.Get("category")),
		Description: sanitizeInput(r.Form.Get("description")),
		Date:        sanitizeInput(r.Form.Get("date")),
	}

	record, err := s.store.Add(r.Context(), form)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	NewHTMXResponse().
		TriggerExpenseCreated(record.ID).
		TriggerSuccessNotification("Expense saved").
		BodyHTML(`<div class="success">Saved ` + template.HTMLEscapeString(record.Merchant) +
			` — ` + template.HTMLEscapeString(formatAmount(record.Amount)) + `</div>`).
		Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		BadRequestError("Invalid expense id").Write(w)
		return
	}

	// Deletion is dispatched only after the user confirmed in the UI; the
	// server re-checks the flag so a stray request can never delete.
	if r.Form.Get("confirm") != "true" {
		BadRequestError("Deletion requires confirmation").Write(w)
		return
	}

	if err := s.store.Remove(r.Context(), id); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	NewHTMXResponse().
		TriggerExpenseDeleted(id).
		TriggerSuccessNotification("Expense deleted").
		Write(w)
}

func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxReceiptBytes)
	if err := r.ParseMultipartForm(maxReceiptBytes); err != nil {
		slog.WarnContext(r.Context(), "Receipt upload rejected", "error", err)
		BadRequestError("Receipt image missing or too large (max 10 MB)").Write(w)
		return
	}

	file, header, err := r.FormFile("receipt")
	if err != nil {
		BadRequestError("Receipt image is required").Write(w)
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		slog.ErrorContext(r.Context(), "Receipt read failed", "error", err, "filename", header.Filename)
		InternalServerError("Could not read the uploaded file").Write(w)
		return
	}

	if _, _, err := s.store.Scan(r.Context(), header.Filename, image); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	draft, extraction, scanned := s.store.Draft()
	data := formView{
		Draft:      draft,
		Categories: core.Categories(),
		Scanned:    scanned,
		Extraction: extraction,
	}

	// Re-render the scanner tab with the extraction and let the manual tab
	// know its form content changed. The draft is never auto-submitted.
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	triggers, _ := json.Marshal(map[string]any{
		"draft:updated":     struct{}{},
		"show-notification": map[string]any{"type": "success", "message": "Receipt scanned — review before saving", "duration": 3000},
	})
	w.Header().Set("HX-Trigger", string(triggers))
	s.render(w, r, "scanner.html", data)
}

// handleReload refreshes the collection from the backend on demand.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	err := s.store.Load(r.Context())

	builder := NewHTMXResponse().TriggerExpensesReloaded()
	if err != nil {
		slog.WarnContext(r.Context(), "Reload failed, sample data active", "error", err)
		builder.TriggerWarningNotification("Backend unavailable — showing sample data")
	} else {
		builder.TriggerSuccessNotification("Expenses reloaded")
	}
	builder.Write(w)
}

// handleResetDraft clears the in-progress form.
func (s *Server) handleResetDraft(w http.ResponseWriter, r *http.Request) {
	s.store.ResetDraft()

	draft, extraction, scanned := s.store.Draft()
	data := formView{
		Draft:      draft,
		Categories: core.Categories(),
		Scanned:    scanned,
		Extraction: extraction,
	}

	w.Header().Set("HX-Trigger", `{"draft:updated": {}}`)
	s.render(w, r, "manual.html", data)
}

// writeFailure maps the failure taxonomy onto HTTP responses. Validation
// errors and backend rejections surface their message verbatim; transport
// problems get a generic retry hint.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *core.ValidationError
	if errors.As(err, &vErr) {
		UnprocessableEntityError(vErr.Error()).Write(w)
		return
	}

	var failure *remote.Failure
	if errors.As(err, &failure) {
		switch failure.Kind {
		case remote.KindServerRejected:
			slog.WarnContext(r.Context(), "Backend rejected request", "status", failure.Status, "message", failure.Message)
			UnprocessableEntityError(failure.Message).
				TriggerErrorNotification(failure.Message).
				Write(w)
		case remote.KindUnreachable:
			slog.ErrorContext(r.Context(), "Backend unreachable", "error", err)
			BadGatewayError("Could not reach the expense service. Please try again.").
				TriggerErrorNotification("Could not reach the expense service").
				Write(w)
		case remote.KindMalformedResponse:
			slog.ErrorContext(r.Context(), "Backend response malformed", "error", err)
			BadGatewayError("The expense service returned an unexpected response.").
				TriggerErrorNotification("Unexpected response from the expense service").
				Write(w)
		default:
			InternalServerError("Something went wrong").Write(w)
		}
		return
	}

	slog.ErrorContext(r.Context(), "Unhandled error", "error", err)
	InternalServerError("Something went wrong").Write(w)
}

// render executes a template partial with a plain-text fallback so a
// template bug degrades to an error box instead of a blank panel.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", name)
		_, _ = w.Write([]byte(`<div class="error">Error rendering view</div>`))
	}
}
