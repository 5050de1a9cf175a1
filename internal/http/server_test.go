package http

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"spendscan/internal/core"
	"spendscan/internal/store"
)

type fakeBackend struct {
	records    []core.ExpenseRecord
	extraction core.ExtractionResult
	listErr    error
	createErr  error
	deleteErr  error
	scanErr    error
	createCall int
	deleteCall int
	scanCall   int
}

func (f *fakeBackend) ListExpenses(ctx context.Context) ([]core.ExpenseRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.records, nil
}

func (f *fakeBackend) CreateExpense(ctx context.Context, draft core.Draft) (core.ExpenseRecord, error) {
	f.createCall++
	if f.createErr != nil {
		return core.ExpenseRecord{}, f.createErr
	}
	return core.ExpenseRecord{
		ID:          99,
		Amount:      draft.Amount,
		Merchant:    draft.Merchant,
		Category:    draft.Category,
		Description: draft.Description,
		Date:        draft.Date,
	}, nil
}

func (f *fakeBackend) DeleteExpense(ctx context.Context, id int64) error {
	f.deleteCall++
	return f.deleteErr
}

func (f *fakeBackend) ScanReceipt(ctx context.Context, filename string, image []byte) (core.ExtractionResult, error) {
	f.scanCall++
	if f.scanErr != nil {
		return core.ExtractionResult{}, f.scanErr
	}
	return f.extraction, nil
}

type fakeHealth struct{ err error }

func (f fakeHealth) Health(ctx context.Context) error { return f.err }

func newTestServer(backend *fakeBackend) (*Server, *store.Store) {
	st := store.New(backend)
	srv := NewServer(":0", st, fakeHealth{})
	return srv, st
}

func postForm(srv *Server, path string, form url.Values) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestIndexAndProbes(t *testing.T) {
	srv, _ := newTestServer(&fakeBackend{})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "SpendScan") {
		t.Fatal("index body missing heading")
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("security headers not applied")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
	}
}

func TestReadyReportsBackendFailure(t *testing.T) {
	st := store.New(&fakeBackend{})
	srv := NewServer(":0", st, fakeHealth{err: errors.New("connection refused")})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d, want 503", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "not_ready") {
		t.Errorf("readyz body = %s", rr.Body.String())
	}
}

func TestPartialsRender(t *testing.T) {
	backend := &fakeBackend{records: []core.ExpenseRecord{{
		ID:       1,
		Amount:   decimal.NewFromFloat(45.50),
		Merchant: "Starbucks",
		Category: core.CategoryFood,
		Date:     core.NewDate(2024, 9, 30),
	}}}
	srv, st := newTestServer(backend)
	if err := st.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	for _, path := range []string{"/ui/dashboard", "/ui/scanner", "/ui/manual", "/ui/expenses", "/ui/analytics"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ui/expenses", nil)
	srv.Handler.ServeHTTP(rr, req)
	if !strings.Contains(rr.Body.String(), "Starbucks") {
		t.Error("expenses partial missing record")
	}
}

func TestCreateExpenseValidationAndSuccess(t *testing.T) {
	backend := &fakeBackend{}
	srv, _ := newTestServer(backend)

	// Invalid amount never reaches the backend
	rr := postForm(srv, "/expenses", url.Values{
		"amount": {"abc"}, "merchant": {"Lidl"}, "category": {"grocery"}, "date": {"2024-10-01"},
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	if backend.createCall != 0 {
		t.Fatalf("backend called on validation failure")
	}

	// Missing merchant
	rr = postForm(srv, "/expenses", url.Values{
		"amount": {"12.50"}, "merchant": {""}, "category": {"grocery"}, "date": {"2024-10-01"},
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}

	// Success
	rr = postForm(srv, "/expenses", url.Values{
		"amount": {"12.50"}, "merchant": {"Lidl"}, "category": {"grocery"}, "date": {"2024-10-01"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "expense:created") {
		t.Error("missing expense:created trigger")
	}
}

func TestCreateExpenseBackendFailure(t *testing.T) {
	backend := &fakeBackend{createErr: errors.New("merchant is required")}
	srv, _ := newTestServer(backend)

	rr := postForm(srv, "/expenses", url.Values{
		"amount": {"12.50"}, "merchant": {"Lidl"}, "category": {"grocery"}, "date": {"2024-10-01"},
	})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for foreign error, got %d", rr.Code)
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	backend := &fakeBackend{records: []core.ExpenseRecord{{
		ID:       1,
		Amount:   decimal.NewFromFloat(10),
		Merchant: "Starbucks",
		Category: core.CategoryFood,
		Date:     core.NewDate(2024, 9, 30),
	}}}
	srv, st := newTestServer(backend)
	_ = st.Load(context.Background())

	// Without the confirm flag nothing is deleted
	rr := postForm(srv, "/expenses/1/delete", url.Values{})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without confirm, got %d", rr.Code)
	}
	if backend.deleteCall != 0 {
		t.Fatal("delete dispatched without confirmation")
	}

	rr = postForm(srv, "/expenses/1/delete", url.Values{"confirm": {"true"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if st.Count() != 0 {
		t.Errorf("Count() = %d after delete, want 0", st.Count())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "expense:deleted") {
		t.Error("missing expense:deleted trigger")
	}
}

func TestDeleteInvalidID(t *testing.T) {
	srv, _ := newTestServer(&fakeBackend{})

	rr := postForm(srv, "/expenses/abc/delete", url.Values{"confirm": {"true"}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rr.Code)
	}
}

func TestScanReceiptBridgesDraft(t *testing.T) {
	backend := &fakeBackend{extraction: core.ExtractionResult{
		Amount:   "45.50",
		Merchant: "Starbucks",
		Category: "food",
		Date:     "2024-09-30",
	}}
	srv, st := newTestServer(backend)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("receipt", "receipt.jpg")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte("fake image bytes"))
	_ = mw.Close()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/scan", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("scan status = %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "draft:updated") {
		t.Error("missing draft:updated trigger")
	}

	draft, _, scanned := st.Draft()
	if !scanned || draft.Merchant != "Starbucks" {
		t.Errorf("draft not bridged: %+v scanned=%v", draft, scanned)
	}
	if backend.createCall != 0 {
		t.Error("scan must never auto-submit the expense")
	}
}

func TestScanReceiptMissingFile(t *testing.T) {
	srv, _ := newTestServer(&fakeBackend{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("other", "x")
	_ = mw.Close()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/scan", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestReloadFallsBackToSampleData(t *testing.T) {
	backend := &fakeBackend{listErr: errors.New("connection refused")}
	srv, st := newTestServer(backend)

	rr := postForm(srv, "/reload", url.Values{})
	if rr.Code != http.StatusOK {
		t.Fatalf("reload status = %d", rr.Code)
	}
	if !st.Degraded() {
		t.Error("store not degraded after failed reload")
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "show-notification") {
		t.Error("missing warning notification")
	}
}

func TestResetDraftClearsForm(t *testing.T) {
	srv, st := newTestServer(&fakeBackend{})
	st.SetDraft(core.DraftForm{Amount: "10", Merchant: "Lidl"}, core.ExtractionResult{})

	rr := postForm(srv, "/draft/reset", url.Values{})
	if rr.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rr.Code)
	}
	draft, _, scanned := st.Draft()
	if draft.Merchant != "" || scanned {
		t.Errorf("draft not reset: %+v", draft)
	}
}
