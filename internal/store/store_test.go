package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spendscan/internal/core"
)

type fakeBackend struct {
	records    []core.ExpenseRecord
	extraction core.ExtractionResult
	listErr    error
	createErr  error
	deleteErr  error
	scanErr    error
	nextID     int64
	listCalls  int
	createCall int
	deleteCall int
	scanCall   int
}

func (f *fakeBackend) ListExpenses(ctx context.Context) ([]core.ExpenseRecord, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]core.ExpenseRecord, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeBackend) CreateExpense(ctx context.Context, draft core.Draft) (core.ExpenseRecord, error) {
	f.createCall++
	if f.createErr != nil {
		return core.ExpenseRecord{}, f.createErr
	}
	f.nextID++
	return core.ExpenseRecord{
		ID:          f.nextID + 100,
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

func someRecord(id int64, merchant string) core.ExpenseRecord {
	return core.ExpenseRecord{
		ID:       id,
		Amount:   decimal.NewFromFloat(10.00),
		Merchant: merchant,
		Category: core.CategoryFood,
		Date:     core.Today(time.Now()),
	}
}

func validForm() core.DraftForm {
	return core.DraftForm{
		Amount:   "12.50",
		Merchant: "Lidl",
		Category: "grocery",
		Date:     "2024-10-01",
	}
}

func TestLoadPopulatesCollection(t *testing.T) {
	backend := &fakeBackend{records: []core.ExpenseRecord{
		someRecord(1, "Starbucks"),
		someRecord(2, "Amazon"),
	}}
	s := New(backend)

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := s.Count(); got != 2 {
		t.Errorf("Count() = %d, want 2", got)
	}
	if s.Degraded() {
		t.Error("Degraded() = true after successful load")
	}
}

func TestLoadFallsBackToSampleData(t *testing.T) {
	backend := &fakeBackend{listErr: errors.New("connection refused")}
	s := New(backend)

	if err := s.Load(context.Background()); err == nil {
		t.Fatal("Load() error = nil, want failure")
	}
	if !s.Degraded() {
		t.Error("Degraded() = false, want true after failed load")
	}
	snapshot := s.Snapshot()
	if len(snapshot) != len(sampleRecords()) {
		t.Fatalf("Snapshot() has %d records, want %d", len(snapshot), len(sampleRecords()))
	}
	if snapshot[0].Merchant != "Starbucks" {
		t.Errorf("first sample merchant = %q, want Starbucks", snapshot[0].Merchant)
	}
}

func TestLoadRecoversFromDegraded(t *testing.T) {
	backend := &fakeBackend{listErr: errors.New("down")}
	s := New(backend)
	_ = s.Load(context.Background())
	if !s.Degraded() {
		t.Fatal("expected degraded state")
	}

	backend.listErr = nil
	backend.records = []core.ExpenseRecord{someRecord(7, "Esselunga")}
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Degraded() {
		t.Error("Degraded() = true after recovery")
	}
	if got := s.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
}

func TestAddValidationFailureSkipsBackend(t *testing.T) {
	backend := &fakeBackend{}
	s := New(backend)

	form := validForm()
	form.Amount = "not a number"
	_, err := s.Add(context.Background(), form)

	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Add() error = %v, want *core.ValidationError", err)
	}
	if backend.createCall != 0 {
		t.Errorf("backend called %d times on validation failure, want 0", backend.createCall)
	}
}

func TestAddPrependsConfirmedRecord(t *testing.T) {
	backend := &fakeBackend{records: []core.ExpenseRecord{someRecord(1, "Older")}}
	s := New(backend)
	_ = s.Load(context.Background())

	record, err := s.Add(context.Background(), validForm())
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	snapshot := s.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("Snapshot() has %d records, want 2", len(snapshot))
	}
	if snapshot[0].ID != record.ID {
		t.Errorf("newest record id = %d, want %d at index 0", snapshot[0].ID, record.ID)
	}
	if snapshot[0].Merchant != "Lidl" {
		t.Errorf("newest merchant = %q, want Lidl", snapshot[0].Merchant)
	}
}

func TestAddResetsDraft(t *testing.T) {
	s := New(&fakeBackend{})
	s.SetDraft(validForm(), core.ExtractionResult{Merchant: "Lidl"})

	if _, err := s.Add(context.Background(), validForm()); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	draft, _, scanned := s.Draft()
	if draft.Merchant != "" || draft.Amount != "" {
		t.Errorf("draft not reset: %+v", draft)
	}
	if scanned {
		t.Error("scanned flag not cleared after add")
	}
}

func TestAddBackendFailureLeavesCollectionUnchanged(t *testing.T) {
	backend := &fakeBackend{
		records:   []core.ExpenseRecord{someRecord(1, "Starbucks")},
		createErr: errors.New("merchant is required"),
	}
	s := New(backend)
	_ = s.Load(context.Background())

	if _, err := s.Add(context.Background(), validForm()); err == nil {
		t.Fatal("Add() error = nil, want backend failure")
	}
	if got := s.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1 (unchanged)", got)
	}
}

func TestRemoveConfirmThenMutate(t *testing.T) {
	backend := &fakeBackend{records: []core.ExpenseRecord{
		someRecord(1, "Starbucks"),
		someRecord(2, "Amazon"),
	}}
	s := New(backend)
	_ = s.Load(context.Background())

	if err := s.Remove(context.Background(), 1); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	snapshot := s.Snapshot()
	if len(snapshot) != 1 || snapshot[0].ID != 2 {
		t.Errorf("Snapshot() = %+v, want only record 2", snapshot)
	}
}

func TestRemoveFailureLeavesCollectionUnchanged(t *testing.T) {
	backend := &fakeBackend{
		records:   []core.ExpenseRecord{someRecord(1, "Starbucks")},
		deleteErr: errors.New("boom"),
	}
	s := New(backend)
	_ = s.Load(context.Background())

	if err := s.Remove(context.Background(), 1); err == nil {
		t.Fatal("Remove() error = nil, want failure")
	}
	if got := s.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1 (unchanged)", got)
	}
}

func TestSubscribeNotifiesOnMutation(t *testing.T) {
	s := New(&fakeBackend{})

	var calls int
	unsubscribe := s.Subscribe(func() { calls++ })

	if _, err := s.Add(context.Background(), validForm()); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if calls == 0 {
		t.Error("listener not notified after Add")
	}

	before := calls
	unsubscribe()
	s.ResetDraft()
	if calls != before {
		t.Error("listener notified after unsubscribe")
	}
}

func TestScanBridgesExtractionIntoDraft(t *testing.T) {
	backend := &fakeBackend{extraction: core.ExtractionResult{
		Amount:     "45.50",
		Merchant:   "Starbucks",
		Category:   "food",
		Date:       "2024-10-01",
		Confidence: "high",
	}}
	s := New(backend)

	form, extraction, err := s.Scan(context.Background(), "receipt.jpg", []byte("fake image"))
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if form.Merchant != "Starbucks" || form.Amount != "45.50" {
		t.Errorf("bridged form = %+v", form)
	}
	if extraction.Confidence != "high" {
		t.Errorf("extraction confidence = %q, want high", extraction.Confidence)
	}

	draft, _, scanned := s.Draft()
	if !scanned {
		t.Error("scanned flag not set after Scan")
	}
	if draft.Merchant != "Starbucks" {
		t.Errorf("stored draft merchant = %q, want Starbucks", draft.Merchant)
	}
}

func TestScanFailureLeavesDraftUnchanged(t *testing.T) {
	backend := &fakeBackend{scanErr: errors.New("ocr unavailable")}
	s := New(backend)
	s.SetDraft(validForm(), core.ExtractionResult{})

	if _, _, err := s.Scan(context.Background(), "receipt.jpg", []byte("img")); err == nil {
		t.Fatal("Scan() error = nil, want failure")
	}
	draft, _, _ := s.Draft()
	if draft.Merchant != "Lidl" {
		t.Errorf("draft merchant = %q, want Lidl (unchanged)", draft.Merchant)
	}
}

type failingPublisher struct{ calls int }

func (p *failingPublisher) PublishExpenseEvent(ctx context.Context, eventType string, id int64) error {
	p.calls++
	return errors.New("amqp down")
}

func TestPublisherFailureDoesNotFailAdd(t *testing.T) {
	pub := &failingPublisher{}
	s := New(&fakeBackend{}, WithPublisher(pub))

	if _, err := s.Add(context.Background(), validForm()); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if pub.calls != 1 {
		t.Errorf("publisher calls = %d, want 1", pub.calls)
	}
}

func TestSnapshotReturnsCopy(t *testing.T) {
	backend := &fakeBackend{records: []core.ExpenseRecord{someRecord(1, "Starbucks")}}
	s := New(backend)
	_ = s.Load(context.Background())

	snapshot := s.Snapshot()
	snapshot[0].Merchant = "mutated"

	if s.Snapshot()[0].Merchant != "Starbucks" {
		t.Error("mutating a snapshot leaked into the store")
	}
}
