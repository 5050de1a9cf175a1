// Package store owns the session's in-memory expense collection. All
// mutation funnels through the store's methods; views read snapshots and
// derived summaries, never the underlying slice. Writes follow a uniform
// confirm-then-mutate policy: local state changes only after the backend
// confirms the operation.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"spendscan/internal/analytics"
	"spendscan/internal/core"
	"spendscan/internal/events"
	"spendscan/internal/scan"
)

// Backend is the slice of the remote client the store depends on.
type Backend interface {
	ListExpenses(ctx context.Context) ([]core.ExpenseRecord, error)
	CreateExpense(ctx context.Context, draft core.Draft) (core.ExpenseRecord, error)
	DeleteExpense(ctx context.Context, id int64) error
	ScanReceipt(ctx context.Context, filename string, image []byte) (core.ExtractionResult, error)
}

// Publisher emits activity events after confirmed mutations. Optional; a
// nil publisher disables events.
type Publisher interface {
	PublishExpenseEvent(ctx context.Context, eventType string, id int64) error
}

// Store holds the ordered expense collection (newest first), the transient
// draft form, and the degraded/loading view-state flags.
type Store struct {
	backend   Backend
	publisher Publisher

	mu         sync.Mutex
	records    []core.ExpenseRecord
	draft      core.DraftForm
	extraction core.ExtractionResult
	scanned    bool
	degraded   bool
	loading    bool

	subMu     sync.Mutex
	nextSubID int
	listeners map[int]func()
}

// Option configures a Store.
type Option func(*Store)

// WithPublisher attaches an activity-event publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Store) { s.publisher = p }
}

// New creates a store with an empty collection and a fresh draft.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:   backend,
		draft:     core.NewDraftForm(time.Now()),
		listeners: make(map[int]func()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the collection from the backend. On any failure the store
// enters degraded mode and is populated with the fixed sample dataset so
// the UI stays exercisable; the failure is returned so callers can log it,
// and Degraded reports true until a later Load succeeds.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()
	s.notify()

	records, err := s.backend.ListExpenses(ctx)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.records = sampleRecords()
		s.degraded = true
	} else {
		s.records = records
		s.degraded = false
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		slog.WarnContext(ctx, "Expense load failed, using sample data",
			"error", err,
			"sample_count", len(sampleRecords()))
		return fmt.Errorf("load expenses: %w", err)
	}

	slog.InfoContext(ctx, "Expenses loaded", "count", len(records))
	return nil
}

// Add validates the draft locally, then asks the backend to create it.
// Validation failures return a *core.ValidationError without any network
// call. On confirmation the canonical record is prepended (newest first)
// and the draft is reset.
func (s *Store) Add(ctx context.Context, form core.DraftForm) (core.ExpenseRecord, error) {
	draft, err := form.ToDraft()
	if err != nil {
		return core.ExpenseRecord{}, err
	}

	record, err := s.backend.CreateExpense(ctx, draft)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("create expense: %w", err)
	}

	s.mu.Lock()
	s.records = append([]core.ExpenseRecord{record}, s.records...)
	s.draft = core.NewDraftForm(time.Now())
	s.extraction = core.ExtractionResult{}
	s.scanned = false
	s.mu.Unlock()
	s.notify()

	s.publish(ctx, events.TypeExpenseCreated, record.ID)

	slog.InfoContext(ctx, "Expense added",
		"record_id", record.ID,
		"merchant", record.Merchant,
		"category", record.Category.String(),
		"amount", record.Amount.String())
	return record, nil
}

// Remove deletes a record by id, confirm-then-mutate: the local entry goes
// away only after the backend confirms. On any failure the collection is
// left unchanged. The caller is responsible for obtaining explicit user
// confirmation before dispatching.
func (s *Store) Remove(ctx context.Context, id int64) error {
	if err := s.backend.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}

	s.mu.Lock()
	for i, r := range s.records {
		if r.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.notify()

	s.publish(ctx, events.TypeExpenseDeleted, id)

	slog.InfoContext(ctx, "Expense removed", "record_id", id)
	return nil
}

// Scan sends a receipt image for extraction and bridges the result into
// the current draft. The draft is never submitted automatically; the user
// reviews and saves it through Add.
func (s *Store) Scan(ctx context.Context, filename string, image []byte) (core.DraftForm, core.ExtractionResult, error) {
	extraction, err := s.backend.ScanReceipt(ctx, filename, image)
	if err != nil {
		return core.DraftForm{}, core.ExtractionResult{}, fmt.Errorf("scan receipt: %w", err)
	}

	form := scan.BuildDraft(extraction, time.Now())
	s.SetDraft(form, extraction)

	slog.InfoContext(ctx, "Receipt scanned",
		"merchant", extraction.Merchant,
		"confidence", extraction.Confidence)
	return form, extraction, nil
}

// SetDraft replaces the transient form state (e.g. after a scan).
func (s *Store) SetDraft(form core.DraftForm, extraction core.ExtractionResult) {
	s.mu.Lock()
	s.draft = form
	s.extraction = extraction
	s.scanned = true
	s.mu.Unlock()
	s.notify()
}

// ResetDraft clears the form back to its initial state.
func (s *Store) ResetDraft() {
	s.mu.Lock()
	s.draft = core.NewDraftForm(time.Now())
	s.extraction = core.ExtractionResult{}
	s.scanned = false
	s.mu.Unlock()
	s.notify()
}

// Draft returns the current form state and, when the draft came from a
// receipt scan, the extraction it was bridged from.
func (s *Store) Draft() (core.DraftForm, core.ExtractionResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft, s.extraction, s.scanned
}

// Snapshot returns a copy of the collection, newest first.
func (s *Store) Snapshot() []core.ExpenseRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.ExpenseRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Summary recomputes the derived statistics from scratch. The collection
// is small; correctness and simplicity beat caching here.
func (s *Store) Summary() analytics.Summary {
	return analytics.Summarize(s.Snapshot())
}

// Count returns the collection size.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Degraded reports whether the store is serving the sample fallback after
// a failed load. Views must surface this visibly.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Loading reports whether a load is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Subscribe registers fn to run after every mutation. The returned
// function removes the subscription.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.listeners[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.listeners, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// publish emits an activity event; failures are logged and swallowed so
// they never fail the user-visible operation.
func (s *Store) publish(ctx context.Context, eventType string, id int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, eventType, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"type", eventType,
			"record_id", id,
			"error", err)
	}
}
