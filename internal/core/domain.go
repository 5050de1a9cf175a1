package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type (
	// Date is a calendar date with ISO 8601 wire semantics.
	Date struct {
		time.Time
	}

	// ExpenseRecord is a backend-confirmed expense. Records in the store
	// always satisfy Validate: a non-negative amount and a category drawn
	// from the enumerated set.
	ExpenseRecord struct {
		ID          int64           `json:"id"`
		Amount      decimal.Decimal `json:"amount"`
		Merchant    string          `json:"merchant"`
		Category    Category        `json:"category"`
		Description string          `json:"description"`
		Date        Date            `json:"date"`
	}

	// DraftForm is the transient, string-typed form state for an
	// in-progress entry. It is never persisted until submitted and
	// validated into a Draft.
	DraftForm struct {
		Amount      string
		Merchant    string
		Category    string
		Description string
		Date        string
	}

	// Draft is a validated draft ready to be sent to the backend.
	Draft struct {
		Amount      decimal.Decimal `json:"amount"`
		Merchant    string          `json:"merchant"`
		Category    Category        `json:"category"`
		Description string          `json:"description"`
		Date        Date            `json:"date"`
	}
)

// ValidationError is a local, pre-network failure: a required field is
// missing or out of range. It never reaches the network layer.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

var (
	ErrInvalidAmount   = &ValidationError{Field: "amount", Message: "must be a positive number"}
	ErrEmptyMerchant   = &ValidationError{Field: "merchant", Message: "cannot be empty"}
	ErrInvalidDate     = &ValidationError{Field: "date", Message: "must be a valid date (YYYY-MM-DD)"}
	ErrLongDescription = &ValidationError{Field: "description", Message: "too long (max 200 characters)"}
)

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today truncates now to its calendar date.
func Today(now time.Time) Date {
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ParseDate parses an ISO 8601 date string (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

// UnmarshalJSON accepts plain ISO dates and full timestamps, keeping only
// the date portion. Backends are inconsistent about which one they send.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// Validate checks the store invariant for a confirmed record.
func (e ExpenseRecord) Validate() error {
	if e.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(e.Merchant) == "" {
		return ErrEmptyMerchant
	}
	if !e.Category.Valid() {
		return &ValidationError{Field: "category", Message: "unknown category " + strconv.Quote(string(e.Category))}
	}
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// NewDraftForm returns the initial form state for a fresh entry: empty
// amount and merchant, food preselected, date defaulting to today.
func NewDraftForm(now time.Time) DraftForm {
	return DraftForm{
		Category: string(CategoryFood),
		Date:     Today(now).String(),
	}
}

// Validate checks the required-field rules without touching the network.
// The first violation wins: amount, then merchant, then date.
func (f DraftForm) Validate() error {
	if _, err := ParseAmount(f.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(f.Merchant) == "" {
		return ErrEmptyMerchant
	}
	if _, err := ParseDate(f.Date); err != nil {
		return ErrInvalidDate
	}
	if len(f.Description) > 200 {
		return ErrLongDescription
	}
	return nil
}

// ToDraft validates the form and produces the typed draft sent to the
// backend. A blank description is generated from the merchant so saved
// records always carry one.
func (f DraftForm) ToDraft() (Draft, error) {
	amount, err := ParseAmount(f.Amount)
	if err != nil {
		return Draft{}, err
	}
	merchant := strings.TrimSpace(f.Merchant)
	if merchant == "" {
		return Draft{}, ErrEmptyMerchant
	}
	date, err := ParseDate(f.Date)
	if err != nil {
		return Draft{}, ErrInvalidDate
	}
	desc := strings.TrimSpace(f.Description)
	if len(desc) > 200 {
		return Draft{}, ErrLongDescription
	}
	if desc == "" {
		desc = "Expense at " + merchant
	}
	return Draft{
		Amount:      amount,
		Merchant:    merchant,
		Category:    ParseCategory(f.Category),
		Description: desc,
		Date:        date,
	}, nil
}

// ParseAmount accepts dot or comma decimal separators and requires a
// strictly positive value.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
