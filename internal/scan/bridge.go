// Package scan reconciles untrusted OCR extraction output into draft form
// state. This is the only place the per-field fallback policy lives; the
// bridge never submits anything — a human confirms the draft.
package scan

import (
	"strings"
	"time"

	"spendscan/internal/core"
)

const genericDescription = "Scanned receipt"

// BuildDraft merges an extraction result into a fully populated DraftForm:
//   - amount and merchant pass through when present, else stay empty so the
//     user is forced to fill them in
//   - category is coerced into the enumerated set (unknown -> other)
//   - description is generated from the merchant, never taken verbatim from
//     raw OCR text
//   - date passes through only when well-formed, else defaults to today
func BuildDraft(x core.ExtractionResult, now time.Time) core.DraftForm {
	merchant := strings.TrimSpace(x.Merchant)

	desc := genericDescription
	if merchant != "" {
		desc = "Receipt from " + merchant
	}

	date := core.Today(now).String()
	if parsed, err := core.ParseDate(x.Date); err == nil {
		date = parsed.String()
	}

	return core.DraftForm{
		Amount:      normalizeAmount(x.Amount),
		Merchant:    merchant,
		Category:    string(core.ParseCategory(x.Category)),
		Description: desc,
		Date:        date,
	}
}

// normalizeAmount keeps the extracted value only when it survives the same
// amount parsing the form applies on submit. OCR noise (currency symbols,
// stray text) becomes an empty field instead of a pre-filled bad value.
func normalizeAmount(s string) string {
	if _, err := core.ParseAmount(s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
