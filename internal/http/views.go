package http

import (
	"fmt"

	"spendscan/internal/analytics"
	"spendscan/internal/core"
)

// View models handed to the HTML templates. Amounts are pre-formatted
// strings so the templates stay logic-free.

type expenseRow struct {
	ID          int64
	Date        string
	Merchant    string
	Description string
	Amount      string
	Category    string
	Label       string
	Emoji       string
	Color       string
}

type categoryRow struct {
	Category string
	Label    string
	Emoji    string
	Color    string
	Amount   string
	Count    int
	Percent  string
	Width    int
}

type bucketRow struct {
	Period string
	Amount string
	Count  int
}

type dashboardView struct {
	Total    string
	Count    int
	Average  string
	Top      []categoryRow
	Recent   []expenseRow
	Degraded bool
}

type expensesView struct {
	Items    []expenseRow
	Count    int
	Total    string
	Degraded bool
}

type analyticsView struct {
	Rows     []categoryRow
	Monthly  []bucketRow
	Weekly   []bucketRow
	Total    string
	Count    int
	Degraded bool
}

type formView struct {
	Draft      core.DraftForm
	Categories []core.Category
	Scanned    bool
	Extraction core.ExtractionResult
}

func newExpenseRow(e core.ExpenseRecord) expenseRow {
	info := e.Category.Info()
	return expenseRow{
		ID:          e.ID,
		Date:        e.Date.String(),
		Merchant:    e.Merchant,
		Description: e.Description,
		Amount:      formatAmount(e.Amount),
		Category:    e.Category.String(),
		Label:       info.Label,
		Emoji:       info.Emoji,
		Color:       info.Color,
	}
}

func newCategoryRows(summary analytics.Summary) []categoryRow {
	rows := make([]categoryRow, 0, len(summary.ByCategory))
	for _, b := range summary.ByCategory {
		pct := summary.PercentageOf(b.Category)
		width := int(pct)
		// Keep tiny shares visible in the progress bars
		if width < 2 && b.Amount.IsPositive() {
			width = 2
		}
		if width > 100 {
			width = 100
		}
		info := b.Category.Info()
		rows = append(rows, categoryRow{
			Category: b.Category.String(),
			Label:    info.Label,
			Emoji:    info.Emoji,
			Color:    info.Color,
			Amount:   formatAmount(b.Amount),
			Count:    b.Count,
			Percent:  fmt.Sprintf("%.1f%%", pct),
			Width:    width,
		})
	}
	return rows
}

func newBucketRows(buckets []analytics.Bucket) []bucketRow {
	rows := make([]bucketRow, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, bucketRow{
			Period: b.Period,
			Amount: formatAmount(b.Amount),
			Count:  b.Count,
		})
	}
	return rows
}
