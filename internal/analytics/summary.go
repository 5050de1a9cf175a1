// Package analytics derives summary statistics from the live expense
// collection. Everything here is a pure function of its input: summaries
// are recomputed from scratch on every collection change, with no
// incremental or cached delta state.
package analytics

import (
	"fmt"
	"sort"

	"spendscan/internal/core"

	"github.com/shopspring/decimal"
)

type (
	// CategoryBreakdown is one category's share of the collection.
	CategoryBreakdown struct {
		Category core.Category
		Amount   decimal.Decimal
		Count    int
	}

	// Bucket is a calendar-period total (monthly or weekly).
	Bucket struct {
		Period string
		Amount decimal.Decimal
		Count  int
	}

	// Summary holds the derived statistics consumed by the dashboard and
	// analytics views.
	Summary struct {
		TotalSpent decimal.Decimal
		TotalCount int
		// ByCategory is sorted by summed amount descending; ties keep the
		// first-seen group order, so the sort is deterministic.
		ByCategory []CategoryBreakdown
		// Monthly and Weekly are chronological.
		Monthly []Bucket
		Weekly  []Bucket
	}
)

// Summarize groups the records by category, sums amounts and counts per
// group, and builds calendar buckets. The input is never mutated.
func Summarize(records []core.ExpenseRecord) Summary {
	s := Summary{
		TotalSpent: decimal.Zero,
		TotalCount: len(records),
	}

	index := make(map[core.Category]int)
	months := make(map[string]int)
	weeks := make(map[string]int)

	for _, r := range records {
		s.TotalSpent = s.TotalSpent.Add(r.Amount)

		i, ok := index[r.Category]
		if !ok {
			i = len(s.ByCategory)
			index[r.Category] = i
			s.ByCategory = append(s.ByCategory, CategoryBreakdown{Category: r.Category, Amount: decimal.Zero})
		}
		s.ByCategory[i].Amount = s.ByCategory[i].Amount.Add(r.Amount)
		s.ByCategory[i].Count++

		s.Monthly = addToBucket(s.Monthly, months, monthKey(r.Date), r.Amount)
		s.Weekly = addToBucket(s.Weekly, weeks, weekKey(r.Date), r.Amount)
	}

	sort.SliceStable(s.ByCategory, func(a, b int) bool {
		return s.ByCategory[a].Amount.GreaterThan(s.ByCategory[b].Amount)
	})
	sort.Slice(s.Monthly, func(a, b int) bool { return s.Monthly[a].Period < s.Monthly[b].Period })
	sort.Slice(s.Weekly, func(a, b int) bool { return s.Weekly[a].Period < s.Weekly[b].Period })

	return s
}

// PercentageOf returns the category's share of total spend in [0,100].
// Defined as 0 when nothing was spent, so an empty collection never
// divides by zero.
func (s Summary) PercentageOf(cat core.Category) float64 {
	if !s.TotalSpent.IsPositive() {
		return 0
	}
	for _, b := range s.ByCategory {
		if b.Category == cat {
			pct, _ := b.Amount.Div(s.TotalSpent).Mul(decimal.NewFromInt(100)).Float64()
			return pct
		}
	}
	return 0
}

// AveragePerExpense returns TotalSpent / TotalCount, or zero for an empty
// collection.
func (s Summary) AveragePerExpense() decimal.Decimal {
	if s.TotalCount == 0 {
		return decimal.Zero
	}
	return s.TotalSpent.Div(decimal.NewFromInt(int64(s.TotalCount))).Round(2)
}

// CategoryCount returns the number of distinct categories with spend.
func (s Summary) CategoryCount() int {
	return len(s.ByCategory)
}

func addToBucket(buckets []Bucket, index map[string]int, key string, amount decimal.Decimal) []Bucket {
	i, ok := index[key]
	if !ok {
		i = len(buckets)
		index[key] = i
		buckets = append(buckets, Bucket{Period: key, Amount: decimal.Zero})
	}
	buckets[i].Amount = buckets[i].Amount.Add(amount)
	buckets[i].Count++
	return buckets
}

func monthKey(d core.Date) string {
	return d.Format("2006-01")
}

func weekKey(d core.Date) string {
	year, week := d.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
