package store

import (
	"github.com/shopspring/decimal"

	"spendscan/internal/core"
)

// sampleRecords is the fixed placeholder dataset shown when the backend is
// unreachable, so the UI stays demonstrable offline. The degraded flag is
// what tells views to label it as sample data.
func sampleRecords() []core.ExpenseRecord {
	return []core.ExpenseRecord{
		{
			ID:          1,
			Amount:      decimal.NewFromFloat(45.50),
			Merchant:    "Starbucks",
			Category:    core.CategoryFood,
			Description: "Coffee and snacks",
			Date:        core.NewDate(2024, 9, 30),
		},
		{
			ID:          2,
			Amount:      decimal.NewFromFloat(120.00),
			Merchant:    "Amazon",
			Category:    core.CategoryShopping,
			Description: "Online shopping",
			Date:        core.NewDate(2024, 9, 29),
		},
	}
}
