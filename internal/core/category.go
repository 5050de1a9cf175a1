package core

import (
	"encoding/json"
	"strings"
)

// Category identifies one of the fixed spending categories. Values arriving
// from the backend or from OCR extraction are coerced through ParseCategory,
// so a Category held by the store is always a member of the enumerated set.
type Category string

const (
	CategoryFood           Category = "food"
	CategoryGrocery        Category = "grocery"
	CategoryTransportation Category = "transportation"
	CategoryShopping       Category = "shopping"
	CategoryEntertainment  Category = "entertainment"
	CategoryUtilities      Category = "utilities"
	CategoryHealth         Category = "health"
	CategoryEducation      Category = "education"
	CategoryTravel         Category = "travel"
	CategoryOther          Category = "other"
)

// CategoryInfo holds display metadata for a category.
type CategoryInfo struct {
	Label string
	Emoji string
	Color string
}

var categoryCatalog = map[Category]CategoryInfo{
	CategoryFood:           {Label: "Food & Dining", Emoji: "🍔", Color: "#48bb78"},
	CategoryGrocery:        {Label: "Groceries", Emoji: "🛒", Color: "#ed8936"},
	CategoryTransportation: {Label: "Transportation", Emoji: "🚗", Color: "#4299e1"},
	CategoryShopping:       {Label: "Shopping", Emoji: "🛍️", Color: "#9f7aea"},
	CategoryEntertainment:  {Label: "Entertainment", Emoji: "🎬", Color: "#ed64a6"},
	CategoryUtilities:      {Label: "Utilities", Emoji: "💡", Color: "#667eea"},
	CategoryHealth:         {Label: "Health & Medical", Emoji: "🏥", Color: "#f56565"},
	CategoryEducation:      {Label: "Education", Emoji: "📚", Color: "#38b2ac"},
	CategoryTravel:         {Label: "Travel", Emoji: "✈️", Color: "#f6ad55"},
	CategoryOther:          {Label: "Other", Emoji: "📦", Color: "#a0aec0"},
}

// categoryOrder fixes the display order for forms and legends.
var categoryOrder = []Category{
	CategoryFood,
	CategoryGrocery,
	CategoryTransportation,
	CategoryShopping,
	CategoryEntertainment,
	CategoryUtilities,
	CategoryHealth,
	CategoryEducation,
	CategoryTravel,
	CategoryOther,
}

// ParseCategory normalizes a raw category value. Unknown or empty values
// fall back to CategoryOther rather than erroring, since category strings
// come from untrusted sources (backend payloads, OCR extraction).
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := categoryCatalog[c]; ok {
		return c
	}
	return CategoryOther
}

// Valid reports whether c is a member of the enumerated set.
func (c Category) Valid() bool {
	_, ok := categoryCatalog[c]
	return ok
}

// Info returns display metadata, falling back to CategoryOther for
// out-of-set values.
func (c Category) Info() CategoryInfo {
	if info, ok := categoryCatalog[c]; ok {
		return info
	}
	return categoryCatalog[CategoryOther]
}

func (c Category) String() string { return string(c) }

// Categories returns all categories in display order.
func Categories() []Category {
	out := make([]Category, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// UnmarshalJSON coerces unknown values to CategoryOther at the decode
// boundary so records never carry out-of-set categories.
func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = ParseCategory(s)
	return nil
}
