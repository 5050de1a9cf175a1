package core

import (
	"encoding/json"
	"strconv"
)

// ExtractionResult is the untrusted partial payload produced by the OCR
// collaborator. Any subset of fields may be present, and the backend is
// loose about types (amounts and confidence arrive as numbers or strings),
// so everything is normalized to strings at decode time. It must pass
// through the scan bridge before becoming a DraftForm.
type ExtractionResult struct {
	Amount     string
	Merchant   string
	Category   string
	Date       string
	Confidence string
	RawText    string
}

// IsEmpty reports whether extraction produced nothing usable.
func (x ExtractionResult) IsEmpty() bool {
	return x.Amount == "" && x.Merchant == "" && x.Category == "" && x.Date == ""
}

func (x *ExtractionResult) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	x.Amount = stringValue(raw["amount"])
	x.Merchant = stringValue(raw["merchant"])
	x.Category = stringValue(raw["category"])
	x.Date = stringValue(raw["date"])
	x.Confidence = stringValue(raw["confidence"])
	x.RawText = stringValue(raw["raw_text"])
	if x.RawText == "" {
		x.RawText = stringValue(raw["rawText"])
	}
	return nil
}

// stringValue converts a decoded JSON value to its string form.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
