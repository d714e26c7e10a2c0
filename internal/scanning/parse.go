package scanning

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// rawExtraction mirrors Extraction but with nullable numeric fields so a
// model returning null (or omitting a field entirely) still unmarshals.
type rawExtraction struct {
	Items      []rawItem `json:"items"`
	Subtotal   *float64  `json:"subtotal"`
	Tax        *float64  `json:"tax"`
	ServiceFee *float64  `json:"serviceFee"`
	Total      *float64  `json:"total"`
}

type rawItem struct {
	Name     string   `json:"name"`
	Quantity *int     `json:"quantity"`
	Price    *float64 `json:"price"`
}

// parseExtractionJSON parses the JSON response from a vision model and
// coerces missing or invalid fields to safe defaults: quantity 1, prices and
// fees 0. An empty item list is not an error; the user can enter items by
// hand.
func parseExtractionJSON(text string) (*Extraction, error) {
	text = strings.TrimSpace(text)

	// Models wrap responses in markdown code blocks despite being told not to
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	text = text[startIdx : endIdx+1]

	var raw rawExtraction
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	extraction := &Extraction{
		Items:      make([]ExtractedItem, 0, len(raw.Items)),
		Subtotal:   coerceAmount(raw.Subtotal),
		Tax:        coerceAmount(raw.Tax),
		ServiceFee: coerceAmount(raw.ServiceFee),
		Total:      coerceAmount(raw.Total),
	}

	for i, item := range raw.Items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			name = fmt.Sprintf("Item %d", i+1)
		}

		quantity := 1
		if item.Quantity != nil && *item.Quantity > 0 {
			quantity = *item.Quantity
		}

		extraction.Items = append(extraction.Items, ExtractedItem{
			Name:     name,
			Quantity: quantity,
			Price:    coerceAmount(item.Price),
		})
	}

	return extraction, nil
}

// coerceAmount turns a possibly-missing or garbage numeric value into a safe
// non-negative amount.
func coerceAmount(v *float64) float64 {
	if v == nil {
		return 0
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		return 0
	}
	return *v
}
