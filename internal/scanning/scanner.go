package scanning

import "context"

// ExtractedItem is a single line item read off a receipt
type ExtractedItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"` // total price for the line, not unit price
}

// Extraction contains the structured information extracted from a receipt.
// Subtotal and Total are informational only; the allocation math never reads
// them.
type Extraction struct {
	Items      []ExtractedItem `json:"items"`
	Subtotal   float64         `json:"subtotal"`
	Tax        float64         `json:"tax"`
	ServiceFee float64         `json:"serviceFee"`
	Total      float64         `json:"total"`
}

// Analyzer defines the interface for receipt analysis operations
type Analyzer interface {
	// AnalyzeReceipt reads a receipt image/PDF and extracts line items and totals
	AnalyzeReceipt(ctx context.Context, imageData []byte, contentType string) (*Extraction, error)
	// Close closes the analyzer and releases resources
	Close() error
}
