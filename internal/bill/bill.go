package bill

import (
	"strings"
	"time"
)

// SchemaVersion is written into every stored bill so the on-disk format can
// evolve without silently misreading old records.
const SchemaVersion = 1

// Item is one receipt line. Price is the total for the line, not the unit
// price; the extraction prompt and the edit API both follow this convention.
type Item struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Participant is one person splitting the bill, unique by case-insensitive
// name within a bill
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Bill is one receipt-splitting session
type Bill struct {
	ID                 string        `json:"id"`
	CreatedAt          time.Time     `json:"created_at"`
	Description        string        `json:"description,omitempty"`
	ReceiptImage       string        `json:"receipt_image,omitempty"`
	ReceiptContentType string        `json:"receipt_content_type,omitempty"`
	Items              []Item        `json:"items"`
	Participants       []Participant `json:"participants"`
	// Assignments maps item ID to participant ID. An absent key means the
	// item is unassigned; writes go through the session so a key never
	// dangles to a removed item or participant.
	Assignments      map[string]string `json:"assignments"`
	TaxAmount        float64           `json:"tax_amount"`
	ServiceFeeAmount float64           `json:"service_fee_amount"`
}

// ParticipantShare is one participant's computed portion of the bill
type ParticipantShare struct {
	ParticipantID   string  `json:"participant_id"`
	ParticipantName string  `json:"participant_name"`
	Items           []Item  `json:"items"`
	Subtotal        float64 `json:"subtotal"`
	TaxShare        float64 `json:"tax_share"`
	ServiceFeeShare float64 `json:"service_fee_share"`
	TotalOwed       float64 `json:"total_owed"`
}

// StoredBill is a finalized bill plus the share breakdown frozen at save
// time. The shares are never recomputed after storage so history always
// reflects what the user saw when they saved.
type StoredBill struct {
	SchemaVersion int `json:"schema_version"`
	Bill
	CalculatedShares []ParticipantShare `json:"calculated_shares"`
	SavedAt          time.Time          `json:"saved_at"`
}

// AssignedTo returns the participant an item is assigned to, and whether it
// is assigned at all
func (b *Bill) AssignedTo(itemID string) (string, bool) {
	pid, ok := b.Assignments[itemID]
	return pid, ok
}

// ItemSum returns the sum of all item prices, assigned or not
func (b *Bill) ItemSum() float64 {
	var sum float64
	for _, item := range b.Items {
		sum += item.Price
	}
	return sum
}

// UnassignedCount returns how many items have no assigned participant
func (b *Bill) UnassignedCount() int {
	count := 0
	for _, item := range b.Items {
		if _, ok := b.Assignments[item.ID]; !ok {
			count++
		}
	}
	return count
}

// HasParticipantNamed reports whether a participant with the given name is
// already on the bill, compared case-insensitively
func (b *Bill) HasParticipantNamed(name string) bool {
	for _, p := range b.Participants {
		if strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

func (b *Bill) itemIndex(id string) int {
	for i, item := range b.Items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (b *Bill) participantIndex(id string) int {
	for i, p := range b.Participants {
		if p.ID == id {
			return i
		}
	}
	return -1
}
