package bill

import (
	"errors"
	"fmt"
)

// Validation errors carry the user-facing message; handlers pass them
// through verbatim.
var (
	ErrNoBill               = errors.New("no bill in progress")
	ErrNoParticipants       = errors.New("add at least one participant before viewing the summary")
	ErrNoItems              = errors.New("the bill has no items")
	ErrEmptyParticipantName = errors.New("participant name cannot be empty")
	ErrParticipantNotFound  = errors.New("participant not found")
	ErrItemNotFound         = errors.New("item not found")
	ErrEmptyItemName        = errors.New("item name cannot be empty")
	ErrZeroItemSum          = errors.New("cannot apply a percentage service fee: item prices sum to zero")
	ErrUnsupportedFile      = errors.New("unsupported file type: upload an image or PDF of the receipt")
	ErrAnalysisSuperseded   = errors.New("receipt analysis superseded by a newer upload")
)

// DuplicateParticipantError is returned when a participant name already
// exists on the bill (case-insensitively)
type DuplicateParticipantError struct {
	Name string
}

func (e *DuplicateParticipantError) Error() string {
	return fmt.Sprintf("participant %q is already on the bill", e.Name)
}

// UnassignedItemsError blocks the summary until every item has an owner
type UnassignedItemsError struct {
	Count int
}

func (e *UnassignedItemsError) Error() string {
	if e.Count == 1 {
		return "1 item is not assigned to anyone"
	}
	return fmt.Sprintf("%d items are not assigned to anyone", e.Count)
}
