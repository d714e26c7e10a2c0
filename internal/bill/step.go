package bill

import "encoding/json"

// Step is the stage the splitting session is in. Transitions are enforced by
// the Session; each gate failure leaves the step unchanged.
type Step int

const (
	StepUploadReceipt Step = iota
	StepEditBillDetails
	StepViewSummary
	StepViewHistory
)

func (s Step) String() string {
	switch s {
	case StepUploadReceipt:
		return "upload_receipt"
	case StepEditBillDetails:
		return "edit_bill_details"
	case StepViewSummary:
		return "view_summary"
	case StepViewHistory:
		return "view_history"
	default:
		return "unknown"
	}
}

// MarshalJSON serializes the step as its string tag
func (s Step) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
