package bill

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatSummary renders a bill and its shares as a plain-text breakdown
// suitable for pasting into a chat message. The output is deterministic:
// shares print in the order given, items in bill order.
func FormatSummary(b *Bill, shares []ParticipantShare) string {
	var sb strings.Builder

	sb.WriteString("Split Bill Summary\n")
	if b.Description != "" {
		sb.WriteString(b.Description + "\n")
	}
	if !b.CreatedAt.IsZero() {
		sb.WriteString("Date: " + b.CreatedAt.Format("2006-01-02") + "\n")
	}
	sb.WriteString("\n")

	var grandTotal float64
	for _, share := range shares {
		grandTotal += share.TotalOwed

		sb.WriteString(share.ParticipantName + "\n")
		for _, item := range share.Items {
			fmt.Fprintf(&sb, "  - %s x%d  %s\n", item.Name, item.Quantity, formatAmount(item.Price))
		}
		fmt.Fprintf(&sb, "  Subtotal:    %s\n", formatAmount(share.Subtotal))
		fmt.Fprintf(&sb, "  Tax:         %s\n", formatAmount(share.TaxShare))
		fmt.Fprintf(&sb, "  Service fee: %s\n", formatAmount(share.ServiceFeeShare))
		fmt.Fprintf(&sb, "  Total owed:  %s\n", formatAmount(share.TotalOwed))
		sb.WriteString("\n")
	}

	if n := b.UnassignedCount(); n > 0 {
		var unassignedSum float64
		for _, item := range b.Items {
			if _, ok := b.AssignedTo(item.ID); !ok {
				unassignedSum += item.Price
			}
		}
		fmt.Fprintf(&sb, "Unassigned items: %d (%s)\n\n", n, formatAmount(unassignedSum))
	}

	fmt.Fprintf(&sb, "Grand total: %s\n", formatAmount(grandTotal))

	return sb.String()
}

// formatAmount prints an amount without trailing zero noise: whole-number
// amounts (rupiah-style receipts) print without decimals, fractional ones
// keep their digits.
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
