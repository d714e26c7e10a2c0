package bill

// Allocate computes one share per participant from the bill's items,
// assignments and fee amounts. It is pure: same bill in, same shares out,
// and the bill is never modified.
//
// Tax and service fee are distributed in proportion to each participant's
// assigned subtotal. When no priced items anchor a proportion but fees
// exist, the fees are split equally instead. Unassigned items count toward
// the bill subtotal (diluting everyone's fee ratio) but land in nobody's
// share.
func Allocate(b *Bill) []ParticipantShare {
	if len(b.Participants) == 0 {
		return []ParticipantShare{}
	}

	shares := make([]ParticipantShare, len(b.Participants))
	byParticipant := make(map[string]int, len(b.Participants))
	for i, p := range b.Participants {
		shares[i] = ParticipantShare{
			ParticipantID:   p.ID,
			ParticipantName: p.Name,
			Items:           []Item{},
		}
		byParticipant[p.ID] = i
	}

	// Items iterate in bill order, which fixes the display order inside each
	// participant's breakdown
	var billSubtotal float64
	for _, item := range b.Items {
		billSubtotal += item.Price

		pid, ok := b.AssignedTo(item.ID)
		if !ok {
			continue
		}
		i, ok := byParticipant[pid]
		if !ok {
			continue
		}
		shares[i].Items = append(shares[i].Items, item)
		shares[i].Subtotal += item.Price
	}

	switch {
	case billSubtotal == 0 && (b.TaxAmount > 0 || b.ServiceFeeAmount > 0):
		// Fees exist but no priced items anchor a proportion: split equally
		n := float64(len(shares))
		for i := range shares {
			shares[i].TaxShare = b.TaxAmount / n
			shares[i].ServiceFeeShare = b.ServiceFeeAmount / n
		}
	case billSubtotal > 0:
		for i := range shares {
			ratio := shares[i].Subtotal / billSubtotal
			shares[i].TaxShare = b.TaxAmount * ratio
			shares[i].ServiceFeeShare = b.ServiceFeeAmount * ratio
		}
	}
	// billSubtotal == 0 with zero fees: every share stays zero

	for i := range shares {
		shares[i].TotalOwed = shares[i].Subtotal + shares[i].TaxShare + shares[i].ServiceFeeShare
	}

	return shares
}
