package bill

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("FormatSummary", func() {
	var (
		b      *Bill
		shares []ParticipantShare
		text   string
	)

	BeforeEach(func() {
		b = &Bill{
			ID:          "b1",
			CreatedAt:   time.Date(2025, 11, 2, 19, 30, 0, 0, time.UTC),
			Description: "Team dinner",
			Participants: []Participant{
				{ID: "a", Name: "Andi"},
				{ID: "bo", Name: "Budi"},
			},
			Items: []Item{
				{ID: "i1", Name: "Nasi Goreng", Quantity: 1, Price: 30000},
				{ID: "i2", Name: "Es Teh", Quantity: 2, Price: 10000},
			},
			Assignments:      map[string]string{"i1": "a", "i2": "bo"},
			TaxAmount:        4000,
			ServiceFeeAmount: 2000,
		}
		shares = Allocate(b)
	})

	JustBeforeEach(func() {
		text = FormatSummary(b, shares)
	})

	It("starts with the header, description and date", func() {
		Expect(text).To(HavePrefix("Split Bill Summary\nTeam dinner\nDate: 2025-11-02\n"))
	})

	It("lists each participant with their items and totals", func() {
		Expect(text).To(ContainSubstring("Andi\n  - Nasi Goreng x1  30000\n"))
		Expect(text).To(ContainSubstring("Budi\n  - Es Teh x2  10000\n"))
		Expect(text).To(ContainSubstring("  Subtotal:    30000\n"))
		Expect(text).To(ContainSubstring("  Tax:         3000\n"))
		Expect(text).To(ContainSubstring("  Service fee: 1500\n"))
		Expect(text).To(ContainSubstring("  Total owed:  34500\n"))
	})

	It("ends with the grand total", func() {
		Expect(text).To(HaveSuffix("Grand total: 46000\n"))
	})

	It("prints whole amounts without decimals", func() {
		Expect(text).NotTo(ContainSubstring(".0"))
	})

	It("is deterministic", func() {
		Expect(FormatSummary(b, shares)).To(Equal(text))
	})

	When("the bill has no description", func() {
		BeforeEach(func() {
			b.Description = ""
		})

		It("omits the description line", func() {
			Expect(text).To(HavePrefix("Split Bill Summary\nDate: 2025-11-02\n"))
		})
	})

	When("items are unassigned", func() {
		BeforeEach(func() {
			delete(b.Assignments, "i2")
			shares = Allocate(b)
		})

		It("calls out the unassigned count and amount", func() {
			Expect(text).To(ContainSubstring("Unassigned items: 1 (10000)\n"))
		})
	})
})
