package bill

import (
	"reflect"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Allocate", func() {
	var (
		b      *Bill
		shares []ParticipantShare
	)

	JustBeforeEach(func() {
		shares = Allocate(b)
	})

	When("the bill has no participants", func() {
		BeforeEach(func() {
			b = &Bill{
				Items:       []Item{{ID: "i1", Name: "Pizza", Quantity: 1, Price: 100}},
				Assignments: map[string]string{},
				TaxAmount:   10,
			}
		})

		It("returns an empty result set", func() {
			Expect(shares).NotTo(BeNil())
			Expect(shares).To(BeEmpty())
		})
	})

	When("items are assigned and tax is proportional", func() {
		BeforeEach(func() {
			b = &Bill{
				Participants: []Participant{
					{ID: "a", Name: "Andi"},
					{ID: "bo", Name: "Budi"},
				},
				Items: []Item{
					{ID: "i1", Name: "Sate Ayam", Quantity: 1, Price: 20000},
					{ID: "i2", Name: "Nasi Goreng", Quantity: 1, Price: 30000},
				},
				Assignments: map[string]string{"i1": "a", "i2": "bo"},
				TaxAmount:   5000,
			}
		})

		It("gives each participant a tax share proportional to their subtotal", func() {
			Expect(shares[0].TaxShare).To(BeNumerically("~", 2000, 1e-9))
			Expect(shares[1].TaxShare).To(BeNumerically("~", 3000, 1e-9))
		})

		It("computes total owed as subtotal plus fee shares", func() {
			Expect(shares[0].TotalOwed).To(BeNumerically("~", 22000, 1e-9))
			Expect(shares[1].TotalOwed).To(BeNumerically("~", 33000, 1e-9))
		})

		It("keeps shares in participant order", func() {
			Expect(shares[0].ParticipantName).To(Equal("Andi"))
			Expect(shares[1].ParticipantName).To(Equal("Budi"))
		})

		It("distributes the whole tax amount across shares", func() {
			var taxSum float64
			for _, share := range shares {
				taxSum += share.TaxShare
			}
			Expect(taxSum).To(BeNumerically("~", b.TaxAmount, 1e-9))
		})
	})

	When("fees exist but the items sum to zero", func() {
		BeforeEach(func() {
			b = &Bill{
				Participants: []Participant{
					{ID: "a", Name: "Andi"},
					{ID: "bo", Name: "Budi"},
					{ID: "c", Name: "Citra"},
				},
				Items: []Item{
					{ID: "i1", Name: "Voucher", Quantity: 1, Price: 0},
				},
				Assignments: map[string]string{"i1": "a"},
				TaxAmount:   90000,
			}
		})

		It("splits the tax equally across all participants", func() {
			for _, share := range shares {
				Expect(share.TaxShare).To(BeNumerically("~", 30000, 1e-9))
			}
		})

		It("leaves subtotals at zero", func() {
			for _, share := range shares {
				Expect(share.Subtotal).To(BeZero())
			}
		})
	})

	When("both the items and the fees are zero", func() {
		BeforeEach(func() {
			b = &Bill{
				Participants: []Participant{{ID: "a", Name: "Andi"}},
				Items:        []Item{{ID: "i1", Name: "Gift", Quantity: 1, Price: 0}},
				Assignments:  map[string]string{"i1": "a"},
			}
		})

		It("returns all-zero shares without dividing by zero", func() {
			Expect(shares[0].Subtotal).To(BeZero())
			Expect(shares[0].TaxShare).To(BeZero())
			Expect(shares[0].ServiceFeeShare).To(BeZero())
			Expect(shares[0].TotalOwed).To(BeZero())
		})
	})

	When("some items are unassigned", func() {
		BeforeEach(func() {
			b = &Bill{
				Participants: []Participant{
					{ID: "a", Name: "Andi"},
					{ID: "bo", Name: "Budi"},
				},
				Items: []Item{
					{ID: "i1", Name: "Ayam Bakar", Quantity: 1, Price: 40000},
					{ID: "i2", Name: "Kerupuk", Quantity: 2, Price: 10000},
				},
				Assignments: map[string]string{"i1": "a"},
				TaxAmount:   5000,
			}
		})

		It("excludes unassigned items from every share", func() {
			var itemCount int
			for _, share := range shares {
				itemCount += len(share.Items)
			}
			Expect(itemCount).To(Equal(1))
		})

		It("still counts unassigned items in the fee proportion base", func() {
			// Andi owns 40000 of a 50000 subtotal: 4/5 of the tax
			Expect(shares[0].TaxShare).To(BeNumerically("~", 4000, 1e-9))
			Expect(shares[1].TaxShare).To(BeZero())
		})

		It("sums share subtotals to the assigned item prices only", func() {
			var subtotalSum float64
			for _, share := range shares {
				subtotalSum += share.Subtotal
			}
			Expect(subtotalSum).To(BeNumerically("~", 40000, 1e-9))
		})
	})

	When("tax and service fee are both present", func() {
		BeforeEach(func() {
			b = &Bill{
				Participants: []Participant{
					{ID: "a", Name: "Andi"},
					{ID: "bo", Name: "Budi"},
				},
				Items: []Item{
					{ID: "i1", Name: "Steak", Quantity: 1, Price: 75000},
					{ID: "i2", Name: "Jus Alpukat", Quantity: 1, Price: 25000},
				},
				Assignments:      map[string]string{"i1": "a", "i2": "bo"},
				TaxAmount:        10000,
				ServiceFeeAmount: 5000,
			}
		})

		It("distributes both fees by the same proportion", func() {
			Expect(shares[0].TaxShare).To(BeNumerically("~", 7500, 1e-9))
			Expect(shares[0].ServiceFeeShare).To(BeNumerically("~", 3750, 1e-9))
			Expect(shares[1].TaxShare).To(BeNumerically("~", 2500, 1e-9))
			Expect(shares[1].ServiceFeeShare).To(BeNumerically("~", 1250, 1e-9))
		})

		It("distributes the whole service fee across shares", func() {
			var feeSum float64
			for _, share := range shares {
				feeSum += share.ServiceFeeShare
			}
			Expect(feeSum).To(BeNumerically("~", b.ServiceFeeAmount, 1e-9))
		})
	})

	When("called twice on an unchanged bill", func() {
		BeforeEach(func() {
			b = &Bill{
				Participants: []Participant{
					{ID: "a", Name: "Andi"},
					{ID: "bo", Name: "Budi"},
				},
				Items: []Item{
					{ID: "i1", Name: "Bakso", Quantity: 1, Price: 15000},
					{ID: "i2", Name: "Es Campur", Quantity: 1, Price: 12000},
				},
				Assignments:      map[string]string{"i1": "a", "i2": "bo"},
				TaxAmount:        2700,
				ServiceFeeAmount: 1350,
			}
		})

		It("yields identical results", func() {
			again := Allocate(b)
			Expect(reflect.DeepEqual(shares, again)).To(BeTrue())
		})

		It("does not modify the bill", func() {
			Expect(b.Items).To(HaveLen(2))
			Expect(b.Assignments).To(HaveLen(2))
			Expect(b.TaxAmount).To(Equal(2700.0))
		})
	})
})
