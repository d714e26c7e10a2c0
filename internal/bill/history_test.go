package bill

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltDB", func() {
	var db *BoltDB

	newStored := func(id string, savedAt time.Time) *StoredBill {
		return &StoredBill{
			SchemaVersion: SchemaVersion,
			Bill: Bill{
				ID:           id,
				CreatedAt:    savedAt,
				Items:        []Item{{ID: id + "-i1", Name: "Gado Gado", Quantity: 1, Price: 25000}},
				Participants: []Participant{{ID: id + "-p1", Name: "Andi"}},
				Assignments:  map[string]string{id + "-i1": id + "-p1"},
				TaxAmount:    2500,
			},
			CalculatedShares: []ParticipantShare{
				{ParticipantID: id + "-p1", ParticipantName: "Andi", Subtotal: 25000, TaxShare: 2500, TotalOwed: 27500},
			},
			SavedAt: savedAt,
		}
	}

	BeforeEach(func() {
		var err error
		db, err = NewBoltDB(filepath.Join(GinkgoT().TempDir(), "test.db"))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(db.Close)
	})

	Describe("SaveBill and GetBill", func() {
		It("round-trips a stored bill", func() {
			stored := newStored("b1", time.Date(2025, 11, 2, 19, 30, 0, 0, time.UTC))
			Expect(db.SaveBill(stored)).To(Succeed())

			got, err := db.GetBill("b1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal("b1"))
			Expect(got.SchemaVersion).To(Equal(SchemaVersion))
			Expect(got.Items).To(HaveLen(1))
			Expect(got.Assignments).To(HaveKeyWithValue("b1-i1", "b1-p1"))
			Expect(got.CalculatedShares[0].TotalOwed).To(Equal(27500.0))
			Expect(got.SavedAt.Equal(stored.SavedAt)).To(BeTrue())
		})

		It("returns an error for a missing bill", func() {
			_, err := db.GetBill("nope")
			Expect(err).To(MatchError(ContainSubstring("not found")))
		})

		It("refuses a bill written by a newer schema", func() {
			stored := newStored("future", time.Now())
			stored.SchemaVersion = SchemaVersion + 1
			Expect(db.SaveBill(stored)).To(Succeed())

			_, err := db.GetBill("future")
			Expect(err).To(MatchError(ContainSubstring("newer than this build")))
		})
	})

	Describe("ListBills", func() {
		It("returns bills most recently saved first", func() {
			base := time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)
			Expect(db.SaveBill(newStored("oldest", base))).To(Succeed())
			Expect(db.SaveBill(newStored("newest", base.Add(48*time.Hour)))).To(Succeed())
			Expect(db.SaveBill(newStored("middle", base.Add(24*time.Hour)))).To(Succeed())

			bills, err := db.ListBills()
			Expect(err).NotTo(HaveOccurred())
			Expect(bills).To(HaveLen(3))
			Expect(bills[0].ID).To(Equal("newest"))
			Expect(bills[1].ID).To(Equal("middle"))
			Expect(bills[2].ID).To(Equal("oldest"))
		})

		It("returns an empty list for an empty database", func() {
			bills, err := db.ListBills()
			Expect(err).NotTo(HaveOccurred())
			Expect(bills).NotTo(BeNil())
			Expect(bills).To(BeEmpty())
		})

		It("skips bills written by a newer schema", func() {
			Expect(db.SaveBill(newStored("readable", time.Now()))).To(Succeed())
			future := newStored("future", time.Now())
			future.SchemaVersion = SchemaVersion + 1
			Expect(db.SaveBill(future)).To(Succeed())

			bills, err := db.ListBills()
			Expect(err).NotTo(HaveOccurred())
			Expect(bills).To(HaveLen(1))
			Expect(bills[0].ID).To(Equal("readable"))
		})
	})

	Describe("DeleteBill", func() {
		It("removes the bill", func() {
			Expect(db.SaveBill(newStored("b1", time.Now()))).To(Succeed())
			Expect(db.DeleteBill("b1")).To(Succeed())

			_, err := db.GetBill("b1")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("DeleteAllBills", func() {
		It("removes every bill and accepts new writes afterwards", func() {
			Expect(db.SaveBill(newStored("b1", time.Now()))).To(Succeed())
			Expect(db.SaveBill(newStored("b2", time.Now()))).To(Succeed())

			Expect(db.DeleteAllBills()).To(Succeed())

			bills, err := db.ListBills()
			Expect(err).NotTo(HaveOccurred())
			Expect(bills).To(BeEmpty())

			Expect(db.SaveBill(newStored("b3", time.Now()))).To(Succeed())
			bills, err = db.ListBills()
			Expect(err).NotTo(HaveOccurred())
			Expect(bills).To(HaveLen(1))
		})
	})
})
