package billing

import (
	"testing"

	"github.com/medcore/hims/internal/platform/money"
)

func TestSummarize(t *testing.T) {
	items := []*Item{
		{ItemType: ItemConsultation, Amount: 35000, Status: ItemUnpaid},
		{ItemType: ItemLab, Amount: 20000, Status: ItemUnpaid},
		{ItemType: ItemMedicine, Amount: 5000, Status: ItemCancelled},
	}
	payments := []*Payment{
		{Amount: 15000, Status: PaymentSuccess},
		{Amount: 99900, Status: PaymentFailed},
		{Amount: 10000, Status: PaymentPending},
	}

	s := Summarize(items, payments)
	if s.Total != 55000 {
		t.Errorf("Total = %d, want 55000 (cancelled item excluded)", s.Total)
	}
	if s.Paid != 15000 {
		t.Errorf("Paid = %d, want 15000 (only success payments count)", s.Paid)
	}
	if s.Due != 40000 {
		t.Errorf("Due = %d, want 40000", s.Due)
	}
	if s.Status != LedgerPartial {
		t.Errorf("Status = %q, want partial", s.Status)
	}
}

func TestSummarizeStatuses(t *testing.T) {
	cases := []struct {
		name     string
		items    []*Item
		payments []*Payment
		want     LedgerStatus
		wantDue  money.Amount
	}{
		{"empty ledger", nil, nil, LedgerUnpaid, 0},
		{"charged unpaid",
			[]*Item{{Amount: 10000, Status: ItemUnpaid}}, nil, LedgerUnpaid, 10000},
		{"settled",
			[]*Item{{Amount: 10000, Status: ItemUnpaid}},
			[]*Payment{{Amount: 10000, Status: PaymentSuccess}}, LedgerPaid, 0},
		{"overpaid dues floor at zero",
			[]*Item{{Amount: 10000, Status: ItemUnpaid}},
			[]*Payment{{Amount: 15000, Status: PaymentSuccess}}, LedgerPaid, 0},
		{"all items cancelled after payment",
			[]*Item{{Amount: 10000, Status: ItemCancelled}},
			[]*Payment{{Amount: 5000, Status: PaymentSuccess}}, LedgerUnpaid, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := Summarize(c.items, c.payments)
			if s.Status != c.want {
				t.Errorf("Status = %q, want %q", s.Status, c.want)
			}
			if s.Due != c.wantDue {
				t.Errorf("Due = %d, want %d", s.Due, c.wantDue)
			}
			if s.Due < 0 {
				t.Errorf("Due went negative: %d", s.Due)
			}
		})
	}
}

func TestBucketFor(t *testing.T) {
	want := map[ItemType]Bucket{
		ItemConsultation: BucketConsultation,
		ItemLab:          BucketDiagnostics,
		ItemMedicine:     BucketPharmacy,
		ItemService:      BucketServices,
		ItemBed:          BucketAccommodation,
		ItemOT:           BucketProcedures,
	}
	if len(want) != len(validItemTypes) {
		t.Fatal("bucket expectations out of sync with item types")
	}
	for it, b := range want {
		if got := BucketFor(it); got != b {
			t.Errorf("BucketFor(%s) = %s, want %s", it, got, b)
		}
	}
}

func TestBucketTotals(t *testing.T) {
	items := []*Item{
		{ItemType: ItemConsultation, Amount: 35000, Status: ItemUnpaid},
		{ItemType: ItemLab, Amount: 20000, Status: ItemUnpaid},
		{ItemType: ItemLab, Amount: 10000, Status: ItemUnpaid},
		{ItemType: ItemMedicine, Amount: 4000, Status: ItemCancelled},
	}
	got := bucketTotals(items)
	if got[BucketConsultation] != 35000 {
		t.Errorf("consultation = %d", got[BucketConsultation])
	}
	if got[BucketDiagnostics] != 30000 {
		t.Errorf("diagnostics = %d", got[BucketDiagnostics])
	}
	if _, ok := got[BucketPharmacy]; ok {
		t.Error("cancelled item contributed to its bucket")
	}
}
