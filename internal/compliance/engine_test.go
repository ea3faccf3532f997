package compliance

import (
	"math"
	"reflect"
	"testing"
	"time"

	"partspos/backend/internal/domain"
)

var testWindowStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
var testWindowEnd = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

func testCatalog() []domain.CatalogItem {
	return []domain.CatalogItem{
		{PartNumber: "HY-1001", Name: "Oil Filter", Brand: domain.BrandHyundai, Price: 1000, Active: true},
		{PartNumber: "HY-1003", Name: "Brake Pad Set", Brand: domain.BrandHyundai, Price: 2650, Active: true},
		{PartNumber: "MH-2001", Name: "Fuel Filter", Brand: domain.BrandMahindra, Price: 560, Active: true},
	}
}

func tx(id, partNumber, txType string, qty int, price float64, vendor string, at time.Time) domain.Transaction {
	return domain.Transaction{
		ID:           id,
		PartNumber:   partNumber,
		Type:         txType,
		Quantity:     qty,
		Price:        price,
		CustomerName: vendor,
		Status:       domain.TxStatusApproved,
		CreatedAt:    at,
	}
}

func defaultOptions() Options {
	return Options{WindowStart: testWindowStart, WindowEnd: testWindowEnd}
}

func TestAggregateLeakageAgainstBenchmarkPrice(t *testing.T) {
	// MRP 1000, benchmark price 880. Buying 10 units at 900 leaks
	// (900-880)*10 = 200; buying 5 at 870 is under benchmark and leaks nothing.
	at := testWindowStart.Add(time.Hour)
	transactions := []domain.Transaction{
		tx("p1", "HY-1001", domain.TxTypePurchase, 10, 900, "Sharma Auto", at),
		tx("p2", "HY-1001", domain.TxTypePurchase, 5, 870, "Sharma Auto", at),
	}

	report := Aggregate(transactions, testCatalog(), defaultOptions())

	if math.Abs(report.TotalLeakage-200) > 1e-9 {
		t.Fatalf("expected total leakage 200, got %v", report.TotalLeakage)
	}
	if math.Abs(report.TotalPurchases-(900*10+870*5)) > 1e-9 {
		t.Fatalf("unexpected total purchases %v", report.TotalPurchases)
	}
	if len(report.ByVendor) != 1 {
		t.Fatalf("expected one vendor row, got %d", len(report.ByVendor))
	}
	vendor := report.ByVendor[0]
	if vendor.Vendor != "SHARMA AUTO" {
		t.Fatalf("expected normalized vendor name, got %q", vendor.Vendor)
	}
	if vendor.Invoices != 1 {
		t.Fatalf("expected 1 leaking invoice, got %d", vendor.Invoices)
	}
	if math.Abs(vendor.Leakage-200) > 1e-9 {
		t.Fatalf("expected vendor leakage 200, got %v", vendor.Leakage)
	}
}

func TestAggregateLeakageWithinToleranceIgnored(t *testing.T) {
	at := testWindowStart.Add(time.Hour)
	// Benchmark for HY-1001 is 880. A price of 880.4 deviates by less than the
	// tolerance and must not register leakage; 880.6 must.
	under := Aggregate([]domain.Transaction{
		tx("p1", "HY-1001", domain.TxTypePurchase, 3, 880.4, "V", at),
	}, testCatalog(), defaultOptions())
	if under.TotalLeakage != 0 {
		t.Fatalf("expected no leakage within tolerance, got %v", under.TotalLeakage)
	}

	over := Aggregate([]domain.Transaction{
		tx("p2", "HY-1001", domain.TxTypePurchase, 3, 880.6, "V", at),
	}, testCatalog(), defaultOptions())
	if over.TotalLeakage <= 0 {
		t.Fatalf("expected leakage above tolerance, got %v", over.TotalLeakage)
	}
}

func TestAggregateIsPureAndIdempotent(t *testing.T) {
	at := testWindowStart.Add(time.Hour)
	transactions := []domain.Transaction{
		tx("s1", "HY-1001", domain.TxTypeSale, 2, 1000, "Customer A", at),
		tx("p1", "HY-1001", domain.TxTypePurchase, 5, 920, "Vendor B", at),
		tx("r1", "HY-1001", domain.TxTypeReturn, 1, 1000, "Customer A", at),
	}
	catalog := testCatalog()

	first := Aggregate(transactions, catalog, defaultOptions())
	second := Aggregate(transactions, catalog, defaultOptions())

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical reports for identical inputs")
	}
}

func TestAggregateSaleReturnPairCancels(t *testing.T) {
	at := testWindowStart.Add(time.Hour)
	transactions := []domain.Transaction{
		tx("s1", "HY-1001", domain.TxTypeSale, 4, 500, "Customer A", at),
		tx("r1", "HY-1001", domain.TxTypeReturn, 4, 500, "Customer A", at.Add(time.Hour)),
	}

	report := Aggregate(transactions, testCatalog(), defaultOptions())

	if report.NetSales != 0 {
		t.Fatalf("expected net sales 0 after full return, got %v", report.NetSales)
	}
	if report.MarginPercent != 0 {
		t.Fatalf("expected margin 0 when net sales is 0, got %v", report.MarginPercent)
	}
}

func TestAggregateMarginZeroWhenNoSales(t *testing.T) {
	at := testWindowStart.Add(time.Hour)
	report := Aggregate([]domain.Transaction{
		tx("p1", "HY-1001", domain.TxTypePurchase, 2, 900, "V", at),
	}, testCatalog(), defaultOptions())

	if report.NetSales != 0 {
		t.Fatalf("expected net sales 0, got %v", report.NetSales)
	}
	if report.MarginPercent != 0 {
		t.Fatalf("expected margin 0 with zero net sales, got %v", report.MarginPercent)
	}
	if report.NetProfit >= 0 {
		t.Fatalf("expected negative profit on purchases only, got %v", report.NetProfit)
	}
}

func TestAggregateUnknownPartCostCountedLeakageSkipped(t *testing.T) {
	at := testWindowStart.Add(time.Hour)
	report := Aggregate([]domain.Transaction{
		tx("p1", "ZZ-9999", domain.TxTypePurchase, 2, 5000, "Gray Market Traders", at),
	}, testCatalog(), defaultOptions())

	if math.Abs(report.TotalPurchases-10000) > 1e-9 {
		t.Fatalf("expected purchases 10000 for unknown part, got %v", report.TotalPurchases)
	}
	if report.TotalLeakage != 0 {
		t.Fatalf("expected no leakage for unknown part, got %v", report.TotalLeakage)
	}
}

func TestAggregateWindowBoundsHalfOpen(t *testing.T) {
	inside := tx("s1", "HY-1001", domain.TxTypeSale, 1, 1000, "A", testWindowStart)
	atEnd := tx("s2", "HY-1001", domain.TxTypeSale, 1, 1000, "A", testWindowEnd)
	before := tx("s3", "HY-1001", domain.TxTypeSale, 1, 1000, "A", testWindowStart.Add(-time.Second))

	report := Aggregate([]domain.Transaction{inside, atEnd, before}, testCatalog(), defaultOptions())

	if math.Abs(report.NetSales-1000) > 1e-9 {
		t.Fatalf("expected only the start-boundary sale counted, got net sales %v", report.NetSales)
	}
}

func TestAggregateBrandFilterPartitionsTotals(t *testing.T) {
	at := testWindowStart.Add(time.Hour)
	transactions := []domain.Transaction{
		tx("s1", "HY-1001", domain.TxTypeSale, 2, 1100, "A", at),
		tx("s2", "MH-2001", domain.TxTypeSale, 3, 600, "B", at),
		tx("p1", "HY-1001", domain.TxTypePurchase, 4, 920, "Vendor X", at),
		tx("p2", "MH-2001", domain.TxTypePurchase, 5, 510, "Vendor Y", at),
	}
	catalog := testCatalog()

	all := Aggregate(transactions, catalog, defaultOptions())
	hyundai := Aggregate(transactions, catalog, Options{WindowStart: testWindowStart, WindowEnd: testWindowEnd, Brand: domain.BrandHyundai})
	mahindra := Aggregate(transactions, catalog, Options{WindowStart: testWindowStart, WindowEnd: testWindowEnd, Brand: domain.BrandMahindra})

	if math.Abs(hyundai.NetSales+mahindra.NetSales-all.NetSales) > 1e-9 {
		t.Fatalf("brand-filtered net sales must sum to the unfiltered total: %v + %v != %v", hyundai.NetSales, mahindra.NetSales, all.NetSales)
	}
	if math.Abs(hyundai.TotalPurchases+mahindra.TotalPurchases-all.TotalPurchases) > 1e-9 {
		t.Fatalf("brand-filtered purchases must sum to the unfiltered total")
	}
	if math.Abs(hyundai.TotalLeakage+mahindra.TotalLeakage-all.TotalLeakage) > 1e-9 {
		t.Fatalf("brand-filtered leakage must sum to the unfiltered total")
	}

	for _, row := range hyundai.ByPart {
		if row.PartNumber != "HY-1001" {
			t.Fatalf("unexpected part %s in hyundai report", row.PartNumber)
		}
	}
}

func TestAggregateOffendersViewSortsByLeakage(t *testing.T) {
	at := testWindowStart.Add(time.Hour)
	transactions := []domain.Transaction{
		// HY-1001 leaks (900-880)*10 = 200
		tx("p1", "HY-1001", domain.TxTypePurchase, 10, 900, "V1", at),
		// HY-1003 (MRP 2650, benchmark 2332) leaks (2400-2332)*10 = 680
		tx("p2", "HY-1003", domain.TxTypePurchase, 10, 2400, "V2", at),
	}

	report := Aggregate(transactions, testCatalog(), Options{
		WindowStart: testWindowStart,
		WindowEnd:   testWindowEnd,
		View:        ViewOffenders,
	})

	if len(report.ByPart) < 2 {
		t.Fatalf("expected at least two part rows, got %d", len(report.ByPart))
	}
	if report.ByPart[0].PartNumber != "HY-1003" {
		t.Fatalf("expected HY-1003 first under offenders view, got %s", report.ByPart[0].PartNumber)
	}
	if report.ByPart[0].Leakage < report.ByPart[1].Leakage {
		t.Fatalf("offenders view must sort by leakage descending")
	}
}

func TestAggregateImpactViewSortsByAbsoluteProfit(t *testing.T) {
	at := testWindowStart.Add(time.Hour)
	transactions := []domain.Transaction{
		// HY-1001 profit: +2000 in sales
		tx("s1", "HY-1001", domain.TxTypeSale, 2, 1000, "A", at),
		// HY-1003 profit: -24000 in purchases, larger absolute impact
		tx("p1", "HY-1003", domain.TxTypePurchase, 10, 2400, "V", at),
	}

	report := Aggregate(transactions, testCatalog(), Options{
		WindowStart: testWindowStart,
		WindowEnd:   testWindowEnd,
		View:        ViewImpact,
	})

	if len(report.ByPart) < 2 {
		t.Fatalf("expected at least two part rows, got %d", len(report.ByPart))
	}
	if report.ByPart[0].PartNumber != "HY-1003" {
		t.Fatalf("expected HY-1003 first under impact view, got %s", report.ByPart[0].PartNumber)
	}
}

func TestAggregateVendorNameNormalization(t *testing.T) {
	at := testWindowStart.Add(time.Hour)
	transactions := []domain.Transaction{
		tx("p1", "HY-1001", domain.TxTypePurchase, 2, 950, "  sharma auto ", at),
		tx("p2", "HY-1001", domain.TxTypePurchase, 2, 950, "SHARMA AUTO", at),
	}

	report := Aggregate(transactions, testCatalog(), defaultOptions())

	if len(report.ByVendor) != 1 {
		t.Fatalf("expected vendor rows merged after normalization, got %d", len(report.ByVendor))
	}
	if report.ByVendor[0].Invoices != 2 {
		t.Fatalf("expected 2 invoices for merged vendor, got %d", report.ByVendor[0].Invoices)
	}
}

func TestRemainingReturnable(t *testing.T) {
	sale := domain.Transaction{ID: "s1", Type: domain.TxTypeSale, Quantity: 5}

	if got := RemainingReturnable(sale, nil); got != 5 {
		t.Fatalf("expected 5 returnable with no returns, got %d", got)
	}

	returns := []domain.Transaction{
		{ID: "r1", Type: domain.TxTypeReturn, Quantity: 2, RelatedTransactionID: "s1"},
		{ID: "r2", Type: domain.TxTypeReturn, Quantity: 1, RelatedTransactionID: "s1"},
		{ID: "r3", Type: domain.TxTypeReturn, Quantity: 4, RelatedTransactionID: "other"},
	}
	if got := RemainingReturnable(sale, returns); got != 2 {
		t.Fatalf("expected 2 returnable, got %d", got)
	}

	over := []domain.Transaction{
		{ID: "r1", Type: domain.TxTypeReturn, Quantity: 9, RelatedTransactionID: "s1"},
	}
	if got := RemainingReturnable(sale, over); got != 0 {
		t.Fatalf("expected returnable clamped at 0, got %d", got)
	}
}
