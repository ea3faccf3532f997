// Package compliance computes the purchase-price compliance report: realized
// sales, cost and profit for a time window, plus the margin "leakage" on
// purchases paid above the benchmark discount off catalog MRP.
package compliance

import (
	"math"
	"sort"
	"strings"
	"time"

	"partspos/backend/internal/domain"
)

const (
	// BenchmarkDiscountPercent is the discount off catalog MRP that vendors
	// are expected to grant on every purchase. Paying more than
	// MRP * (1 - 12%) is counted as leakage.
	BenchmarkDiscountPercent = 12.0

	// LeakageTolerance is the per-unit deviation, in currency units, below
	// which a purchase price above the benchmark is not flagged. Keeps
	// float noise and sub-unit rounding on hand-entered prices out of the
	// report.
	LeakageTolerance = 0.5
)

const (
	// ViewImpact orders the per-part breakdown by absolute profit.
	ViewImpact = "impact"
	// ViewOffenders orders the per-part breakdown by leakage.
	ViewOffenders = "offenders"
)

// Options bounds and filters one aggregation run. WindowStart is inclusive,
// WindowEnd exclusive. Brand, when set, restricts every total to transactions
// whose part resolves to that brand in the catalog snapshot.
type Options struct {
	WindowStart time.Time
	WindowEnd   time.Time
	Brand       string
	View        string
}

type partAccumulator struct {
	name    string
	brand   string
	sales   float64
	cost    float64
	leakage float64
}

type vendorAccumulator struct {
	invoices int
	cost     float64
	leakage  float64
}

// Aggregate runs the compliance computation over the given ledger slice and
// catalog snapshot. Callers must pass only APPROVED transactions; the status
// is not re-checked here. The function is pure: same inputs, same report.
// It never fails — unknown parts contribute cost but no leakage, and an empty
// ledger yields an all-zero report.
func Aggregate(transactions []domain.Transaction, catalog []domain.CatalogItem, opts Options) domain.ComplianceReport {
	lookup := buildCatalogLookup(catalog)

	view := opts.View
	if view != ViewOffenders {
		view = ViewImpact
	}

	report := domain.ComplianceReport{
		WindowStart: opts.WindowStart,
		WindowEnd:   opts.WindowEnd,
		Brand:       opts.Brand,
		View:        view,
	}

	expectedFactor := 1 - BenchmarkDiscountPercent/100

	parts := make(map[string]*partAccumulator)
	vendors := make(map[string]*vendorAccumulator)
	brands := make(map[string]*domain.BrandRow)

	for _, tx := range transactions {
		if tx.CreatedAt.Before(opts.WindowStart) || !tx.CreatedAt.Before(opts.WindowEnd) {
			continue
		}

		pn := strings.ToUpper(strings.TrimSpace(tx.PartNumber))
		item, known := lookup[pn]

		if opts.Brand != "" {
			// Unknown parts have no brand and fall outside every
			// brand-filtered view.
			if !known || !strings.EqualFold(item.Brand, opts.Brand) {
				continue
			}
		}

		acc, ok := parts[pn]
		if !ok {
			acc = &partAccumulator{}
			if known {
				acc.name = item.Name
				acc.brand = item.Brand
			}
			parts[pn] = acc
		}

		amount := tx.Amount()

		brandKey := acc.brand
		if brandKey == "" {
			brandKey = "unknown"
		}
		brandRow, ok := brands[brandKey]
		if !ok {
			brandRow = &domain.BrandRow{Brand: brandKey}
			brands[brandKey] = brandRow
		}

		switch tx.Type {
		case domain.TxTypeSale:
			report.NetSales += amount
			acc.sales += amount
			brandRow.Sales += amount
		case domain.TxTypeReturn:
			report.NetSales -= amount
			acc.sales -= amount
			brandRow.Sales -= amount
		case domain.TxTypePurchase, domain.TxTypePurchaseOrder:
			report.TotalPurchases += amount
			acc.cost += amount
			brandRow.Cost += amount

			if !known {
				break
			}
			expected := item.Price * expectedFactor
			deviation := tx.Price - expected
			if deviation > LeakageTolerance {
				leak := deviation * float64(tx.Quantity)
				report.TotalLeakage += leak
				acc.leakage += leak
				brandRow.Leakage += leak

				vendor := strings.ToUpper(strings.TrimSpace(tx.CustomerName))
				if vendor == "" {
					vendor = "UNKNOWN"
				}
				v, ok := vendors[vendor]
				if !ok {
					v = &vendorAccumulator{}
					vendors[vendor] = v
				}
				v.invoices++
				v.cost += amount
				v.leakage += leak
			}
		}
	}

	report.NetProfit = report.NetSales - report.TotalPurchases
	if report.NetSales != 0 {
		report.MarginPercent = report.NetProfit / report.NetSales * 100
	}

	report.ByPart = buildPartRows(parts, view)
	report.ByVendor = buildVendorRows(vendors)
	report.ByBrand = buildBrandRows(brands)
	return report
}

// RemainingReturnable computes how many units of a sale can still be returned:
// the sold quantity minus every return that references the sale. Transactions
// of other types or with a different back-reference are ignored.
func RemainingReturnable(sale domain.Transaction, returns []domain.Transaction) int {
	remaining := sale.Quantity
	for _, ret := range returns {
		if ret.Type != domain.TxTypeReturn || ret.RelatedTransactionID != sale.ID {
			continue
		}
		remaining -= ret.Quantity
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}

// buildCatalogLookup maps upper-cased part numbers to catalog rows. Duplicate
// part numbers resolve last-wins; that is a data-quality concern upstream.
func buildCatalogLookup(catalog []domain.CatalogItem) map[string]domain.CatalogItem {
	lookup := make(map[string]domain.CatalogItem, len(catalog))
	for _, item := range catalog {
		pn := strings.ToUpper(strings.TrimSpace(item.PartNumber))
		if pn == "" {
			continue
		}
		lookup[pn] = item
	}
	return lookup
}

func buildPartRows(parts map[string]*partAccumulator, view string) []domain.PartRow {
	rows := make([]domain.PartRow, 0, len(parts))
	for pn, acc := range parts {
		rows = append(rows, domain.PartRow{
			PartNumber: pn,
			Name:       acc.name,
			Sales:      acc.sales,
			Cost:       acc.cost,
			Profit:     acc.sales - acc.cost,
			Leakage:    acc.leakage,
		})
	}

	switch view {
	case ViewOffenders:
		sort.Slice(rows, func(i, j int) bool {
			if rows[i].Leakage == rows[j].Leakage {
				return rows[i].PartNumber < rows[j].PartNumber
			}
			return rows[i].Leakage > rows[j].Leakage
		})
	default:
		sort.Slice(rows, func(i, j int) bool {
			pi, pj := math.Abs(rows[i].Profit), math.Abs(rows[j].Profit)
			if pi == pj {
				return rows[i].PartNumber < rows[j].PartNumber
			}
			return pi > pj
		})
	}
	return rows
}

func buildVendorRows(vendors map[string]*vendorAccumulator) []domain.VendorRow {
	rows := make([]domain.VendorRow, 0, len(vendors))
	for name, acc := range vendors {
		rows = append(rows, domain.VendorRow{
			Vendor:   name,
			Invoices: acc.invoices,
			Cost:     acc.cost,
			Leakage:  acc.leakage,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Leakage == rows[j].Leakage {
			return rows[i].Vendor < rows[j].Vendor
		}
		return rows[i].Leakage > rows[j].Leakage
	})
	return rows
}

func buildBrandRows(brands map[string]*domain.BrandRow) []domain.BrandRow {
	rows := make([]domain.BrandRow, 0, len(brands))
	for _, row := range brands {
		row.Profit = row.Sales - row.Cost
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Brand < rows[j].Brand })
	return rows
}
