package service

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"partspos/backend/internal/cache"
	"partspos/backend/internal/compliance"
	"partspos/backend/internal/domain"
	"partspos/backend/internal/store"
	"partspos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// taxRatePercent is the GST rate applied on tax invoices, split evenly
// between the central and state components.
const taxRatePercent = 18.0

type Service struct {
	repo        store.Repository
	reportCache cache.ReportCache
	reportTTL   time.Duration
	shopID      string

	// reportGeneration is bumped on every ledger or catalog mutation so
	// cached compliance reports go stale immediately instead of waiting
	// out their TTL.
	reportGeneration atomic.Uint64
}

func New(repo store.Repository, reportCache cache.ReportCache, reportTTL time.Duration, shopID string) *Service {
	if reportCache == nil {
		reportCache = cache.NoopReportCache{}
	}
	if reportTTL <= 0 {
		reportTTL = time.Minute
	}
	if shopID == "" {
		shopID = "main-shop"
	}

	return &Service{
		repo:        repo,
		reportCache: reportCache,
		reportTTL:   reportTTL,
		shopID:      shopID,
	}
}

func (s *Service) invalidateReports() {
	s.reportGeneration.Add(1)
}

func (s *Service) ListCatalog(ctx context.Context) ([]domain.CatalogItem, error) {
	items, err := s.repo.ListCatalog(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]domain.CatalogItem, 0, len(items))
	for _, item := range items {
		if item.Active {
			active = append(active, item)
		}
	}
	return active, nil
}

func (s *Service) CreateCatalogItem(ctx context.Context, req domain.CatalogItemCreateRequest) (domain.CatalogItem, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.CatalogItem{}, fmt.Errorf("admin role required")
	}

	req.PartNumber = strings.ToUpper(strings.TrimSpace(req.PartNumber))
	req.Name = strings.TrimSpace(req.Name)
	req.Brand = strings.ToLower(strings.TrimSpace(req.Brand))

	if req.PartNumber == "" || req.Name == "" || req.Brand == "" || req.Price <= 0 {
		return domain.CatalogItem{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateCatalogItem(ctx, domain.CatalogItem{
		PartNumber: req.PartNumber,
		Name:       req.Name,
		Brand:      req.Brand,
		Price:      req.Price,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return domain.CatalogItem{}, err
	}

	s.invalidateReports()
	s.logAudit(ctx, "catalog_create", "catalog_item", created.PartNumber, fmt.Sprintf("brand=%s,price=%.2f", created.Brand, created.Price))
	return *created, nil
}

func (s *Service) UpdateCatalogItem(ctx context.Context, partNumber string, req domain.CatalogItemUpdateRequest) (domain.CatalogItem, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.CatalogItem{}, fmt.Errorf("admin role required")
	}

	partNumber = strings.ToUpper(strings.TrimSpace(partNumber))
	if partNumber == "" {
		return domain.CatalogItem{}, store.ErrInvalidInput
	}

	existing, err := s.repo.GetCatalogItem(ctx, partNumber)
	if err != nil {
		return domain.CatalogItem{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.CatalogItem{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Brand != nil {
		brand := strings.ToLower(strings.TrimSpace(*req.Brand))
		if brand == "" {
			return domain.CatalogItem{}, store.ErrInvalidInput
		}
		updated.Brand = brand
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			return domain.CatalogItem{}, store.ErrInvalidInput
		}
		updated.Price = *req.Price
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateCatalogItem(ctx, updated)
	if err != nil {
		return domain.CatalogItem{}, err
	}

	if existing.Price != saved.Price {
		if err := s.repo.CreatePriceHistory(ctx, domain.PartPriceHistory{
			ID:         xid.New("ph"),
			PartNumber: saved.PartNumber,
			OldPrice:   existing.Price,
			NewPrice:   saved.Price,
			ChangedBy:  actor.Username,
			ChangedAt:  time.Now().UTC(),
		}); err != nil {
			log.Printf("[service] WARN: failed to record price history part=%s: %v", saved.PartNumber, err)
		}
	}

	s.invalidateReports()
	s.logAudit(ctx, "catalog_update", "catalog_item", saved.PartNumber, fmt.Sprintf("active=%t,price=%.2f,brand=%s", saved.Active, saved.Price, saved.Brand))
	return *saved, nil
}

func (s *Service) ListPartPriceHistory(ctx context.Context, partNumber string, limit int) ([]domain.PartPriceHistory, error) {
	partNumber = strings.ToUpper(strings.TrimSpace(partNumber))
	if partNumber == "" {
		return nil, store.ErrInvalidInput
	}
	if limit < 1 {
		limit = 50
	}
	return s.repo.ListPriceHistory(ctx, partNumber, limit)
}

// ImportCatalog bulk-loads parts. Rows without an explicit brand are
// backfilled from the part-number prefix; that heuristic lives only here, on
// the migration path, never at report time.
func (s *Service) ImportCatalog(ctx context.Context, req domain.CatalogImportRequest) (domain.CatalogImportResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.CatalogImportResponse{}, fmt.Errorf("admin role required")
	}
	if len(req.Rows) == 0 {
		return domain.CatalogImportResponse{}, store.ErrInvalidInput
	}

	resp := domain.CatalogImportResponse{}
	for _, row := range req.Rows {
		pn := strings.ToUpper(strings.TrimSpace(row.PartNumber))
		name := strings.TrimSpace(row.Name)
		brand := strings.ToLower(strings.TrimSpace(row.Brand))
		if brand == "" {
			brand = brandFromPartNumber(pn)
			if brand != "" {
				resp.Backfilled = append(resp.Backfilled, pn)
			}
		}
		if pn == "" || name == "" || brand == "" || row.Price <= 0 {
			resp.Skipped++
			continue
		}

		_, err := s.repo.CreateCatalogItem(ctx, domain.CatalogItem{
			PartNumber: pn,
			Name:       name,
			Brand:      brand,
			Price:      row.Price,
			Active:     true,
			CreatedAt:  time.Now().UTC(),
		})
		if err != nil {
			resp.Skipped++
			continue
		}
		resp.Imported++
	}

	if resp.Imported > 0 {
		s.invalidateReports()
	}
	s.logAudit(ctx, "catalog_import", "catalog_item", "", fmt.Sprintf("imported=%d,skipped=%d", resp.Imported, resp.Skipped))
	return resp, nil
}

// brandFromPartNumber is the legacy prefix heuristic, kept strictly for
// import-time backfill of untagged rows. Unrecognized prefixes return "" and
// the row is rejected rather than silently miscategorized.
func brandFromPartNumber(partNumber string) string {
	switch {
	case strings.HasPrefix(partNumber, "HY"):
		return domain.BrandHyundai
	case strings.HasPrefix(partNumber, "MH"):
		return domain.BrandMahindra
	default:
		return ""
	}
}

func (s *Service) RecordSale(ctx context.Context, req domain.SaleCreateRequest) (domain.TransactionResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.TransactionResponse{}, fmt.Errorf("authenticated actor required")
	}

	pn := strings.ToUpper(strings.TrimSpace(req.PartNumber))
	customer := strings.TrimSpace(req.CustomerName)
	if pn == "" || customer == "" || req.Quantity < 1 || req.Price <= 0 {
		return domain.TransactionResponse{}, store.ErrInvalidInput
	}

	item, err := s.repo.GetCatalogItem(ctx, pn)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TransactionResponse{}, fmt.Errorf("%w: unknown part %s", store.ErrInvalidInput, pn)
		}
		return domain.TransactionResponse{}, err
	}
	if !item.Active {
		return domain.TransactionResponse{}, fmt.Errorf("%w: part %s is inactive", store.ErrInvalidInput, pn)
	}

	amount := req.Price * float64(req.Quantity)
	if req.PaidAmount < 0 || req.PaidAmount > amount {
		return domain.TransactionResponse{}, store.ErrInvalidInput
	}

	tx := domain.Transaction{
		ID:           xid.New("tx"),
		PartNumber:   pn,
		Type:         domain.TxTypeSale,
		Quantity:     req.Quantity,
		Price:        req.Price,
		PaidAmount:   req.PaidAmount,
		CustomerName: customer,
		Status:       initialStatus(actor),
		CreatedBy:    actor.Username,
		CreatedAt:    time.Now().UTC(),
	}

	created, err := s.repo.CreateTransaction(ctx, tx)
	if err != nil {
		return domain.TransactionResponse{}, err
	}

	s.invalidateReports()
	s.logAudit(ctx, "sale_record", "transaction", created.ID, fmt.Sprintf("part=%s,qty=%d,price=%.2f,status=%s", pn, req.Quantity, req.Price, created.Status))
	return domain.TransactionResponse{Transaction: *created}, nil
}

func (s *Service) RecordPurchase(ctx context.Context, req domain.PurchaseCreateRequest) (domain.TransactionResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.TransactionResponse{}, fmt.Errorf("authenticated actor required")
	}

	pn := strings.ToUpper(strings.TrimSpace(req.PartNumber))
	vendor := strings.TrimSpace(req.VendorName)
	if pn == "" || vendor == "" || req.Quantity < 1 || req.Price <= 0 {
		return domain.TransactionResponse{}, store.ErrInvalidInput
	}

	txType := strings.ToUpper(strings.TrimSpace(req.Type))
	switch txType {
	case "", domain.TxTypePurchase, domain.TxTypePurchaseOrder:
		txType = domain.TxTypePurchase
	default:
		return domain.TransactionResponse{}, store.ErrInvalidInput
	}

	// Purchases of parts missing from the catalog are allowed: the cost is
	// still real money out the door even when no benchmark exists for it.
	if item, err := s.repo.GetCatalogItem(ctx, pn); err == nil && !item.Active {
		return domain.TransactionResponse{}, fmt.Errorf("%w: part %s is inactive", store.ErrInvalidInput, pn)
	}

	tx := domain.Transaction{
		ID:           xid.New("tx"),
		PartNumber:   pn,
		Type:         txType,
		Quantity:     req.Quantity,
		Price:        req.Price,
		CustomerName: vendor,
		Status:       initialStatus(actor),
		CreatedBy:    actor.Username,
		CreatedAt:    time.Now().UTC(),
	}

	created, err := s.repo.CreateTransaction(ctx, tx)
	if err != nil {
		return domain.TransactionResponse{}, err
	}

	s.invalidateReports()
	s.logAudit(ctx, "purchase_record", "transaction", created.ID, fmt.Sprintf("part=%s,qty=%d,price=%.2f,vendor=%s,status=%s", pn, req.Quantity, req.Price, vendor, created.Status))
	return domain.TransactionResponse{Transaction: *created}, nil
}

func (s *Service) RecordReturn(ctx context.Context, req domain.ReturnCreateRequest) (domain.TransactionResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.TransactionResponse{}, fmt.Errorf("authenticated actor required")
	}

	saleID := strings.TrimSpace(req.SaleTransactionID)
	if saleID == "" || req.Quantity < 1 {
		return domain.TransactionResponse{}, store.ErrInvalidInput
	}

	sale, err := s.repo.GetTransactionByID(ctx, saleID)
	if err != nil {
		return domain.TransactionResponse{}, err
	}
	if sale.Type != domain.TxTypeSale {
		return domain.TransactionResponse{}, fmt.Errorf("%w: returns must reference a sale", store.ErrInvalidInput)
	}
	if sale.Status != domain.TxStatusApproved {
		return domain.TransactionResponse{}, fmt.Errorf("%w: sale is not approved", store.ErrInvalidInput)
	}

	returns, err := s.repo.ListReturnsForSale(ctx, sale.ID)
	if err != nil {
		return domain.TransactionResponse{}, err
	}
	remaining := compliance.RemainingReturnable(*sale, returns)
	if remaining < 1 || req.Quantity > remaining {
		return domain.TransactionResponse{}, fmt.Errorf("%w: only %d unit(s) returnable", store.ErrInvalidInput, remaining)
	}

	// The return is priced at the sale's recorded unit price so the pair
	// cancels exactly in the ledger.
	tx := domain.Transaction{
		ID:                   xid.New("tx"),
		PartNumber:           sale.PartNumber,
		Type:                 domain.TxTypeReturn,
		Quantity:             req.Quantity,
		Price:                sale.Price,
		CustomerName:         sale.CustomerName,
		Status:               initialStatus(actor),
		CreatedBy:            actor.Username,
		CreatedAt:            time.Now().UTC(),
		RelatedTransactionID: sale.ID,
	}

	created, err := s.repo.CreateTransaction(ctx, tx)
	if err != nil {
		return domain.TransactionResponse{}, err
	}

	s.invalidateReports()
	s.logAudit(ctx, "return_record", "transaction", created.ID, fmt.Sprintf("sale=%s,qty=%d,reason=%s", sale.ID, req.Quantity, strings.TrimSpace(req.Reason)))
	return domain.TransactionResponse{Transaction: *created}, nil
}

// initialStatus implements the requisition rule: admin entries take effect
// immediately, cashier entries wait for manager approval.
func initialStatus(actor domain.Actor) string {
	if actor.Role == "admin" {
		return domain.TxStatusApproved
	}
	return domain.TxStatusPending
}

func (s *Service) Returnable(ctx context.Context, saleID string) (domain.ReturnableResponse, error) {
	saleID = strings.TrimSpace(saleID)
	if saleID == "" {
		return domain.ReturnableResponse{}, store.ErrInvalidInput
	}

	sale, err := s.repo.GetTransactionByID(ctx, saleID)
	if err != nil {
		return domain.ReturnableResponse{}, err
	}
	if sale.Type != domain.TxTypeSale {
		return domain.ReturnableResponse{}, store.ErrInvalidInput
	}

	returns, err := s.repo.ListReturnsForSale(ctx, sale.ID)
	if err != nil {
		return domain.ReturnableResponse{}, err
	}
	remaining := compliance.RemainingReturnable(*sale, returns)

	return domain.ReturnableResponse{
		SaleTransactionID: sale.ID,
		SoldQuantity:      sale.Quantity,
		ReturnedQuantity:  sale.Quantity - remaining,
		Remaining:         remaining,
	}, nil
}

func (s *Service) CollectPayment(ctx context.Context, req domain.PaymentCollectRequest) (domain.PaymentCollectResponse, error) {
	id := strings.TrimSpace(req.TransactionID)
	if id == "" || req.Amount <= 0 {
		return domain.PaymentCollectResponse{}, store.ErrInvalidInput
	}

	tx, err := s.repo.CollectPayment(ctx, id, req.Amount)
	if err != nil {
		return domain.PaymentCollectResponse{}, err
	}

	s.logAudit(ctx, "payment_collect", "transaction", tx.ID, fmt.Sprintf("amount=%.2f,paid=%.2f", req.Amount, tx.PaidAmount))
	return domain.PaymentCollectResponse{
		TransactionID: tx.ID,
		PaidAmount:    tx.PaidAmount,
		Balance:       tx.Amount() - tx.PaidAmount,
	}, nil
}

func (s *Service) ListOutstanding(ctx context.Context, limit int) ([]domain.OutstandingBalance, error) {
	if limit < 1 {
		limit = 200
	}
	return s.repo.ListOutstanding(ctx, limit)
}

func (s *Service) ListTransactions(ctx context.Context, filter store.TransactionFilter) (domain.TransactionListResponse, error) {
	txs, err := s.repo.ListTransactions(ctx, filter)
	if err != nil {
		return domain.TransactionListResponse{}, err
	}
	return domain.TransactionListResponse{Transactions: txs}, nil
}

func (s *Service) GetTransaction(ctx context.Context, id string) (domain.TransactionResponse, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.TransactionResponse{}, store.ErrInvalidInput
	}
	tx, err := s.repo.GetTransactionByID(ctx, id)
	if err != nil {
		return domain.TransactionResponse{}, err
	}
	return domain.TransactionResponse{Transaction: *tx}, nil
}

func (s *Service) ListPendingRequisitions(ctx context.Context, limit int) (domain.TransactionListResponse, error) {
	return s.ListTransactions(ctx, store.TransactionFilter{
		Status: domain.TxStatusPending,
		Limit:  limit,
	})
}

func (s *Service) DecideRequisition(ctx context.Context, req domain.RequisitionDecisionRequest) (domain.RequisitionDecisionResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.RequisitionDecisionResponse{}, fmt.Errorf("admin role required")
	}

	id := strings.TrimSpace(req.TransactionID)
	if id == "" {
		return domain.RequisitionDecisionResponse{}, store.ErrInvalidInput
	}

	decided, err := s.repo.DecideRequisition(ctx, id, req.Approve, actor.Username, time.Now().UTC())
	if err != nil {
		return domain.RequisitionDecisionResponse{}, err
	}

	s.invalidateReports()
	action := "requisition_reject"
	if req.Approve {
		action = "requisition_approve"
	}
	s.logAudit(ctx, action, "transaction", decided.ID, strings.TrimSpace(req.Note))
	return domain.RequisitionDecisionResponse{Transaction: *decided}, nil
}

// ComplianceReport computes (or serves from cache) the margin-leakage report
// for the window. Only APPROVED transactions feed the aggregation.
func (s *Service) ComplianceReport(ctx context.Context, windowStart, windowEnd time.Time, brand string, view string) (domain.ComplianceReport, error) {
	if !windowEnd.After(windowStart) {
		return domain.ComplianceReport{}, store.ErrInvalidInput
	}
	brand = strings.ToLower(strings.TrimSpace(brand))
	view = strings.ToLower(strings.TrimSpace(view))
	if view == "" {
		view = compliance.ViewImpact
	}
	if view != compliance.ViewImpact && view != compliance.ViewOffenders {
		return domain.ComplianceReport{}, store.ErrInvalidInput
	}

	cacheKey := s.reportCacheKey(windowStart, windowEnd, brand, view)
	if cached, ok, err := s.reportCache.Get(ctx, cacheKey); err == nil && ok {
		return *cached, nil
	}

	transactions, err := s.repo.ListTransactions(ctx, store.TransactionFilter{
		From:   windowStart,
		To:     windowEnd,
		Status: domain.TxStatusApproved,
		Limit:  100000,
	})
	if err != nil {
		return domain.ComplianceReport{}, err
	}
	catalog, err := s.repo.ListCatalog(ctx)
	if err != nil {
		return domain.ComplianceReport{}, err
	}

	report := compliance.Aggregate(transactions, catalog, compliance.Options{
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Brand:       brand,
		View:        view,
	})
	report.ShopID = s.shopID

	if err := s.reportCache.Set(ctx, cacheKey, &report, s.reportTTL); err != nil {
		log.Printf("[service] WARN: failed to cache compliance report: %v", err)
	}
	return report, nil
}

func (s *Service) reportCacheKey(windowStart, windowEnd time.Time, brand string, view string) string {
	raw := fmt.Sprintf("%s|%d|%d|%s|%s|gen:%d",
		s.shopID, windowStart.UnixNano(), windowEnd.UnixNano(), brand, view,
		s.reportGeneration.Load())
	hash := sha1.Sum([]byte(raw))
	return "partspos:report:" + hex.EncodeToString(hash[:])
}

// taxInvoiceTmpl renders the printable tax invoice for a sale. All
// user-controlled fields are auto-escaped by html/template.
var taxInvoiceTmpl = template.Must(template.New("tax-invoice").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Tax Invoice {{.InvoiceNumber}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    h2 { margin-bottom: 4px; }
  </style>
</head>
<body>
  <h2>Tax Invoice {{.InvoiceNumber}}</h2>
  <p>Customer: {{.CustomerName}}</p>
  <p>Date: {{.Date}}</p>
  <table>
    <thead><tr><th>Part</th><th>Qty</th><th>Unit Price</th><th>Amount</th></tr></thead>
    <tbody>
      <tr><td>{{.PartNumber}} {{.PartName}}</td><td style="text-align:right;">{{.Quantity}}</td><td style="text-align:right;">{{printf "%.2f" .UnitPrice}}</td><td style="text-align:right;">{{printf "%.2f" .Subtotal}}</td></tr>
    </tbody>
  </table>
  <p>Subtotal: {{printf "%.2f" .Subtotal}}</p>
  <p>CGST ({{printf "%.1f" .HalfTaxRate}}%): {{printf "%.2f" .HalfTax}} | SGST ({{printf "%.1f" .HalfTaxRate}}%): {{printf "%.2f" .HalfTax}}</p>
  <p><strong>Total: {{printf "%.2f" .Total}}</strong></p>
  <p>Paid: {{printf "%.2f" .Paid}} | Balance: {{printf "%.2f" .Balance}}</p>
</body>
</html>
`))

func (s *Service) BuildTaxInvoice(ctx context.Context, transactionID string) (domain.TaxInvoiceResponse, error) {
	tx, err := s.GetTransaction(ctx, transactionID)
	if err != nil {
		return domain.TaxInvoiceResponse{}, err
	}
	sale := tx.Transaction
	if sale.Type != domain.TxTypeSale {
		return domain.TaxInvoiceResponse{}, fmt.Errorf("%w: tax invoices apply to sales only", store.ErrInvalidInput)
	}
	if sale.Status != domain.TxStatusApproved {
		return domain.TaxInvoiceResponse{}, fmt.Errorf("%w: sale is not approved", store.ErrInvalidInput)
	}

	partName := ""
	if item, err := s.repo.GetCatalogItem(ctx, sale.PartNumber); err == nil {
		partName = item.Name
	}

	subtotal := sale.Amount()
	tax := subtotal * taxRatePercent / 100
	total := subtotal + tax
	idHash := sha1.Sum([]byte(sale.ID))
	invoiceNumber := "INV-" + strings.ToUpper(hex.EncodeToString(idHash[:4])) + "-" + sale.CreatedAt.Format("20060102")

	var buf bytes.Buffer
	err = taxInvoiceTmpl.Execute(&buf, map[string]any{
		"InvoiceNumber": invoiceNumber,
		"CustomerName":  sale.CustomerName,
		"Date":          sale.CreatedAt.Format("2006-01-02 15:04"),
		"PartNumber":    sale.PartNumber,
		"PartName":      partName,
		"Quantity":      sale.Quantity,
		"UnitPrice":     sale.Price,
		"Subtotal":      subtotal,
		"HalfTaxRate":   taxRatePercent / 2,
		"HalfTax":       tax / 2,
		"Total":         total,
		"Paid":          sale.PaidAmount,
		"Balance":       total - sale.PaidAmount,
	})
	if err != nil {
		return domain.TaxInvoiceResponse{}, err
	}

	s.logAudit(ctx, "tax_invoice_build", "transaction", sale.ID, invoiceNumber)
	return domain.TaxInvoiceResponse{
		TransactionID: sale.ID,
		InvoiceNumber: invoiceNumber,
		HTML:          buf.String(),
		Total:         total,
	}, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = time.Now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrInvalidInput
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, s.shopID, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, _ := ActorFromContext(ctx)
	err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ShopID:        s.shopID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		log.Printf("[service] WARN: failed to write audit log action=%s: %v", action, err)
	}
}
