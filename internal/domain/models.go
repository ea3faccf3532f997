package domain

import "time"

// Transaction is one movement in the ledger: a sale to a customer, a purchase
// from a vendor, or a return reversing part of an earlier sale. Rows are
// append-only; the only field ever updated after creation is PaidAmount.
type Transaction struct {
	ID                   string     `json:"id"`
	PartNumber           string     `json:"part_number"`
	Type                 string     `json:"type"`
	Quantity             int        `json:"quantity"`
	Price                float64    `json:"price"`
	PaidAmount           float64    `json:"paid_amount"`
	CustomerName         string     `json:"customer_name"`
	Status               string     `json:"status"`
	CreatedBy            string     `json:"created_by"`
	CreatedAt            time.Time  `json:"created_at"`
	DecidedBy            string     `json:"decided_by,omitempty"`
	DecidedAt            *time.Time `json:"decided_at,omitempty"`
	RelatedTransactionID string     `json:"related_transaction_id,omitempty"`
}

// Amount is the movement's total value (unit price times quantity).
func (t Transaction) Amount() float64 {
	return t.Price * float64(t.Quantity)
}

// CatalogItem is a spare part as priced in the catalog. Price is the reference
// MRP; Brand is always set explicitly on stored rows.
type CatalogItem struct {
	PartNumber string    `json:"part_number"`
	Name       string    `json:"name"`
	Brand      string    `json:"brand"`
	Price      float64   `json:"price"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

type CatalogItemCreateRequest struct {
	PartNumber string  `json:"part_number"`
	Name       string  `json:"name"`
	Brand      string  `json:"brand"`
	Price      float64 `json:"price"`
}

type CatalogItemUpdateRequest struct {
	Name   *string  `json:"name,omitempty"`
	Brand  *string  `json:"brand,omitempty"`
	Price  *float64 `json:"price,omitempty"`
	Active *bool    `json:"active,omitempty"`
}

// CatalogImportRow is one line of a bulk catalog import. Brand may be empty,
// in which case the importer backfills it from the part-number prefix.
type CatalogImportRow struct {
	PartNumber string  `json:"part_number"`
	Name       string  `json:"name"`
	Brand      string  `json:"brand,omitempty"`
	Price      float64 `json:"price"`
}

type CatalogImportRequest struct {
	Rows []CatalogImportRow `json:"rows"`
}

type CatalogImportResponse struct {
	Imported   int      `json:"imported"`
	Skipped    int      `json:"skipped"`
	Backfilled []string `json:"brand_backfilled,omitempty"`
}

type PartPriceHistory struct {
	ID         string    `json:"id"`
	PartNumber string    `json:"part_number"`
	OldPrice   float64   `json:"old_price"`
	NewPrice   float64   `json:"new_price"`
	ChangedBy  string    `json:"changed_by"`
	ChangedAt  time.Time `json:"changed_at"`
}

type SaleCreateRequest struct {
	PartNumber   string  `json:"part_number"`
	Quantity     int     `json:"quantity"`
	Price        float64 `json:"price"`
	PaidAmount   float64 `json:"paid_amount"`
	CustomerName string  `json:"customer_name"`
}

type PurchaseCreateRequest struct {
	PartNumber string  `json:"part_number"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
	VendorName string  `json:"vendor_name"`
	// Type may carry the legacy PURCHASE_ORDER label from old importers;
	// it is normalized to PURCHASE on intake.
	Type string `json:"type,omitempty"`
}

type ReturnCreateRequest struct {
	SaleTransactionID string `json:"sale_transaction_id"`
	Quantity          int    `json:"quantity"`
	Reason            string `json:"reason"`
}

type TransactionResponse struct {
	Transaction Transaction `json:"transaction"`
}

type TransactionListResponse struct {
	Transactions []Transaction `json:"transactions"`
}

// ReturnableResponse reports how many units of a sale can still be returned.
type ReturnableResponse struct {
	SaleTransactionID string `json:"sale_transaction_id"`
	SoldQuantity      int    `json:"sold_quantity"`
	ReturnedQuantity  int    `json:"returned_quantity"`
	Remaining         int    `json:"remaining"`
}

type PaymentCollectRequest struct {
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
}

type PaymentCollectResponse struct {
	TransactionID string  `json:"transaction_id"`
	PaidAmount    float64 `json:"paid_amount"`
	Balance       float64 `json:"balance"`
}

// OutstandingBalance is a sale with money still owed on it.
type OutstandingBalance struct {
	TransactionID string    `json:"transaction_id"`
	CustomerName  string    `json:"customer_name"`
	Amount        float64   `json:"amount"`
	PaidAmount    float64   `json:"paid_amount"`
	Balance       float64   `json:"balance"`
	CreatedAt     time.Time `json:"created_at"`
}

type RequisitionDecisionRequest struct {
	TransactionID string `json:"transaction_id"`
	Approve       bool   `json:"approve"`
	Note          string `json:"note,omitempty"`
	ManagerPIN    string `json:"manager_pin"`
}

type RequisitionDecisionResponse struct {
	Transaction Transaction `json:"transaction"`
}

// ComplianceReport is the output of the purchase-price compliance aggregation:
// realized financials for a time window plus margin-leakage breakdowns.
type ComplianceReport struct {
	ShopID         string      `json:"shop_id"`
	WindowStart    time.Time   `json:"window_start"`
	WindowEnd      time.Time   `json:"window_end"`
	Brand          string      `json:"brand,omitempty"`
	View           string      `json:"view"`
	NetSales       float64     `json:"net_sales"`
	TotalPurchases float64     `json:"total_purchases"`
	NetProfit      float64     `json:"net_profit"`
	MarginPercent  float64     `json:"margin_percent"`
	TotalLeakage   float64     `json:"total_leakage"`
	ByPart         []PartRow   `json:"by_part"`
	ByVendor       []VendorRow `json:"by_vendor"`
	ByBrand        []BrandRow  `json:"by_brand"`
}

// PartRow is the per-SKU breakdown line of a compliance report.
type PartRow struct {
	PartNumber string  `json:"part_number"`
	Name       string  `json:"name,omitempty"`
	Sales      float64 `json:"sales"`
	Cost       float64 `json:"cost"`
	Profit     float64 `json:"profit"`
	Leakage    float64 `json:"leakage"`
}

// VendorRow aggregates leaking purchases by counterparty.
type VendorRow struct {
	Vendor   string  `json:"vendor"`
	Invoices int     `json:"invoices"`
	Cost     float64 `json:"cost"`
	Leakage  float64 `json:"leakage"`
}

type BrandRow struct {
	Brand   string  `json:"brand"`
	Sales   float64 `json:"sales"`
	Cost    float64 `json:"cost"`
	Profit  float64 `json:"profit"`
	Leakage float64 `json:"leakage"`
}

type TaxInvoiceResponse struct {
	TransactionID string  `json:"transaction_id"`
	InvoiceNumber string  `json:"invoice_number"`
	HTML          string  `json:"html"`
	Total         float64 `json:"total"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ShopID        string    `json:"shop_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	TxTypeSale     = "SALE"
	TxTypePurchase = "PURCHASE"
	TxTypeReturn   = "RETURN"

	// TxTypePurchaseOrder is a historical alias still present in old data
	// exports; it has the same stock and cost effect as TxTypePurchase.
	TxTypePurchaseOrder = "PURCHASE_ORDER"
)

const (
	TxStatusPending  = "PENDING"
	TxStatusApproved = "APPROVED"
	TxStatusRejected = "REJECTED"
)

const (
	BrandHyundai  = "hyundai"
	BrandMahindra = "mahindra"
)
