package store

import (
	"context"
	"errors"
	"time"

	"partspos/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

// TransactionFilter bounds a ledger listing. From is inclusive, To exclusive;
// zero times mean unbounded. Empty Type/Status match everything.
type TransactionFilter struct {
	From   time.Time
	To     time.Time
	Type   string
	Status string
	Limit  int
}

type Repository interface {
	ListCatalog(ctx context.Context) ([]domain.CatalogItem, error)
	CreateCatalogItem(ctx context.Context, item domain.CatalogItem) (*domain.CatalogItem, error)
	GetCatalogItem(ctx context.Context, partNumber string) (*domain.CatalogItem, error)
	UpdateCatalogItem(ctx context.Context, item domain.CatalogItem) (*domain.CatalogItem, error)
	CreatePriceHistory(ctx context.Context, entry domain.PartPriceHistory) error
	ListPriceHistory(ctx context.Context, partNumber string, limit int) ([]domain.PartPriceHistory, error)

	CreateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	GetTransactionByID(ctx context.Context, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]domain.Transaction, error)
	ListReturnsForSale(ctx context.Context, saleID string) ([]domain.Transaction, error)
	CollectPayment(ctx context.Context, id string, amount float64) (*domain.Transaction, error)
	ListOutstanding(ctx context.Context, limit int) ([]domain.OutstandingBalance, error)
	DecideRequisition(ctx context.Context, id string, approve bool, decidedBy string, decidedAt time.Time) (*domain.Transaction, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, shopID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
