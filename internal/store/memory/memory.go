package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"partspos/backend/internal/domain"
	"partspos/backend/internal/store"
	"partspos/backend/internal/xid"
)

type Store struct {
	mu                sync.RWMutex
	catalog           map[string]domain.CatalogItem
	transactionsByID  map[string]*domain.Transaction
	transactionOrder  []string
	priceHistoryByPN  map[string][]domain.PartPriceHistory
	auditLogs         []domain.AuditLog
	usersByUsername   map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	parts := []domain.CatalogItem{
		{PartNumber: "HY-1001", Name: "Oil Filter i10/i20", Brand: domain.BrandHyundai, Price: 450, Active: true, CreatedAt: now},
		{PartNumber: "HY-1002", Name: "Air Filter Verna", Brand: domain.BrandHyundai, Price: 780, Active: true, CreatedAt: now},
		{PartNumber: "HY-1003", Name: "Front Brake Pad Set Creta", Brand: domain.BrandHyundai, Price: 2650, Active: true, CreatedAt: now},
		{PartNumber: "HY-1004", Name: "Clutch Plate Santro", Brand: domain.BrandHyundai, Price: 3400, Active: true, CreatedAt: now},
		{PartNumber: "HY-1005", Name: "Wiper Blade Pair i20", Brand: domain.BrandHyundai, Price: 620, Active: true, CreatedAt: now},
		{PartNumber: "MH-2001", Name: "Fuel Filter Bolero", Brand: domain.BrandMahindra, Price: 560, Active: true, CreatedAt: now},
		{PartNumber: "MH-2002", Name: "Radiator Hose Scorpio", Brand: domain.BrandMahindra, Price: 890, Active: true, CreatedAt: now},
		{PartNumber: "MH-2003", Name: "Rear Shock Absorber XUV500", Brand: domain.BrandMahindra, Price: 4100, Active: true, CreatedAt: now},
		{PartNumber: "MH-2004", Name: "Timing Belt Thar", Brand: domain.BrandMahindra, Price: 1750, Active: true, CreatedAt: now},
		{PartNumber: "MH-2005", Name: "Headlamp Assembly Bolero", Brand: domain.BrandMahindra, Price: 2300, Active: true, CreatedAt: now},
	}

	catalog := make(map[string]domain.CatalogItem, len(parts))
	for _, p := range parts {
		catalog[p.PartNumber] = p
	}

	return &Store{
		catalog:          catalog,
		transactionsByID: make(map[string]*domain.Transaction),
		transactionOrder: make([]string, 0, 128),
		priceHistoryByPN: make(map[string][]domain.PartPriceHistory),
		auditLogs:        make([]domain.AuditLog, 0, 128),
		usersByUsername:  seedUsers(),
	}
}

func (s *Store) ListCatalog(_ context.Context) ([]domain.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.CatalogItem, 0, len(s.catalog))
	for _, item := range s.catalog {
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b domain.CatalogItem) int {
		if a.Brand == b.Brand {
			return strings.Compare(a.PartNumber, b.PartNumber)
		}
		return strings.Compare(a.Brand, b.Brand)
	})
	return items, nil
}

func (s *Store) CreateCatalogItem(_ context.Context, item domain.CatalogItem) (*domain.CatalogItem, error) {
	if item.PartNumber == "" || item.Name == "" || item.Brand == "" || item.Price <= 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.catalog[item.PartNumber]; exists {
		return nil, store.ErrConflict
	}

	item.Active = true
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.catalog[item.PartNumber] = item
	created := item
	return &created, nil
}

func (s *Store) GetCatalogItem(_ context.Context, partNumber string) (*domain.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.catalog[partNumber]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyItem := item
	return &copyItem, nil
}

func (s *Store) UpdateCatalogItem(_ context.Context, item domain.CatalogItem) (*domain.CatalogItem, error) {
	if item.PartNumber == "" || item.Name == "" || item.Brand == "" || item.Price <= 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.catalog[item.PartNumber]
	if !exists {
		return nil, store.ErrNotFound
	}
	item.CreatedAt = existing.CreatedAt
	s.catalog[item.PartNumber] = item
	updated := item
	return &updated, nil
}

func (s *Store) CreatePriceHistory(_ context.Context, entry domain.PartPriceHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("ph")
	}
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now().UTC()
	}
	s.priceHistoryByPN[entry.PartNumber] = append(s.priceHistoryByPN[entry.PartNumber], entry)
	return nil
}

func (s *Store) ListPriceHistory(_ context.Context, partNumber string, limit int) ([]domain.PartPriceHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.priceHistoryByPN[partNumber]
	if len(history) == 0 {
		return []domain.PartPriceHistory{}, nil
	}

	result := make([]domain.PartPriceHistory, len(history))
	copy(result, history)
	slices.SortFunc(result, func(a, b domain.PartPriceHistory) int {
		if a.ChangedAt.Equal(b.ChangedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.ChangedAt.After(b.ChangedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateTransaction(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if tx.PartNumber == "" || tx.Quantity < 1 || tx.Price < 0 {
		return nil, store.ErrInvalidInput
	}
	if tx.ID == "" {
		tx.ID = xid.New("tx")
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactionsByID[tx.ID]; exists {
		return nil, store.ErrConflict
	}
	stored := tx
	s.transactionsByID[tx.ID] = &stored
	s.transactionOrder = append(s.transactionOrder, tx.ID)
	created := stored
	return &created, nil
}

func (s *Store) GetTransactionByID(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, exists := s.transactionsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyTx := *tx
	return &copyTx, nil
}

func (s *Store) ListTransactions(_ context.Context, filter store.TransactionFilter) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit < 1 {
		limit = 500
	}

	result := make([]domain.Transaction, 0, limit)
	for _, id := range s.transactionOrder {
		tx := s.transactionsByID[id]
		if !matchesFilter(*tx, filter) {
			continue
		}
		result = append(result, *tx)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func matchesFilter(tx domain.Transaction, filter store.TransactionFilter) bool {
	if !filter.From.IsZero() && tx.CreatedAt.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && !tx.CreatedAt.Before(filter.To) {
		return false
	}
	if filter.Type != "" && tx.Type != filter.Type {
		return false
	}
	if filter.Status != "" && tx.Status != filter.Status {
		return false
	}
	return true
}

func (s *Store) ListReturnsForSale(_ context.Context, saleID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, 4)
	for _, id := range s.transactionOrder {
		tx := s.transactionsByID[id]
		if tx.Type != domain.TxTypeReturn || tx.RelatedTransactionID != saleID {
			continue
		}
		if tx.Status == domain.TxStatusRejected {
			continue
		}
		result = append(result, *tx)
	}
	return result, nil
}

func (s *Store) CollectPayment(_ context.Context, id string, amount float64) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, exists := s.transactionsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if tx.Type != domain.TxTypeSale {
		return nil, store.ErrInvalidInput
	}
	if tx.PaidAmount+amount > tx.Amount() {
		return nil, store.ErrInvalidInput
	}
	tx.PaidAmount += amount
	copyTx := *tx
	return &copyTx, nil
}

func (s *Store) ListOutstanding(_ context.Context, limit int) ([]domain.OutstandingBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 200
	}
	result := make([]domain.OutstandingBalance, 0, limit)
	for _, id := range s.transactionOrder {
		tx := s.transactionsByID[id]
		if tx.Type != domain.TxTypeSale || tx.Status != domain.TxStatusApproved {
			continue
		}
		balance := tx.Amount() - tx.PaidAmount
		if balance <= 0 {
			continue
		}
		result = append(result, domain.OutstandingBalance{
			TransactionID: tx.ID,
			CustomerName:  tx.CustomerName,
			Amount:        tx.Amount(),
			PaidAmount:    tx.PaidAmount,
			Balance:       balance,
			CreatedAt:     tx.CreatedAt,
		})
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *Store) DecideRequisition(_ context.Context, id string, approve bool, decidedBy string, decidedAt time.Time) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, exists := s.transactionsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if tx.Status != domain.TxStatusPending {
		return nil, store.ErrConflict
	}

	if approve {
		tx.Status = domain.TxStatusApproved
	} else {
		tx.Status = domain.TxStatusRejected
	}
	tx.DecidedBy = decidedBy
	at := decidedAt
	tx.DecidedAt = &at

	copyTx := *tx
	return &copyTx, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, shopID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	result := make([]domain.AuditLog, 0, limit)
	for _, entry := range s.auditLogs {
		if shopID != "" && entry.ShopID != shopID {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrConflict
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}
