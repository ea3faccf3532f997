package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"partspos/backend/internal/domain"
	"partspos/backend/internal/store"
	"partspos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListCatalog(ctx context.Context) ([]domain.CatalogItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT part_number, name, brand, price, active, created_at
		FROM catalog_items
		ORDER BY brand, part_number
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.CatalogItem, 0, 128)
	for rows.Next() {
		var item domain.CatalogItem
		if err := rows.Scan(&item.PartNumber, &item.Name, &item.Brand, &item.Price, &item.Active, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CreateCatalogItem(ctx context.Context, item domain.CatalogItem) (*domain.CatalogItem, error) {
	if item.PartNumber == "" || item.Name == "" || item.Brand == "" || item.Price <= 0 {
		return nil, store.ErrInvalidInput
	}

	item.Active = true
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO catalog_items (part_number, name, brand, price, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
	`, item.PartNumber, item.Name, item.Brand, item.Price, item.Active, item.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := item
	return &created, nil
}

func (s *Store) GetCatalogItem(ctx context.Context, partNumber string) (*domain.CatalogItem, error) {
	var item domain.CatalogItem
	err := s.db.QueryRowContext(ctx, `
		SELECT part_number, name, brand, price, active, created_at
		FROM catalog_items
		WHERE part_number = $1
	`, partNumber).Scan(&item.PartNumber, &item.Name, &item.Brand, &item.Price, &item.Active, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpdateCatalogItem(ctx context.Context, item domain.CatalogItem) (*domain.CatalogItem, error) {
	if item.PartNumber == "" || item.Name == "" || item.Brand == "" || item.Price <= 0 {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE catalog_items
		SET name = $2, brand = $3, price = $4, active = $5, updated_at = now()
		WHERE part_number = $1
	`, item.PartNumber, item.Name, item.Brand, item.Price, item.Active)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := item
	return &updated, nil
}

func (s *Store) CreatePriceHistory(ctx context.Context, entry domain.PartPriceHistory) error {
	if entry.ID == "" {
		entry.ID = xid.New("ph")
	}
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO part_price_history (id, part_number, old_price, new_price, changed_by, changed_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, entry.ID, entry.PartNumber, entry.OldPrice, entry.NewPrice, entry.ChangedBy, entry.ChangedAt)
	return err
}

func (s *Store) ListPriceHistory(ctx context.Context, partNumber string, limit int) ([]domain.PartPriceHistory, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, part_number, old_price, new_price, changed_by, changed_at
		FROM part_price_history
		WHERE part_number = $1
		ORDER BY changed_at DESC, id DESC
		LIMIT $2
	`, partNumber, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]domain.PartPriceHistory, 0, limit)
	for rows.Next() {
		var entry domain.PartPriceHistory
		if err := rows.Scan(&entry.ID, &entry.PartNumber, &entry.OldPrice, &entry.NewPrice, &entry.ChangedBy, &entry.ChangedAt); err != nil {
			return nil, err
		}
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return history, nil
}

func (s *Store) CreateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if tx.PartNumber == "" || tx.Quantity < 1 || tx.Price < 0 {
		return nil, store.ErrInvalidInput
	}
	if tx.ID == "" {
		tx.ID = xid.New("tx")
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions
			(id, part_number, type, quantity, price, paid_amount, customer_name,
			 status, created_by, created_at, decided_by, decided_at, related_transaction_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NULLIF($13,''))
	`, tx.ID, tx.PartNumber, tx.Type, tx.Quantity, tx.Price, tx.PaidAmount, tx.CustomerName,
		tx.Status, tx.CreatedBy, tx.CreatedAt, nullString(tx.DecidedBy), tx.DecidedAt, tx.RelatedTransactionID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := tx
	return &created, nil
}

const transactionColumns = `
	id, part_number, type, quantity, price, paid_amount, customer_name,
	status, created_by, created_at, COALESCE(decided_by, ''), decided_at,
	COALESCE(related_transaction_id, '')
`

func scanTransaction(row interface{ Scan(...any) error }) (domain.Transaction, error) {
	var tx domain.Transaction
	err := row.Scan(
		&tx.ID, &tx.PartNumber, &tx.Type, &tx.Quantity, &tx.Price, &tx.PaidAmount,
		&tx.CustomerName, &tx.Status, &tx.CreatedBy, &tx.CreatedAt,
		&tx.DecidedBy, &tx.DecidedAt, &tx.RelatedTransactionID,
	)
	return tx, err
}

func (s *Store) GetTransactionByID(ctx context.Context, id string) (*domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = $1
	`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]domain.Transaction, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 500
	}
	from := filter.From
	if from.IsZero() {
		from = time.Unix(0, 0).UTC()
	}
	to := filter.To
	if to.IsZero() {
		to = time.Now().UTC().Add(24 * time.Hour)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE created_at >= $1 AND created_at < $2
		  AND ($3 = '' OR type = $3)
		  AND ($4 = '' OR status = $4)
		ORDER BY created_at, id
		LIMIT $5
	`, from, to, filter.Type, filter.Status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Transaction, 0, limit)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListReturnsForSale(ctx context.Context, saleID string) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE type = $1 AND related_transaction_id = $2 AND status <> $3
		ORDER BY created_at, id
	`, domain.TxTypeReturn, saleID, domain.TxStatusRejected)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Transaction, 0, 4)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CollectPayment(ctx context.Context, id string, amount float64) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET paid_amount = paid_amount + $2
		WHERE id = $1 AND type = $3
		  AND paid_amount + $2 <= price * quantity
	`, id, amount, domain.TxTypeSale)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Either the row does not exist, is not a sale, or the payment
		// would overshoot the amount. Disambiguate for the caller.
		if _, getErr := s.GetTransactionByID(ctx, id); errors.Is(getErr, store.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, store.ErrInvalidInput
	}
	return s.GetTransactionByID(ctx, id)
}

func (s *Store) ListOutstanding(ctx context.Context, limit int) ([]domain.OutstandingBalance, error) {
	if limit < 1 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_name, price * quantity, paid_amount, created_at
		FROM transactions
		WHERE type = $1 AND status = $2 AND paid_amount < price * quantity
		ORDER BY created_at, id
		LIMIT $3
	`, domain.TxTypeSale, domain.TxStatusApproved, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.OutstandingBalance, 0, limit)
	for rows.Next() {
		var entry domain.OutstandingBalance
		if err := rows.Scan(&entry.TransactionID, &entry.CustomerName, &entry.Amount, &entry.PaidAmount, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Balance = entry.Amount - entry.PaidAmount
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) DecideRequisition(ctx context.Context, id string, approve bool, decidedBy string, decidedAt time.Time) (*domain.Transaction, error) {
	status := domain.TxStatusRejected
	if approve {
		status = domain.TxStatusApproved
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = $2, decided_by = $3, decided_at = $4
		WHERE id = $1 AND status = $5
	`, id, status, decidedBy, decidedAt, domain.TxStatusPending)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		if _, getErr := s.GetTransactionByID(ctx, id); errors.Is(getErr, store.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, store.ErrConflict
	}
	return s.GetTransactionByID(ctx, id)
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, shop_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.ShopID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, shopID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shop_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE ($1 = '' OR shop_id = $1) AND created_at >= $2 AND created_at < $3
		ORDER BY created_at, id
		LIMIT $4
	`, shopID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ShopID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
