package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/yashhavalannache/smart-inventory-management/internal/domain"
	"github.com/yashhavalannache/smart-inventory-management/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS inventory (
	product_id    TEXT PRIMARY KEY,
	product_name  TEXT NOT NULL,
	cost_price    NUMERIC(12,2) NOT NULL,
	selling_price NUMERIC(12,2) NOT NULL,
	profit        NUMERIC(12,2) NOT NULL,
	quantity      INTEGER NOT NULL CHECK (quantity >= 0),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS sales (
	id           BIGSERIAL PRIMARY KEY,
	product_id   TEXT NOT NULL,
	product_name TEXT NOT NULL,
	quantity     INTEGER NOT NULL CHECK (quantity > 0),
	total_price  NUMERIC(12,2) NOT NULL,
	date         DATE NOT NULL
);
CREATE INDEX IF NOT EXISTS sales_date_idx ON sales (date);
CREATE TABLE IF NOT EXISTS app_users (
	username   TEXT PRIMARY KEY,
	password   TEXT NOT NULL,
	role       TEXT NOT NULL,
	active     BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

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

// Migrate creates the tables if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

const stockColumns = `product_id, product_name, cost_price, selling_price, profit, quantity`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStock(row rowScanner) (domain.StockRecord, error) {
	var rec domain.StockRecord
	err := row.Scan(&rec.ProductID, &rec.Name, &rec.CostPrice, &rec.SellingPrice, &rec.Profit, &rec.Quantity)
	return rec, err
}

func (s *Store) ListStock(ctx context.Context) ([]domain.StockRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+stockColumns+` FROM inventory ORDER BY product_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.StockRecord, 0, 64)
	for rows.Next() {
		rec, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) GetStock(ctx context.Context, productID string) (*domain.StockRecord, error) {
	rec, err := scanStock(s.db.QueryRowContext(ctx, `SELECT `+stockColumns+` FROM inventory WHERE product_id = $1`, productID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrProductNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *Store) CreateStock(ctx context.Context, record domain.StockRecord) (*domain.StockRecord, error) {
	if record.ProductID == "" || record.Quantity < 0 || !record.PricesInCents() {
		return nil, store.ErrInvalidInput
	}
	record = record.WithDerivedProfit()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory (product_id, product_name, cost_price, selling_price, profit, quantity, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
	`, record.ProductID, record.Name, record.CostPrice, record.SellingPrice, record.Profit, record.Quantity)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	return &record, nil
}

func (s *Store) UpdateStock(ctx context.Context, record domain.StockRecord) (*domain.StockRecord, error) {
	if record.Quantity < 0 || !record.PricesInCents() {
		return nil, store.ErrInvalidInput
	}
	record = record.WithDerivedProfit()

	res, err := s.db.ExecContext(ctx, `
		UPDATE inventory
		SET product_name = $2, cost_price = $3, selling_price = $4, profit = $5, quantity = $6, updated_at = now()
		WHERE product_id = $1
	`, record.ProductID, record.Name, record.CostPrice, record.SellingPrice, record.Profit, record.Quantity)
	if err != nil {
		return nil, err
	}
	if err := expectAffected(res, store.ErrProductNotFound); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) DeleteStock(ctx context.Context, productID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM inventory WHERE product_id = $1`, productID)
	if err != nil {
		return err
	}
	return expectAffected(res, store.ErrProductNotFound)
}

func (s *Store) ListSales(ctx context.Context, date string) ([]domain.SaleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, product_name, quantity, total_price, date
		FROM sales
		WHERE date = $1
		ORDER BY id
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.SaleRecord, 0, 32)
	for rows.Next() {
		var sale domain.SaleRecord
		var saleDate time.Time
		if err := rows.Scan(&sale.ID, &sale.ProductID, &sale.ProductName, &sale.Quantity, &sale.TotalPrice, &saleDate); err != nil {
			return nil, err
		}
		sale.Date = saleDate.Format(domain.DateLayout)
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

// InTx runs fn in a read-committed transaction. Rows read through
// GetStockForUpdate stay locked until commit or rollback.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = pgTx.Rollback() }()

	if err := fn(&txn{tx: pgTx}); err != nil {
		return err
	}
	return pgTx.Commit()
}

type txn struct {
	tx *sql.Tx
}

func (t *txn) GetStockForUpdate(ctx context.Context, productID string) (*domain.StockRecord, error) {
	rec, err := scanStock(t.tx.QueryRowContext(ctx, `
		SELECT `+stockColumns+`
		FROM inventory
		WHERE product_id = $1
		FOR UPDATE
	`, productID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrProductNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (t *txn) DecrementStock(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return store.ErrInvalidQuantity
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE inventory
		SET quantity = quantity - $2, updated_at = now()
		WHERE product_id = $1 AND quantity >= $2
	`, productID, qty)
	if err != nil {
		return err
	}
	return expectAffected(res, store.ErrInsufficientStock)
}

func (t *txn) AppendSale(ctx context.Context, sale domain.SaleRecord) (domain.SaleRecord, error) {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO sales (product_id, product_name, quantity, total_price, date)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id
	`, sale.ProductID, sale.ProductName, sale.Quantity, sale.TotalPrice, sale.Date).Scan(&sale.ID)
	if err != nil {
		return domain.SaleRecord{}, err
	}
	return sale, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = "clerk"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
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
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	return expectAffected(res, store.ErrNotFound)
}

func expectAffected(res sql.Result, none error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return none
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
