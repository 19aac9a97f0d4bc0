// Package sqlite is the embedded single-file store. All access goes through
// one connection, so transactions never interleave.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yashhavalannache/smart-inventory-management/internal/domain"
	"github.com/yashhavalannache/smart-inventory-management/internal/store"
)

// Money columns are TEXT so decimal strings are stored without float coercion.
const schema = `
CREATE TABLE IF NOT EXISTS inventory (
	product_id    TEXT PRIMARY KEY,
	product_name  TEXT NOT NULL,
	cost_price    TEXT NOT NULL,
	selling_price TEXT NOT NULL,
	profit        TEXT NOT NULL,
	quantity      INTEGER NOT NULL CHECK (quantity >= 0)
);
CREATE TABLE IF NOT EXISTS sales (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	product_id   TEXT NOT NULL,
	product_name TEXT NOT NULL,
	quantity     INTEGER NOT NULL CHECK (quantity > 0),
	total_price  TEXT NOT NULL,
	date         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS sales_date_idx ON sales (date);
CREATE TABLE IF NOT EXISTS app_users (
	username   TEXT PRIMARY KEY,
	password   TEXT NOT NULL,
	role       TEXT NOT NULL,
	active     INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL
);
`

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
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
	return records, rows.Err()
}

func (s *Store) GetStock(ctx context.Context, productID string) (*domain.StockRecord, error) {
	return getStock(ctx, s.db, productID)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getStock(ctx context.Context, q queryRower, productID string) (*domain.StockRecord, error) {
	rec, err := scanStock(q.QueryRowContext(ctx, `SELECT `+stockColumns+` FROM inventory WHERE product_id = ?`, productID))
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

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory (product_id, product_name, cost_price, selling_price, profit, quantity)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT (product_id) DO NOTHING
	`, record.ProductID, record.Name, record.CostPrice, record.SellingPrice, record.Profit, record.Quantity)
	if err != nil {
		return nil, err
	}
	if err := expectAffected(res, store.ErrDuplicate); err != nil {
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
		SET product_name = ?, cost_price = ?, selling_price = ?, profit = ?, quantity = ?
		WHERE product_id = ?
	`, record.Name, record.CostPrice, record.SellingPrice, record.Profit, record.Quantity, record.ProductID)
	if err != nil {
		return nil, err
	}
	if err := expectAffected(res, store.ErrProductNotFound); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) DeleteStock(ctx context.Context, productID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM inventory WHERE product_id = ?`, productID)
	if err != nil {
		return err
	}
	return expectAffected(res, store.ErrProductNotFound)
}

func (s *Store) ListSales(ctx context.Context, date string) ([]domain.SaleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, product_name, quantity, total_price, date
		FROM sales
		WHERE date = ?
		ORDER BY id
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.SaleRecord, 0, 32)
	for rows.Next() {
		var sale domain.SaleRecord
		if err := rows.Scan(&sale.ID, &sale.ProductID, &sale.ProductName, &sale.Quantity, &sale.TotalPrice, &sale.Date); err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&txn{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type txn struct {
	tx *sql.Tx
}

func (t *txn) GetStockForUpdate(ctx context.Context, productID string) (*domain.StockRecord, error) {
	return getStock(ctx, t.tx, productID)
}

func (t *txn) DecrementStock(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return store.ErrInvalidQuantity
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE inventory SET quantity = quantity - ?
		WHERE product_id = ? AND quantity >= ?
	`, qty, productID, qty)
	if err != nil {
		return err
	}
	return expectAffected(res, store.ErrInsufficientStock)
}

func (t *txn) AppendSale(ctx context.Context, sale domain.SaleRecord) (domain.SaleRecord, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO sales (product_id, product_name, quantity, total_price, date)
		VALUES (?,?,?,?,?)
	`, sale.ProductID, sale.ProductName, sale.Quantity, sale.TotalPrice, sale.Date)
	if err != nil {
		return domain.SaleRecord{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.SaleRecord{}, err
	}
	sale.ID = id
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

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at)
		VALUES (?,?,?,?,?)
		ON CONFLICT (username) DO NOTHING
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt.Unix())
	if err != nil {
		return err
	}
	return expectAffected(res, store.ErrDuplicate)
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
		var createdAt int64
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &createdAt); err != nil {
			return nil, err
		}
		user.CreatedAt = time.Unix(createdAt, 0).UTC()
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `UPDATE app_users SET password = ? WHERE username = ?`, password, username)
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
