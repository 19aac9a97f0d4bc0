package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/yashhavalannache/smart-inventory-management/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrDuplicate         = errors.New("already exists")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidDate       = errors.New("invalid date")
	ErrStoreUnavailable  = errors.New("store unavailable")
)

// LineError reports which checkout line failed validation. It unwraps to one
// of the sentinel errors above.
type LineError struct {
	Line      int
	ProductID string
	Available int
	Err       error
}

func (e *LineError) Error() string {
	if errors.Is(e.Err, ErrInsufficientStock) {
		return fmt.Sprintf("line %d (%s): %v, available %d", e.Line, e.ProductID, e.Err, e.Available)
	}
	return fmt.Sprintf("line %d (%s): %v", e.Line, e.ProductID, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Unavailable wraps a backend failure so callers can match ErrStoreUnavailable
// while keeping the cause.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// Tx is the scoped view a checkout runs against. Everything done through it is
// committed together or not at all.
type Tx interface {
	// GetStockForUpdate reads a stock row and holds it until the transaction ends.
	GetStockForUpdate(ctx context.Context, productID string) (*domain.StockRecord, error)
	// DecrementStock fails with ErrInsufficientStock when fewer than qty units remain.
	DecrementStock(ctx context.Context, productID string, qty int) error
	AppendSale(ctx context.Context, sale domain.SaleRecord) (domain.SaleRecord, error)
}

type Repository interface {
	ListStock(ctx context.Context) ([]domain.StockRecord, error)
	GetStock(ctx context.Context, productID string) (*domain.StockRecord, error)
	CreateStock(ctx context.Context, record domain.StockRecord) (*domain.StockRecord, error)
	UpdateStock(ctx context.Context, record domain.StockRecord) (*domain.StockRecord, error)
	DeleteStock(ctx context.Context, productID string) error
	ListSales(ctx context.Context, date string) ([]domain.SaleRecord, error)
	// InTx runs fn inside one transaction. A non-nil error from fn rolls back
	// every change fn made.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
