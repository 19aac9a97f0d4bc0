package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used for sale dates and report queries.
const DateLayout = "2006-01-02"

type Actor struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// StockRecord is one inventory row. Profit is always SellingPrice - CostPrice.
type StockRecord struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"product_name"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Profit       decimal.Decimal `json:"profit"`
	Quantity     int             `json:"quantity"`
}

// PriceScale is the number of decimal places stored for money.
const PriceScale = 2

// PricesInCents reports whether both prices fit in PriceScale decimal places,
// so profit derived here is the same value every backend stores.
func (r StockRecord) PricesInCents() bool {
	return r.CostPrice.Equal(r.CostPrice.Round(PriceScale)) && r.SellingPrice.Equal(r.SellingPrice.Round(PriceScale))
}

// WithDerivedProfit returns a copy with Profit recomputed from the price fields.
func (r StockRecord) WithDerivedProfit() StockRecord {
	r.Profit = r.SellingPrice.Sub(r.CostPrice)
	return r
}

// SaleRecord is an immutable ledger entry. ProductName is the name at sale time
// and is kept even after the product is renamed or deleted.
type SaleRecord struct {
	ID          int64           `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	Date        string          `json:"date"`
}

type SaleLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type SaleResult struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

type CheckoutRequest struct {
	Items          []SaleLine `json:"items"`
	Date           string     `json:"date,omitempty"`
	IdempotencyKey string     `json:"idempotency_key,omitempty"`
}

type CheckoutResponse struct {
	Date       string          `json:"date"`
	Lines      []SaleResult    `json:"lines"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Duplicate  bool            `json:"duplicate"`
}

type ProductQuantity struct {
	Name     string `json:"product_name"`
	Quantity int    `json:"quantity"`
}

type ProductPerformance struct {
	Name            string          `json:"product_name"`
	UnitsSold       int             `json:"units_sold"`
	Revenue         decimal.Decimal `json:"revenue"`
	ProfitMarginPct decimal.Decimal `json:"profit_margin_pct"`
}

type ProductProfit struct {
	Name   string          `json:"product_name"`
	Profit decimal.Decimal `json:"profit"`
}

type ReportSummary struct {
	Date           string               `json:"date"`
	TotalItemsSold int                  `json:"total_items_sold"`
	TotalProfit    decimal.Decimal      `json:"total_profit"`
	TopSelling     []ProductQuantity    `json:"top_selling"`
	LeastSelling   []ProductQuantity    `json:"least_selling"`
	TopPerformance []ProductPerformance `json:"top_performance"`
}

type Dashboard struct {
	Date              string            `json:"date"`
	TotalSales        decimal.Decimal   `json:"total_sales"`
	TotalProfit       decimal.Decimal   `json:"total_profit"`
	TopSold           []ProductQuantity `json:"top_sold"`
	LowStock          []StockRecord     `json:"low_stock"`
	TopProfitProducts []ProductProfit   `json:"top_profit_products"`
}

type ProductCreateRequest struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"product_name"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Quantity     int             `json:"quantity"`
}

type ProductUpdateRequest struct {
	Name         *string          `json:"product_name,omitempty"`
	CostPrice    *decimal.Decimal `json:"cost_price,omitempty"`
	SellingPrice *decimal.Decimal `json:"selling_price,omitempty"`
	Quantity     *int             `json:"quantity,omitempty"`
}

type UserAccount struct {
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}
