package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/yashhavalannache/smart-inventory-management/internal/domain"
	"github.com/yashhavalannache/smart-inventory-management/internal/logger"
	"github.com/yashhavalannache/smart-inventory-management/internal/store"
)

type Store struct {
	mu              sync.RWMutex
	stock           map[string]domain.StockRecord
	sales           []domain.SaleRecord
	nextSaleID      int64
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		stock:           make(map[string]domain.StockRecord),
		nextSaleID:      1,
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the dev/demo accounts. Passwords come from
// SEED_ADMIN_PASSWORD and SEED_CLERK_PASSWORD when set.
func seedUsers() map[string]domain.UserAccount {
	log := logger.WithModule("memory-store")
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	clerkPwd := envOr("SEED_CLERK_PASSWORD", "clerk123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CLERK_PASSWORD") == "" {
		log.Warn("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_CLERK_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"clerk", clerkPwd, "clerk"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.MinCost)
		if err != nil {
			log.WithError(err).Fatalf("failed to hash seed password for %s", u.username)
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

// NewSeeded returns a store with a small demo catalog and the dev accounts.
func NewSeeded() *Store {
	s := New()
	for _, rec := range []domain.StockRecord{
		{ProductID: "RICE-5KG", Name: "Basmati Rice 5kg", CostPrice: decimal.NewFromInt(420), SellingPrice: decimal.NewFromInt(499), Quantity: 40},
		{ProductID: "DAL-1KG", Name: "Toor Dal 1kg", CostPrice: decimal.NewFromInt(110), SellingPrice: decimal.NewFromInt(135), Quantity: 60},
		{ProductID: "OIL-1L", Name: "Sunflower Oil 1L", CostPrice: decimal.NewFromInt(125), SellingPrice: decimal.NewFromInt(150), Quantity: 25},
		{ProductID: "TEA-250G", Name: "Assam Tea 250g", CostPrice: decimal.NewFromInt(90), SellingPrice: decimal.NewFromInt(120), Quantity: 30},
		{ProductID: "SOAP-01", Name: "Neem Soap", CostPrice: decimal.NewFromInt(22), SellingPrice: decimal.NewFromInt(35), Quantity: 80},
		{ProductID: "SALT-1KG", Name: "Iodised Salt 1kg", CostPrice: decimal.NewFromInt(18), SellingPrice: decimal.NewFromInt(25), Quantity: 4},
	} {
		s.stock[rec.ProductID] = rec.WithDerivedProfit()
	}
	s.usersByUsername = seedUsers()
	return s
}

func (s *Store) ListStock(_ context.Context) ([]domain.StockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.StockRecord, 0, len(s.stock))
	for _, rec := range s.stock {
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b domain.StockRecord) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})
	return out, nil
}

func (s *Store) GetStock(_ context.Context, productID string) (*domain.StockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.stock[productID]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	return &rec, nil
}

func (s *Store) CreateStock(_ context.Context, record domain.StockRecord) (*domain.StockRecord, error) {
	if record.ProductID == "" || record.Quantity < 0 || !record.PricesInCents() {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.stock[record.ProductID]; exists {
		return nil, store.ErrDuplicate
	}
	record = record.WithDerivedProfit()
	s.stock[record.ProductID] = record
	return &record, nil
}

func (s *Store) UpdateStock(_ context.Context, record domain.StockRecord) (*domain.StockRecord, error) {
	if record.Quantity < 0 || !record.PricesInCents() {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.stock[record.ProductID]; !exists {
		return nil, store.ErrProductNotFound
	}
	record = record.WithDerivedProfit()
	s.stock[record.ProductID] = record
	return &record, nil
}

func (s *Store) DeleteStock(_ context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.stock[productID]; !exists {
		return store.ErrProductNotFound
	}
	delete(s.stock, productID)
	return nil
}

func (s *Store) ListSales(_ context.Context, date string) ([]domain.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.SaleRecord, 0, 16)
	for _, sale := range s.sales {
		if sale.Date == date {
			out = append(out, sale)
		}
	}
	return out, nil
}

// InTx holds the write lock for the whole of fn, so checkouts are serialized.
// Changes are staged on the tx and only copied into the store when fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		parent: s,
		staged: make(map[string]domain.StockRecord),
		nextID: s.nextSaleID,
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for productID, rec := range tx.staged {
		s.stock[productID] = rec
	}
	s.sales = append(s.sales, tx.sales...)
	s.nextSaleID = tx.nextID
	return nil
}

type memTx struct {
	parent *Store
	staged map[string]domain.StockRecord
	sales  []domain.SaleRecord
	nextID int64
}

func (t *memTx) current(productID string) (domain.StockRecord, bool) {
	if rec, ok := t.staged[productID]; ok {
		return rec, true
	}
	rec, ok := t.parent.stock[productID]
	return rec, ok
}

func (t *memTx) GetStockForUpdate(_ context.Context, productID string) (*domain.StockRecord, error) {
	rec, ok := t.current(productID)
	if !ok {
		return nil, store.ErrProductNotFound
	}
	return &rec, nil
}

func (t *memTx) DecrementStock(_ context.Context, productID string, qty int) error {
	rec, ok := t.current(productID)
	if !ok {
		return store.ErrProductNotFound
	}
	if qty < 1 {
		return store.ErrInvalidQuantity
	}
	if rec.Quantity < qty {
		return store.ErrInsufficientStock
	}
	rec.Quantity -= qty
	t.staged[productID] = rec
	return nil
}

func (t *memTx) AppendSale(_ context.Context, sale domain.SaleRecord) (domain.SaleRecord, error) {
	sale.ID = t.nextID
	t.nextID++
	t.sales = append(t.sales, sale)
	return sale, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
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

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrDuplicate
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
	username = strings.ToLower(strings.TrimSpace(username))
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}
