package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashhavalannache/smart-inventory-management/internal/domain"
	"github.com/yashhavalannache/smart-inventory-management/internal/store/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "inventory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRepositoryContract(t *testing.T) {
	storetest.Run(t, newTestStore(t))
}

func TestDataSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "inventory.db")

	s, err := New(ctx, path)
	require.NoError(t, err)
	_, err = s.CreateStock(ctx, domain.StockRecord{
		ProductID:    "CHAI",
		Name:         "Masala Chai",
		CostPrice:    decimal.RequireFromString("12.25"),
		SellingPrice: decimal.RequireFromString("19.99"),
		Quantity:     7,
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := New(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.GetStock(ctx, "CHAI")
	require.NoError(t, err)
	assert.Equal(t, "7.74", got.Profit.StringFixed(2))
	assert.Equal(t, 7, got.Quantity)
}
