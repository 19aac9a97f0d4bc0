package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashhavalannache/smart-inventory-management/internal/store/storetest"
)

func TestRepositoryContract(t *testing.T) {
	storetest.Run(t, New())
}

func TestNewSeededHasCatalogAndAccounts(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	stock, err := s.ListStock(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, stock)
	for i := 1; i < len(stock); i++ {
		assert.Less(t, stock[i-1].ProductID, stock[i].ProductID)
	}
	for _, rec := range stock {
		assert.True(t, rec.Profit.Equal(rec.SellingPrice.Sub(rec.CostPrice)), rec.ProductID)
	}

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
