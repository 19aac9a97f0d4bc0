// Package storetest holds behaviour checks shared by every store.Repository
// backend.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashhavalannache/smart-inventory-management/internal/domain"
	"github.com/yashhavalannache/smart-inventory-management/internal/store"
)

// Run exercises repo. repo must start without a product "P1" or a user "tester".
func Run(t *testing.T, repo store.Repository) {
	t.Run("catalog", func(t *testing.T) { catalog(t, repo) })
	t.Run("tx commit", func(t *testing.T) { txCommit(t, repo) })
	t.Run("tx rollback", func(t *testing.T) { txRollback(t, repo) })
	t.Run("users", func(t *testing.T) { users(t, repo) })
}

func p1() domain.StockRecord {
	return domain.StockRecord{
		ProductID:    "P1",
		Name:         "P1",
		CostPrice:    decimal.NewFromInt(10),
		SellingPrice: decimal.NewFromInt(15),
		Quantity:     20,
	}
}

func catalog(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	created, err := repo.CreateStock(ctx, p1())
	require.NoError(t, err)
	assert.True(t, created.Profit.Equal(decimal.NewFromInt(5)))

	_, err = repo.CreateStock(ctx, p1())
	assert.ErrorIs(t, err, store.ErrDuplicate)

	got, err := repo.GetStock(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 20, got.Quantity)
	assert.True(t, got.SellingPrice.Equal(decimal.NewFromInt(15)))
	assert.True(t, got.Profit.Equal(decimal.NewFromInt(5)))

	updated := *got
	updated.SellingPrice = decimal.RequireFromString("16.50")
	_, err = repo.UpdateStock(ctx, updated)
	require.NoError(t, err)
	got, err = repo.GetStock(ctx, "P1")
	require.NoError(t, err)
	assert.True(t, got.Profit.Equal(decimal.RequireFromString("6.5")), "profit %s", got.Profit)

	got.SellingPrice = decimal.NewFromInt(15)
	_, err = repo.UpdateStock(ctx, *got)
	require.NoError(t, err)

	_, err = repo.UpdateStock(ctx, domain.StockRecord{ProductID: "NOPE"})
	assert.ErrorIs(t, err, store.ErrProductNotFound)

	_, err = repo.GetStock(ctx, "NOPE")
	assert.ErrorIs(t, err, store.ErrProductNotFound)

	fractional := domain.StockRecord{
		ProductID:    "P-FRACTION",
		Name:         "fraction",
		CostPrice:    decimal.RequireFromString("0.004"),
		SellingPrice: decimal.RequireFromString("1.005"),
		Quantity:     1,
	}
	_, err = repo.CreateStock(ctx, fractional)
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	_, err = repo.GetStock(ctx, "P-FRACTION")
	assert.ErrorIs(t, err, store.ErrProductNotFound)

	subCent := *got
	subCent.SellingPrice = decimal.RequireFromString("15.001")
	_, err = repo.UpdateStock(ctx, subCent)
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	got, err = repo.GetStock(ctx, "P1")
	require.NoError(t, err)
	assert.True(t, got.SellingPrice.Equal(decimal.NewFromInt(15)))
	assert.True(t, got.Profit.Equal(got.SellingPrice.Sub(got.CostPrice)))

	list, err := repo.ListStock(ctx)
	require.NoError(t, err)
	found := false
	for _, rec := range list {
		if rec.ProductID == "P1" {
			found = true
		}
	}
	assert.True(t, found)

	tmp := domain.StockRecord{ProductID: "TMP", Name: "Temp", CostPrice: decimal.NewFromInt(1), SellingPrice: decimal.NewFromInt(2)}
	_, err = repo.CreateStock(ctx, tmp)
	require.NoError(t, err)
	require.NoError(t, repo.DeleteStock(ctx, "TMP"))
	assert.ErrorIs(t, repo.DeleteStock(ctx, "TMP"), store.ErrProductNotFound)
}

func txCommit(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	date := "2024-03-15"

	err := repo.InTx(ctx, func(tx store.Tx) error {
		rec, err := tx.GetStockForUpdate(ctx, "P1")
		if err != nil {
			return err
		}
		if err := tx.DecrementStock(ctx, "P1", 3); err != nil {
			return err
		}
		_, err = tx.AppendSale(ctx, domain.SaleRecord{
			ProductID:   rec.ProductID,
			ProductName: rec.Name,
			Quantity:    3,
			TotalPrice:  rec.SellingPrice.Mul(decimal.NewFromInt(3)),
			Date:        date,
		})
		return err
	})
	require.NoError(t, err)

	got, err := repo.GetStock(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 17, got.Quantity)

	sales, err := repo.ListSales(ctx, date)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "P1", sales[0].ProductName)
	assert.Equal(t, 3, sales[0].Quantity)
	assert.True(t, sales[0].TotalPrice.Equal(decimal.NewFromInt(45)))
	assert.Equal(t, date, sales[0].Date)
	assert.NotZero(t, sales[0].ID)

	other, err := repo.ListSales(ctx, "2024-03-16")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func txRollback(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	date := "2024-04-01"
	boom := errors.New("boom")

	err := repo.InTx(ctx, func(tx store.Tx) error {
		if err := tx.DecrementStock(ctx, "P1", 2); err != nil {
			return err
		}
		if _, err := tx.AppendSale(ctx, domain.SaleRecord{
			ProductID: "P1", ProductName: "P1", Quantity: 2, TotalPrice: decimal.NewFromInt(30), Date: date,
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = repo.InTx(ctx, func(tx store.Tx) error {
		return tx.DecrementStock(ctx, "P1", 1000)
	})
	assert.ErrorIs(t, err, store.ErrInsufficientStock)

	err = repo.InTx(ctx, func(tx store.Tx) error {
		_, err := tx.GetStockForUpdate(ctx, "UNKNOWN")
		return err
	})
	assert.ErrorIs(t, err, store.ErrProductNotFound)

	got, err := repo.GetStock(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 17, got.Quantity)
	sales, err := repo.ListSales(ctx, date)
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func users(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	user := domain.UserAccount{Username: "Tester", Password: "$2a$hash", Role: "clerk", Active: true, CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.CreateUser(ctx, user))
	assert.ErrorIs(t, repo.CreateUser(ctx, user), store.ErrDuplicate)
	require.NoError(t, repo.UpdateUserPassword(ctx, "tester", "$2a$other"))
	assert.ErrorIs(t, repo.UpdateUserPassword(ctx, "ghost", "$2a$x"), store.ErrNotFound)

	list, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	var found *domain.UserAccount
	for i := range list {
		if list[i].Username == "tester" {
			found = &list[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "$2a$other", found.Password)
	assert.True(t, found.Active)
}
