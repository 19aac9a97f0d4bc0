// Package report aggregates the sale ledger into daily summaries and renders
// them as CSV or a one-page PDF.
package report

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/yashhavalannache/smart-inventory-management/internal/domain"
)

// RankLimit caps every ranked list in a summary or dashboard.
const RankLimit = 5

var hundred = decimal.NewFromInt(100)

// Summarize computes the report for date. Sales for other dates are ignored.
// Profit uses the current profit of each product; sales whose product has
// been deleted still count as items sold but add nothing to profit and are
// left out of the performance ranking.
func Summarize(date string, sales []domain.SaleRecord, inventory []domain.StockRecord) domain.ReportSummary {
	stock := indexStock(inventory)
	summary := domain.ReportSummary{
		Date:           date,
		TotalProfit:    decimal.Zero,
		TopSelling:     []domain.ProductQuantity{},
		LeastSelling:   []domain.ProductQuantity{},
		TopPerformance: []domain.ProductPerformance{},
	}

	soldByName := make(map[string]int)
	type perf struct {
		units   int
		revenue decimal.Decimal
		profit  decimal.Decimal
	}
	perfByName := make(map[string]*perf)

	for _, sale := range sales {
		if sale.Date != date {
			continue
		}
		summary.TotalItemsSold += sale.Quantity
		soldByName[sale.ProductName] += sale.Quantity

		rec, ok := stock[sale.ProductID]
		if !ok {
			continue
		}
		lineProfit := rec.Profit.Mul(decimal.NewFromInt(int64(sale.Quantity)))
		summary.TotalProfit = summary.TotalProfit.Add(lineProfit)

		p := perfByName[rec.Name]
		if p == nil {
			p = &perf{revenue: decimal.Zero, profit: decimal.Zero}
			perfByName[rec.Name] = p
		}
		p.units += sale.Quantity
		p.revenue = p.revenue.Add(sale.TotalPrice)
		p.profit = p.profit.Add(lineProfit)
	}

	quantities := make([]domain.ProductQuantity, 0, len(soldByName))
	for name, qty := range soldByName {
		quantities = append(quantities, domain.ProductQuantity{Name: name, Quantity: qty})
	}
	summary.TopSelling = rankQuantities(quantities, true)
	summary.LeastSelling = rankQuantities(quantities, false)

	performance := make([]domain.ProductPerformance, 0, len(perfByName))
	for name, p := range perfByName {
		performance = append(performance, domain.ProductPerformance{
			Name:            name,
			UnitsSold:       p.units,
			Revenue:         p.revenue,
			ProfitMarginPct: marginPct(p.profit, p.revenue),
		})
	}
	slices.SortFunc(performance, func(a, b domain.ProductPerformance) int {
		if c := cmp.Compare(b.UnitsSold, a.UnitsSold); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	summary.TopPerformance = truncate(performance)

	return summary
}

// BuildDashboard computes the at-a-glance view for date.
func BuildDashboard(date string, sales []domain.SaleRecord, inventory []domain.StockRecord, lowStockThreshold int) domain.Dashboard {
	summary := Summarize(date, sales, inventory)
	stock := indexStock(inventory)

	totalSales := decimal.Zero
	profitByName := make(map[string]decimal.Decimal)
	for _, sale := range sales {
		if sale.Date != date {
			continue
		}
		totalSales = totalSales.Add(sale.TotalPrice)
		if rec, ok := stock[sale.ProductID]; ok {
			current, seen := profitByName[rec.Name]
			if !seen {
				current = decimal.Zero
			}
			profitByName[rec.Name] = current.Add(rec.Profit.Mul(decimal.NewFromInt(int64(sale.Quantity))))
		}
	}

	topProfit := make([]domain.ProductProfit, 0, len(profitByName))
	for name, profit := range profitByName {
		topProfit = append(topProfit, domain.ProductProfit{Name: name, Profit: profit})
	}
	slices.SortFunc(topProfit, func(a, b domain.ProductProfit) int {
		if c := b.Profit.Cmp(a.Profit); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	return domain.Dashboard{
		Date:              date,
		TotalSales:        totalSales,
		TotalProfit:       summary.TotalProfit,
		TopSold:           summary.TopSelling,
		LowStock:          LowStock(inventory, lowStockThreshold),
		TopProfitProducts: truncate(topProfit),
	}
}

// LowStock returns the records with fewer than threshold units, lowest first.
func LowStock(inventory []domain.StockRecord, threshold int) []domain.StockRecord {
	out := make([]domain.StockRecord, 0)
	for _, rec := range inventory {
		if rec.Quantity < threshold {
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b domain.StockRecord) int {
		if c := cmp.Compare(a.Quantity, b.Quantity); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	return out
}

func rankQuantities(in []domain.ProductQuantity, descending bool) []domain.ProductQuantity {
	ranked := slices.Clone(in)
	slices.SortFunc(ranked, func(a, b domain.ProductQuantity) int {
		c := cmp.Compare(a.Quantity, b.Quantity)
		if descending {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return truncate(ranked)
}

func marginPct(profit decimal.Decimal, revenue decimal.Decimal) decimal.Decimal {
	if revenue.IsZero() {
		return decimal.Zero
	}
	return profit.Div(revenue).Mul(hundred).Round(2)
}

func indexStock(inventory []domain.StockRecord) map[string]domain.StockRecord {
	out := make(map[string]domain.StockRecord, len(inventory))
	for _, rec := range inventory {
		out[rec.ProductID] = rec
	}
	return out
}

func truncate[T any](in []T) []T {
	if len(in) > RankLimit {
		return in[:RankLimit]
	}
	return in
}
