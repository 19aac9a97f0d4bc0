package report

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/yashhavalannache/smart-inventory-management/internal/domain"
)

// ToCSV flattens the summary into section,key,value rows.
func ToCSV(summary domain.ReportSummary) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{
		{"section", "key", "value"},
		{"summary", "date", summary.Date},
		{"summary", "total_items_sold", strconv.Itoa(summary.TotalItemsSold)},
		{"summary", "total_profit", summary.TotalProfit.StringFixed(2)},
	}
	for _, item := range summary.TopSelling {
		rows = append(rows, []string{"top_selling", item.Name, strconv.Itoa(item.Quantity)})
	}
	for _, item := range summary.LeastSelling {
		rows = append(rows, []string{"least_selling", item.Name, strconv.Itoa(item.Quantity)})
	}
	for _, item := range summary.TopPerformance {
		rows = append(rows,
			[]string{"top_performance_units", item.Name, strconv.Itoa(item.UnitsSold)},
			[]string{"top_performance_revenue", item.Name, item.Revenue.StringFixed(2)},
			[]string{"top_performance_margin_pct", item.Name, item.ProfitMarginPct.StringFixed(2)},
		)
	}

	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
