// Package catalog reads the YAML product list used to seed an empty store.
//
//	products:
//	  - product_id: RICE-5KG
//	    product_name: Basmati Rice 5kg
//	    cost_price: 420
//	    selling_price: 499.50
//	    quantity: 40
package catalog

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/yashhavalannache/smart-inventory-management/internal/domain"
)

type entry struct {
	ProductID    string `yaml:"product_id"`
	Name         string `yaml:"product_name"`
	CostPrice    string `yaml:"cost_price"`
	SellingPrice string `yaml:"selling_price"`
	Quantity     int    `yaml:"quantity"`
}

type file struct {
	Products []entry `yaml:"products"`
}

func Load(path string) ([]domain.StockRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	records, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// Parse decodes and validates a catalog document. Profit is derived from the
// prices; any profit field in the document is ignored.
func Parse(data []byte) ([]domain.StockRecord, error) {
	var doc file
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(doc.Products))
	records := make([]domain.StockRecord, 0, len(doc.Products))
	for i, e := range doc.Products {
		id := strings.TrimSpace(e.ProductID)
		if id == "" {
			return nil, fmt.Errorf("product %d: product_id is required", i+1)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("product %s: listed twice", id)
		}
		seen[id] = struct{}{}

		cost, err := parsePrice(e.CostPrice)
		if err != nil {
			return nil, fmt.Errorf("product %s: cost_price: %w", id, err)
		}
		sell, err := parsePrice(e.SellingPrice)
		if err != nil {
			return nil, fmt.Errorf("product %s: selling_price: %w", id, err)
		}
		if e.Quantity < 0 {
			return nil, fmt.Errorf("product %s: quantity must not be negative", id)
		}

		name := strings.TrimSpace(e.Name)
		if name == "" {
			name = id
		}
		records = append(records, domain.StockRecord{
			ProductID:    id,
			Name:         name,
			CostPrice:    cost,
			SellingPrice: sell,
			Quantity:     e.Quantity,
		}.WithDerivedProfit())
	}
	return records, nil
}

func parsePrice(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("must not be negative")
	}
	return d, nil
}
