package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID                   int64           `db:"id" json:"id"`
	Name                 string          `db:"name" json:"name"`
	Category             string          `db:"category" json:"category"`
	Supplier             string          `db:"supplier" json:"supplier"`
	BatchNumber          string          `db:"batch_number" json:"batch_number"`
	ExpiryDate           *time.Time      `db:"expiry_date" json:"expiry_date,omitempty"`
	CostPrice            decimal.Decimal `db:"cost_price" json:"cost_price"`
	SellingPrice         decimal.Decimal `db:"selling_price" json:"selling_price"`
	StockLevel           int64           `db:"stock_level" json:"stock_level"`
	MinStockLevel        int64           `db:"min_stock_level" json:"min_stock_level"`
	Barcode              *string         `db:"barcode" json:"barcode,omitempty"`
	RequiresPrescription bool            `db:"requires_prescription" json:"requires_prescription"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}

// Validate checks the catalog invariants that do not need the store.
func (p Product) Validate() error {
	if p.Name == "" {
		return Invalid("name", "name is required")
	}
	if p.CostPrice.IsNegative() {
		return Invalid("cost_price", "cost_price must not be negative")
	}
	if p.SellingPrice.IsNegative() {
		return Invalid("selling_price", "selling_price must not be negative")
	}
	if p.StockLevel < 0 {
		return Invalid("stock_level", "stock_level must not be negative")
	}
	if p.MinStockLevel < 0 {
		return Invalid("min_stock_level", "min_stock_level must not be negative")
	}
	return nil
}

// IsLowStock reports whether the product is at or below its reorder threshold.
func (p Product) IsLowStock() bool {
	return p.StockLevel <= p.MinStockLevel
}
