package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash        PaymentMethod = "cash"
	PaymentMobileMoney PaymentMethod = "mobile_money"
	PaymentCard        PaymentMethod = "card"
	PaymentInsurance   PaymentMethod = "insurance"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentMobileMoney, PaymentCard, PaymentInsurance:
		return true
	}
	return false
}

// RequiresReference reports whether a sale paid this way must carry an external reference.
func (m PaymentMethod) RequiresReference() bool {
	return m == PaymentMobileMoney || m == PaymentInsurance
}

type Sale struct {
	ID               int64            `db:"id" json:"id"`
	ReceiptNumber    string           `db:"receipt_number" json:"receipt_number"`
	IdempotencyKey   *string          `db:"idempotency_key" json:"-"`
	Subtotal         decimal.Decimal  `db:"subtotal" json:"subtotal"`
	Tax              decimal.Decimal  `db:"tax" json:"tax"`
	Total            decimal.Decimal  `db:"total" json:"total"`
	PaymentMethod    PaymentMethod    `db:"payment_method" json:"payment_method"`
	PaymentReference *string          `db:"payment_reference" json:"payment_reference,omitempty"`
	CashTendered     *decimal.Decimal `db:"cash_tendered" json:"cash_tendered,omitempty"`
	StaffID          int64            `db:"staff_id" json:"staff_id"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
}

type SaleItem struct {
	ID          int64           `db:"id" json:"id"`
	SaleID      int64           `db:"sale_id" json:"sale_id"`
	ProductID   int64           `db:"product_id" json:"product_id"`
	ProductName string          `db:"product_name" json:"product_name"`
	Quantity    int64           `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	LineTotal   decimal.Decimal `db:"line_total" json:"line_total"`
}

// SaleRecord is a persisted sale joined with the acting staff member's display name,
// as read back for receipts and reporting.
type SaleRecord struct {
	Sale
	StaffName string     `db:"staff_name" json:"staff_name"`
	Items     []SaleItem `db:"-" json:"items"`
}
