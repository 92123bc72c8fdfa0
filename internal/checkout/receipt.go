package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	"pharmapos/m/domain"
	"pharmapos/m/internal/store"
)

const receiptPrefix = "RX-"

// Receipt is the printable view of a completed sale.
type Receipt struct {
	SaleID           int64                `json:"sale_id"`
	ReceiptNumber    string               `json:"receipt_number"`
	Items            []domain.SaleItem    `json:"items"`
	Subtotal         decimal.Decimal      `json:"subtotal"`
	Tax              decimal.Decimal      `json:"tax"`
	Total            decimal.Decimal      `json:"total"`
	PaymentMethod    domain.PaymentMethod `json:"payment_method"`
	PaymentReference string               `json:"payment_reference,omitempty"`
	CashTendered     *decimal.Decimal     `json:"cash_tendered,omitempty"`
	Change           *decimal.Decimal     `json:"change,omitempty"`
	StaffID          int64                `json:"staff_id"`
	StaffName        string               `json:"staff_name"`
	CreatedAt        time.Time            `json:"created_at"`
	// Replayed is set when the receipt belongs to a sale recorded by an earlier
	// request carrying the same idempotency key.
	Replayed bool `json:"replayed"`
}

// receiptNumbers hands out snowflake-based receipt numbers, unique per node.
type receiptNumbers struct {
	node *snowflake.Node
}

func newReceiptNumbers(node int64) (*receiptNumbers, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, err
	}
	return &receiptNumbers{node: n}, nil
}

func (r *receiptNumbers) next() string {
	return receiptPrefix + strings.ToUpper(r.node.Generate().Base36())
}

func receiptFromRecord(rec *domain.SaleRecord) *Receipt {
	r := &Receipt{
		SaleID:        rec.ID,
		ReceiptNumber: rec.ReceiptNumber,
		Items:         rec.Items,
		Subtotal:      rec.Subtotal,
		Tax:           rec.Tax,
		Total:         rec.Total,
		PaymentMethod: rec.PaymentMethod,
		CashTendered:  rec.CashTendered,
		StaffID:       rec.StaffID,
		StaffName:     rec.StaffName,
		CreatedAt:     rec.CreatedAt,
	}
	if rec.PaymentReference != nil {
		r.PaymentReference = *rec.PaymentReference
	}
	if rec.CashTendered != nil {
		change := rec.CashTendered.Sub(rec.Total)
		r.Change = &change
	}
	return r
}

// Receipt reloads a persisted sale for reprinting.
func (w *Workflow) Receipt(ctx context.Context, p domain.Principal, receiptNumber string) (*Receipt, error) {
	if err := w.authorize(p); err != nil {
		return nil, err
	}
	receiptNumber = strings.ToUpper(strings.TrimSpace(receiptNumber))
	if receiptNumber == "" {
		return nil, domain.Invalid("receipt_number", "receipt_number is required")
	}
	rec, err := store.NewSales(w.reader).ByReceipt(ctx, receiptNumber)
	if err != nil {
		return nil, err
	}
	return receiptFromRecord(rec), nil
}
