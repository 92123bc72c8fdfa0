// Package checkout turns a finalized cart into a persisted sale, its line items
// and the matching stock decrements, all inside one database transaction.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pharmapos/m/domain"
	"pharmapos/m/internal/auth"
	"pharmapos/m/internal/cart"
	"pharmapos/m/internal/metrics"
	"pharmapos/m/internal/store"
)

// Request is one checkout submission.
type Request struct {
	Cart             *cart.Cart
	PaymentMethod    domain.PaymentMethod
	PaymentReference string
	CashTendered     *decimal.Decimal
	// IdempotencyKey makes resubmission safe: a second request with the same
	// key returns the first sale's receipt and writes nothing.
	IdempotencyKey string
}

type Workflow struct {
	tx       store.TxManager
	reader   sqlx.ExtContext
	receipts *receiptNumbers
	log      *zap.Logger
	metrics  *metrics.Checkout
}

// New builds a workflow writing through tx and reading receipts through reader.
// node is the snowflake node id used for receipt numbers (0..1023).
func New(tx store.TxManager, reader sqlx.ExtContext, node int64, log *zap.Logger, m *metrics.Checkout) (*Workflow, error) {
	receipts, err := newReceiptNumbers(node)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewCheckout()
	}
	return &Workflow{tx: tx, reader: reader, receipts: receipts, log: log, metrics: m}, nil
}

// Checkout validates req, then writes the sale, its items and the stock
// decrements in that order inside one transaction. Any failure rolls all of it
// back. On success the cart is cleared.
func (w *Workflow) Checkout(ctx context.Context, req Request, p domain.Principal) (*Receipt, error) {
	a := newAttempt(w.log, p.ID)
	receipt, err := w.run(ctx, a, req, p)
	outcome := "completed"
	switch {
	case err == nil && receipt.Replayed:
		outcome = "replayed"
	case domain.IsInsufficientStock(err):
		outcome = "insufficient_stock"
	case domain.IsValidation(err), domain.IsAuthorization(err), errors.Is(err, domain.ErrCheckoutInProgress), errors.Is(err, domain.ErrConflict):
		outcome = "rejected"
	case err != nil:
		outcome = "failed"
	}
	w.metrics.Attempts.WithLabelValues(outcome).Inc()
	w.metrics.DurationMS.WithLabelValues(outcome).Observe(a.elapsedMS())
	if err != nil {
		a.fail(err)
		return nil, err
	}
	return receipt, nil
}

func (w *Workflow) run(ctx context.Context, a *attempt, req Request, p domain.Principal) (*Receipt, error) {
	a.to(StateValidating)
	if err := w.authorize(p); err != nil {
		return nil, err
	}
	if req.Cart == nil {
		return nil, domain.Invalid("cart", "cart is empty")
	}
	if err := req.Cart.TryBeginCheckout(); err != nil {
		return nil, err
	}
	defer req.Cart.EndCheckout()

	lines, totals := req.Cart.Snapshot()
	key := strings.TrimSpace(req.IdempotencyKey)
	// A retry after a lost response arrives with the cart already cleared.
	if len(lines) == 0 && key != "" {
		rec, err := w.findSale(ctx, p.ID, key)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return w.replay(a, req.Cart, rec), nil
		}
	}
	sale, err := validate(req, lines, totals, p)
	if err != nil {
		return nil, err
	}
	if sale.IdempotencyKey != nil {
		rec, err := w.findSale(ctx, p.ID, *sale.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			if !sameSale(rec, lines, totals) {
				return nil, keyReused(*sale.IdempotencyKey)
			}
			return w.replay(a, req.Cart, rec), nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sale.ReceiptNumber = w.receipts.next()
	items := make([]domain.SaleItem, len(lines))

	err = w.tx.WithTransaction(ctx, func(q sqlx.ExtContext) error {
		a.to(StateSalePersisting)
		sales := store.NewSales(q)
		if err := sales.Insert(ctx, sale); err != nil {
			return err
		}

		a.to(StateItemsPersisting)
		for i, l := range lines {
			items[i] = domain.SaleItem{
				SaleID:      sale.ID,
				ProductID:   l.ProductID,
				ProductName: l.ProductName,
				Quantity:    l.Quantity,
				UnitPrice:   l.UnitPrice,
				LineTotal:   l.LineTotal,
			}
		}
		if err := sales.InsertItems(ctx, items); err != nil {
			return err
		}

		a.to(StateStockApplying)
		catalog := store.NewCatalog(q)
		for _, l := range lines {
			if err := catalog.DecrementStock(ctx, l.ProductID, l.Quantity); err != nil {
				return err
			}
		}
		return ctx.Err()
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateSale) {
			if sale.IdempotencyKey != nil {
				if rec, lookupErr := w.findSale(ctx, p.ID, *sale.IdempotencyKey); lookupErr == nil && rec != nil {
					if !sameSale(rec, lines, totals) {
						return nil, keyReused(*sale.IdempotencyKey)
					}
					return w.replay(a, req.Cart, rec), nil
				}
			}
			return nil, &domain.PersistenceError{Op: "insert sale", Err: err}
		}
		return nil, err
	}

	a.to(StateCompleted)
	req.Cart.Clear()

	units := int64(0)
	for _, l := range lines {
		units += l.Quantity
	}
	w.metrics.UnitsSold.Add(float64(units))
	w.metrics.Revenue.Add(sale.Total.InexactFloat64())
	a.log.Info("checkout completed",
		zap.String("receipt", sale.ReceiptNumber),
		zap.Int64("sale_id", sale.ID),
		zap.Int("lines", len(items)),
		zap.String("total", sale.Total.String()),
		zap.String("payment_method", string(sale.PaymentMethod)),
	)

	receipt := receiptFromRecord(&domain.SaleRecord{Sale: *sale, StaffName: p.DisplayName, Items: items})
	return receipt, nil
}

func (w *Workflow) authorize(p domain.Principal) error {
	return auth.Authorize(p, auth.ActionCheckout)
}

// findSale returns the sale staffID recorded under key, or nil when there is none.
func (w *Workflow) findSale(ctx context.Context, staffID int64, key string) (*domain.SaleRecord, error) {
	rec, err := store.NewSales(w.reader).ByIdempotencyKey(ctx, staffID, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

func (w *Workflow) replay(a *attempt, c *cart.Cart, rec *domain.SaleRecord) *Receipt {
	a.log.Info("checkout replayed", zap.String("receipt", rec.ReceiptNumber), zap.Int64("sale_id", rec.ID))
	a.to(StateCompleted)
	c.Clear()
	r := receiptFromRecord(rec)
	r.Replayed = true
	return r
}

// sameSale reports whether rec records exactly the lines and total of the
// current cart. A key may only replay the sale it was first used for.
func sameSale(rec *domain.SaleRecord, lines []cart.Line, totals cart.Totals) bool {
	if len(rec.Items) != len(lines) || !rec.Total.Equal(totals.Total) {
		return false
	}
	want := make(map[int64]cart.Line, len(lines))
	for _, l := range lines {
		want[l.ProductID] = l
	}
	for _, it := range rec.Items {
		l, ok := want[it.ProductID]
		if !ok || l.Quantity != it.Quantity || !l.UnitPrice.Equal(it.UnitPrice) {
			return false
		}
	}
	return true
}

func keyReused(key string) error {
	return fmt.Errorf("%w: idempotency key %q already recorded a different sale", domain.ErrConflict, key)
}

// validate checks every precondition that needs no store access and builds the
// sale row to insert.
func validate(req Request, lines []cart.Line, totals cart.Totals, p domain.Principal) (*domain.Sale, error) {
	if len(lines) == 0 {
		return nil, domain.Invalid("cart", "cart is empty")
	}
	if !req.PaymentMethod.Valid() {
		return nil, domain.Invalid("payment_method", "payment_method must be cash, mobile_money, card or insurance")
	}
	sale := &domain.Sale{
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		Total:         totals.Total,
		PaymentMethod: req.PaymentMethod,
		StaffID:       p.ID,
		CreatedAt:     time.Now().UTC(),
	}

	ref := strings.TrimSpace(req.PaymentReference)
	if req.PaymentMethod.RequiresReference() && ref == "" {
		return nil, domain.Invalid("payment_reference", "payment_reference is required for "+string(req.PaymentMethod))
	}
	if ref != "" {
		sale.PaymentReference = &ref
	}

	if req.PaymentMethod == domain.PaymentCash {
		if req.CashTendered == nil {
			return nil, domain.Invalid("cash_tendered", "cash_tendered is required for cash payments")
		}
		if req.CashTendered.LessThan(totals.Total) {
			return nil, domain.Invalid("cash_tendered", "cash_tendered "+req.CashTendered.String()+" is less than total "+totals.Total.String())
		}
		tendered := *req.CashTendered
		sale.CashTendered = &tendered
	}

	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		sale.IdempotencyKey = &key
	}
	return sale, nil
}
