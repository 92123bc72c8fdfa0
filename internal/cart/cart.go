// Package cart accumulates the pending line items of one staff member's sale.
package cart

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"pharmapos/m/domain"
)

// Line is one product in the cart. Name and unit price are captured when the
// product is first added and do not follow later catalog edits.
type Line struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// Cart is safe for concurrent use. While a checkout holds it, mutations fail
// with domain.ErrCheckoutInProgress.
type Cart struct {
	taxRate decimal.Decimal

	mu       sync.Mutex
	lines    []Line
	checking bool
}

func New(taxRate decimal.Decimal) *Cart {
	return &Cart{taxRate: taxRate}
}

// AddItem adds qty units of p (1 when qty is zero). The resulting quantity may
// not exceed p's stock level; the cart is left unchanged otherwise.
func (c *Cart) AddItem(p domain.Product, qty int64) error {
	if qty < 0 {
		return domain.Invalid("quantity", "quantity must not be negative")
	}
	if qty == 0 {
		qty = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.checking {
		return domain.ErrCheckoutInProgress
	}

	i := c.find(p.ID)
	want := qty
	if i >= 0 {
		want += c.lines[i].Quantity
	}
	if want > p.StockLevel {
		return stockWarning(p)
	}
	if i >= 0 {
		c.lines[i].Quantity = want
		c.lines[i].LineTotal = lineTotal(c.lines[i].UnitPrice, want)
		return nil
	}
	c.lines = append(c.lines, Line{
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    want,
		UnitPrice:   p.SellingPrice,
		LineTotal:   lineTotal(p.SellingPrice, want),
	})
	return nil
}

// SetQuantity sets the quantity of p's line, removing it when qty is zero.
func (c *Cart) SetQuantity(p domain.Product, qty int64) error {
	if qty < 0 {
		return domain.Invalid("quantity", "quantity must not be negative")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.checking {
		return domain.ErrCheckoutInProgress
	}
	i := c.find(p.ID)
	if i < 0 {
		return domain.Invalid("product_id", "product is not in the cart")
	}
	if qty == 0 {
		c.remove(i)
		return nil
	}
	if qty > p.StockLevel {
		return stockWarning(p)
	}
	c.lines[i].Quantity = qty
	c.lines[i].LineTotal = lineTotal(c.lines[i].UnitPrice, qty)
	return nil
}

func (c *Cart) RemoveItem(productID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.checking {
		return domain.ErrCheckoutInProgress
	}
	if i := c.find(productID); i >= 0 {
		c.remove(i)
	}
	return nil
}

// Totals computes subtotal, tax and total exactly; nothing is rounded.
func (c *Cart) Totals() Totals {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totals()
}

func (c *Cart) totals() Totals {
	subtotal := decimal.Zero
	for _, l := range c.lines {
		subtotal = subtotal.Add(l.LineTotal)
	}
	tax := subtotal.Mul(c.taxRate)
	return Totals{Subtotal: subtotal, Tax: tax, Total: subtotal.Add(tax)}
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Snapshot returns lines and totals read under one lock.
func (c *Cart) Snapshot() ([]Line, Totals) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out, c.totals()
}

func (c *Cart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines) == 0
}

func (c *Cart) TaxRate() decimal.Decimal {
	return c.taxRate
}

// Clear empties the cart. It is allowed during checkout, which clears the cart
// on success.
func (c *Cart) Clear() {
	c.mu.Lock()
	c.lines = nil
	c.mu.Unlock()
}

// Abandon empties the cart unless a checkout currently holds it.
func (c *Cart) Abandon() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.checking {
		return domain.ErrCheckoutInProgress
	}
	c.lines = nil
	return nil
}

// TryBeginCheckout marks the cart as being checked out. A second call before
// EndCheckout fails with domain.ErrCheckoutInProgress.
func (c *Cart) TryBeginCheckout() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.checking {
		return domain.ErrCheckoutInProgress
	}
	c.checking = true
	return nil
}

func (c *Cart) EndCheckout() {
	c.mu.Lock()
	c.checking = false
	c.mu.Unlock()
}

func (c *Cart) find(productID int64) int {
	for i, l := range c.lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) remove(i int) {
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
}

func lineTotal(price decimal.Decimal, qty int64) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(qty))
}

func stockWarning(p domain.Product) error {
	return domain.Invalid("quantity", fmt.Sprintf("only %d units of %s in stock", p.StockLevel, p.Name))
}
