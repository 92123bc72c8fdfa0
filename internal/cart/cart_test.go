package cart

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"pharmapos/m/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func paracetamol(stock int64) domain.Product {
	return domain.Product{ID: 1, Name: "Paracetamol 500mg", SellingPrice: d("80.00"), StockLevel: stock}
}

func TestTotalsCashScenario(t *testing.T) {
	c := New(d("0.16"))
	if err := c.AddItem(paracetamol(10), 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	tot := c.Totals()
	if !tot.Subtotal.Equal(d("160.00")) || !tot.Tax.Equal(d("25.60")) || !tot.Total.Equal(d("185.60")) {
		t.Fatalf("unexpected totals %+v", tot)
	}
}

func TestTotalsAreExact(t *testing.T) {
	c := New(d("0.16"))
	products := []domain.Product{
		{ID: 1, Name: "A", SellingPrice: d("0.10"), StockLevel: 100},
		{ID: 2, Name: "B", SellingPrice: d("0.20"), StockLevel: 100},
		{ID: 3, Name: "C", SellingPrice: d("19.99"), StockLevel: 100},
	}
	qty := []int64{3, 7, 11}
	want := decimal.Zero
	for i, p := range products {
		if err := c.AddItem(p, qty[i]); err != nil {
			t.Fatalf("add: %v", err)
		}
		want = want.Add(p.SellingPrice.Mul(decimal.NewFromInt(qty[i])))
	}
	tot := c.Totals()
	if !tot.Subtotal.Equal(want) {
		t.Fatalf("subtotal %s, want %s", tot.Subtotal, want)
	}
	if !tot.Total.Equal(want.Mul(d("1.16"))) {
		t.Fatalf("total %s, want %s", tot.Total, want.Mul(d("1.16")))
	}
	if !tot.Total.Equal(tot.Subtotal.Add(tot.Tax)) {
		t.Fatalf("total must equal subtotal + tax")
	}
}

func TestEmptyCart(t *testing.T) {
	c := New(d("0.16"))
	tot := c.Totals()
	if !c.IsEmpty() || !tot.Subtotal.IsZero() || !tot.Tax.IsZero() || !tot.Total.IsZero() {
		t.Fatalf("empty cart must have zero totals, got %+v", tot)
	}
}

func TestAddItemStockCeiling(t *testing.T) {
	c := New(d("0.16"))
	p := paracetamol(2)
	if err := c.AddItem(p, 0); err != nil {
		t.Fatalf("add default qty: %v", err)
	}
	if err := c.AddItem(p, 1); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := c.AddItem(p, 1); !domain.IsValidation(err) {
		t.Fatalf("expected stock warning, got %v", err)
	}
	lines := c.Lines()
	if len(lines) != 1 || lines[0].Quantity != 2 {
		t.Fatalf("cart changed by rejected add: %+v", lines)
	}
	if err := c.AddItem(paracetamol(0), 1); !domain.IsValidation(err) {
		t.Fatalf("out of stock product must be refused, got %v", err)
	}
}

func TestAddItemNegativeQuantity(t *testing.T) {
	c := New(d("0.16"))
	err := c.AddItem(paracetamol(10), -5)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "quantity" {
		t.Fatalf("expected quantity validation error, got %v", err)
	}
	if !c.IsEmpty() {
		t.Fatalf("negative add changed the cart: %+v", c.Lines())
	}
}

func TestUnitPriceCapturedAtAdd(t *testing.T) {
	c := New(d("0.16"))
	p := paracetamol(10)
	if err := c.AddItem(p, 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	p.SellingPrice = d("95")
	p.Name = "Renamed"
	if err := c.AddItem(p, 1); err != nil {
		t.Fatalf("add again: %v", err)
	}
	l := c.Lines()[0]
	if !l.UnitPrice.Equal(d("80")) || l.ProductName != "Paracetamol 500mg" || !l.LineTotal.Equal(d("160")) {
		t.Fatalf("captured values changed: %+v", l)
	}
}

func TestSetQuantityAndRemove(t *testing.T) {
	c := New(d("0.16"))
	p := paracetamol(5)
	other := domain.Product{ID: 2, Name: "Ibuprofen", SellingPrice: d("30"), StockLevel: 5}
	_ = c.AddItem(p, 1)
	_ = c.AddItem(other, 1)

	if err := c.SetQuantity(p, 6); !domain.IsValidation(err) {
		t.Fatalf("expected stock warning, got %v", err)
	}
	if err := c.SetQuantity(p, 4); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if got := c.Lines()[0]; got.Quantity != 4 || !got.LineTotal.Equal(d("320")) {
		t.Fatalf("unexpected line %+v", got)
	}
	if err := c.SetQuantity(p, 0); err != nil {
		t.Fatalf("set zero: %v", err)
	}
	if lines := c.Lines(); len(lines) != 1 || lines[0].ProductID != 2 {
		t.Fatalf("zero quantity must remove line: %+v", lines)
	}
	if err := c.SetQuantity(p, 1); !domain.IsValidation(err) {
		t.Fatalf("setting quantity of absent product should fail, got %v", err)
	}
	_ = c.RemoveItem(2)
	_ = c.RemoveItem(2)
	if !c.IsEmpty() {
		t.Fatalf("cart should be empty")
	}
}

func TestCheckoutGuard(t *testing.T) {
	c := New(d("0.16"))
	_ = c.AddItem(paracetamol(5), 1)
	if err := c.TryBeginCheckout(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := c.TryBeginCheckout(); !errors.Is(err, domain.ErrCheckoutInProgress) {
		t.Fatalf("expected in progress, got %v", err)
	}
	if err := c.AddItem(paracetamol(5), 1); !errors.Is(err, domain.ErrCheckoutInProgress) {
		t.Fatalf("mutation during checkout must fail, got %v", err)
	}
	if err := c.Abandon(); !errors.Is(err, domain.ErrCheckoutInProgress) {
		t.Fatalf("abandon during checkout must fail, got %v", err)
	}
	c.EndCheckout()
	if err := c.Abandon(); err != nil || !c.IsEmpty() {
		t.Fatalf("abandon: %v", err)
	}
	if err := c.TryBeginCheckout(); err != nil {
		t.Fatalf("begin after end: %v", err)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(d("0.16"))
	a := r.For(1)
	if r.For(1) != a {
		t.Fatalf("same staff must get the same cart")
	}
	if r.For(2) == a {
		t.Fatalf("staff must not share carts")
	}
	_ = a.AddItem(paracetamol(5), 1)
	r.Drop(1)
	if !r.For(1).IsEmpty() {
		t.Fatalf("dropped cart should be replaced by an empty one")
	}
}
