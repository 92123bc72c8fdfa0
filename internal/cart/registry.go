package cart

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Registry keeps one cart per staff member for the lifetime of the process.
type Registry struct {
	taxRate decimal.Decimal

	mu    sync.Mutex
	carts map[int64]*Cart
}

func NewRegistry(taxRate decimal.Decimal) *Registry {
	return &Registry{taxRate: taxRate, carts: make(map[int64]*Cart)}
}

// For returns the cart owned by staffID, creating it on first use.
func (r *Registry) For(staffID int64) *Cart {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[staffID]
	if !ok {
		c = New(r.taxRate)
		r.carts[staffID] = c
	}
	return c
}

// Drop abandons a staff member's cart.
func (r *Registry) Drop(staffID int64) {
	r.mu.Lock()
	delete(r.carts, staffID)
	r.mu.Unlock()
}
