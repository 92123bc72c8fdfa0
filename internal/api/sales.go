package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"pharmapos/m/domain"
	"pharmapos/m/internal/auth"
	"pharmapos/m/internal/cart"
	"pharmapos/m/internal/checkout"
	"pharmapos/m/internal/report"
	"pharmapos/m/internal/store"
)

type cartResponse struct {
	Lines   []cart.Line     `json:"lines"`
	Totals  cart.Totals     `json:"totals"`
	TaxRate decimal.Decimal `json:"tax_rate"`
}

type cartItemRequest struct {
	ProductID int64  `json:"product_id"`
	Barcode   string `json:"barcode"`
	Quantity  int64  `json:"quantity"`
}

type checkoutRequest struct {
	PaymentMethod    domain.PaymentMethod `json:"payment_method"`
	PaymentReference string               `json:"payment_reference"`
	CashTendered     *decimal.Decimal     `json:"cash_tendered"`
}

func (h *Handler) respondCart(w http.ResponseWriter, status int, c *cart.Cart) {
	lines, totals := c.Snapshot()
	respondJSON(w, status, cartResponse{Lines: lines, Totals: totals, TaxRate: c.TaxRate()})
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, auth.ActionCheckout) {
		return
	}
	h.respondCart(w, http.StatusOK, h.carts.For(principal(r).ID))
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, auth.ActionCheckout) {
		return
	}
	c := h.carts.For(principal(r).ID)
	if err := c.Abandon(); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondCart(w, http.StatusOK, c)
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, auth.ActionCheckout) {
		return
	}
	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	catalog := store.NewCatalog(h.db)
	var (
		p   *domain.Product
		err error
	)
	switch {
	case req.ProductID > 0:
		p, err = catalog.Get(r.Context(), req.ProductID)
	case req.Barcode != "":
		p, err = catalog.GetByBarcode(r.Context(), req.Barcode)
	default:
		err = domain.Invalid("product_id", "product_id or barcode is required")
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c := h.carts.For(principal(r).ID)
	if err := c.AddItem(*p, req.Quantity); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondCart(w, http.StatusOK, c)
}

func (h *Handler) setCartItem(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, auth.ActionCheckout) {
		return
	}
	id, err := pathID(r, "productID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req struct {
		Quantity int64 `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := store.NewCatalog(h.db).Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c := h.carts.For(principal(r).ID)
	if err := c.SetQuantity(*p, req.Quantity); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondCart(w, http.StatusOK, c)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, auth.ActionCheckout) {
		return
	}
	id, err := pathID(r, "productID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c := h.carts.For(principal(r).ID)
	if err := c.RemoveItem(id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondCart(w, http.StatusOK, c)
}

func (h *Handler) submitCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p := principal(r)
	receipt, err := h.checkout.Checkout(r.Context(), checkout.Request{
		Cart:             h.carts.For(p.ID),
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,
		CashTendered:     req.CashTendered,
		IdempotencyKey:   r.Header.Get("Idempotency-Key"),
	}, p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusCreated
	if receipt.Replayed {
		status = http.StatusOK
	}
	respondJSON(w, status, receipt)
}

func (h *Handler) getReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.checkout.Receipt(r.Context(), principal(r), chi.URLParam(r, "receipt"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, receipt)
}

func (h *Handler) reportRange(r *http.Request) (report.Range, error) {
	q := r.URL.Query()
	return report.ParseRange(q.Get("start_date"), q.Get("end_date"), h.loc)
}

func (h *Handler) dailySales(w http.ResponseWriter, r *http.Request) {
	rng, err := h.reportRange(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows, err := h.reports.Daily(r.Context(), principal(r), rng)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handler) productSales(w http.ResponseWriter, r *http.Request) {
	rng, err := h.reportRange(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows, err := h.reports.ByProduct(r.Context(), principal(r), rng)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handler) staffSales(w http.ResponseWriter, r *http.Request) {
	rng, err := h.reportRange(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows, err := h.reports.ByStaff(r.Context(), principal(r), rng)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}
