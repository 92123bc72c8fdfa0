package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"pharmapos/m/domain"
	"pharmapos/m/internal/auth"
	"pharmapos/m/internal/store"
)

type productRequest struct {
	Name                 string          `json:"name"`
	Category             string          `json:"category"`
	Supplier             string          `json:"supplier"`
	BatchNumber          string          `json:"batch_number"`
	ExpiryDate           string          `json:"expiry_date"`
	CostPrice            decimal.Decimal `json:"cost_price"`
	SellingPrice         decimal.Decimal `json:"selling_price"`
	StockLevel           int64           `json:"stock_level"`
	MinStockLevel        int64           `json:"min_stock_level"`
	Barcode              string          `json:"barcode"`
	RequiresPrescription bool            `json:"requires_prescription"`
}

func (req productRequest) product(id int64) (domain.Product, error) {
	p := domain.Product{
		ID:                   id,
		Name:                 strings.TrimSpace(req.Name),
		Category:             req.Category,
		Supplier:             req.Supplier,
		BatchNumber:          req.BatchNumber,
		CostPrice:            req.CostPrice,
		SellingPrice:         req.SellingPrice,
		StockLevel:           req.StockLevel,
		MinStockLevel:        req.MinStockLevel,
		Barcode:              nullIfEmpty(req.Barcode),
		RequiresPrescription: req.RequiresPrescription,
	}
	if raw := strings.TrimSpace(req.ExpiryDate); raw != "" {
		expiry, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return p, domain.Invalid("expiry_date", "expiry_date must be YYYY-MM-DD")
		}
		p.ExpiryDate = &expiry
	}
	return p, p.Validate()
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, auth.ActionViewCatalog) {
		return
	}
	q := r.URL.Query()
	filter := store.ProductFilter{
		InStockOnly: cast.ToBool(q.Get("in_stock")),
		Query:       q.Get("query"),
	}
	products, err := store.NewCatalog(h.db).List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, auth.ActionViewCatalog) {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := store.NewCatalog(h.db).Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, auth.ActionManageCatalog) {
		return
	}
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := req.product(0)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := store.NewCatalog(h.db).Create(r.Context(), &p); err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, auth.ActionManageCatalog) {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := req.product(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	catalog := store.NewCatalog(h.db)
	if err := catalog.Update(r.Context(), &p); err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := catalog.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, auth.ActionManageCatalog) {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := store.NewCatalog(h.db).Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, auth.ActionViewCatalog) {
		return
	}
	products, err := store.NewCatalog(h.db).LowStock(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handler) expiring(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, auth.ActionViewCatalog) {
		return
	}
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := cast.ToIntE(raw)
		if err != nil || n <= 0 {
			h.fail(w, r, domain.Invalid("days", "days must be a positive integer"))
			return
		}
		days = n
	}
	cutoff := time.Now().In(h.loc).AddDate(0, 0, days)
	products, err := store.NewCatalog(h.db).Expiring(r.Context(), cutoff)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}
