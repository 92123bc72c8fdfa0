package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"pharmapos/m/domain"
	"pharmapos/m/internal/auth"
	"pharmapos/m/internal/cart"
	"pharmapos/m/internal/checkout"
	"pharmapos/m/internal/report"
)

type ctxKey string

const (
	ctxPrincipal ctxKey = "principal"
	ctxToken     ctxKey = "token"
)

// Services are the collaborators the HTTP surface drives.
type Services struct {
	Auth     *auth.Service
	Carts    *cart.Registry
	Checkout *checkout.Workflow
	Reports  *report.Aggregator
	Metrics  http.Handler
	Location *time.Location
	Logger   *zap.Logger
}

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	db       *sqlx.DB
	auth     *auth.Service
	carts    *cart.Registry
	checkout *checkout.Workflow
	reports  *report.Aggregator
	metrics  http.Handler
	loc      *time.Location
	log      *zap.Logger
}

// New constructs a Handler.
func New(db *sqlx.DB, s Services) *Handler {
	if s.Location == nil {
		s.Location = time.Local
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	return &Handler{
		db:       db,
		auth:     s.Auth,
		carts:    s.Carts,
		checkout: s.Checkout,
		reports:  s.Reports,
		metrics:  s.Metrics,
		loc:      s.Location,
		log:      s.Logger,
	}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key"},
		AllowCredentials: true,
	}))
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.login)
		r.Group(func(protected chi.Router) {
			protected.Use(h.authMiddleware)
			protected.Post("/logout", h.logout)
			protected.Get("/session", h.session)
		})
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Route("/products", func(r chi.Router) {
			r.Get("/", h.listProducts)
			r.Post("/", h.createProduct)
			r.Get("/low-stock", h.lowStock)
			r.Get("/expiring", h.expiring)
			r.Get("/{id}", h.getProduct)
			r.Put("/{id}", h.updateProduct)
			r.Delete("/{id}", h.deleteProduct)
		})

		pr.Route("/cart", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Delete("/", h.clearCart)
			r.Post("/items", h.addCartItem)
			r.Put("/items/{productID}", h.setCartItem)
			r.Delete("/items/{productID}", h.removeCartItem)
		})

		pr.Post("/checkout", h.submitCheckout)
		pr.Get("/sales/{receipt}", h.getReceipt)

		pr.Route("/reports", func(r chi.Router) {
			r.Get("/sales/daily", h.dailySales)
			r.Get("/sales/products", h.productSales)
			r.Get("/sales/staff", h.staffSales)
		})

		pr.Route("/users", func(r chi.Router) {
			r.Get("/", h.listUsers)
			r.Post("/", h.createUser)
			r.Put("/{id}", h.updateUser)
			r.Delete("/{id}", h.deleteUser)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		token := strings.TrimSpace(header[len("Bearer "):])
		p, err := h.auth.Session(r.Context(), token)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), ctxPrincipal, p)
		ctx = context.WithValue(ctx, ctxToken, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principal(r *http.Request) domain.Principal {
	p, _ := r.Context().Value(ctxPrincipal).(domain.Principal)
	return p
}

// allow runs the role policy for the request's principal and writes the denial.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, action auth.Action) bool {
	if err := auth.Authorize(principal(r), action); err != nil {
		h.fail(w, r, err)
		return false
	}
	return true
}

// fail maps an error to its HTTP status and writes it.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *domain.ValidationError
		short      *domain.InsufficientStockError
	)
	switch {
	case errors.As(err, &validation):
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": validation.Error(), "field": validation.Field})
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		respondError(w, http.StatusUnauthorized, err.Error())
	case domain.IsAuthorization(err):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &short):
		respondJSON(w, http.StatusConflict, map[string]any{
			"error":        short.Error(),
			"product_id":   short.ProductID,
			"product_name": short.Name,
			"requested":    short.Requested,
			"available":    short.Available,
		})
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrCheckoutInProgress):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		h.log.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// Helpers

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Invalid(name, "invalid "+name)
	}
	return id, nil
}

func nullIfEmpty(val string) *string {
	trimmed := strings.TrimSpace(val)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return domain.Invalid("", "invalid request body: "+err.Error())
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
