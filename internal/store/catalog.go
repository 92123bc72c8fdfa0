package store

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"pharmapos/m/domain"
)

const productColumns = `id, name, category, supplier, batch_number, expiry_date, cost_price, selling_price,
	stock_level, min_stock_level, barcode, requires_prescription, created_at, updated_at`

// ProductFilter narrows Catalog.List.
type ProductFilter struct {
	InStockOnly bool
	Query       string
}

// Catalog is the product table.
type Catalog struct {
	q sqlx.ExtContext
}

func NewCatalog(q sqlx.ExtContext) *Catalog {
	return &Catalog{q: q}
}

// List returns products ordered by name.
func (c *Catalog) List(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	var (
		args    []any
		clauses []string
	)
	if f.InStockOnly {
		clauses = append(clauses, "stock_level > 0")
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		args = append(args, like, like)
		clauses = append(clauses, "(LOWER(name) LIKE ? OR LOWER(COALESCE(barcode, '')) LIKE ?)")
	}
	query := `SELECT ` + productColumns + ` FROM products`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY name, id"

	products := []domain.Product{}
	if err := sqlx.SelectContext(ctx, c.q, &products, c.q.Rebind(query), args...); err != nil {
		return nil, persistence("list products", err)
	}
	return products, nil
}

func (c *Catalog) Get(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := sqlx.GetContext(ctx, c.q, &p, c.q.Rebind(`SELECT `+productColumns+` FROM products WHERE id = ?`), id)
	if err != nil {
		return nil, notFound(err, "product %d", id)
	}
	return &p, nil
}

func (c *Catalog) GetByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	var p domain.Product
	err := sqlx.GetContext(ctx, c.q, &p, c.q.Rebind(`SELECT `+productColumns+` FROM products WHERE barcode = ?`), barcode)
	if err != nil {
		return nil, notFound(err, "product with barcode %s", barcode)
	}
	return &p, nil
}

// Create inserts p and fills in its ID and timestamps.
func (c *Catalog) Create(ctx context.Context, p *domain.Product) error {
	normalizeProduct(p)
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	err := c.q.QueryRowxContext(ctx, c.q.Rebind(`INSERT INTO products
		(name, category, supplier, batch_number, expiry_date, cost_price, selling_price,
		 stock_level, min_stock_level, barcode, requires_prescription, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		p.Name, p.Category, p.Supplier, p.BatchNumber, p.ExpiryDate, p.CostPrice, p.SellingPrice,
		p.StockLevel, p.MinStockLevel, p.Barcode, p.RequiresPrescription, p.CreatedAt, p.UpdatedAt).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrap(domain.ErrConflict, "barcode already in use")
		}
		return persistence("insert product", err)
	}
	return nil
}

// Update overwrites every editable column of p, including the stock level.
func (c *Catalog) Update(ctx context.Context, p *domain.Product) error {
	normalizeProduct(p)
	p.UpdatedAt = time.Now().UTC()
	res, err := c.q.ExecContext(ctx, c.q.Rebind(`UPDATE products SET
		name = ?, category = ?, supplier = ?, batch_number = ?, expiry_date = ?, cost_price = ?,
		selling_price = ?, stock_level = ?, min_stock_level = ?, barcode = ?, requires_prescription = ?,
		updated_at = ?
		WHERE id = ?`),
		p.Name, p.Category, p.Supplier, p.BatchNumber, p.ExpiryDate, p.CostPrice, p.SellingPrice,
		p.StockLevel, p.MinStockLevel, p.Barcode, p.RequiresPrescription, p.UpdatedAt, p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrap(domain.ErrConflict, "barcode already in use")
		}
		return persistence("update product", err)
	}
	return expectOne(res, "product %d", p.ID)
}

// Delete removes a product that has never been sold.
func (c *Catalog) Delete(ctx context.Context, id int64) error {
	res, err := c.q.ExecContext(ctx, c.q.Rebind(`DELETE FROM products WHERE id = ?`), id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return errors.Wrapf(domain.ErrConflict, "product %d has sales history", id)
		}
		return persistence("delete product", err)
	}
	return expectOne(res, "product %d", id)
}

// DecrementStock removes qty units from a product in one conditional statement.
// The row is only touched when at least qty units are on hand, so concurrent
// callers can never drive the level below zero.
func (c *Catalog) DecrementStock(ctx context.Context, id, qty int64) error {
	if qty <= 0 {
		return domain.Invalid("quantity", "quantity must be positive")
	}
	res, err := c.q.ExecContext(ctx, c.q.Rebind(`UPDATE products
		SET stock_level = stock_level - ?, updated_at = ?
		WHERE id = ? AND stock_level >= ?`), qty, time.Now().UTC(), id, qty)
	if err != nil {
		return persistence("decrement stock", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistence("decrement stock", err)
	}
	if n == 1 {
		return nil
	}

	p, err := c.Get(ctx, id)
	if err != nil {
		return err
	}
	return &domain.InsufficientStockError{ProductID: id, Name: p.Name, Requested: qty, Available: p.StockLevel}
}

// LowStock lists products at or below their reorder threshold.
func (c *Catalog) LowStock(ctx context.Context) ([]domain.Product, error) {
	products := []domain.Product{}
	err := sqlx.SelectContext(ctx, c.q, &products,
		`SELECT `+productColumns+` FROM products WHERE stock_level <= min_stock_level ORDER BY stock_level, name`)
	if err != nil {
		return nil, persistence("list low stock", err)
	}
	return products, nil
}

// Expiring lists in-stock products whose expiry date falls on or before cutoff.
func (c *Catalog) Expiring(ctx context.Context, cutoff time.Time) ([]domain.Product, error) {
	products := []domain.Product{}
	err := sqlx.SelectContext(ctx, c.q, &products, c.q.Rebind(`SELECT `+productColumns+` FROM products
		WHERE stock_level > 0 AND expiry_date IS NOT NULL AND expiry_date <= ?
		ORDER BY expiry_date, name`), dateOnly(cutoff))
	if err != nil {
		return nil, persistence("list expiring", err)
	}
	return products, nil
}

func normalizeProduct(p *domain.Product) {
	p.Name = strings.TrimSpace(p.Name)
	p.Category = strings.TrimSpace(p.Category)
	p.Supplier = strings.TrimSpace(p.Supplier)
	p.BatchNumber = strings.TrimSpace(p.BatchNumber)
	if p.Barcode != nil {
		code := strings.TrimSpace(*p.Barcode)
		if code == "" {
			p.Barcode = nil
		} else {
			p.Barcode = &code
		}
	}
	if p.ExpiryDate != nil {
		d := dateOnly(*p.ExpiryDate)
		p.ExpiryDate = &d
	}
}

// dateOnly keeps the calendar date of t as midnight UTC.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func expectOne(res interface{ RowsAffected() (int64, error) }, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return persistence("rows affected", err)
	}
	if n == 0 {
		return errors.Wrapf(domain.ErrNotFound, format, args...)
	}
	return nil
}
