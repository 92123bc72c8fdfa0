package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"pharmapos/m/domain"
)

// ErrDuplicateSale is returned when a sale insert hits the receipt number or
// idempotency key unique constraint.
var ErrDuplicateSale = errors.New("sale already recorded")

const saleRecordColumns = `s.id, s.receipt_number, s.idempotency_key, s.subtotal, s.tax, s.total,
	s.payment_method, s.payment_reference, s.cash_tendered, s.staff_id, s.created_at,
	COALESCE(u.display_name, '') AS staff_name`

// Sales is the sales + sale_items pair of tables.
type Sales struct {
	q sqlx.ExtContext
}

func NewSales(q sqlx.ExtContext) *Sales {
	return &Sales{q: q}
}

// Insert writes s and fills in its ID. CreatedAt is set when zero.
func (r *Sales) Insert(ctx context.Context, s *domain.Sale) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	err := r.q.QueryRowxContext(ctx, r.q.Rebind(`INSERT INTO sales
		(receipt_number, idempotency_key, subtotal, tax, total, payment_method, payment_reference,
		 cash_tendered, staff_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		s.ReceiptNumber, s.IdempotencyKey, s.Subtotal, s.Tax, s.Total, s.PaymentMethod,
		s.PaymentReference, s.CashTendered, s.StaffID, s.CreatedAt).Scan(&s.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrapf(ErrDuplicateSale, "receipt %s", s.ReceiptNumber)
		}
		return persistence("insert sale", err)
	}
	return nil
}

// InsertItems bulk-inserts the line items of one sale in a single statement.
func (r *Sales) InsertItems(ctx context.Context, items []domain.SaleItem) error {
	if len(items) == 0 {
		return domain.Invalid("items", "a sale needs at least one line item")
	}
	_, err := sqlx.NamedExecContext(ctx, r.q, `INSERT INTO sale_items
		(sale_id, product_id, product_name, quantity, unit_price, line_total)
		VALUES (:sale_id, :product_id, :product_name, :quantity, :unit_price, :line_total)`, items)
	if err != nil {
		return persistence("insert sale items", err)
	}
	return nil
}

func (r *Sales) ByReceipt(ctx context.Context, receipt string) (*domain.SaleRecord, error) {
	return r.one(ctx, "s.receipt_number = ?", receipt)
}

// ByIdempotencyKey returns the sale staffID recorded under key. Keys are scoped
// to the staff member who submitted them.
func (r *Sales) ByIdempotencyKey(ctx context.Context, staffID int64, key string) (*domain.SaleRecord, error) {
	return r.one(ctx, "s.staff_id = ? AND s.idempotency_key = ?", staffID, key)
}

func (r *Sales) one(ctx context.Context, where string, args ...any) (*domain.SaleRecord, error) {
	var rec domain.SaleRecord
	query := `SELECT ` + saleRecordColumns + ` FROM sales s LEFT JOIN users u ON u.id = s.staff_id WHERE ` + where
	if err := sqlx.GetContext(ctx, r.q, &rec, r.q.Rebind(query), args...); err != nil {
		return nil, notFound(err, "sale %v", args[len(args)-1])
	}
	records := []domain.SaleRecord{rec}
	if err := r.attachItems(ctx, records); err != nil {
		return nil, err
	}
	return &records[0], nil
}

// Range returns sales created in [from, to) with their items and staff name,
// oldest first.
func (r *Sales) Range(ctx context.Context, from, to time.Time) ([]domain.SaleRecord, error) {
	records := []domain.SaleRecord{}
	query := `SELECT ` + saleRecordColumns + ` FROM sales s LEFT JOIN users u ON u.id = s.staff_id
		WHERE s.created_at >= ? AND s.created_at < ?
		ORDER BY s.created_at, s.id`
	if err := sqlx.SelectContext(ctx, r.q, &records, r.q.Rebind(query), from.UTC(), to.UTC()); err != nil {
		return nil, persistence("list sales", err)
	}
	if err := r.attachItems(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *Sales) attachItems(ctx context.Context, records []domain.SaleRecord) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]int64, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	query, args, err := sqlx.In(`SELECT id, sale_id, product_id, product_name, quantity, unit_price, line_total
		FROM sale_items WHERE sale_id IN (?) ORDER BY id`, ids)
	if err != nil {
		return persistence("prepare sale items query", err)
	}
	var rows []domain.SaleItem
	if err := sqlx.SelectContext(ctx, r.q, &rows, r.q.Rebind(query), args...); err != nil {
		return persistence("load sale items", err)
	}
	itemsBySale := make(map[int64][]domain.SaleItem)
	for _, row := range rows {
		itemsBySale[row.SaleID] = append(itemsBySale[row.SaleID], row)
	}
	for i := range records {
		items := itemsBySale[records[i].ID]
		if items == nil {
			items = []domain.SaleItem{}
		}
		records[i].Items = items
	}
	return nil
}
