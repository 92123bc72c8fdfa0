// Package report derives read-only sales summaries grouped by day, product or
// staff member.
package report

import (
	"context"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"pharmapos/m/domain"
	"pharmapos/m/internal/auth"
	"pharmapos/m/internal/store"
)

const dateLayout = "2006-01-02"

type DailyRow struct {
	Date         string          `json:"date"`
	Transactions int             `json:"transactions"`
	UnitsSold    int64           `json:"units_sold"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Tax          decimal.Decimal `json:"tax"`
	Revenue      decimal.Decimal `json:"revenue"`
}

type ProductRow struct {
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Transactions int             `json:"transactions"`
	UnitsSold    int64           `json:"units_sold"`
	Revenue      decimal.Decimal `json:"revenue"`
}

type StaffRow struct {
	StaffID      int64           `json:"staff_id"`
	StaffName    string          `json:"staff_name"`
	Transactions int             `json:"transactions"`
	UnitsSold    int64           `json:"units_sold"`
	Revenue      decimal.Decimal `json:"revenue"`
	Average      decimal.Decimal `json:"average_transaction"`
}

// Aggregator groups sales by calendar date in loc.
type Aggregator struct {
	q   sqlx.ExtContext
	loc *time.Location
}

func New(q sqlx.ExtContext, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{q: q, loc: loc}
}

// Range is an inclusive span of calendar dates.
type Range struct {
	From time.Time
	To   time.Time
}

// ParseRange reads two YYYY-MM-DD dates in loc. Empty values default to today.
func ParseRange(from, to string, loc *time.Location) (Range, error) {
	today := time.Now().In(loc).Format(dateLayout)
	if from == "" {
		from = today
	}
	if to == "" {
		to = today
	}
	start, err := time.ParseInLocation(dateLayout, from, loc)
	if err != nil {
		return Range{}, domain.Invalid("start_date", "start_date must be YYYY-MM-DD")
	}
	end, err := time.ParseInLocation(dateLayout, to, loc)
	if err != nil {
		return Range{}, domain.Invalid("end_date", "end_date must be YYYY-MM-DD")
	}
	return Range{From: start, To: end}, nil
}

func (a *Aggregator) load(ctx context.Context, p domain.Principal, r Range) ([]domain.SaleRecord, error) {
	if err := auth.Authorize(p, auth.ActionViewReports); err != nil {
		return nil, err
	}
	fy, fm, fd := r.From.In(a.loc).Date()
	ty, tm, td := r.To.In(a.loc).Date()
	start := time.Date(fy, fm, fd, 0, 0, 0, 0, a.loc)
	end := time.Date(ty, tm, td, 0, 0, 0, 0, a.loc).AddDate(0, 0, 1)
	if !end.After(start) {
		return nil, domain.Invalid("end_date", "end_date must not be before start_date")
	}
	return store.NewSales(a.q).Range(ctx, start, end)
}

// Daily returns one row per calendar date that has sales, oldest first.
func (a *Aggregator) Daily(ctx context.Context, p domain.Principal, r Range) ([]DailyRow, error) {
	sales, err := a.load(ctx, p, r)
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]*DailyRow)
	for _, s := range sales {
		day := s.CreatedAt.In(a.loc).Format(dateLayout)
		row, ok := byDate[day]
		if !ok {
			row = &DailyRow{Date: day}
			byDate[day] = row
		}
		row.Transactions++
		row.UnitsSold += units(s.Items)
		row.Subtotal = row.Subtotal.Add(s.Subtotal)
		row.Tax = row.Tax.Add(s.Tax)
		row.Revenue = row.Revenue.Add(s.Total)
	}
	rows := make([]DailyRow, 0, len(byDate))
	for _, row := range byDate {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })
	return rows, nil
}

// ByProduct groups line items by product, highest revenue first. Revenue is
// the sum of line totals, before tax.
func (a *Aggregator) ByProduct(ctx context.Context, p domain.Principal, r Range) ([]ProductRow, error) {
	sales, err := a.load(ctx, p, r)
	if err != nil {
		return nil, err
	}
	byProduct := make(map[int64]*ProductRow)
	for _, s := range sales {
		seen := make(map[int64]bool)
		for _, it := range s.Items {
			row, ok := byProduct[it.ProductID]
			if !ok {
				row = &ProductRow{ProductID: it.ProductID, ProductName: it.ProductName}
				byProduct[it.ProductID] = row
			}
			if !seen[it.ProductID] {
				row.Transactions++
				seen[it.ProductID] = true
			}
			row.UnitsSold += it.Quantity
			row.Revenue = row.Revenue.Add(it.LineTotal)
		}
	}
	rows := make([]ProductRow, 0, len(byProduct))
	for _, row := range byProduct {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].Revenue.Cmp(rows[j].Revenue); c != 0 {
			return c > 0
		}
		return rows[i].ProductName < rows[j].ProductName
	})
	return rows, nil
}

// ByStaff groups sales by the staff member who recorded them.
func (a *Aggregator) ByStaff(ctx context.Context, p domain.Principal, r Range) ([]StaffRow, error) {
	sales, err := a.load(ctx, p, r)
	if err != nil {
		return nil, err
	}
	byStaff := make(map[int64]*StaffRow)
	for _, s := range sales {
		row, ok := byStaff[s.StaffID]
		if !ok {
			row = &StaffRow{StaffID: s.StaffID, StaffName: s.StaffName}
			byStaff[s.StaffID] = row
		}
		row.Transactions++
		row.UnitsSold += units(s.Items)
		row.Revenue = row.Revenue.Add(s.Total)
	}
	rows := make([]StaffRow, 0, len(byStaff))
	for _, row := range byStaff {
		row.Average = average(row.Revenue, row.Transactions)
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].Revenue.Cmp(rows[j].Revenue); c != 0 {
			return c > 0
		}
		return rows[i].StaffName < rows[j].StaffName
	})
	return rows, nil
}

// average is revenue per transaction rounded to cents, zero when there are none.
func average(revenue decimal.Decimal, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return revenue.DivRound(decimal.NewFromInt(int64(n)), 2)
}

func units(items []domain.SaleItem) int64 {
	var n int64
	for _, it := range items {
		n += it.Quantity
	}
	return n
}
