package report

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"pharmapos/m/domain"
	"pharmapos/m/internal/database/dbtest"
	"pharmapos/m/internal/store"
)

var nairobi = time.FixedZone("EAT", 3*60*60)

type saleFixture struct {
	at    time.Time
	staff int64
	items []domain.SaleItem
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func setup(t *testing.T) (*sqlx.DB, *Aggregator, []domain.User, []domain.Product) {
	t.Helper()
	ctx := context.Background()
	db := dbtest.New(t)
	users := store.NewUsers(db)
	var staff []domain.User
	for _, name := range []string{"Amina", "Brian"} {
		u := domain.User{Email: name + "@example.com", DisplayName: name, PasswordHash: "x", Role: domain.RoleCashier, Active: true}
		if err := users.Create(ctx, &u); err != nil {
			t.Fatalf("create user: %v", err)
		}
		staff = append(staff, u)
	}
	catalog := store.NewCatalog(db)
	var products []domain.Product
	for _, name := range []string{"Paracetamol 500mg", "Ibuprofen 200mg"} {
		p := domain.Product{Name: name, StockLevel: 100}
		if err := catalog.Create(ctx, &p); err != nil {
			t.Fatalf("create product: %v", err)
		}
		products = append(products, p)
	}
	return db, New(db, nairobi), staff, products
}

func record(t *testing.T, db *sqlx.DB, n int, s saleFixture) domain.Sale {
	t.Helper()
	sales := store.NewSales(db)
	subtotal := decimal.Zero
	for _, it := range s.items {
		subtotal = subtotal.Add(it.LineTotal)
	}
	tax := subtotal.Mul(d("0.16"))
	sale := domain.Sale{
		ReceiptNumber: "RX-T" + decimal.NewFromInt(int64(n)).String(),
		Subtotal:      subtotal,
		Tax:           tax,
		Total:         subtotal.Add(tax),
		PaymentMethod: domain.PaymentCard,
		StaffID:       s.staff,
		CreatedAt:     s.at,
	}
	if err := sales.Insert(context.Background(), &sale); err != nil {
		t.Fatalf("insert sale: %v", err)
	}
	for i := range s.items {
		s.items[i].SaleID = sale.ID
	}
	if err := sales.InsertItems(context.Background(), s.items); err != nil {
		t.Fatalf("insert items: %v", err)
	}
	return sale
}

func item(p domain.Product, qty int64, price string) domain.SaleItem {
	return domain.SaleItem{ProductID: p.ID, ProductName: p.Name, Quantity: qty, UnitPrice: d(price), LineTotal: d(price).Mul(decimal.NewFromInt(qty))}
}

func TestReports(t *testing.T) {
	ctx := context.Background()
	db, agg, staff, products := setup(t)
	para, ibu := products[0], products[1]

	fixtures := []saleFixture{
		// 2026-10-14 01:30 local, counted on the 14th even though it is the 13th in UTC.
		{at: time.Date(2026, 10, 13, 22, 30, 0, 0, time.UTC), staff: staff[0].ID, items: []domain.SaleItem{item(para, 2, "80")}},
		{at: time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC), staff: staff[0].ID, items: []domain.SaleItem{item(para, 1, "80"), item(ibu, 3, "30")}},
		// 2026-10-15 23:59 local.
		{at: time.Date(2026, 10, 15, 20, 59, 0, 0, time.UTC), staff: staff[1].ID, items: []domain.SaleItem{item(ibu, 1, "30")}},
		// 2026-10-16 00:30 local, outside the range.
		{at: time.Date(2026, 10, 15, 21, 30, 0, 0, time.UTC), staff: staff[1].ID, items: []domain.SaleItem{item(para, 5, "80")}},
	}
	totalInRange := decimal.Zero
	for i, s := range fixtures {
		sale := record(t, db, i, s)
		if i < 3 {
			totalInRange = totalInRange.Add(sale.Total)
		}
	}

	admin := domain.Principal{ID: 99, Role: domain.RoleSuperAdmin, Active: true}
	r, err := ParseRange("2026-10-14", "2026-10-15", nairobi)
	if err != nil {
		t.Fatalf("parse range: %v", err)
	}

	daily, err := agg.Daily(ctx, admin, r)
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	if len(daily) != 2 || daily[0].Date != "2026-10-14" || daily[1].Date != "2026-10-15" {
		t.Fatalf("unexpected daily rows %+v", daily)
	}
	if daily[0].Transactions != 2 || daily[0].UnitsSold != 6 || !daily[0].Subtotal.Equal(d("330")) {
		t.Fatalf("unexpected first day %+v", daily[0])
	}
	sum := decimal.Zero
	for _, row := range daily {
		sum = sum.Add(row.Revenue)
		if !row.Revenue.Equal(row.Subtotal.Add(row.Tax)) {
			t.Fatalf("revenue must equal subtotal + tax: %+v", row)
		}
	}
	if !sum.Equal(totalInRange) {
		t.Fatalf("daily revenue %s, sales total %s", sum, totalInRange)
	}

	byProduct, err := agg.ByProduct(ctx, admin, r)
	if err != nil {
		t.Fatalf("by product: %v", err)
	}
	if len(byProduct) != 2 || byProduct[0].ProductName != "Paracetamol 500mg" {
		t.Fatalf("unexpected product rows %+v", byProduct)
	}
	if byProduct[0].UnitsSold != 3 || !byProduct[0].Revenue.Equal(d("240")) || byProduct[0].Transactions != 2 {
		t.Fatalf("unexpected paracetamol row %+v", byProduct[0])
	}
	if byProduct[1].UnitsSold != 4 || !byProduct[1].Revenue.Equal(d("120")) {
		t.Fatalf("unexpected ibuprofen row %+v", byProduct[1])
	}

	byStaff, err := agg.ByStaff(ctx, admin, r)
	if err != nil {
		t.Fatalf("by staff: %v", err)
	}
	if len(byStaff) != 2 || byStaff[0].StaffName != "Amina" || byStaff[0].Transactions != 2 {
		t.Fatalf("unexpected staff rows %+v", byStaff)
	}
	// (185.60 + 197.20) / 2
	if !byStaff[0].Average.Equal(d("191.4")) {
		t.Fatalf("unexpected average %s", byStaff[0].Average)
	}
	if byStaff[1].StaffName != "Brian" || byStaff[1].Transactions != 1 || !byStaff[1].Average.Equal(d("34.8")) {
		t.Fatalf("unexpected second staff row %+v", byStaff[1])
	}
}

func TestReportsRequireRole(t *testing.T) {
	_, agg, _, _ := setup(t)
	cashier := domain.Principal{ID: 1, Role: domain.RoleCashier, Active: true}
	r, _ := ParseRange("", "", nairobi)
	if _, err := agg.Daily(context.Background(), cashier, r); !domain.IsAuthorization(err) {
		t.Fatalf("cashier must not view reports, got %v", err)
	}
}

func TestParseRange(t *testing.T) {
	if _, err := ParseRange("14/10/2026", "", nairobi); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, agg, _, _ := setup(t)
	admin := domain.Principal{ID: 1, Role: domain.RoleSuperAdmin, Active: true}
	r, err := ParseRange("2026-10-15", "2026-10-14", nairobi)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := agg.ByStaff(context.Background(), admin, r); !domain.IsValidation(err) {
		t.Fatalf("reversed range must be rejected, got %v", err)
	}
	empty, err := agg.Daily(context.Background(), admin, Range{From: time.Date(2020, 1, 1, 0, 0, 0, 0, nairobi), To: time.Date(2020, 1, 1, 0, 0, 0, 0, nairobi)})
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty range: %v %+v", err, empty)
	}
}

func TestAverageZeroTransactions(t *testing.T) {
	if !average(d("100"), 0).IsZero() {
		t.Fatalf("average of no transactions must be zero")
	}
}
