package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"pharmapos/m/domain"
	"pharmapos/m/internal/database/dbtest"
	"pharmapos/m/internal/store"
)

const sampleCSV = `name,category,supplier,batch_number,expiry_date,cost_price,selling_price,stock_level,min_stock_level,barcode,requires_prescription
Paracetamol 500mg,Analgesics,Medipharm,PCM-1,2027-06-30,45.00,80.00,120,20,600100,false
Amoxicillin 250mg,Antibiotics,Cosmos,AMX-1,,40.50,65.00,60,10,,true
,Missing name,,,,1,2,3,0,,false
Bad price,Analgesics,,,,abc,2,3,0,,false
Duplicate barcode,Analgesics,,,,1,2,3,0,600100,false
Fractional stock,Analgesics,,,,1,2,1.5,0,,false
Bad stock,Analgesics,,,,1,2,abc,0,,false
Bad flag,Analgesics,,,,1,2,3,0,,maybe
`

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.csv")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func countRows(t *testing.T, db *sqlx.DB) int {
	t.Helper()
	var n int
	if err := db.Get(&n, "SELECT COUNT(*) FROM products"); err != nil {
		t.Fatalf("count products: %v", err)
	}
	return n
}

func TestLoadCatalog(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	path := writeCSV(t, sampleCSV)

	n, err := LoadCatalog(ctx, db, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 products, got %d", n)
	}
	if got := countRows(t, db); got != 2 {
		t.Fatalf("malformed rows were seeded: %d products", got)
	}

	products, err := store.NewCatalog(db).List(ctx, store.ProductFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	amox := products[0]
	if amox.Name != "Amoxicillin 250mg" || !amox.RequiresPrescription || amox.Barcode != nil || amox.ExpiryDate != nil {
		t.Fatalf("unexpected product %+v", amox)
	}
	para := products[1]
	if !para.SellingPrice.Equal(decimal.RequireFromString("80")) || para.StockLevel != 120 || para.MinStockLevel != 20 {
		t.Fatalf("unexpected product %+v", para)
	}

	again, err := LoadCatalog(ctx, db, path)
	if err != nil || again != 0 {
		t.Fatalf("second load should be a no-op: %d %v", again, err)
	}
}

func TestLoadCatalogMissingFile(t *testing.T) {
	if _, err := LoadCatalog(context.Background(), dbtest.New(t), filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestBootstrapAdmin(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)

	created, err := BootstrapAdmin(ctx, db, "", "")
	if err != nil || created {
		t.Fatalf("no credentials should create nothing: %v %v", created, err)
	}
	created, err = BootstrapAdmin(ctx, db, "Admin@Example.com", "change-me-now")
	if err != nil || !created {
		t.Fatalf("bootstrap: %v %v", created, err)
	}
	u, err := store.NewUsers(db).GetByEmail(ctx, "admin@example.com")
	if err != nil || u.Role != domain.RoleSuperAdmin || !u.Active {
		t.Fatalf("unexpected admin %+v %v", u, err)
	}
	created, err = BootstrapAdmin(ctx, db, "other@example.com", "change-me-now")
	if err != nil || created {
		t.Fatalf("second bootstrap must not create an account: %v %v", created, err)
	}
}
