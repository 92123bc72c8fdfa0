package migrations

import (
	"path/filepath"
	"testing"

	"pharmapos/m/internal/database"
)

func TestRunIsIdempotent(t *testing.T) {
	db, err := database.Connect("sqlite", "file:"+filepath.Join(t.TempDir(), "pos.db")+"?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := Run(db); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := Run(db); err != nil {
		t.Fatalf("second run: %v", err)
	}

	for _, table := range []string{"users", "products", "sales", "sale_items"} {
		var n int
		if err := db.Get(&n, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table); err != nil {
			t.Fatalf("lookup %s: %v", table, err)
		}
		if n != 1 {
			t.Fatalf("table %s missing", table)
		}
	}
}

func TestStockCannotGoNegative(t *testing.T) {
	db, err := database.Connect("sqlite", "file:"+filepath.Join(t.TempDir(), "pos.db"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()
	if err := Run(db); err != nil {
		t.Fatalf("run: %v", err)
	}
	_, err = db.Exec(`INSERT INTO products (name, cost_price, selling_price, stock_level, created_at, updated_at)
		VALUES ('Paracetamol', '50', '80', -1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	if err == nil {
		t.Fatalf("expected check constraint to reject negative stock")
	}
}

func TestPricesCannotBeNegative(t *testing.T) {
	db, err := database.Connect("sqlite", "file:"+filepath.Join(t.TempDir(), "pos.db"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()
	if err := Run(db); err != nil {
		t.Fatalf("run: %v", err)
	}

	insertProduct := `INSERT INTO products (name, cost_price, selling_price, stock_level, created_at, updated_at)
		VALUES ('Paracetamol', ?, ?, 1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`
	if _, err := db.Exec(insertProduct, "50", "80.00"); err != nil {
		t.Fatalf("valid product rejected: %v", err)
	}
	for _, prices := range [][2]string{{"-0.01", "80"}, {"50", "-80"}} {
		if _, err := db.Exec(insertProduct, prices[0], prices[1]); err == nil {
			t.Fatalf("negative price %v accepted", prices)
		}
	}

	insertItem := `INSERT INTO sale_items (sale_id, product_id, product_name, quantity, unit_price, line_total)
		VALUES (1, 1, 'Paracetamol', 1, ?, ?)`
	if _, err := db.Exec(insertItem, "80", "80"); err != nil {
		t.Fatalf("valid item rejected: %v", err)
	}
	if _, err := db.Exec(insertItem, "-80", "-80"); err == nil {
		t.Fatalf("negative unit price accepted")
	}
}
