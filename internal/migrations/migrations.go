package migrations

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"pharmapos/m/internal/database"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            email TEXT NOT NULL UNIQUE,
            display_name TEXT NOT NULL,
            password_hash TEXT NOT NULL,
            role TEXT NOT NULL CHECK (role IN ('super_admin', 'pharmacy_technician', 'cashier')),
            active INTEGER NOT NULL DEFAULT 1,
            created_at DATETIME NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS products (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            category TEXT NOT NULL DEFAULT '',
            supplier TEXT NOT NULL DEFAULT '',
            batch_number TEXT NOT NULL DEFAULT '',
            expiry_date DATE,
            cost_price TEXT NOT NULL CHECK (CAST(cost_price AS REAL) >= 0),
            selling_price TEXT NOT NULL CHECK (CAST(selling_price AS REAL) >= 0),
            stock_level INTEGER NOT NULL CHECK (stock_level >= 0),
            min_stock_level INTEGER NOT NULL DEFAULT 0 CHECK (min_stock_level >= 0),
            barcode TEXT UNIQUE,
            requires_prescription INTEGER NOT NULL DEFAULT 0,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS idx_products_name ON products(name);`,
	`CREATE TABLE IF NOT EXISTS sales (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            receipt_number TEXT NOT NULL UNIQUE,
            idempotency_key TEXT,
            subtotal TEXT NOT NULL,
            tax TEXT NOT NULL,
            total TEXT NOT NULL,
            payment_method TEXT NOT NULL CHECK (payment_method IN ('cash', 'mobile_money', 'card', 'insurance')),
            payment_reference TEXT,
            cash_tendered TEXT,
            staff_id INTEGER NOT NULL,
            created_at DATETIME NOT NULL,
            UNIQUE (staff_id, idempotency_key),
            FOREIGN KEY(staff_id) REFERENCES users(id)
        );`,
	`CREATE INDEX IF NOT EXISTS idx_sales_created_at ON sales(created_at);`,
	`CREATE TABLE IF NOT EXISTS sale_items (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            sale_id INTEGER NOT NULL,
            product_id INTEGER NOT NULL,
            product_name TEXT NOT NULL,
            quantity INTEGER NOT NULL CHECK (quantity > 0),
            unit_price TEXT NOT NULL CHECK (CAST(unit_price AS REAL) >= 0),
            line_total TEXT NOT NULL,
            FOREIGN KEY(sale_id) REFERENCES sales(id),
            FOREIGN KEY(product_id) REFERENCES products(id)
        );`,
	`CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items(sale_id);`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL CHECK (role IN ('super_admin', 'pharmacy_technician', 'cashier')),
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
	`CREATE TABLE IF NOT EXISTS products (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			supplier TEXT NOT NULL DEFAULT '',
			batch_number TEXT NOT NULL DEFAULT '',
			expiry_date DATE,
			cost_price NUMERIC NOT NULL CHECK (cost_price >= 0),
			selling_price NUMERIC NOT NULL CHECK (selling_price >= 0),
			stock_level BIGINT NOT NULL CHECK (stock_level >= 0),
			min_stock_level BIGINT NOT NULL DEFAULT 0 CHECK (min_stock_level >= 0),
			barcode TEXT UNIQUE,
			requires_prescription BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
	`CREATE INDEX IF NOT EXISTS idx_products_name ON products(name);`,
	`CREATE TABLE IF NOT EXISTS sales (
			id BIGSERIAL PRIMARY KEY,
			receipt_number TEXT NOT NULL UNIQUE,
			idempotency_key TEXT,
			subtotal NUMERIC NOT NULL,
			tax NUMERIC NOT NULL,
			total NUMERIC NOT NULL,
			payment_method TEXT NOT NULL CHECK (payment_method IN ('cash', 'mobile_money', 'card', 'insurance')),
			payment_reference TEXT,
			cash_tendered NUMERIC,
			staff_id BIGINT NOT NULL REFERENCES users(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (staff_id, idempotency_key)
		);`,
	`CREATE INDEX IF NOT EXISTS idx_sales_created_at ON sales(created_at);`,
	`CREATE TABLE IF NOT EXISTS sale_items (
			id BIGSERIAL PRIMARY KEY,
			sale_id BIGINT NOT NULL REFERENCES sales(id),
			product_id BIGINT NOT NULL REFERENCES products(id),
			product_name TEXT NOT NULL,
			quantity BIGINT NOT NULL CHECK (quantity > 0),
			unit_price NUMERIC NOT NULL CHECK (unit_price >= 0),
			line_total NUMERIC NOT NULL
		);`,
	`CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items(sale_id);`,
}

// Run creates the database schema required for the POS backend.
func Run(db *sqlx.DB) error {
	schema := postgresSchema
	if database.IsSQLite(db) {
		schema = sqliteSchema
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
