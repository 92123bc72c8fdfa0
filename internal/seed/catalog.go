package seed

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"pharmapos/m/domain"
	"pharmapos/m/internal/store"
)

type catalogRow struct {
	Name                 string `csv:"name"`
	Category             string `csv:"category"`
	Supplier             string `csv:"supplier"`
	BatchNumber          string `csv:"batch_number"`
	ExpiryDate           string `csv:"expiry_date"`
	CostPrice            string `csv:"cost_price"`
	SellingPrice         string `csv:"selling_price"`
	StockLevel           string `csv:"stock_level"`
	MinStockLevel        string `csv:"min_stock_level"`
	Barcode              string `csv:"barcode"`
	RequiresPrescription string `csv:"requires_prescription"`
}

func (r catalogRow) product() (domain.Product, error) {
	p := domain.Product{
		Name:        strings.TrimSpace(r.Name),
		Category:    r.Category,
		Supplier:    r.Supplier,
		BatchNumber: r.BatchNumber,
	}
	var err error
	if p.StockLevel, err = count(r.StockLevel); err != nil {
		return p, errors.Wrap(err, "stock_level")
	}
	if p.MinStockLevel, err = count(r.MinStockLevel); err != nil {
		return p, errors.Wrap(err, "min_stock_level")
	}
	if raw := strings.TrimSpace(r.RequiresPrescription); raw != "" {
		if p.RequiresPrescription, err = cast.ToBoolE(raw); err != nil {
			return p, errors.Wrap(err, "requires_prescription")
		}
	}
	if p.CostPrice, err = money(r.CostPrice); err != nil {
		return p, errors.Wrap(err, "cost_price")
	}
	if p.SellingPrice, err = money(r.SellingPrice); err != nil {
		return p, errors.Wrap(err, "selling_price")
	}
	if raw := strings.TrimSpace(r.ExpiryDate); raw != "" {
		expiry, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return p, errors.Wrap(err, "expiry_date")
		}
		p.ExpiryDate = &expiry
	}
	if code := strings.TrimSpace(r.Barcode); code != "" {
		p.Barcode = &code
	}
	return p, p.Validate()
}

func count(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return cast.ToInt64E(raw)
}

func money(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

// LoadCatalog fills an empty products table from the CSV at csvPath. Rows that
// fail validation are skipped and logged; a catalog that already has products
// is left alone. It returns the number of products inserted.
func LoadCatalog(ctx context.Context, db *sqlx.DB, csvPath string) (int, error) {
	var existing int
	if err := db.GetContext(ctx, &existing, `SELECT COUNT(*) FROM products`); err != nil {
		return 0, errors.Wrap(err, "count products")
	}
	if existing > 0 {
		return 0, nil
	}

	file, err := os.Open(csvPath)
	if err != nil {
		return 0, errors.Wrapf(err, "open catalog %s", csvPath)
	}
	defer file.Close()

	var rows []catalogRow
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return 0, errors.Wrap(err, "read catalog csv")
	}

	inserted := 0
	err = store.NewTxManager(db).WithTransaction(ctx, func(q sqlx.ExtContext) error {
		catalog := store.NewCatalog(q)
		barcodes := make(map[string]bool)
		for i, row := range rows {
			p, err := row.product()
			if err == nil && p.Barcode != nil && barcodes[*p.Barcode] {
				err = errors.Wrapf(domain.ErrConflict, "barcode %s repeated", *p.Barcode)
			}
			if err != nil {
				zap.S().Warnf("skipping catalog row %d (%s): %v", i+2, row.Name, err)
				continue
			}
			if err := catalog.Create(ctx, &p); err != nil {
				return err
			}
			if p.Barcode != nil {
				barcodes[*p.Barcode] = true
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	zap.S().Infof("seeded product catalog with %d rows", inserted)
	return inserted, nil
}
