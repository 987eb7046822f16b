package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"dukani/backend/internal/domain"
	"dukani/backend/internal/stock"
	"dukani/backend/internal/store"
	"dukani/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, purchase_unit, sale_unit, conversion_factor, stock, purchase_price, sale_price, currency, created_at
		FROM products
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PurchaseUnit, &p.SaleUnit, &p.ConversionFactor,
			&p.Stock, &p.PurchasePrice, &p.SalePrice, &p.Currency, &p.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, purchase_unit, sale_unit, conversion_factor, stock, purchase_price, sale_price, currency, created_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.PurchaseUnit, &p.SaleUnit, &p.ConversionFactor,
		&p.Stock, &p.PurchasePrice, &p.SalePrice, &p.Currency, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, purchase_unit, sale_unit, conversion_factor, stock, purchase_price, sale_price, currency, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, product.ID, product.Name, product.PurchaseUnit, product.SaleUnit, product.ConversionFactor,
		product.Stock, product.PurchasePrice, product.SalePrice, product.Currency, product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrValidation
		}
		return nil, err
	}
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, purchase_unit = $3, sale_unit = $4, conversion_factor = $5,
			purchase_price = $6, sale_price = $7, currency = $8
		WHERE id = $1
	`, product.ID, product.Name, product.PurchaseUnit, product.SaleUnit, product.ConversionFactor,
		product.PurchasePrice, product.SalePrice, product.Currency)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetProduct(ctx, product.ID)
}

// DeleteProduct removes the product row; its purchases and sale items
// go with it through the ON DELETE CASCADE constraints. Sales keep
// their stored totals, only the item rows disappear.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

const purchaseColumns = `id, product_id, qty, unit_price, total, currency, supplier, created_at`

func scanPurchase(scanner interface{ Scan(...any) error }) (domain.Purchase, error) {
	var p domain.Purchase
	var supplier sql.NullString
	err := scanner.Scan(&p.ID, &p.ProductID, &p.Qty, &p.UnitPrice, &p.Total, &p.Currency, &supplier, &p.CreatedAt)
	p.Supplier = supplier.String
	return p, err
}

func (s *Store) ListPurchases(ctx context.Context) ([]domain.Purchase, error) {
	return s.listPurchases(ctx, `
		SELECT `+purchaseColumns+` FROM purchases ORDER BY created_at DESC
	`)
}

func (s *Store) ListPurchasesByProduct(ctx context.Context, productID string) ([]domain.Purchase, error) {
	return s.listPurchases(ctx, `
		SELECT `+purchaseColumns+` FROM purchases WHERE product_id = $1 ORDER BY created_at DESC
	`, productID)
}

func (s *Store) ListPurchasesBetween(ctx context.Context, from, to time.Time) ([]domain.Purchase, error) {
	return s.listPurchases(ctx, `
		SELECT `+purchaseColumns+` FROM purchases
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at
	`, from, to)
}

func (s *Store) listPurchases(ctx context.Context, query string, args ...any) ([]domain.Purchase, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, 32)
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return purchases, nil
}

func (s *Store) GetPurchase(ctx context.Context, id string) (*domain.Purchase, error) {
	p, err := scanPurchase(s.db.QueryRowContext(ctx, `
		SELECT `+purchaseColumns+` FROM purchases WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	factor, err := lockProductFactor(ctx, tx, purchase.ProductID)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO purchases (id, product_id, qty, unit_price, total, currency, supplier, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, purchase.ID, purchase.ProductID, purchase.Qty, purchase.UnitPrice, purchase.Total,
		purchase.Currency, nullIfEmpty(purchase.Supplier), purchase.CreatedAt)
	if err != nil {
		return nil, mapTxError(err)
	}

	delta := stock.PurchaseDelta(purchase.Qty, factor)
	if err := adjustStock(ctx, tx, purchase.ProductID, delta); err != nil {
		return nil, mapTxError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, mapTxError(err)
	}
	saved := purchase
	return &saved, nil
}

func (s *Store) UpdatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	old, err := scanPurchase(tx.QueryRowContext(ctx, `
		SELECT `+purchaseColumns+` FROM purchases WHERE id = $1 FOR UPDATE
	`, purchase.ID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapTxError(err)
	}

	factor, err := lockProductFactor(ctx, tx, old.ProductID)
	if err != nil {
		return nil, err
	}

	purchase.ProductID = old.ProductID
	purchase.CreatedAt = old.CreatedAt
	_, err = tx.ExecContext(ctx, `
		UPDATE purchases
		SET qty = $2, unit_price = $3, total = $4, currency = $5, supplier = $6
		WHERE id = $1
	`, purchase.ID, purchase.Qty, purchase.UnitPrice, purchase.Total, purchase.Currency, nullIfEmpty(purchase.Supplier))
	if err != nil {
		return nil, mapTxError(err)
	}

	delta := stock.PurchaseDelta(purchase.Qty, factor).Sub(stock.PurchaseDelta(old.Qty, factor))
	if err := adjustStock(ctx, tx, old.ProductID, delta); err != nil {
		return nil, mapTxError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, mapTxError(err)
	}
	saved := purchase
	return &saved, nil
}

func (s *Store) DeletePurchase(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	old, err := scanPurchase(tx.QueryRowContext(ctx, `
		SELECT `+purchaseColumns+` FROM purchases WHERE id = $1 FOR UPDATE
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return mapTxError(err)
	}

	factor, err := lockProductFactor(ctx, tx, old.ProductID)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM purchases WHERE id = $1`, id); err != nil {
		return mapTxError(err)
	}
	if err := adjustStock(ctx, tx, old.ProductID, stock.PurchaseDelta(old.Qty, factor).Neg()); err != nil {
		return mapTxError(err)
	}
	return mapTxError(tx.Commit())
}

func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	return s.listSales(ctx, `
		SELECT id, customer_id, invoice_number, is_credit, currency, total, total_usd, total_cdf, created_at
		FROM sales
		ORDER BY created_at DESC
	`)
}

func (s *Store) ListCreditSalesByCustomer(ctx context.Context, customerID string) ([]domain.Sale, error) {
	return s.listSales(ctx, `
		SELECT id, customer_id, invoice_number, is_credit, currency, total, total_usd, total_cdf, created_at
		FROM sales
		WHERE is_credit = true AND customer_id = $1
		ORDER BY created_at
	`, customerID)
}

func (s *Store) ListSalesBetween(ctx context.Context, from, to time.Time) ([]domain.Sale, error) {
	return s.listSales(ctx, `
		SELECT id, customer_id, invoice_number, is_credit, currency, total, total_usd, total_cdf, created_at
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at
	`, from, to)
}

func (s *Store) listSales(ctx context.Context, query string, args ...any) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 32)
	ids := make([]string, 0, 32)
	for rows.Next() {
		var sale domain.Sale
		var customerID sql.NullString
		if err := rows.Scan(&sale.ID, &customerID, &sale.InvoiceNumber, &sale.IsCredit,
			&sale.Currency, &sale.Total, &sale.TotalUSD, &sale.TotalCDF, &sale.CreatedAt); err != nil {
			return nil, err
		}
		sale.CustomerID = customerID.String
		sales = append(sales, sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return sales, nil
	}

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, qty, unit_tag, unit_price, total, currency
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY id
	`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	itemsBySale := make(map[string][]domain.SaleItem, len(ids))
	for itemRows.Next() {
		var item domain.SaleItem
		if err := itemRows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Qty,
			&item.UnitTag, &item.UnitPrice, &item.Total, &item.Currency); err != nil {
			return nil, err
		}
		itemsBySale[item.SaleID] = append(itemsBySale[item.SaleID], item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Items = itemsBySale[sales[i].ID]
	}
	return sales, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	var sale domain.Sale
	var customerID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, invoice_number, is_credit, currency, total, total_usd, total_cdf, created_at
		FROM sales
		WHERE id = $1
	`, id).Scan(&sale.ID, &customerID, &sale.InvoiceNumber, &sale.IsCredit,
		&sale.Currency, &sale.Total, &sale.TotalUSD, &sale.TotalCDF, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sale.CustomerID = customerID.String

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, qty, unit_tag, unit_price, total, currency
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Qty,
			&item.UnitTag, &item.UnitPrice, &item.Total, &item.Currency); err != nil {
			return nil, err
		}
		sale.Items = append(sale.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &sale, nil
}

// lockedProduct is the slice of the product row a sale transaction
// needs under lock.
type lockedProduct struct {
	id       string
	name     string
	saleUnit string
	factor   int64
	stock    decimal.Decimal
}

func lockProductsForItems(ctx context.Context, tx *sql.Tx, items []domain.SaleItem) (map[string]*lockedProduct, error) {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	// Locking in a stable order keeps concurrent sales from deadlocking
	// against each other.
	rows, err := tx.QueryContext(ctx, `
		SELECT id, name, sale_unit, conversion_factor, stock
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make(map[string]*lockedProduct, len(ids))
	for rows.Next() {
		var p lockedProduct
		if err := rows.Scan(&p.id, &p.name, &p.saleUnit, &p.factor, &p.stock); err != nil {
			return nil, err
		}
		products[p.id] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(products) != len(ids) {
		return nil, store.ErrNotFound
	}
	return products, nil
}

// decrementForItems checks sufficiency against the locked rows and
// applies the per-product decrements. The locked copies are mutated so
// duplicate-product carts are checked against what earlier lines left.
func decrementForItems(ctx context.Context, tx *sql.Tx, products map[string]*lockedProduct, items []domain.SaleItem) error {
	for _, item := range items {
		p := products[item.ProductID]
		required := stock.EffectiveSaleQty(item.Qty, item.UnitTag, p.factor)
		if !stock.Sufficient(p.stock, required) {
			return &store.InsufficientStockError{
				ProductName: p.name,
				Required:    required,
				Available:   p.stock,
				Unit:        p.saleUnit,
			}
		}
		p.stock = p.stock.Sub(required)
	}
	for _, p := range products {
		if _, err := tx.ExecContext(ctx, `
			UPDATE products SET stock = $2 WHERE id = $1
		`, p.id, p.stock); err != nil {
			return err
		}
	}
	return nil
}

// restockItems reverses a sale's stock effect inside tx. No clamp; a
// negative result is logged and kept.
func restockItems(ctx context.Context, tx *sql.Tx, items []domain.SaleItem) error {
	for _, item := range items {
		var factor int64
		err := tx.QueryRowContext(ctx, `
			SELECT conversion_factor FROM products WHERE id = $1 FOR UPDATE
		`, item.ProductID).Scan(&factor)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return err
		}
		delta := stock.EffectiveSaleQty(item.Qty, item.UnitTag, factor)
		if err := adjustStock(ctx, tx, item.ProductID, delta); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	for i := range sale.Items {
		if sale.Items[i].ID == "" {
			sale.Items[i].ID = xid.New("item")
		}
		sale.Items[i].SaleID = sale.ID
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	products, err := lockProductsForItems(ctx, tx, sale.Items)
	if err != nil {
		return nil, mapTxError(err)
	}
	if err := decrementForItems(ctx, tx, products, sale.Items); err != nil {
		return nil, mapTxError(err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, customer_id, invoice_number, is_credit, currency, total, total_usd, total_cdf, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, sale.ID, nullIfEmpty(sale.CustomerID), sale.InvoiceNumber, sale.IsCredit,
		sale.Currency, sale.Total, sale.TotalUSD, sale.TotalCDF, sale.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, store.ErrNotFound
		}
		return nil, mapTxError(err)
	}
	if err := insertSaleItems(ctx, tx, sale.Items); err != nil {
		return nil, mapTxError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, mapTxError(err)
	}
	saved := sale
	return &saved, nil
}

func (s *Store) UpdateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var createdAt time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT created_at FROM sales WHERE id = $1 FOR UPDATE
	`, sale.ID).Scan(&createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapTxError(err)
	}
	sale.CreatedAt = createdAt

	oldItems, err := saleItemsForUpdate(ctx, tx, sale.ID)
	if err != nil {
		return nil, mapTxError(err)
	}
	if err := restockItems(ctx, tx, oldItems); err != nil {
		return nil, mapTxError(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, sale.ID); err != nil {
		return nil, mapTxError(err)
	}

	for i := range sale.Items {
		if sale.Items[i].ID == "" {
			sale.Items[i].ID = xid.New("item")
		}
		sale.Items[i].SaleID = sale.ID
	}
	products, err := lockProductsForItems(ctx, tx, sale.Items)
	if err != nil {
		return nil, mapTxError(err)
	}
	if err := decrementForItems(ctx, tx, products, sale.Items); err != nil {
		return nil, mapTxError(err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sales
		SET customer_id = $2, invoice_number = $3, is_credit = $4, currency = $5,
			total = $6, total_usd = $7, total_cdf = $8
		WHERE id = $1
	`, sale.ID, nullIfEmpty(sale.CustomerID), sale.InvoiceNumber, sale.IsCredit,
		sale.Currency, sale.Total, sale.TotalUSD, sale.TotalCDF)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, store.ErrNotFound
		}
		return nil, mapTxError(err)
	}
	if err := insertSaleItems(ctx, tx, sale.Items); err != nil {
		return nil, mapTxError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, mapTxError(err)
	}
	saved := sale
	return &saved, nil
}

func (s *Store) DeleteSale(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT true FROM sales WHERE id = $1 FOR UPDATE
	`, id).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return mapTxError(err)
	}

	items, err := saleItemsForUpdate(ctx, tx, id)
	if err != nil {
		return mapTxError(err)
	}
	if err := restockItems(ctx, tx, items); err != nil {
		return mapTxError(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, id); err != nil {
		return mapTxError(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id); err != nil {
		return mapTxError(err)
	}
	return mapTxError(tx.Commit())
}

func saleItemsForUpdate(ctx context.Context, tx *sql.Tx, saleID string) ([]domain.SaleItem, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, sale_id, product_id, qty, unit_tag, unit_price, total, currency
		FROM sale_items
		WHERE sale_id = $1
		FOR UPDATE
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0, 8)
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Qty,
			&item.UnitTag, &item.UnitPrice, &item.Total, &item.Currency); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func insertSaleItems(ctx context.Context, tx *sql.Tx, items []domain.SaleItem) error {
	for _, item := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (id, sale_id, product_id, qty, unit_tag, unit_price, total, currency)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, item.ID, item.SaleID, item.ProductID, item.Qty, item.UnitTag, item.UnitPrice, item.Total, item.Currency)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, created_at FROM customers ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 32)
	for rows.Next() {
		var c domain.Customer
		var phone sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &phone, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Phone = phone.String
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	var phone sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, created_at FROM customers WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &phone, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	c.Phone = phone.String
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, created_at) VALUES ($1,$2,$3,$4)
	`, customer.ID, customer.Name, nullIfEmpty(customer.Phone), customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrValidation
		}
		return nil, err
	}
	created := customer
	return &created, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return store.ErrValidation
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListPayments(ctx context.Context) ([]domain.Payment, error) {
	return s.listPayments(ctx, `
		SELECT id, customer_id, amount, currency, created_at FROM payments ORDER BY created_at
	`)
}

func (s *Store) ListPaymentsByCustomer(ctx context.Context, customerID string) ([]domain.Payment, error) {
	return s.listPayments(ctx, `
		SELECT id, customer_id, amount, currency, created_at
		FROM payments WHERE customer_id = $1 ORDER BY created_at
	`, customerID)
}

func (s *Store) ListPaymentsBetween(ctx context.Context, from, to time.Time) ([]domain.Payment, error) {
	return s.listPayments(ctx, `
		SELECT id, customer_id, amount, currency, created_at
		FROM payments WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at
	`, from, to)
}

func (s *Store) listPayments(ctx context.Context, query string, args ...any) ([]domain.Payment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0, 16)
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.CustomerID, &p.Amount, &p.Currency, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (s *Store) CreatePayment(ctx context.Context, payment domain.Payment) (*domain.Payment, error) {
	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (id, customer_id, amount, currency, created_at) VALUES ($1,$2,$3,$4,$5)
	`, payment.ID, payment.CustomerID, payment.Amount, payment.Currency, payment.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	created := payment
	return &created, nil
}

func (s *Store) DeletePayment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListExpenses(ctx context.Context) ([]domain.Expense, error) {
	return s.listExpenses(ctx, `
		SELECT id, description, amount, currency, created_at FROM expenses ORDER BY created_at DESC
	`)
}

func (s *Store) ListExpensesBetween(ctx context.Context, from, to time.Time) ([]domain.Expense, error) {
	return s.listExpenses(ctx, `
		SELECT id, description, amount, currency, created_at
		FROM expenses WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at
	`, from, to)
}

func (s *Store) listExpenses(ctx context.Context, query string, args ...any) ([]domain.Expense, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, 16)
	for rows.Next() {
		var e domain.Expense
		if err := rows.Scan(&e.ID, &e.Description, &e.Amount, &e.Currency, &e.CreatedAt); err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, description, amount, currency, created_at) VALUES ($1,$2,$3,$4,$5)
	`, expense.ID, expense.Description, expense.Amount, expense.Currency, expense.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := expense
	return &created, nil
}

func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListExchangeRates(ctx context.Context) ([]domain.ExchangeRate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rate_date, usd_to_cdf, cdf_to_usd, created_at
		FROM exchange_rates
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rates := make([]domain.ExchangeRate, 0, 16)
	for rows.Next() {
		var r domain.ExchangeRate
		if err := rows.Scan(&r.ID, &r.Date, &r.USDToCDF, &r.CDFToUSD, &r.CreatedAt); err != nil {
			return nil, err
		}
		rates = append(rates, r)
	}
	return rates, rows.Err()
}

func (s *Store) CreateExchangeRate(ctx context.Context, rate domain.ExchangeRate) (*domain.ExchangeRate, error) {
	if rate.ID == "" {
		rate.ID = xid.New("rate")
	}
	if rate.CreatedAt.IsZero() {
		rate.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exchange_rates (id, rate_date, usd_to_cdf, cdf_to_usd, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, rate.ID, rate.Date, rate.USDToCDF, rate.CDFToUSD, rate.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := rate
	return &created, nil
}

func (s *Store) LatestExchangeRateBefore(ctx context.Context, cutoff time.Time) (*domain.ExchangeRate, error) {
	return s.latestRate(ctx, `
		SELECT id, rate_date, usd_to_cdf, cdf_to_usd, created_at
		FROM exchange_rates
		WHERE created_at < $1
		ORDER BY created_at DESC
		LIMIT 1
	`, cutoff)
}

func (s *Store) LatestExchangeRate(ctx context.Context) (*domain.ExchangeRate, error) {
	return s.latestRate(ctx, `
		SELECT id, rate_date, usd_to_cdf, cdf_to_usd, created_at
		FROM exchange_rates
		ORDER BY created_at DESC
		LIMIT 1
	`)
}

func (s *Store) latestRate(ctx context.Context, query string, args ...any) (*domain.ExchangeRate, error) {
	var r domain.ExchangeRate
	err := s.db.QueryRowContext(ctx, query, args...).
		Scan(&r.ID, &r.Date, &r.USDToCDF, &r.CDFToUSD, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrValidation
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at FROM users ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SetUserActive(ctx context.Context, username string, active bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET active = $2 WHERE username = $1
	`, username, active)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func lockProductFactor(ctx context.Context, tx *sql.Tx, productID string) (int64, error) {
	var factor int64
	err := tx.QueryRowContext(ctx, `
		SELECT conversion_factor FROM products WHERE id = $1 FOR UPDATE
	`, productID).Scan(&factor)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, mapTxError(err)
	}
	return factor, nil
}

// adjustStock applies a signed sale-unit delta and logs when the
// counter lands below zero. Reversals are never clamped.
func adjustStock(ctx context.Context, tx *sql.Tx, productID string, delta decimal.Decimal) error {
	var after decimal.Decimal
	err := tx.QueryRowContext(ctx, `
		UPDATE products SET stock = stock + $2 WHERE id = $1 RETURNING stock
	`, productID, delta).Scan(&after)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	if after.IsNegative() {
		log.Printf("[postgres-store] WARN: stock for product %s is negative: %s", productID, after.String())
	}
	return nil
}

// mapTxError folds serialization and deadlock failures into
// ErrConflict so the service's retry loop can recognize them.
func mapTxError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return store.ErrConflict
		}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
