package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"hermespos/internal"
)

var (
	ErrNotFound      = errors.New("reception not found")
	ErrNotDraft      = errors.New("reception is not a draft")
	ErrDuplicateMark = errors.New("mark already exists")
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	for _, pragma := range []string{`PRAGMA journal_mode = WAL;`, `PRAGMA foreign_keys = ON;`} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

// Begin hands out the transaction used by the posting shell.
func (d *DB) Begin() (*sql.Tx, error) {
	return d.conn.Begin()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS suppliers (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  address TEXT,
  phone TEXT
);

CREATE TABLE IF NOT EXISTS products (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  barcode TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  stock INTEGER NOT NULL DEFAULT 0,
  supplierId INTEGER REFERENCES suppliers(id)
);
CREATE INDEX IF NOT EXISTS idx_products_supplierId ON products(supplierId);

CREATE TABLE IF NOT EXISTS stock_receptions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  supplierId INTEGER NOT NULL,
  receptionDate TEXT NOT NULL,
  mark TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'Draft'
);

CREATE TABLE IF NOT EXISTS stock_reception_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  receptionId INTEGER NOT NULL REFERENCES stock_receptions(id) ON DELETE CASCADE,
  supplierCode TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL,
  quantity TEXT NOT NULL,
  productId INTEGER,
  barcode TEXT
);
CREATE INDEX IF NOT EXISTS idx_items_receptionId ON stock_reception_items(receptionId);

CREATE TABLE IF NOT EXISTS supplier_product_map (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  supplierId INTEGER NOT NULL,
  supplierCode TEXT NOT NULL,
  productId INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_map_supplierId ON supplier_product_map(supplierId);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) AddSupplier(s *internal.Supplier) error {
	res, err := d.conn.Exec(`INSERT INTO suppliers (name, address, phone) VALUES (?, ?, ?)`,
		s.Name, s.Address, s.Phone)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = int(id)
	return nil
}

func (d *DB) SupplierExists(id int) (bool, error) {
	var one int
	err := d.conn.QueryRow(`SELECT 1 FROM suppliers WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (d *DB) ListSuppliers() ([]internal.Supplier, error) {
	rows, err := d.conn.Query(`SELECT id, name, address, phone FROM suppliers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Supplier
	for rows.Next() {
		var s internal.Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.Address, &s.Phone); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (d *DB) AddProduct(p *internal.Product) error {
	res, err := d.conn.Exec(`INSERT INTO products (barcode, name, stock, supplierId) VALUES (?, ?, ?, ?)`,
		p.Barcode, p.Name, p.Stock, p.SupplierID)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = int(id)
	return nil
}

func (d *DB) ProductByBarcode(barcode string) (*internal.Product, error) {
	var p internal.Product
	err := d.conn.QueryRow(`SELECT id, barcode, name, stock, supplierId FROM products WHERE barcode = ?`,
		strings.TrimSpace(barcode)).Scan(&p.ID, &p.Barcode, &p.Name, &p.Stock, &p.SupplierID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DB) ProductsBySupplier(supplierID int) ([]internal.Product, error) {
	rows, err := d.conn.Query(`
SELECT id, barcode, name, stock, supplierId FROM products
WHERE supplierId = ? AND TRIM(name) <> '' AND TRIM(barcode) <> ''`, supplierID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProducts(rows)
}

func (d *DB) ProductsByIDs(ids []int) ([]internal.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := d.conn.Query(
		`SELECT id, barcode, name, stock, supplierId FROM products WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProducts(rows)
}

func scanProducts(rows *sql.Rows) ([]internal.Product, error) {
	var out []internal.Product
	for rows.Next() {
		var p internal.Product
		if err := rows.Scan(&p.ID, &p.Barcode, &p.Name, &p.Stock, &p.SupplierID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (d *DB) SupplierMappings(supplierID int) ([]internal.SupplierProductMap, error) {
	rows, err := d.conn.Query(
		`SELECT id, supplierId, supplierCode, productId FROM supplier_product_map WHERE supplierId = ?`, supplierID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.SupplierProductMap
	for rows.Next() {
		var m internal.SupplierProductMap
		if err := rows.Scan(&m.ID, &m.SupplierID, &m.SupplierCode, &m.ProductID); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SaveDraft creates or updates a draft reception, replacing its item
// set wholesale. A new draft whose mark collides with another reception
// is rejected before anything is persisted; callers are expected to
// look up by mark first and load the existing draft instead.
func (d *DB) SaveDraft(rec *internal.StockReception) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	rec.Status = internal.StatusDraft
	if rec.ReceptionDate.IsZero() {
		rec.ReceptionDate = time.Now()
	}

	if rec.ID == 0 {
		var existingID int
		err := tx.QueryRow(`SELECT id FROM stock_receptions WHERE mark = ?`, rec.Mark).Scan(&existingID)
		if err == nil {
			return fmt.Errorf("%w: mark=%s reception=%d", ErrDuplicateMark, rec.Mark, existingID)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		res, err := tx.Exec(
			`INSERT INTO stock_receptions (supplierId, receptionDate, mark, status) VALUES (?, ?, ?, ?)`,
			rec.SupplierID, rec.ReceptionDate.UTC().Format(time.RFC3339), rec.Mark, string(rec.Status))
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		rec.ID = int(id)
	} else {
		var status string
		var mark string
		err := tx.QueryRow(`SELECT status, mark FROM stock_receptions WHERE id = ?`, rec.ID).Scan(&status, &mark)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: id=%d", ErrNotFound, rec.ID)
		}
		if err != nil {
			return err
		}
		if internal.ReceptionStatus(status) != internal.StatusDraft {
			return fmt.Errorf("%w: id=%d status=%s", ErrNotDraft, rec.ID, status)
		}
		rec.Mark = mark

		if _, err := tx.Exec(`UPDATE stock_receptions SET supplierId = ?, receptionDate = ? WHERE id = ?`,
			rec.SupplierID, rec.ReceptionDate.UTC().Format(time.RFC3339), rec.ID); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM stock_reception_items WHERE receptionId = ?`, rec.ID); err != nil {
			return err
		}
	}

	stmt, err := tx.Prepare(`
INSERT INTO stock_reception_items (receptionId, supplierCode, description, quantity, productId, barcode)
VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range rec.Items {
		item := &rec.Items[i]
		item.ReceptionID = rec.ID
		var barcode *string
		if item.Barcode != nil && strings.TrimSpace(*item.Barcode) != "" {
			barcode = internal.StringPtr(strings.TrimSpace(*item.Barcode))
		}
		res, err := stmt.Exec(rec.ID, item.SupplierCode, item.Description, item.Quantity.String(), item.ProductID, barcode)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		item.ID = int(id)
		item.Barcode = barcode
	}

	return tx.Commit()
}

func (d *DB) GetReception(id int) (*internal.StockReception, error) {
	var rec internal.StockReception
	var date, status string
	err := d.conn.QueryRow(
		`SELECT id, supplierId, receptionDate, mark, status FROM stock_receptions WHERE id = ?`, id).
		Scan(&rec.ID, &rec.SupplierID, &date, &rec.Mark, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Status = internal.ReceptionStatus(status)
	if parsed, err := time.Parse(time.RFC3339, date); err == nil {
		rec.ReceptionDate = parsed
	}

	items, err := d.receptionItems(rec.ID)
	if err != nil {
		return nil, err
	}
	rec.Items = items
	return &rec, nil
}

// GetDraft loads a reception only while it is still editable.
func (d *DB) GetDraft(id int) (*internal.StockReception, error) {
	rec, err := d.GetReception(id)
	if err != nil || rec == nil {
		return nil, err
	}
	if rec.Status != internal.StatusDraft {
		return nil, fmt.Errorf("%w: id=%d status=%s", ErrNotDraft, id, rec.Status)
	}
	return rec, nil
}

func (d *DB) GetByMark(mark string) (*internal.StockReception, error) {
	var id int
	err := d.conn.QueryRow(`SELECT id FROM stock_receptions WHERE mark = ?`, mark).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d.GetReception(id)
}

func (d *DB) ExistsByMark(mark string) (bool, error) {
	var one int
	err := d.conn.QueryRow(`SELECT 1 FROM stock_receptions WHERE mark = ?`, mark).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// DeleteDraft discards an unposted reception with its items. Posted
// receptions are immutable and cannot be deleted.
func (d *DB) DeleteDraft(id int) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	err = tx.QueryRow(`SELECT status FROM stock_receptions WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	if internal.ReceptionStatus(status) != internal.StatusDraft {
		return fmt.Errorf("%w: id=%d status=%s", ErrNotDraft, id, status)
	}

	if _, err := tx.Exec(`DELETE FROM stock_reception_items WHERE receptionId = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM stock_receptions WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

type ReceptionSummary struct {
	ID            int
	SupplierID    int
	ReceptionDate time.Time
	Mark          string
	Status        internal.ReceptionStatus
	Lines         int
}

func (d *DB) ListReceptions() ([]ReceptionSummary, error) {
	rows, err := d.conn.Query(`
SELECT r.id, r.supplierId, r.receptionDate, r.mark, r.status, COUNT(i.id)
FROM stock_receptions r
LEFT JOIN stock_reception_items i ON i.receptionId = r.id
GROUP BY r.id
ORDER BY r.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReceptionSummary
	for rows.Next() {
		var s ReceptionSummary
		var date, status string
		if err := rows.Scan(&s.ID, &s.SupplierID, &date, &s.Mark, &status, &s.Lines); err != nil {
			return nil, err
		}
		s.Status = internal.ReceptionStatus(status)
		if parsed, err := time.Parse(time.RFC3339, date); err == nil {
			s.ReceptionDate = parsed
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (d *DB) receptionItems(receptionID int) ([]internal.StockReceptionItem, error) {
	rows, err := d.conn.Query(`
SELECT id, receptionId, supplierCode, description, quantity, productId, barcode
FROM stock_reception_items WHERE receptionId = ? ORDER BY id`, receptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.StockReceptionItem
	for rows.Next() {
		var item internal.StockReceptionItem
		var qty string
		if err := rows.Scan(&item.ID, &item.ReceptionID, &item.SupplierCode, &item.Description, &qty, &item.ProductID, &item.Barcode); err != nil {
			return nil, err
		}
		parsed, err := decimal.NewFromString(qty)
		if err != nil {
			return nil, fmt.Errorf("item %d: bad quantity %q: %w", item.ID, qty, err)
		}
		item.Quantity = parsed
		out = append(out, item)
	}
	return out, rows.Err()
}
