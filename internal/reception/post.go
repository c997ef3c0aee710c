package reception

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hermespos/internal"
	"hermespos/internal/storage"
	"hermespos/internal/util"
)

type PostErrorKind string

const (
	PostNotFound           PostErrorKind = "not_found"
	PostInvalidState       PostErrorKind = "invalid_state"
	PostUnknownSupplier    PostErrorKind = "unknown_supplier"
	PostMissingBarcode     PostErrorKind = "missing_barcode"
	PostConflictingBarcode PostErrorKind = "conflicting_barcode"
	PostUnknownProduct     PostErrorKind = "unknown_product"
)

// PostError rejects a posting attempt without touching stock. Rows are
// 1-based line numbers so the message matches what the operator sees.
type PostError struct {
	Kind     PostErrorKind
	Rows     []int
	Barcodes []string
}

func (e *PostError) Error() string {
	switch e.Kind {
	case PostNotFound:
		return "reception not found"
	case PostInvalidState:
		return "reception has already been posted"
	case PostUnknownSupplier:
		return "reception references an unknown supplier"
	case PostMissingBarcode:
		return fmt.Sprintf("rows without a barcode: %s", joinInts(e.Rows))
	case PostConflictingBarcode:
		return fmt.Sprintf("barcode mapped to conflicting supplier codes: %s", strings.Join(e.Barcodes, ", "))
	case PostUnknownProduct:
		return fmt.Sprintf("barcodes not in the catalog: %s", strings.Join(e.Barcodes, ", "))
	default:
		return string(e.Kind)
	}
}

func joinInts(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}

type PostSummary struct {
	ReceptionID     int
	ProductsTouched int
	UnitsAdded      int64
	MappingsLearned int
}

// Poster runs the irreversible draft-to-posted transition. All writes
// happen inside one transaction so a failed validation leaves stock,
// mappings and the reception untouched.
type Poster struct {
	db *storage.DB
}

func NewPoster(db *storage.DB) *Poster {
	return &Poster{db: db}
}

func (p *Poster) Post(receptionID int) (*PostSummary, error) {
	rec, err := p.db.GetReception(receptionID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &PostError{Kind: PostNotFound}
	}
	if rec.Status != internal.StatusDraft {
		return nil, &PostError{Kind: PostInvalidState}
	}

	ok, err := p.db.SupplierExists(rec.SupplierID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &PostError{Kind: PostUnknownSupplier}
	}

	if rows := missingBarcodeRows(rec.Items); len(rows) > 0 {
		return nil, &PostError{Kind: PostMissingBarcode, Rows: rows}
	}
	if barcodes := conflictingBarcodes(rec.Items); len(barcodes) > 0 {
		return nil, &PostError{Kind: PostConflictingBarcode, Barcodes: barcodes}
	}

	productByBarcode, missing, err := p.resolveBarcodes(rec.Items)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, &PostError{Kind: PostUnknownProduct, Barcodes: missing}
	}

	deltas := ComputeStockDeltas(rec.Items, productByBarcode)
	existing, err := p.db.SupplierMappings(rec.SupplierID)
	if err != nil {
		return nil, err
	}
	learned := ComputeNewMappings(rec.SupplierID, rec.Items, productByBarcode, existing)

	tx, err := p.db.Begin()
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// Re-check the status under the transaction so two concurrent posts
	// of the same draft cannot both apply their deltas.
	var status string
	err = tx.QueryRow(`SELECT status FROM stock_receptions WHERE id = ?`, rec.ID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &PostError{Kind: PostNotFound}
	}
	if err != nil {
		return nil, err
	}
	if internal.ReceptionStatus(status) != internal.StatusDraft {
		return nil, &PostError{Kind: PostInvalidState}
	}

	summary := &PostSummary{ReceptionID: rec.ID}
	for _, d := range deltas {
		if _, err := tx.Exec(`UPDATE products SET stock = stock + ? WHERE id = ?`, d.Units, d.ProductID); err != nil {
			return nil, err
		}
		summary.ProductsTouched++
		summary.UnitsAdded += d.Units
	}

	for _, m := range learned {
		if _, err := tx.Exec(
			`INSERT INTO supplier_product_map (supplierId, supplierCode, productId) VALUES (?, ?, ?)`,
			m.SupplierID, m.SupplierCode, m.ProductID); err != nil {
			return nil, err
		}
		summary.MappingsLearned++
	}

	for _, item := range rec.Items {
		product := productByBarcode[strings.TrimSpace(*item.Barcode)]
		if _, err := tx.Exec(`UPDATE stock_reception_items SET productId = ? WHERE id = ?`, product.ID, item.ID); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(`UPDATE stock_receptions SET status = ?, receptionDate = ? WHERE id = ?`,
		string(internal.StatusPosted), time.Now().UTC().Format(time.RFC3339), rec.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return summary, nil
}

func (p *Poster) resolveBarcodes(items []internal.StockReceptionItem) (map[string]internal.Product, []string, error) {
	byBarcode := map[string]internal.Product{}
	var missing []string
	seen := map[string]bool{}
	for _, item := range items {
		barcode := strings.TrimSpace(*item.Barcode)
		if seen[barcode] {
			continue
		}
		seen[barcode] = true
		product, err := p.db.ProductByBarcode(barcode)
		if err != nil {
			return nil, nil, err
		}
		if product == nil {
			missing = append(missing, barcode)
			continue
		}
		byBarcode[barcode] = *product
	}
	sort.Strings(missing)
	return byBarcode, missing, nil
}

func missingBarcodeRows(items []internal.StockReceptionItem) []int {
	var rows []int
	for i, item := range items {
		if item.Barcode == nil || strings.TrimSpace(*item.Barcode) == "" {
			rows = append(rows, i+1)
		}
	}
	return rows
}

// conflictingBarcodes finds barcodes assigned to lines with differing
// non-empty supplier codes. Posting such a draft would teach the
// mapping table two contradictory facts.
func conflictingBarcodes(items []internal.StockReceptionItem) []string {
	codeFor := map[string]string{}
	conflict := map[string]bool{}
	for _, item := range items {
		barcode := strings.TrimSpace(*item.Barcode)
		code := util.NormalizeCode(item.SupplierCode)
		if code == "" {
			continue
		}
		prev, ok := codeFor[barcode]
		if !ok {
			codeFor[barcode] = code
			continue
		}
		if prev != code {
			conflict[barcode] = true
		}
	}

	out := make([]string, 0, len(conflict))
	for b := range conflict {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

type StockDelta struct {
	ProductID int
	Units     int64
}

// ComputeStockDeltas groups line quantities per product and rounds the
// sum half away from zero, so 2 x 1,5 of one product lands as 3 units
// rather than 2 x 2.
func ComputeStockDeltas(items []internal.StockReceptionItem, productByBarcode map[string]internal.Product) []StockDelta {
	sums := map[int]decimal.Decimal{}
	var order []int
	for _, item := range items {
		if item.Barcode == nil {
			continue
		}
		product, ok := productByBarcode[strings.TrimSpace(*item.Barcode)]
		if !ok {
			continue
		}
		if _, seen := sums[product.ID]; !seen {
			order = append(order, product.ID)
		}
		sums[product.ID] = sums[product.ID].Add(item.Quantity)
	}

	out := make([]StockDelta, 0, len(order))
	for _, pid := range order {
		out = append(out, StockDelta{ProductID: pid, Units: sums[pid].Round(0).IntPart()})
	}
	return out
}

// ComputeNewMappings returns the (code, product) pairs this reception
// teaches that are not already on file. The raw supplier code is stored
// so later documents can be matched against either spelling.
func ComputeNewMappings(supplierID int, items []internal.StockReceptionItem,
	productByBarcode map[string]internal.Product, existing []internal.SupplierProductMap) []internal.SupplierProductMap {

	known := map[string]bool{}
	for _, m := range existing {
		known[util.NormalizeCode(m.SupplierCode)+"§"+fmt.Sprint(m.ProductID)] = true
	}

	var out []internal.SupplierProductMap
	for _, item := range items {
		code := strings.TrimSpace(item.SupplierCode)
		if code == "" || item.Barcode == nil {
			continue
		}
		product, ok := productByBarcode[strings.TrimSpace(*item.Barcode)]
		if !ok {
			continue
		}
		key := util.NormalizeCode(code) + "§" + fmt.Sprint(product.ID)
		if known[key] {
			continue
		}
		known[key] = true
		out = append(out, internal.SupplierProductMap{
			SupplierID:   supplierID,
			SupplierCode: code,
			ProductID:    product.ID,
		})
	}
	return out
}
