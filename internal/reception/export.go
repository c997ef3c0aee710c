package reception

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"hermespos/internal"
	"hermespos/internal/storage"
)

// ExportReceptionXLSX writes a review sheet for one reception: header
// metadata on top, then one row per line with its match state, so the
// operator can check a draft before posting it.
func ExportReceptionXLSX(db *storage.DB, receptionID int, outputPath string) error {
	rec, err := db.GetReception(receptionID)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("%w: id=%d", storage.ErrNotFound, receptionID)
	}

	names := map[int]string{}
	if ids := productIDs(rec.Items); len(ids) > 0 {
		products, err := db.ProductsByIDs(ids)
		if err != nil {
			return err
		}
		for _, p := range products {
			names[p.ID] = p.Name
		}
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	set := func(col, row int, value any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, value)
	}

	set(1, 1, "reception_id")
	set(2, 1, rec.ID)
	set(1, 2, "mark")
	set(2, 2, rec.Mark)
	set(1, 3, "supplier_id")
	set(2, 3, rec.SupplierID)
	set(1, 4, "status")
	set(2, 4, string(rec.Status))
	set(1, 5, "reception_date")
	set(2, 5, rec.ReceptionDate.Format(time.RFC3339))

	const headerRow = 7
	headers := []string{"row", "supplier_code", "description", "quantity", "barcode", "product_id", "product_name", "matched"}
	for i, h := range headers {
		set(i+1, headerRow, h)
	}

	for i, item := range rec.Items {
		r := headerRow + 1 + i
		set(1, r, i+1)
		set(2, r, item.SupplierCode)
		set(3, r, item.Description)
		set(4, r, item.Quantity.String())
		set(5, r, derefString(item.Barcode))
		set(6, r, derefInt(item.ProductID))
		if item.ProductID != nil {
			set(7, r, names[*item.ProductID])
		}
		set(8, r, item.Barcode != nil && *item.Barcode != "")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func productIDs(items []internal.StockReceptionItem) []int {
	seen := map[int]bool{}
	var out []int
	for _, item := range items {
		if item.ProductID == nil || seen[*item.ProductID] {
			continue
		}
		seen[*item.ProductID] = true
		out = append(out, *item.ProductID)
	}
	return out
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}
