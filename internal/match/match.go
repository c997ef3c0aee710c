// Package match resolves reception lines to catalog products in two
// passes: an automatic exact pass over learned supplier codes, and an
// advisory fuzzy-key pass over product names that never writes anything.
package match

import (
	"strings"

	"hermespos/internal"
	"hermespos/internal/storage"
	"hermespos/internal/util"
)

type Matcher struct {
	db *storage.DB
}

func New(db *storage.DB) *Matcher {
	return &Matcher{db: db}
}

// AutoMap fills barcodes in place for items whose supplier code has
// historically resolved to exactly one product with a usable barcode.
// Best-effort: items it cannot resolve are simply left alone.
func (m *Matcher) AutoMap(supplierID int, items []internal.StockReceptionItem) (int, error) {
	if supplierID <= 0 || len(items) == 0 {
		return 0, nil
	}

	maps, err := m.db.SupplierMappings(supplierID)
	if err != nil {
		return 0, err
	}
	productByCode := UnambiguousCodeMap(maps)
	if len(productByCode) == 0 {
		return 0, nil
	}

	ids := make([]int, 0, len(productByCode))
	seen := map[int]bool{}
	for _, pid := range productByCode {
		if !seen[pid] {
			seen[pid] = true
			ids = append(ids, pid)
		}
	}
	products, err := m.db.ProductsByIDs(ids)
	if err != nil {
		return 0, err
	}
	barcodeByID := map[int]string{}
	for _, p := range products {
		if strings.TrimSpace(p.Barcode) != "" {
			barcodeByID[p.ID] = p.Barcode
		}
	}

	filled := 0
	for i := range items {
		item := &items[i]
		if item.Barcode != nil && strings.TrimSpace(*item.Barcode) != "" {
			continue
		}
		key := util.NormalizeCode(item.SupplierCode)
		if key == "" {
			continue
		}
		pid, ok := productByCode[key]
		if !ok {
			continue
		}
		barcode, ok := barcodeByID[pid]
		if !ok {
			continue
		}
		item.Barcode = internal.StringPtr(barcode)
		item.ProductID = internal.IntPtr(pid)
		filled++
	}
	return filled, nil
}

// Suggest proposes barcodes for still-unresolved items by comparing the
// normalized description against the supplier's product names, keeping
// only names that are unique after normalization. Read-only: applying a
// proposal is a separate, operator-confirmed step.
func (m *Matcher) Suggest(supplierID int, items []internal.StockReceptionItem) ([]internal.Suggestion, error) {
	if supplierID <= 0 || len(items) == 0 {
		return nil, nil
	}

	products, err := m.db.ProductsBySupplier(supplierID)
	if err != nil {
		return nil, err
	}
	byName := UniqueNameIndex(products)
	if len(byName) == 0 {
		return nil, nil
	}

	var out []internal.Suggestion
	for i := range items {
		item := items[i]
		if item.Barcode != nil && strings.TrimSpace(*item.Barcode) != "" {
			continue
		}
		key := util.NameKey(item.Description)
		if key == "" {
			continue
		}
		if p, ok := byName[key]; ok {
			out = append(out, internal.Suggestion{Row: i, Barcode: p.Barcode, ProductName: p.Name})
		}
	}
	return out, nil
}

// UnambiguousCodeMap reduces learned mappings to normalized codes that
// point at exactly one distinct product. Ambiguous history disqualifies
// a code from automatic resolution.
func UnambiguousCodeMap(maps []internal.SupplierProductMap) map[string]int {
	byCode := map[string]map[int]bool{}
	for _, m := range maps {
		key := util.NormalizeCode(m.SupplierCode)
		if key == "" {
			continue
		}
		if byCode[key] == nil {
			byCode[key] = map[int]bool{}
		}
		byCode[key][m.ProductID] = true
	}

	out := map[string]int{}
	for key, pids := range byCode {
		if len(pids) != 1 {
			continue
		}
		for pid := range pids {
			out[key] = pid
		}
	}
	return out
}

// UniqueNameIndex indexes products by normalized name, dropping names
// that collide after normalization.
func UniqueNameIndex(products []internal.Product) map[string]internal.Product {
	counts := map[string]int{}
	first := map[string]internal.Product{}
	for _, p := range products {
		if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Barcode) == "" {
			continue
		}
		key := util.NameKey(p.Name)
		if key == "" {
			continue
		}
		counts[key]++
		if counts[key] == 1 {
			first[key] = p
		}
	}

	out := map[string]internal.Product{}
	for key, n := range counts {
		if n == 1 {
			out[key] = first[key]
		}
	}
	return out
}
