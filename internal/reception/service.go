// Package reception orchestrates the reception lifecycle: importing a
// scanned document into a draft, refining the draft, and the one-way
// post that moves stock.
package reception

import (
	"context"
	"fmt"
	"strings"

	"hermespos/internal"
	"hermespos/internal/config"
	"hermespos/internal/match"
	"hermespos/internal/source"
	"hermespos/internal/storage"
	"hermespos/internal/util"
)

type Service struct {
	db      *storage.DB
	fetcher *source.Fetcher
	matcher *match.Matcher
	cfg     config.Config
}

func NewService(db *storage.DB, fetcher *source.Fetcher, cfg config.Config) *Service {
	return &Service{
		db:      db,
		fetcher: fetcher,
		matcher: match.New(db),
		cfg:     cfg,
	}
}

// ImportResult is what the operator sees after a scan: the draft (or
// the already-known reception), the automatic match count and the
// advisory suggestions awaiting confirmation.
type ImportResult struct {
	Reception    *internal.StockReception
	Existing     bool
	SupplierHint *int
	AutoFilled   int
	Suggestions  []internal.Suggestion
}

// Import turns a scanned reference into a draft reception. Importing
// the same document twice is harmless: the mark is looked up first and
// the stored reception is returned instead of a duplicate.
func (s *Service) Import(ctx context.Context, ref string, supplierID int) (*ImportResult, error) {
	src := source.Classify(ref, s.cfg.AadeQRBaseURL)

	body, err := s.fetcher.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}

	doc, err := source.Parse(src, body)
	if err != nil {
		return nil, err
	}

	if existing, err := s.db.GetByMark(doc.Mark); err != nil {
		return nil, err
	} else if existing != nil {
		res := &ImportResult{Reception: existing, Existing: true}
		if existing.Status == internal.StatusDraft {
			if res.Suggestions, err = s.matcher.Suggest(existing.SupplierID, existing.Items); err != nil {
				return nil, err
			}
		}
		return res, nil
	}

	res := &ImportResult{}
	if supplierID <= 0 {
		hint, err := s.supplierHint(doc.Text)
		if err != nil {
			return nil, err
		}
		res.SupplierHint = hint
		if hint != nil {
			supplierID = *hint
		}
	}

	rec := &internal.StockReception{
		SupplierID: supplierID,
		Mark:       doc.Mark,
		Status:     internal.StatusDraft,
		Items:      itemsFromLines(doc.Lines),
	}

	if supplierID > 0 {
		filled, err := s.matcher.AutoMap(supplierID, rec.Items)
		if err != nil {
			return nil, err
		}
		res.AutoFilled = filled
	}

	if err := s.db.SaveDraft(rec); err != nil {
		return nil, err
	}
	res.Reception = rec

	if supplierID > 0 {
		if res.Suggestions, err = s.matcher.Suggest(supplierID, rec.Items); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// ApplySuggestion writes an operator-confirmed barcode onto one draft
// line and re-saves the draft.
func (s *Service) ApplySuggestion(receptionID, row int, barcode string) (*internal.StockReception, error) {
	rec, err := s.db.GetDraft(receptionID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: id=%d", storage.ErrNotFound, receptionID)
	}
	if row < 0 || row >= len(rec.Items) {
		return nil, fmt.Errorf("row %d out of range for reception %d", row, receptionID)
	}

	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		rec.Items[row].Barcode = nil
		rec.Items[row].ProductID = nil
	} else {
		rec.Items[row].Barcode = internal.StringPtr(barcode)
		rec.Items[row].ProductID = nil
		if p, err := s.db.ProductByBarcode(barcode); err != nil {
			return nil, err
		} else if p != nil {
			rec.Items[row].ProductID = internal.IntPtr(p.ID)
		}
	}

	if err := s.db.SaveDraft(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// supplierHint scans the document text for supplier names and returns a
// supplier id only when exactly one name matches. Two matches mean the
// hint is ambiguous and the operator must choose.
func (s *Service) supplierHint(text string) (*int, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	suppliers, err := s.db.ListSuppliers()
	if err != nil {
		return nil, err
	}

	haystack := util.NameKey(text)
	var found *int
	for _, sup := range suppliers {
		needle := util.NameKey(sup.Name)
		if needle == "" || !strings.Contains(haystack, needle) {
			continue
		}
		if found != nil {
			return nil, nil
		}
		found = internal.IntPtr(sup.ID)
	}
	return found, nil
}

func itemsFromLines(lines []internal.RawLineItem) []internal.StockReceptionItem {
	items := make([]internal.StockReceptionItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, internal.StockReceptionItem{
			SupplierCode: strings.TrimSpace(line.SupplierCode),
			Description:  util.CollapseSpaces(line.Description),
			Quantity:     line.Quantity,
		})
	}
	return items
}
