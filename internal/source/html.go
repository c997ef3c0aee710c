package source

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"hermespos/internal"
	"hermespos/internal/util"
)

var (
	descriptionKeys = []string{"ΠΕΡΙΓΡΑΦ", "DESCRIPTION", "ITEM"}
	quantityKeys    = []string{"ΠΟΣΟΤΗΤΑ", "ΠΟΣ", "QTY", "QUANTITY"}
	codeKeys        = []string{"ΚΩΔΙΚΟΣ", "ΚΩΔ", "CODE"}

	reMark = regexp.MustCompile(`(?i)MARK\s*[:=]?\s*([0-9]{8,20})`)
)

// PseudoMark derives a stable fingerprint from the original input token
// for documents that carry no usable mark. Deterministic on purpose:
// re-importing the same reference must find the same draft.
func PseudoMark(token string) string {
	sum := sha1.Sum([]byte(strings.TrimSpace(token)))
	return "QR-" + strings.ToUpper(hex.EncodeToString(sum[:]))[:16]
}

func tableRows(table *goquery.Selection) []*goquery.Selection {
	var rows []*goquery.Selection
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		rows = append(rows, tr)
	})
	return rows
}

func rowCells(tr *goquery.Selection) []string {
	var cells []string
	tr.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
		cells = append(cells, util.CollapseSpaces(cell.Text()))
	})
	return cells
}

// headerRowIndex picks the first row containing th cells; tables without
// any th treat their first row as the header.
func headerRowIndex(rows []*goquery.Selection) int {
	for i, tr := range rows {
		if tr.Find("th").Length() > 0 {
			return i
		}
	}
	return 0
}

func indexByKeys(headers []string, keys ...string) int {
	for i, h := range headers {
		norm := util.NormalizeGreek(h)
		for _, k := range keys {
			if strings.Contains(norm, util.NormalizeGreek(k)) {
				return i
			}
		}
	}
	return -1
}

func looksLikeLineTable(headers []string) bool {
	return indexByKeys(headers, descriptionKeys...) >= 0 && indexByKeys(headers, quantityKeys...) >= 0
}

// findLineTable walks the discovery ladder: known element id, first
// table after a known heading phrase, then a full scan for any table
// whose header row names a description and a quantity column.
func findLineTable(doc *goquery.Document, elementID, headingPhrase string) *goquery.Selection {
	if elementID != "" {
		if t := doc.Find("table#" + elementID).First(); t.Length() > 0 {
			return t
		}
	}

	if headingPhrase != "" {
		want := util.NormalizeGreek(headingPhrase)
		var found *goquery.Selection
		doc.Find("h2,h3").EachWithBreak(func(_ int, h *goquery.Selection) bool {
			if !strings.Contains(util.NormalizeGreek(h.Text()), want) {
				return true
			}
			t := h.NextAllFiltered("table").First()
			if t.Length() == 0 {
				t = h.NextAll().Find("table").First()
			}
			if t.Length() > 0 {
				found = t
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}

	var found *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		rows := tableRows(t)
		if len(rows) == 0 {
			return true
		}
		if looksLikeLineTable(rowCells(rows[headerRowIndex(rows)])) {
			found = t
			return false
		}
		return true
	})
	return found
}

type columnLayout struct {
	code  int
	descr int
	qty   int
}

// resolveColumns maps normalized headers to columns by keyword
// containment. A table with no recognizable quantity header still gets
// one guessed from the data: the first column that parses as a number
// in at least 2 of the first 6 data rows.
func resolveColumns(headers []string, dataRows [][]string) (columnLayout, error) {
	layout := columnLayout{
		code:  indexByKeys(headers, codeKeys...),
		descr: indexByKeys(headers, descriptionKeys...),
		qty:   indexByKeys(headers, quantityKeys...),
	}
	if layout.descr < 0 {
		return layout, &ParseError{Kind: ParseColumnsNotFound}
	}
	if layout.qty < 0 {
		layout.qty = guessQuantityColumn(dataRows, layout.code, layout.descr)
	}
	if layout.qty < 0 {
		return layout, &ParseError{Kind: ParseColumnsNotFound}
	}
	return layout, nil
}

func guessQuantityColumn(dataRows [][]string, exclude ...int) int {
	skip := map[int]bool{}
	for _, idx := range exclude {
		if idx >= 0 {
			skip[idx] = true
		}
	}

	limit := len(dataRows)
	if limit > 6 {
		limit = 6
	}

	hits := map[int]int{}
	width := 0
	for _, row := range dataRows[:limit] {
		if len(row) > width {
			width = len(row)
		}
		for col, cell := range row {
			if skip[col] {
				continue
			}
			if _, ok := util.ParseQuantity(cell); ok {
				hits[col]++
			}
		}
	}

	for col := 0; col < width; col++ {
		if hits[col] >= 2 {
			return col
		}
	}
	return -1
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// rowsToItems converts data rows into raw line items: blank
// descriptions are skipped, unparsable quantities default to 1.
func rowsToItems(dataRows [][]string, layout columnLayout) []internal.RawLineItem {
	var items []internal.RawLineItem
	for i, row := range dataRows {
		descr := cellAt(row, layout.descr)
		if descr == "" {
			continue
		}
		items = append(items, internal.RawLineItem{
			SupplierCode: cellAt(row, layout.code),
			Description:  descr,
			Quantity:     util.ParseQuantityOrOne(cellAt(row, layout.qty)),
			SourceRow:    i,
		})
	}
	return items
}

func markFromRegex(re *regexp.Regexp, text string) string {
	if m := re.FindStringSubmatch(text); len(m) > 1 {
		return m[1]
	}
	return ""
}
