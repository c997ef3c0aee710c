package source

import (
	"bytes"
	"math"
	"regexp"
	"sort"
	"strings"

	pdf "github.com/ledongthuc/pdf"
	"github.com/shopspring/decimal"

	"hermespos/internal"
	"hermespos/internal/util"
)

const (
	// baseline jitter absorbed when bucketing words into rows
	pdfRowTolerance = 2.9
	// a horizontal gap this wide between header words starts a new column
	pdfColumnGap = 20.0

	pdfMaxQuantity = 1_000_000
)

var (
	reCodeBleed   = regexp.MustCompile(`^(\d{5,})\s+(.+)$`)
	reCodePrefix  = regexp.MustCompile(`^\d{5,}`)
	rePdfLineItem = regexp.MustCompile(`^(\d{5,})\s+(.+?)\s+(\d+)(?:\s+[0-9]+(?:[.,][0-9]+)?)+`)
)

type pdfWord struct {
	text string
	x    float64
	y    float64
	page int
}

// ParsePDF extracts line items from the e-invoicing invoice PDF. The
// layout has no table borders, so two independent strategies run and
// their union is kept: positional column reconstruction for rows the
// text extractor mangles, and a line regex for rows the positional pass
// splits badly.
func ParsePDF(content []byte, token string) (Document, error) {
	out := Document{Mark: PseudoMark(token)}

	if !bytes.HasPrefix(content, []byte("%PDF")) {
		return out, &ParseError{Kind: ParseNotAPdf}
	}

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return out, &ParseError{Kind: ParseCorrupt, Detail: err.Error()}
	}

	var words []pdfWord
	var lines []string
	var text strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		words = append(words, pageWords(p, i)...)
		if plain, err := p.GetPlainText(nil); err == nil {
			text.WriteString(plain)
			for _, line := range strings.Split(plain, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					lines = append(lines, line)
				}
			}
		}
	}
	out.Text = text.String()

	merged := mergeItems(parseByPositions(words), parseByLines(lines))
	if len(merged) == 0 {
		return out, &ParseError{Kind: ParseNoRows}
	}
	for i := range merged {
		merged[i].SourceRow = i
	}
	out.Lines = merged
	return out, nil
}

// pageWords flattens the page's text chunks into words, gluing chunks
// that sit on the same baseline with no real gap between them (the
// extractor often splits a word into per-glyph runs).
func pageWords(p pdf.Page, pageNo int) []pdfWord {
	texts := p.Content().Text
	sort.SliceStable(texts, func(i, j int) bool {
		if texts[i].Y != texts[j].Y {
			return texts[i].Y > texts[j].Y
		}
		return texts[i].X < texts[j].X
	})

	var words []pdfWord
	var cur *pdfWord
	var curEnd float64
	for _, t := range texts {
		s := t.S
		if strings.TrimSpace(s) == "" {
			if cur != nil && math.Abs(t.Y-cur.y) < 0.5 {
				// explicit space ends the current word
				words = append(words, *cur)
				cur = nil
			}
			continue
		}
		if cur != nil && math.Abs(t.Y-cur.y) < 0.5 && t.X-curEnd < 1.0 {
			cur.text += s
			curEnd = t.X + t.W
			continue
		}
		if cur != nil {
			words = append(words, *cur)
		}
		cur = &pdfWord{text: s, x: t.X, y: t.Y, page: pageNo}
		curEnd = t.X + t.W
	}
	if cur != nil {
		words = append(words, *cur)
	}

	out := words[:0]
	for _, w := range words {
		if w.text = strings.TrimSpace(w.text); w.text != "" {
			out = append(out, w)
		}
	}
	return out
}

type pdfRow struct {
	page  int
	key   float64
	words []pdfWord
}

// groupRows buckets words into visual rows by quantized y, ordered top
// to bottom per page (PDF y grows upward).
func groupRows(words []pdfWord, tolerance float64) []pdfRow {
	type rowKey struct {
		page int
		key  float64
	}
	buckets := map[rowKey][]pdfWord{}
	for _, w := range words {
		k := rowKey{page: w.page, key: math.Round(w.y / tolerance)}
		buckets[k] = append(buckets[k], w)
	}

	rows := make([]pdfRow, 0, len(buckets))
	for k, ws := range buckets {
		sort.Slice(ws, func(i, j int) bool { return ws[i].x < ws[j].x })
		rows = append(rows, pdfRow{page: k.page, key: k.key, words: ws})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].page != rows[j].page {
			return rows[i].page < rows[j].page
		}
		return rows[i].key > rows[j].key
	})
	return rows
}

func rowText(r pdfRow) string {
	parts := make([]string, 0, len(r.words))
	for _, w := range r.words {
		parts = append(parts, w.text)
	}
	return strings.Join(parts, " ")
}

// parseByPositions reconstructs columns from the header row's word
// x-positions: a gap above pdfColumnGap starts a new column, and data
// words are assigned to the column whose cut they fall behind.
func parseByPositions(words []pdfWord) []internal.RawLineItem {
	rows := groupRows(words, pdfRowTolerance)

	var cuts []float64
	colCode, colDescr, colQty := -1, -1, -1
	for _, row := range rows {
		header := util.NormalizeGreek(rowText(row))
		if !strings.Contains(header, "ΠΕΡΙΓΡΑΦ") || !strings.Contains(header, "ΠΟΣΟΤ") {
			continue
		}

		last := math.Inf(-1)
		for _, w := range row.words {
			if w.x-last > pdfColumnGap {
				cuts = append(cuts, w.x)
			}
			last = w.x
		}
		for _, w := range row.words {
			txt := util.NormalizeGreek(w.text)
			col := columnFor(cuts, w.x)
			switch {
			case strings.Contains(txt, "ΚΩΔΙΚ"):
				colCode = col
			case strings.Contains(txt, "ΠΕΡΙΓΡΑΦ"):
				colDescr = col
			case strings.Contains(txt, "ΠΟΣΟΤ"), strings.Contains(txt, "QTY"):
				colQty = col
			}
		}
		break
	}

	if colDescr < 0 || colQty < 0 || len(cuts) == 0 {
		return nil
	}

	var items []internal.RawLineItem
	for _, row := range rows {
		norm := util.NormalizeGreek(rowText(row))
		if strings.Contains(norm, "ΠΕΡΙΓΡΑΦ") ||
			strings.HasPrefix(norm, "ΣΥΝΟΛ") ||
			strings.Contains(norm, "ΑΝΑΛΥΣΗ ΣΥΝΤΕΛΕΣΤΗ") {
			continue
		}

		cols := map[int][]string{}
		for _, w := range row.words {
			col := columnFor(cuts, w.x)
			cols[col] = append(cols[col], w.text)
		}
		colText := func(idx int) string {
			return strings.TrimSpace(strings.Join(cols[idx], " "))
		}

		descr := colText(colDescr)
		if descr == "" {
			continue
		}

		qty, ok := util.ParseQuantity(stripUnitTokens(colText(colQty)))
		if !ok || !quantityInRange(qty) {
			continue
		}

		code, descr := repairCodeBleed(colText(colCode), descr)
		items = append(items, internal.RawLineItem{
			SupplierCode: code,
			Description:  descr,
			Quantity:     qty,
		})
	}
	return items
}

func columnFor(cuts []float64, x float64) int {
	col := -1
	for _, c := range cuts {
		if x >= c {
			col++
		}
	}
	if col < 0 {
		col = 0
	}
	return col
}

// parseByLines matches fully-assembled text lines of the shape
// "<code> <description> <qty> <amount> [amounts...]".
func parseByLines(lines []string) []internal.RawLineItem {
	var items []internal.RawLineItem
	for _, line := range lines {
		if !reCodePrefix.MatchString(line) {
			continue
		}
		m := rePdfLineItem.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		qty, ok := util.ParseQuantity(m[3])
		if !ok || !quantityInRange(qty) {
			continue
		}
		items = append(items, internal.RawLineItem{
			SupplierCode: strings.TrimSpace(m[1]),
			Description:  strings.TrimSpace(m[2]),
			Quantity:     qty,
		})
	}
	return items
}

// repairCodeBleed handles column bleed between code and description:
// when the code column reads "33600002 PE014 ΠΕΝΣΑΚΙ", the digits are
// the code and the remainder belongs in front of the description.
func repairCodeBleed(code, descr string) (string, string) {
	m := reCodeBleed.FindStringSubmatch(code)
	if m == nil {
		return code, descr
	}
	extra := strings.TrimSpace(m[2])
	if extra != "" {
		descr = strings.TrimSpace(extra + " " + descr)
	}
	return m[1], descr
}

var pdfUnitTokens = map[string]bool{"ΤΜΧ": true, "TEM": true, "PCS": true}

func stripUnitTokens(s string) string {
	fields := strings.Fields(s)
	out := fields[:0]
	for _, f := range fields {
		if pdfUnitTokens[strings.ToUpper(util.StripAccents(f))] {
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

func quantityInRange(q decimal.Decimal) bool {
	return q.IsPositive() && q.LessThanOrEqual(decimal.NewFromInt(pdfMaxQuantity))
}

// mergeItems unions the two strategies, de-duplicated by
// (code, description); the first occurrence wins.
func mergeItems(groups ...[]internal.RawLineItem) []internal.RawLineItem {
	seen := map[string]bool{}
	var out []internal.RawLineItem
	for _, items := range groups {
		for _, it := range items {
			key := strings.ToUpper(util.CollapseSpaces(it.SupplierCode) + "§" + util.CollapseSpaces(it.Description))
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, it)
		}
	}
	return out
}
