package source

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"hermespos/internal"
)

// Synthetic word grid mimicking the borderless invoice layout: header
// at the top, two item rows, a VAT breakdown row and a totals row.
func invoiceWords() []pdfWord {
	return []pdfWord{
		{text: "ΚΩΔΙΚΟΣ", x: 50, y: 700, page: 1},
		{text: "ΠΕΡΙΓΡΑΦΗ", x: 125, y: 700, page: 1},
		{text: "ΠΟΣΟΤΗΤΑ", x: 305, y: 700, page: 1},
		{text: "ΑΞΙΑ", x: 400, y: 700, page: 1},

		// code column bleeds into the start of the description
		{text: "33600002", x: 50, y: 650, page: 1},
		{text: "PE014", x: 95, y: 650, page: 1},
		{text: "ΠΕΝΣΑΚΙ", x: 127, y: 650, page: 1},
		{text: "4mm", x: 170, y: 650, page: 1},
		{text: "6", x: 306, y: 650, page: 1},
		{text: "ΤΜΧ", x: 330, y: 650, page: 1},
		{text: "7,20", x: 401, y: 650, page: 1},

		{text: "44700001", x: 50, y: 600, page: 1},
		{text: "ΒΟΥΡΤΣΑ", x: 126, y: 600, page: 1},
		{text: "ΜΑΛΛΙΩΝ", x: 175, y: 600, page: 1},
		{text: "3,00", x: 305, y: 600, page: 1},
		{text: "12,00", x: 402, y: 600, page: 1},

		{text: "ΑΝΑΛΥΣΗ", x: 50, y: 550, page: 1},
		{text: "ΣΥΝΤΕΛΕΣΤΗ", x: 110, y: 550, page: 1},
		{text: "ΦΠΑ", x: 200, y: 550, page: 1},
		{text: "ΣΥΝΟΛΟ", x: 50, y: 500, page: 1},
		{text: "19,20", x: 402, y: 500, page: 1},
	}
}

func TestParseByPositions(t *testing.T) {
	items := parseByPositions(invoiceWords())
	if len(items) != 2 {
		t.Fatalf("items=%d: %+v", len(items), items)
	}

	first := items[0]
	if first.SupplierCode != "33600002" {
		t.Fatalf("code=%q", first.SupplierCode)
	}
	if first.Description != "PE014 ΠΕΝΣΑΚΙ 4mm" {
		t.Fatalf("descr=%q", first.Description)
	}
	if first.Quantity.String() != "6" {
		t.Fatalf("qty=%s", first.Quantity)
	}

	second := items[1]
	if second.SupplierCode != "44700001" || second.Quantity.String() != "3" {
		t.Fatalf("second=%+v", second)
	}
}

func TestParseByPositionsQuantityOutOfRange(t *testing.T) {
	words := invoiceWords()
	for i := range words {
		if words[i].text == "6" {
			words[i].text = "2000000"
		}
	}
	items := parseByPositions(words)
	if len(items) != 1 {
		t.Fatalf("items=%d", len(items))
	}
	if items[0].SupplierCode != "44700001" {
		t.Fatalf("kept=%+v", items[0])
	}
}

func TestParseByPositionsNoHeader(t *testing.T) {
	words := []pdfWord{
		{text: "33600002", x: 50, y: 650, page: 1},
		{text: "ΠΕΝΣΑΚΙ", x: 127, y: 650, page: 1},
		{text: "6", x: 306, y: 650, page: 1},
	}
	if items := parseByPositions(words); items != nil {
		t.Fatalf("expected nil, got %+v", items)
	}
}

func TestParseByLines(t *testing.T) {
	lines := []string{
		"ΤΙΜΟΛΟΓΙΟ ΠΩΛΗΣΗΣ",
		"33600002 PE014 ΠΕΝΣΑΚΙ 4mm 6 1,20 7,20",
		"44700001 ΒΟΥΡΤΣΑ ΜΑΛΛΙΩΝ 3 4,00 12,00",
		"ΣΥΝΟΛΟ 19,20",
	}
	items := parseByLines(lines)
	if len(items) != 2 {
		t.Fatalf("items=%d: %+v", len(items), items)
	}
	if items[0].SupplierCode != "33600002" || items[0].Description != "PE014 ΠΕΝΣΑΚΙ 4mm" {
		t.Fatalf("first=%+v", items[0])
	}
	if items[0].Quantity.String() != "6" {
		t.Fatalf("qty=%s", items[0].Quantity)
	}
}

func TestMergeItemsFirstWins(t *testing.T) {
	positional := []internal.RawLineItem{
		{SupplierCode: "33600002", Description: "PE014 ΠΕΝΣΑΚΙ 4mm", Quantity: mustQty(t, "6")},
	}
	regex := []internal.RawLineItem{
		{SupplierCode: "33600002", Description: "PE014  ΠΕΝΣΑΚΙ 4mm", Quantity: mustQty(t, "999")},
		{SupplierCode: "55500003", Description: "ΛΙΜΑ ΝΥΧΙΩΝ", Quantity: mustQty(t, "2")},
	}

	merged := mergeItems(positional, regex)
	if len(merged) != 2 {
		t.Fatalf("merged=%d: %+v", len(merged), merged)
	}
	if merged[0].Quantity.String() != "6" {
		t.Fatalf("first strategy did not win: %+v", merged[0])
	}
	if merged[1].SupplierCode != "55500003" {
		t.Fatalf("second=%+v", merged[1])
	}
}

func TestRepairCodeBleed(t *testing.T) {
	code, descr := repairCodeBleed("33600002 PE014", "ΠΕΝΣΑΚΙ 4mm")
	if code != "33600002" || descr != "PE014 ΠΕΝΣΑΚΙ 4mm" {
		t.Fatalf("code=%q descr=%q", code, descr)
	}

	code, descr = repairCodeBleed("44700001", "ΒΟΥΡΤΣΑ")
	if code != "44700001" || descr != "ΒΟΥΡΤΣΑ" {
		t.Fatalf("untouched pair changed: %q %q", code, descr)
	}
}

func TestStripUnitTokens(t *testing.T) {
	if got := stripUnitTokens("6 ΤΜΧ"); got != "6" {
		t.Fatalf("got %q", got)
	}
	if got := stripUnitTokens("3,00 TEM"); got != "3,00" {
		t.Fatalf("got %q", got)
	}
	if got := stripUnitTokens("12"); got != "12" {
		t.Fatalf("got %q", got)
	}
}

func TestParsePDFNotAPdf(t *testing.T) {
	doc, err := ParsePDF([]byte("<html>error page</html>"), "token")
	var perr *ParseError
	if !errors.As(err, &perr) || perr.Kind != ParseNotAPdf {
		t.Fatalf("err=%v", err)
	}
	if doc.Mark != PseudoMark("token") {
		t.Fatalf("mark=%q", doc.Mark)
	}
}

func mustQty(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}
