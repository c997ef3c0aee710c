package source

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"hermespos/internal/util"
)

const (
	aadeTableID = "tableDiakinisis"
	aadeMarkID  = "tmark"
	aadeHeading = "Στοιχεία δελτίου διακίνησης"
)

// ParseAadeHTML extracts line items from the AADE TimologioQR page.
// The markup is loosely structured and has changed between revisions,
// hence the layered table discovery and mark fallbacks.
func ParseAadeHTML(body []byte, token string) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Document{Mark: PseudoMark(token)}, &ParseError{Kind: ParseCorrupt, Detail: err.Error()}
	}

	out := Document{
		Mark: aadeMark(doc, string(body), token),
		Text: doc.Text(),
	}

	table := findLineTable(doc, aadeTableID, aadeHeading)
	if table == nil {
		return out, &ParseError{Kind: ParseTableNotFound}
	}

	rows := tableRows(table)
	hIdx := headerRowIndex(rows)
	headers := rowCells(rows[hIdx])

	var dataRows [][]string
	for _, tr := range rows[hIdx+1:] {
		if cells := rowCells(tr); len(cells) > 0 {
			dataRows = append(dataRows, cells)
		}
	}

	layout, err := resolveColumns(headers, dataRows)
	if err != nil {
		return out, err
	}

	out.Lines = rowsToItems(dataRows, layout)
	if len(out.Lines) == 0 {
		return out, &ParseError{Kind: ParseNoRows}
	}
	return out, nil
}

// aadeMark resolves the document fingerprint: the tmark element, then a
// MARK label anywhere in the page, then the pseudo-mark of the token so
// retries stay idempotent even when the page cannot be parsed.
func aadeMark(doc *goquery.Document, raw, token string) string {
	if m := strings.TrimSpace(doc.Find("#" + aadeMarkID).First().Text()); m != "" {
		return util.CollapseSpaces(m)
	}
	if m := markFromRegex(reMark, raw); m != "" {
		return m
	}
	return PseudoMark(token)
}
