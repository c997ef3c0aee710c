package source

import (
	"bytes"
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

// The SBZ page prints the mark as a labelled line of text near the
// footer instead of a dedicated element.
var reSbzMark = regexp.MustCompile(`Μ\.?\s*Αρ\.?\s*Κ\.?\s*:\s*([0-9]{8,20})`)

// ParseSbzHTML extracts line items from the SBZ delivery-note page. No
// stable element ids or headings exist there, so discovery goes
// straight to the header scan.
func ParseSbzHTML(body []byte, token string) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Document{Mark: PseudoMark(token)}, &ParseError{Kind: ParseCorrupt, Detail: err.Error()}
	}

	out := Document{Text: doc.Text()}
	out.Mark = markFromRegex(reSbzMark, out.Text)
	if out.Mark == "" {
		out.Mark = markFromRegex(reMark, string(body))
	}
	if out.Mark == "" {
		out.Mark = PseudoMark(token)
	}

	table := findLineTable(doc, "", "")
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
