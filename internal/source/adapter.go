package source

import "hermespos/internal"

// Document is an adapter's output: the ordered raw lines, the document
// fingerprint (never empty; adapters fall back to the deterministic
// pseudo-mark), and the document's visible text for supplier hinting.
type Document struct {
	Lines []internal.RawLineItem
	Mark  string
	Text  string
}

// Parse dispatches the fetched bytes to the adapter belonging to the
// classified source kind.
func Parse(src Source, body []byte) (Document, error) {
	switch src.Kind {
	case KindSbz:
		return ParseSbzHTML(body, src.Token)
	case KindEInvoicingPdf:
		return ParsePDF(body, src.Token)
	default:
		// AADE and generic pages share one discovery ladder; on a
		// non-AADE page the known ids simply never match and the
		// header-scan fallback does the work.
		return ParseAadeHTML(body, src.Token)
	}
}
