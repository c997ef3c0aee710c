package source

import (
	"net/url"
	"strings"
)

// Kind is the closed set of document sources. Classification happens
// once at the fetch boundary; every kind carries its own adapter.
type Kind string

const (
	KindAadeQr        Kind = "aade_qr"
	KindSbz           Kind = "sbz"
	KindEInvoicingPdf Kind = "einvoicing_pdf"
	KindGenericHtml   Kind = "generic_html"
)

// Source is a classified reference: the resolved URL to fetch plus the
// original token, which seeds the deterministic pseudo-mark when the
// document itself carries no fingerprint.
type Source struct {
	Kind  Kind
	URL   string
	Token string
}

// Classify inspects a free-form reference: a full URL from a scanned QR
// code or a bare AADE token. Unrecognized bare tokens are assumed to be
// AADE and expanded into the canonical QRInfo query URL.
func Classify(ref, aadeQRBase string) Source {
	token := strings.TrimSpace(ref)
	lower := strings.ToLower(token)

	switch {
	case strings.Contains(lower, "api.sbz.gr"):
		return Source{Kind: KindSbz, URL: token, Token: token}
	case strings.Contains(lower, "e-invoicing.gr"):
		return Source{Kind: KindEInvoicingPdf, URL: token, Token: token}
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		if strings.Contains(lower, "mydatapi.aade.gr") {
			return Source{Kind: KindAadeQr, URL: token, Token: token}
		}
		return Source{Kind: KindGenericHtml, URL: token, Token: token}
	default:
		u := strings.TrimRight(aadeQRBase, "?&") + "?q=" + url.QueryEscape(token)
		return Source{Kind: KindAadeQr, URL: u, Token: token}
	}
}
