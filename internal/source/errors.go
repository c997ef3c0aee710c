package source

import (
	"fmt"
	"strings"
)

type FetchErrorKind string

const (
	FetchHTTP    FetchErrorKind = "http"
	FetchEmpty   FetchErrorKind = "empty"
	FetchTimeout FetchErrorKind = "timeout"
)

// FetchError covers transport-level failures. Nothing is persisted when
// one is returned; the operator retries by re-importing the reference.
type FetchError struct {
	Kind   FetchErrorKind
	Status int
	URL    string
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchHTTP:
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.Status)
	case FetchEmpty:
		return fmt.Sprintf("fetch %s: empty response body", e.URL)
	case FetchTimeout:
		return fmt.Sprintf("fetch %s: timed out", e.URL)
	}
	return fmt.Sprintf("fetch %s: failed", e.URL)
}

type ParseErrorKind string

const (
	ParseTableNotFound   ParseErrorKind = "table_not_found"
	ParseColumnsNotFound ParseErrorKind = "columns_not_found"
	ParseNotAPdf         ParseErrorKind = "not_a_pdf"
	ParseCorrupt         ParseErrorKind = "corrupt"
	ParseNoRows          ParseErrorKind = "no_rows"
)

type ParseError struct {
	Kind   ParseErrorKind
	Detail string
}

func (e *ParseError) Error() string {
	msg := ""
	switch e.Kind {
	case ParseTableNotFound:
		msg = "no line-item table found in document"
	case ParseColumnsNotFound:
		msg = "description/quantity columns not found"
	case ParseNotAPdf:
		msg = "content is not a PDF"
	case ParseCorrupt:
		msg = "document could not be opened"
	case ParseNoRows:
		msg = "document parsed but contains no line items"
	default:
		msg = "parse failed"
	}
	if strings.TrimSpace(e.Detail) != "" {
		return msg + ": " + e.Detail
	}
	return msg
}
