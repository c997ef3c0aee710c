package util

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// el-GR shape: dot thousands groups, comma decimals. "1.234,56", "3,00".
	reGreekNumber = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})*(?:,\d+)?$`)
	// invariant shape: optional dot decimals. "12.5", "1000".
	reInvariantNumber = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
)

// ParseQuantity parses a quantity cell tolerant of locale: the Greek
// format is tried first, then the invariant one. Returns ok=false for
// anything else; callers decide the default.
func ParseQuantity(input string) (decimal.Decimal, bool) {
	s := CollapseSpaces(input)
	if s == "" {
		return decimal.Zero, false
	}

	if reGreekNumber.MatchString(s) {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
		d, err := decimal.NewFromString(s)
		return d, err == nil
	}
	if reInvariantNumber.MatchString(s) {
		d, err := decimal.NewFromString(s)
		return d, err == nil
	}
	return decimal.Zero, false
}

// ParseQuantityOrOne is the row-extraction default: unparsable cells
// count as a single unit rather than dropping the line.
func ParseQuantityOrOne(input string) decimal.Decimal {
	if d, ok := ParseQuantity(input); ok {
		return d
	}
	return decimal.NewFromInt(1)
}
