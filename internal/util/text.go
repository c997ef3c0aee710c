package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	reSpaces     = regexp.MustCompile(`\s+`)
	reNonAllowed = regexp.MustCompile(`[^A-Z0-9Α-Ω ]`)

	// NFD, drop combining marks, recompose. Strips Greek tonos/dialytika
	// the same way the source pages render them inconsistently.
	accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	greekLatinFolder = strings.NewReplacer(
		"Α", "A", "Β", "B", "Ε", "E", "Ζ", "Z",
		"Η", "H", "Ι", "I", "Κ", "K", "Μ", "M",
		"Ν", "N", "Ο", "O", "Ρ", "P", "Τ", "T",
		"Υ", "Y", "Χ", "X",
	)
)

// CollapseSpaces trims and folds all whitespace runs (incl. NBSP) to a
// single space.
func CollapseSpaces(input string) string {
	s := strings.ReplaceAll(input, " ", " ")
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}

// StripAccents removes diacritics: "Ποσότητα" -> "Ποσοτητα".
func StripAccents(input string) string {
	out, _, err := transform.String(accentStripper, input)
	if err != nil {
		return input
	}
	return out
}

// NormalizeGreek is the shared header/text key: accents stripped,
// upper-cased, whitespace collapsed, everything outside [A-Z0-9Α-Ω ]
// dropped. Both table headers and probe keywords go through it, so
// containment checks are locale-safe.
func NormalizeGreek(input string) string {
	s := CollapseSpaces(input)
	s = strings.ToUpper(StripAccents(s))
	s = reNonAllowed.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// GreekLatinFold maps upper-case Greek homoglyphs to their Latin
// look-alikes. Product names are typed with the two alphabets mixed
// freely ("ΡΕ014" vs "PE014"), so name keys fold them together.
func GreekLatinFold(input string) string {
	return greekLatinFolder.Replace(input)
}

// NameKey builds the pass-2 comparison key for a product name or an
// item description.
func NameKey(input string) string {
	return GreekLatinFold(NormalizeGreek(input))
}

// NormalizeCode is the supplier-code key: trimmed, inner whitespace
// collapsed, upper-cased. Empty means "no usable code".
func NormalizeCode(input string) string {
	return strings.ToUpper(CollapseSpaces(input))
}
