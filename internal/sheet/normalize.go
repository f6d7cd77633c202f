package sheet

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	invalidRegex    = regexp.MustCompile(`[^a-z0-9_]+`)
)

// NormalizeHeader canonicalizes a source column header: lowercase, trimmed,
// diacritics stripped, whitespace collapsed to underscores, and the "n°"
// ordinal marker expanded the way the database schema spells it
// ("N° PEDIDO" -> "numero_pedido").
func NormalizeHeader(header string) string {
	s := strings.ToLower(strings.TrimSpace(header))
	s = strings.ReplaceAll(s, "n°", "numero")
	s = stripDiacritics(s)
	s = whitespaceRegex.ReplaceAllString(s, "_")
	s = invalidRegex.ReplaceAllString(s, "")
	return strings.Trim(s, "_")
}

func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(func(r rune) bool {
		return unicode.Is(unicode.Mn, r)
	}))
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}
