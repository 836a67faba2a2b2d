package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Normalize turns free text into a slug: lower-case ASCII letters and digits
// separated by single dashes, at most maxLength bytes long. A maxLength of
// zero or less means no limit.
func Normalize(s string, maxLength int) string {
	s = strings.ToLower(removeAccents(s))
	s = nonSlugChars.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	return cut(s, maxLength)
}

func cut(s string, maxLength int) string {
	if maxLength > 0 && len(s) > maxLength {
		s = strings.TrimRight(s[:maxLength], "-")
	}
	return s
}

// removeAccents strips diacritical marks from a string.
func removeAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}
