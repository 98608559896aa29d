package sifen

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeText trims, optionally strips diacritics and truncates a free
// text field to the schema's maximum length. maxLength <= 0 disables
// truncation.
func NormalizeText(s string, removeAccents bool, maxLength int) string {
	s = strings.TrimSpace(s)
	if removeAccents {
		if out, _, err := transform.String(accentStripper, s); err == nil {
			s = out
		}
	}
	if maxLength > 0 && len([]rune(s)) > maxLength {
		s = string([]rune(s)[:maxLength])
	}
	return s
}
