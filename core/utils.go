package core

import "strings"

var accents = strings.NewReplacer(
	"à", "a", "â", "a", "ç", "c", "é", "e", "è", "e", "ê", "e", "ë", "e",
	"î", "i", "ï", "i", "ô", "o", "û", "u", "ù", "u", "ü", "u",
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// FoldKey cleans, lowers and strips French accents from `s`, e.g. " Chèque" -> "cheque".
// Upstream option values and payment methods are compared in this form.
func FoldKey(s string) string {
	return accents.Replace(CleanString(s, true /* lower */))
}
